// Package seqfile implements a persistent integer counter stored as decimal
// text in a file.
package seqfile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/ohsu-comp-bio/glidein/util"
	"github.com/ohsu-comp-bio/glidein/util/fsutil"
)

// SeqFile is a counter file. Next is serialized across processes with an
// exclusive flock on a sidecar "<path>.lock" file.
type SeqFile struct {
	path    string
	retrier *util.Retrier
}

// New returns a SeqFile for the counter at path.
func New(path string) *SeqFile {
	r := util.NewRetrier()
	r.ShouldRetry = func(err error) bool {
		return errors.Is(err, syscall.EWOULDBLOCK)
	}
	return &SeqFile{path: path, retrier: r}
}

// Next returns the next value of the counter and stores it. The first call
// on a missing file returns 0.
func (s *SeqFile) Next(ctx context.Context) (int, error) {
	if err := fsutil.EnsurePath(s.path); err != nil {
		return 0, fmt.Errorf("creating sequence file directory: %w", err)
	}

	unlock, err := s.lock(ctx)
	if err != nil {
		return 0, err
	}
	defer unlock()

	n, err := s.Read()
	switch {
	case errors.Is(err, os.ErrNotExist):
		n = 0
	case err != nil:
		return 0, err
	default:
		n++
	}

	if err := s.Write(n); err != nil {
		return 0, err
	}
	return n, nil
}

// Read returns the stored value.
func (s *SeqFile) Read() (int, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil {
		return 0, fmt.Errorf("sequence file %s does not hold an integer: %w", s.path, err)
	}
	return n, nil
}

// Write stores n, replacing the file contents.
func (s *SeqFile) Write(n int) error {
	return fsutil.WriteFile(s.path, []byte(strconv.Itoa(n)+"\n"), 0644)
}

func (s *SeqFile) lock(ctx context.Context) (func(), error) {
	f, err := os.OpenFile(s.path+".lock", os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening sequence lock: %w", err)
	}

	err = s.retrier.Retry(ctx, func() error {
		return syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("locking sequence file %s: %w", s.path, err)
	}

	return func() {
		syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
		f.Close()
	}, nil
}
