package compute

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/armon/circbuf"
	"github.com/kballard/go-shellquote"

	"github.com/ohsu-comp-bio/glidein/logger"
)

// ErrQueueQuery marks a failure to read the HTCondor job queue. Sizing
// stops without submitting anything further.
var ErrQueueQuery = errors.New("problem querying condor schedd for jobs")

// ExitError is returned when an external command exits with a nonzero code.
type ExitError struct {
	Cmd    string
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("error running %s: exit status %d", e.Cmd, e.Code)
}

// Command is an external program invocation. Args are passed without a shell.
type Command struct {
	Args    []string
	Dir     string
	Timeout time.Duration
}

// NewCommand builds a Command from a configured program, which may carry
// leading arguments, and additional args.
func NewCommand(program string, args ...string) (Command, error) {
	base, err := shellquote.Split(program)
	if err != nil {
		return Command{}, fmt.Errorf("parsing command %q: %w", program, err)
	}
	if len(base) == 0 {
		return Command{}, fmt.Errorf("empty command")
	}
	return Command{Args: append(base, args...)}, nil
}

// In returns a copy of c which runs in dir.
func (c Command) In(dir string) Command {
	c.Dir = dir
	return c
}

// WithTimeout returns a copy of c which is killed after d. Zero means no timeout.
func (c Command) WithTimeout(d time.Duration) Command {
	c.Timeout = d
	return c
}

// String returns the command quoted for a POSIX shell.
func (c Command) String() string {
	return shellquote.Join(c.Args...)
}

// Runner runs external commands.
type Runner interface {
	// Run runs cmd and returns its exit code. err is only set when the
	// command could not be started or timed out.
	Run(ctx context.Context, cmd Command) (int, error)
	// Output runs cmd and returns its stdout. A nonzero exit is an *ExitError.
	Output(ctx context.Context, cmd Command) (string, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	Log *logger.Logger
	// Stdout receives the output of Run. Nil discards it.
	Stdout io.Writer
}

const stderrTail = 4096

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, c Command) (int, error) {
	stdout := r.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	code, _, err := r.run(ctx, c, stdout)
	return code, err
}

// Output implements Runner.
func (r *ExecRunner) Output(ctx context.Context, c Command) (string, error) {
	var out strings.Builder
	code, stderr, err := r.run(ctx, c, &out)
	if err != nil {
		return "", err
	}
	if code != 0 {
		return "", &ExitError{Cmd: c.String(), Code: code, Stderr: stderr}
	}
	return out.String(), nil
}

func (r *ExecRunner) run(ctx context.Context, c Command, stdout io.Writer) (int, string, error) {
	if len(c.Args) == 0 {
		return -1, "", fmt.Errorf("empty command")
	}
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	// circbuf only errors on a non-positive size.
	stderr, _ := circbuf.NewBuffer(stderrTail)

	cmd := exec.CommandContext(ctx, c.Args[0], c.Args[1:]...)
	cmd.Dir = c.Dir
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if r.Log != nil {
		r.Log.Debug("running command", "cmd", c.String(), "dir", c.Dir)
	}

	err := cmd.Run()
	switch ctx.Err() {
	case nil:
	case context.DeadlineExceeded:
		return -1, stderr.String(), fmt.Errorf("%s timed out after %s", c.String(), c.Timeout)
	default:
		return -1, stderr.String(), fmt.Errorf("running %s: %w", c.String(), ctx.Err())
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return 0, stderr.String(), nil
	case errors.As(err, &exitErr):
		if r.Log != nil {
			r.Log.Debug("command failed",
				"cmd", c.String(),
				"exit", exitErr.ExitCode(),
				"stderr", stderr.String(),
			)
		}
		return exitErr.ExitCode(), stderr.String(), nil
	default:
		return -1, stderr.String(), fmt.Errorf("running %s: %w", c.String(), err)
	}
}

// CountLines returns the number of non-empty lines in s, the way
// "| wc -l" counts the rows of a --noheader listing.
func CountLines(s string) int {
	n := 0
	sc := bufio.NewScanner(strings.NewReader(s))
	for sc.Scan() {
		if strings.TrimSpace(sc.Text()) != "" {
			n++
		}
	}
	return n
}
