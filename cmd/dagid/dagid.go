// Package dagid implements "glidein dag-ids", which prints the ids a DAG
// node processed.
package dagid

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ohsu-comp-bio/glidein/logger"
	"github.com/ohsu-comp-bio/glidein/util"
)

// NewCommand returns the dag-ids command
func NewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "dag-ids <dagNodeName> <filename>",
		Short: "Print the var1 id list of a DAG node.",
		// Argument errors carry EINVAL, so cobra's validation is bypassed.
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 2 {
				return &util.ExitStatus{
					Code: int(syscall.EINVAL),
					Msg:  fmt.Sprintf("usage:  %s dagNodeName filename", filepath.Base(os.Args[0])),
				}
			}
			return Run(cmd.OutOrStdout(), args[0], args[1])
		},
	}
}

// Run prints the ids of node found in the DAG file. Nothing is printed when
// the node has no VARS line.
func Run(w io.Writer, node, filename string) error {
	f, err := os.Open(filename)
	if os.IsNotExist(err) {
		return &util.ExitStatus{
			Code: int(syscall.ENOENT),
			Msg:  fmt.Sprintf("file %s not found", filename),
		}
	}
	if err != nil {
		return err
	}
	defer f.Close()

	ids, ok, err := Extract(f, node)
	if err != nil {
		return fmt.Errorf("reading %s: %w", filename, err)
	}
	logger.Debug("dag ids", "node", node, "file", filename, "found", ok)
	if ok {
		fmt.Fprintln(w, ids)
	}
	return nil
}

// Extract returns the quoted var1 value of the first "VARS <node>" line.
func Extract(r io.Reader, node string) (string, bool, error) {
	ex := regexp.MustCompile(`VARS ` + regexp.QuoteMeta(node) + ` var1="(.+?)"`)

	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for s.Scan() {
		if m := ex.FindStringSubmatch(s.Text()); m != nil {
			return m[1], true, nil
		}
	}
	return "", false, s.Err()
}
