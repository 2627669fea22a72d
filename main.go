package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"

	"github.com/ohsu-comp-bio/glidein/cmd"
	"github.com/ohsu-comp-bio/glidein/compute"
	"github.com/ohsu-comp-bio/glidein/logger"
	"github.com/ohsu-comp-bio/glidein/util"
)

func main() {
	ctx, cancel := util.SignalContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cmd.RootCmd.ExecuteContext(ctx)
	cancel()
	os.Exit(exitCode(err))
}

func exitCode(err error) int {
	var exitErr *compute.ExitError
	var status *util.ExitStatus
	switch {
	case err == nil:
		return 0
	case errors.As(err, &exitErr):
		if exitErr.Stderr != "" {
			logger.Error("command stderr", "cmd", exitErr.Cmd, "stderr", exitErr.Stderr)
		}
		fmt.Println(exitErr.Error())
		return exitErr.Code
	case errors.As(err, &status):
		fmt.Println(status.Msg)
		return status.Code
	default:
		logger.PrintSimpleError(err)
		return 1
	}
}
