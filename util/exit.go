package util

// ExitStatus is an error that asks the process to exit with Code after
// printing Msg to stdout.
type ExitStatus struct {
	Code int
	Msg  string
}

func (e *ExitStatus) Error() string {
	return e.Msg
}
