package cli

import "fmt"

// Exit codes for embedprep.
const (
	// ExitSuccess indicates successful execution.
	ExitSuccess = 0

	// ExitFailure indicates a command error.
	ExitFailure = 1

	// ExitInvalidData indicates validation found invalid records.
	ExitInvalidData = 2
)

// ExitError carries a specific process exit code out of a command.
type ExitError struct {
	Code int
	Msg  string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s (exit %d)", e.Msg, e.Code)
}
