package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/bytedance/sonic"
	"gopkg.in/yaml.v3"
)

// Exit codes for plankctl.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // Operation ran but was skipped or partially failed
	ExitCommandError = 2 // Bad input or stores could not be opened
)

// ExitError carries the process exit code along with the error.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode returns ExitFailure for errors that are not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// writeOutput renders data in the selected format. YAML output goes through
// the json encoding first so both formats share the json field names.
func writeOutput(w io.Writer, format string, data any) error {
	raw, err := sonic.ConfigStd.MarshalIndent(data, "", "  ")
	if err != nil {
		return errors.New("encoding output error: " + err.Error())
	}
	if format == "json" {
		_, err = fmt.Fprintln(w, string(raw))
		return err
	}

	var generic any
	if err = sonic.ConfigStd.Unmarshal(raw, &generic); err != nil {
		return errors.New("encoding output error: " + err.Error())
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err = enc.Encode(generic); err != nil {
		return errors.New("encoding output error: " + err.Error())
	}
	return enc.Close()
}
