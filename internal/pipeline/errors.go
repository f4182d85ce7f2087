package pipeline

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/harishchavandke01/FaceClear/internal/model"
)

// StageError is the failure of one pipeline stage. Err carries the stack
// captured where the stage failed; Stack is set for recovered panics.
type StageError struct {
	Kind  model.ErrorKind
	Err   error
	Stack []byte
}

func stageErr(kind model.ErrorKind, err error) *StageError {
	return &StageError{Kind: kind, Err: errors.WithStack(err)}
}

func (e *StageError) Error() string { return e.Err.Error() }

func (e *StageError) Unwrap() error { return e.Err }

// Format prints the wrapped stack for %+v.
func (e *StageError) Format(s fmt.State, verb rune) {
	if verb == 'v' && s.Flag('+') {
		fmt.Fprintf(s, "%s: %+v", e.Kind, e.Err)
		if len(e.Stack) > 0 {
			fmt.Fprintf(s, "\n%s", e.Stack)
		}
		return
	}
	fmt.Fprint(s, e.Error())
}

// Detail converts err into the record stored on a failed job. Errors that
// did not come from a stage are reported under fallback.
func Detail(err error, fallback model.ErrorKind) model.ErrorDetail {
	var se *StageError
	if !errors.As(err, &se) {
		se = stageErr(fallback, err)
	}
	return model.ErrorDetail{
		Kind:    se.Kind,
		Message: se.Error(),
		Trace:   fmt.Sprintf("%+v", se),
	}
}
