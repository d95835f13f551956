package errors

import (
	"errors"
	"fmt"
	"strings"
)

type Error struct {
	Errs []error
	Msgs []any
}

func New(errs ...any) error {
	err := &Error{}

	for _, msg := range errs {
		switch v := msg.(type) {
		case error:
			err.Errs = append(err.Errs, v)
		case string:
			err.Msgs = append(err.Msgs, v)
		}
	}

	return err
}

func (err *Error) Error() string {
	builder := &strings.Builder{}

	for _, e := range err.Errs {
		builder.WriteString(e.Error())
		builder.WriteString("\n")
	}

	for _, msg := range err.Msgs {
		builder.WriteString(fmt.Sprintf("%v\n", msg))
	}

	return builder.String()
}

func (err *Error) Unwrap() []error {
	return err.Errs
}

// Is and As re-export the standard matchers so call sites only need this
// package.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

func As(err error, target any) bool {
	return errors.As(err, target)
}
