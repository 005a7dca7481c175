package manifest

import (
	"errors"
	"fmt"
)

// ErrInvalid marks a document that cannot be used: missing anchor key,
// malformed package entries or missing required fields.
var ErrInvalid = errors.New("invalid dependency document")

// Error describes what is wrong with a document
type Error struct {
	Package string
	Field   string
	Reason  string
}

func (e *Error) Error() string {
	switch {
	case e.Package != "" && e.Field != "":
		return fmt.Sprintf("package %q: %s: %s", e.Package, e.Field, e.Reason)
	case e.Package != "":
		return fmt.Sprintf("package %q: %s", e.Package, e.Reason)
	default:
		return e.Reason
	}
}

func (e *Error) Unwrap() error {
	return ErrInvalid
}
