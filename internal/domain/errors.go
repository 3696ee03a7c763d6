package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies pipeline failures for reporting.
type ErrorKind string

const (
	ErrMalformedEntity  ErrorKind = "malformed_entity"
	ErrTemplateRender   ErrorKind = "template_render"
	ErrTargetResolution ErrorKind = "target_resolution"
	ErrStoreIO          ErrorKind = "store_io"
)

// Error is returned by the resolver and the write coordinator.
type Error struct {
	Kind ErrorKind
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of the first *Error in err's chain, or "" if there is none.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}
