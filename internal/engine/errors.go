package engine

import "errors"

// ErrUnavailable matches any UnavailableError with errors.Is.
var ErrUnavailable = errors.New("engine runtime unavailable")

// UnavailableError reports a runtime that this binary cannot provide, such as
// llama.cpp in a build without the llama tag.
type UnavailableError struct {
	Runtime string
	Reason  string
}

func (e *UnavailableError) Error() string { return e.Runtime + " " + e.Reason }

func (e *UnavailableError) Is(target error) bool { return target == ErrUnavailable }
