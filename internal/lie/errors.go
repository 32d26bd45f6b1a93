package lie

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSystemForbidden is returned by System calls on a builder created
	// without permission to run real commands.
	ErrSystemForbidden = errors.New("system calls are forbidden at this sandbox level")

	// ErrNestedScreens is returned when Screen is called from inside a screen.
	ErrNestedScreens = errors.New("cannot nest screens")

	// ErrInvalidTagName is returned for empty, padded or reserved tag names.
	ErrInvalidTagName = errors.New("invalid tag name")

	// ErrBuilderInUse is returned when a builder is mutated while one of its
	// screen bodies is still running, or built at that point.
	ErrBuilderInUse = errors.New("lie in use")

	// ErrScreenClosed is returned when a screen's builder is used after the
	// screen body has returned.
	ErrScreenClosed = errors.New("screen already closed")

	// ErrInvalidArgument is returned for out-of-range arguments.
	ErrInvalidArgument = errors.New("invalid argument")
)

// UnknownFieldError reports an option key that Look does not accept.
type UnknownFieldError struct {
	Field    string
	Expected []string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("unknown field %q, expected one of: %s", e.Field, strings.Join(e.Expected, ", "))
}

// InvalidFieldError reports a Look option with a value of the wrong type.
type InvalidFieldError struct {
	Field string
	Want  string
	Got   any
}

func (e *InvalidFieldError) Error() string {
	return fmt.Sprintf("field %q must be a %s, got %T", e.Field, e.Want, e.Got)
}

// DuplicateTagError reports a tag name declared more than once.
type DuplicateTagError struct {
	Name string
}

func (e *DuplicateTagError) Error() string {
	return fmt.Sprintf("tag '%s' defined multiple times", e.Name)
}

// LimitError reports a value exceeding a sandbox limit.
type LimitError struct {
	What string
	Len  int
	Max  int
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("%s too large: %d exceeds limit of %d", e.What, e.Len, e.Max)
}
