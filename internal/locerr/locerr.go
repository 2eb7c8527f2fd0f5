// Package locerr implements a location-chaining error, the same shape
// depp-elf2dos uses to report which segment, section, or symbol an
// error came from without building a new error type for every call
// site.
package locerr

import "fmt"

// Wrapped is an error wrapped with a location for context.
type Wrapped struct {
	Location string
	Inner    error
}

func (e *Wrapped) Error() string {
	return fmt.Sprintf("%s: %v", e.Location, e.Inner)
}

func (e *Wrapped) Unwrap() error {
	return e.Inner
}

// Wrap returns err wrapped with loc for context. If err is already a
// *Wrapped, the locations are chained rather than nested.
func Wrap(err error, loc string) error {
	if err == nil {
		return nil
	}
	if we, ok := err.(*Wrapped); ok {
		return &Wrapped{Location: loc + ": " + we.Location, Inner: we.Inner}
	}
	return &Wrapped{Location: loc, Inner: err}
}

// Wrapf is Wrap with a formatted location.
func Wrapf(err error, format string, a ...interface{}) error {
	return Wrap(err, fmt.Sprintf(format, a...))
}

// Segment wraps err with the index of the program header it came from.
func Segment(err error, i int) error {
	return Wrapf(err, "segment %d", i)
}
