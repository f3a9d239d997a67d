package pcode

import "fmt"

// errUnsupportedf builds an error meant to carry an Unsupported status
// (spec.md §7): a lowering precondition failed, not an internal
// contract violation.
func errUnsupportedf(format string, args ...any) error {
	return fmt.Errorf(format, args...)
}
