package permissions

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnauthenticated is returned by the Gate when no role identifier is
	// present on the calling context. Distinct from a denial: the caller has
	// not been identified at all.
	ErrUnauthenticated = errors.New("permissions: no authenticated role")

	// ErrUnknownCode is returned when a caller references an operation code
	// that is not in the loaded catalog.
	ErrUnknownCode = errors.New("permissions: operation code not in catalog")

	// ErrRowNotFound is returned when a toggle targets a code the role has no
	// row for, which means the role was never reconciled against the current
	// catalog.
	ErrRowNotFound = errors.New("permissions: no permission row for role")
)

// ForbiddenError is returned when an authenticated role fails a gate check.
// Missing lists the required codes that were absent or not granted.
type ForbiddenError struct {
	RoleID  int64
	Missing []string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("permissions: role %d denied, missing: %s",
		e.RoleID, strings.Join(e.Missing, ", "))
}

// IsForbidden reports whether err is a gate denial.
func IsForbidden(err error) bool {
	var fe *ForbiddenError
	return errors.As(err, &fe)
}
