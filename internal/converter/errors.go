package converter

import (
	"errors"
	"fmt"
)

// ErrConversionUnsupported is matched by errors returned for unreachable type pairs.
var ErrConversionUnsupported = errors.New("conversion unsupported")

// UnsupportedConversionError is returned when no route connects two types.
type UnsupportedConversionError struct {
	From string
	To   string
}

func (e *UnsupportedConversionError) Error() string {
	return fmt.Sprintf("conversion unsupported: from=%q to=%q", e.From, e.To)
}

func (e *UnsupportedConversionError) Is(target error) bool {
	return target == ErrConversionUnsupported
}

// IsUnsupported reports whether err means no route exists.
func IsUnsupported(err error) bool {
	return errors.Is(err, ErrConversionUnsupported)
}

// CleanupWarning describes a transient file that could not be deleted.
type CleanupWarning struct {
	FileID string
	Err    error
}
