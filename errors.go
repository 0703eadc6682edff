package tiercache

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidKey is returned for an empty key. It is a programmer error and
	// is never swallowed.
	ErrInvalidKey = errors.New("tiercache: invalid key")
	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("tiercache: cache closed")
)

// ClearError reports a failed ClearAll. The memory layer has been emptied
// regardless; Err is the store failure.
type ClearError struct {
	Namespace string
	Err       error
}

func (e *ClearError) Error() string {
	return fmt.Sprintf("tiercache: clear %q: store clear failed: %v", e.Namespace, e.Err)
}

func (e *ClearError) Unwrap() error { return e.Err }

// InvalidateError reports a failed Invalidate. The memory entry has already been
// dropped and the key generation bumped when BumpErr is nil.
type InvalidateError struct {
	Key     string
	BumpErr error
	DelErr  error
}

func (e *InvalidateError) Error() string {
	switch {
	case e.BumpErr != nil && e.DelErr != nil:
		return fmt.Sprintf("invalidate %q failed: gen bump and delete failed: bump=%v; delete=%v",
			e.Key, e.BumpErr, e.DelErr)
	case e.BumpErr != nil:
		return fmt.Sprintf("invalidate %q: gen bump failed: %v", e.Key, e.BumpErr)
	case e.DelErr != nil:
		return fmt.Sprintf("invalidate %q: delete failed: %v", e.Key, e.DelErr)
	default:
		return fmt.Sprintf("invalidate %q: unknown error", e.Key)
	}
}

func (e *InvalidateError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.BumpErr != nil {
		errs = append(errs, e.BumpErr)
	}
	if e.DelErr != nil {
		errs = append(errs, e.DelErr)
	}
	return errs
}
