package artifact

import (
	"errors"
	"fmt"
)

var (
	// ErrCorrupt matches every *CorruptionError.
	ErrCorrupt = errors.New("corrupt cache artifact")

	// ErrWrongNamespace is returned for labels or vocabulary outside the
	// training split.
	ErrWrongNamespace = errors.New("artifact kind not allowed in this split")
)

// CorruptionError reports a manifest entry whose file is missing, fails its
// checksum or cannot be decoded. The pipeline does not recover from it; the
// operator clears the split and reruns.
type CorruptionError struct {
	Path string
	Kind Kind
	Err  error
}

func (e *CorruptionError) Error() string {
	if e.Kind == manifestKind {
		return fmt.Sprintf("corrupt cache manifest %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("corrupt %s artifact %s: %v", e.Kind, e.Path, e.Err)
}

func (e *CorruptionError) Unwrap() error {
	return e.Err
}

func (e *CorruptionError) Is(target error) bool {
	return target == ErrCorrupt
}
