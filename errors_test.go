package segfile

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrors(t *testing.T) {
	errs := []error{
		ErrInvalidArgument,
		ErrInvalidOperation,
		ErrIntegrity,
		ErrCorrupt,
		ErrClosed,
		ErrUnsupported,
		ErrLocked,
	}

	for i, err := range errs {
		if err == nil {
			t.Errorf("error at index %d is nil", i)
		}
	}

	seen := make(map[string]int)
	for i, err := range errs {
		msg := err.Error()
		if prev, ok := seen[msg]; ok {
			t.Errorf("error at index %d has same message as index %d: %q", i, prev, msg)
		}
		seen[msg] = i
	}

	for i, a := range errs {
		for j, b := range errs {
			if i != j && errors.Is(a, b) {
				t.Errorf("errors %d and %d match each other", i, j)
			}
		}
	}
}

func TestErrorsWrap(t *testing.T) {
	wrapped := fmt.Errorf("segment 3: %w", fmt.Errorf("%w: digest mismatch", ErrIntegrity))
	if !errors.Is(wrapped, ErrIntegrity) {
		t.Error("wrapped integrity error not detected")
	}
	if errors.Is(wrapped, ErrCorrupt) {
		t.Error("integrity error matched ErrCorrupt")
	}
}
