package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/card-purpose/internal/model"
)

// Validation errors.
var (
	ErrNilContext        = errors.New("context cannot be nil")
	ErrEmptyString       = errors.New("string parameter cannot be empty")
	ErrInvalidEntry      = errors.New("invalid reference entry")
	ErrInvalidProvenance = errors.New("invalid provenance")
	ErrInvalidRun        = errors.New("invalid run record")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

func validateEntry(entry model.ReferenceEntry) error {
	if strings.TrimSpace(entry.Key) == "" {
		return fmt.Errorf("%w: missing key", ErrInvalidEntry)
	}
	if strings.TrimSpace(entry.Category) == "" {
		return fmt.Errorf("%w: missing category for %q", ErrInvalidEntry, entry.Key)
	}
	switch entry.Provenance {
	case model.ProvenanceManual, model.ProvenanceFeedback:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidProvenance, entry.Provenance)
	}
	return nil
}

func validateRun(run RunRecord) error {
	if strings.TrimSpace(run.ID) == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidRun)
	}
	if run.StartedAt.IsZero() {
		return fmt.Errorf("%w: missing start time", ErrInvalidRun)
	}
	return nil
}
