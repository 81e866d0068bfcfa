package sync

import (
	"github.com/google/uuid"

	"github.com/lifehub-app/backend/internal/domain"
)

// ProcessBatchInput holds one batch submission from a client.
type ProcessBatchInput struct {
	Operations []domain.SyncOperation
}

// Validate checks batch-level constraints; per-operation problems are
// reported per operation, never as a batch failure.
func (i ProcessBatchInput) Validate(maxBatchSize int) error {
	if len(i.Operations) > maxBatchSize {
		return domain.NewValidationError("operations",
			"batch exceeds maximum size")
	}
	return nil
}

// ResolveConflictInput holds the parameters of one resolution request.
type ResolveConflictInput struct {
	ConflictID uuid.UUID
	Strategy   domain.ResolutionStrategy
	// ResolvedData, when present, always takes precedence over the value
	// the named strategy would compute. Required for MANUAL.
	ResolvedData domain.Payload
}

// Validate checks all fields and collects all errors.
func (i ResolveConflictInput) Validate() error {
	var errs []domain.FieldError

	if i.ConflictID == uuid.Nil {
		errs = append(errs, domain.FieldError{Field: "conflictId", Message: "required"})
	}

	switch {
	case i.Strategy == "":
		errs = append(errs, domain.FieldError{Field: "strategy", Message: "required"})
	case !i.Strategy.IsValid():
		errs = append(errs, domain.FieldError{Field: "strategy", Message: "unknown strategy"})
	case i.Strategy == domain.StrategyManual && i.ResolvedData == nil:
		errs = append(errs, domain.FieldError{Field: "resolvedData", Message: "required for MANUAL strategy"})
	}

	if len(errs) > 0 {
		return &domain.ValidationError{Errors: errs}
	}
	return nil
}
