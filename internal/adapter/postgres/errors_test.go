package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/lifehub-app/backend/internal/domain"
)

func TestMapError_Nil(t *testing.T) {
	t.Parallel()

	if got := mapError(nil, "entity", uuid.New()); got != nil {
		t.Errorf("mapError(nil) = %v, want nil", got)
	}
}

func TestMapError_Mapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   error
		want error
	}{
		{"no rows", pgx.ErrNoRows, domain.ErrNotFound},
		{"wrapped no rows", fmt.Errorf("scan row: %w", pgx.ErrNoRows), domain.ErrNotFound},
		{"unique violation", &pgconn.PgError{Code: "23505", Message: "duplicate key"}, domain.ErrAlreadyExists},
		{"wrapped unique violation", fmt.Errorf("insert row: %w", &pgconn.PgError{Code: "23505"}), domain.ErrAlreadyExists},
		{"foreign key violation", &pgconn.PgError{Code: "23503"}, domain.ErrNotFound},
		{"check violation", &pgconn.PgError{Code: "23514"}, domain.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := mapError(tt.in, "entity", uuid.New())
			if !errors.Is(got, tt.want) {
				t.Errorf("mapError(%v) = %v, want wrapped %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestMapError_ContextErrorsPassThrough(t *testing.T) {
	t.Parallel()

	for _, in := range []error{context.DeadlineExceeded, context.Canceled} {
		got := mapError(in, "entity", uuid.New())
		if !errors.Is(got, in) {
			t.Errorf("mapError(%v) lost the original error: %v", in, got)
		}
		if errors.Is(got, domain.ErrNotFound) {
			t.Errorf("mapError(%v) must not turn a context error into not-found", in)
		}
	}
}

func TestMapError_UnknownPgCodePassesThrough(t *testing.T) {
	t.Parallel()

	in := &pgconn.PgError{Code: "42P01", Message: "relation does not exist"}
	got := mapError(in, "entity", uuid.New())

	var pgErr *pgconn.PgError
	if !errors.As(got, &pgErr) {
		t.Fatalf("mapError should keep the pg error reachable: %v", got)
	}
	if errors.Is(got, domain.ErrNotFound) || errors.Is(got, domain.ErrAlreadyExists) || errors.Is(got, domain.ErrValidation) {
		t.Error("unknown pg codes must not map to a domain sentinel")
	}
}

func TestMapError_MessageCarriesEntityAndID(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	original := errors.New("boom")
	got := mapError(original, "conflict", id)

	wantPrefix := fmt.Sprintf("conflict %s:", id)
	if !strings.HasPrefix(got.Error(), wantPrefix) {
		t.Errorf("mapError message = %q, want prefix %q", got.Error(), wantPrefix)
	}
	if !errors.Is(got, original) {
		t.Error("original error must remain wrapped")
	}
}
