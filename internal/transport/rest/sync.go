package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/lifehub-app/backend/internal/domain"
	syncsvc "github.com/lifehub-app/backend/internal/service/sync"
)

// syncService defines the minimal interface needed by SyncHandler.
type syncService interface {
	ProcessBatch(ctx context.Context, input syncsvc.ProcessBatchInput) (*syncsvc.BatchResult, error)
	ResolveConflict(ctx context.Context, input syncsvc.ResolveConflictInput) (*syncsvc.ResolveResult, error)
	Status(ctx context.Context) (*domain.SyncStatusSummary, error)
	ListConflicts(ctx context.Context, includeResolved bool) ([]*domain.ConflictRecord, error)
}

// SyncHandler serves the offline-sync REST endpoints.
type SyncHandler struct {
	svc syncService
	log *slog.Logger
}

// NewSyncHandler creates a SyncHandler.
func NewSyncHandler(svc syncService, logger *slog.Logger) *SyncHandler {
	return &SyncHandler{svc: svc, log: logger.With("handler", "sync")}
}

type batchRequest struct {
	// Raw so that a non-array value can be rejected with a field-level
	// message instead of a generic decode error.
	Operations json.RawMessage `json:"operations"`
}

type syncOperationRequest struct {
	ID              uuid.UUID      `json:"id"`
	Kind            string         `json:"kind"`
	EntityType      string         `json:"entityType"`
	EntityID        uuid.UUID      `json:"entityId"`
	Payload         map[string]any `json:"payload"`
	ClientTimestamp time.Time      `json:"clientTimestamp"`
}

type conflictInfoResponse struct {
	ConflictID    string         `json:"conflictId"`
	LocalVersion  map[string]any `json:"localVersion"`
	ServerVersion map[string]any `json:"serverVersion"`
}

type syncResultResponse struct {
	OperationID string                `json:"operationId"`
	Success     bool                  `json:"success"`
	Error       string                `json:"error,omitempty"`
	Conflict    *conflictInfoResponse `json:"conflict,omitempty"`
}

type batchResponse struct {
	Results        []syncResultResponse `json:"results"`
	TotalProcessed int                  `json:"totalProcessed"`
	Successful     int                  `json:"successful"`
	Failed         int                  `json:"failed"`
}

// ProcessBatch handles POST /api/sync/batch.
func (h *SyncHandler) ProcessBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	elems, err := decodeOperations(req.Operations)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Elements that fail to decode become failed results in place; they
	// must never sink the rest of the batch.
	results := make([]syncResultResponse, len(elems))
	accepted := make([]int, 0, len(elems))
	input := syncsvc.ProcessBatchInput{
		Operations: make([]domain.SyncOperation, 0, len(elems)),
	}
	for i, raw := range elems {
		var op syncOperationRequest
		if err := json.Unmarshal(raw, &op); err != nil {
			results[i] = syncResultResponse{
				OperationID: rawOperationID(raw),
				Error:       "malformed operation: " + err.Error(),
			}
			continue
		}
		accepted = append(accepted, i)
		input.Operations = append(input.Operations, domain.SyncOperation{
			ID:              op.ID,
			Kind:            domain.OperationKind(op.Kind),
			EntityType:      domain.EntityType(op.EntityType),
			EntityID:        op.EntityID,
			Payload:         op.Payload,
			ClientTimestamp: op.ClientTimestamp,
		})
	}

	result, err := h.svc.ProcessBatch(r.Context(), input)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	for j, res := range result.Results {
		results[accepted[j]] = toSyncResultResponse(res)
	}

	writeJSON(w, http.StatusOK, batchResponse{
		Results:        results,
		TotalProcessed: len(elems),
		Successful:     result.Successful,
		Failed:         result.Failed + len(elems) - len(accepted),
	})
}

// decodeOperations splits the operations field into its raw array elements.
// The field must be present and hold a JSON array; only a literal [] is an
// empty batch.
func decodeOperations(raw json.RawMessage) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, errors.New("operations is required")
	}
	if trimmed[0] != '[' {
		return nil, errors.New("operations must be an array")
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(trimmed, &elems); err != nil {
		return nil, errors.New("operations must be an array")
	}
	return elems, nil
}

// rawOperationID pulls the id out of an element that failed to decode so
// its failure result can still name it.
func rawOperationID(raw json.RawMessage) string {
	var head struct {
		ID any `json:"id"`
	}
	if err := json.Unmarshal(raw, &head); err != nil || head.ID == nil {
		return ""
	}
	return fmt.Sprint(head.ID)
}

type resolveRequest struct {
	ConflictID uuid.UUID      `json:"conflictId"`
	Strategy   string         `json:"strategy"`
	Resolved   map[string]any `json:"resolvedData"`
}

type conflictRecordResponse struct {
	ID              string         `json:"id"`
	EntityType      string         `json:"entityType"`
	EntityID        string         `json:"entityId"`
	LocalVersion    map[string]any `json:"localVersion"`
	ServerVersion   map[string]any `json:"serverVersion"`
	Strategy        *string        `json:"strategy"`
	ResolvedVersion map[string]any `json:"resolvedVersion"`
	CreatedAt       time.Time      `json:"createdAt"`
	ResolvedAt      *time.Time     `json:"resolvedAt"`
}

type resolveResponse struct {
	Success  bool                   `json:"success"`
	Conflict conflictRecordResponse `json:"conflict"`
	Message  string                 `json:"message"`
}

// ResolveConflict handles POST /api/sync/resolve.
func (h *SyncHandler) ResolveConflict(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.svc.ResolveConflict(r.Context(), syncsvc.ResolveConflictInput{
		ConflictID:   req.ConflictID,
		Strategy:     domain.ResolutionStrategy(req.Strategy),
		ResolvedData: req.Resolved,
	})
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resolveResponse{
		Success:  true,
		Conflict: toConflictRecordResponse(result.Conflict),
		Message:  "conflict resolved",
	})
}

type statusResponse struct {
	Status              string                    `json:"status"`
	TotalOperations     int                       `json:"totalOperations"`
	SyncedOperations    int                       `json:"syncedOperations"`
	PendingOperations   int                       `json:"pendingOperations"`
	UnresolvedConflicts int                       `json:"unresolvedConflicts"`
	LastSyncTime        *time.Time                `json:"lastSyncTime"`
	PendingByEntity     map[string]int            `json:"pendingByEntity"`
	Conflicts           []conflictSummaryResponse `json:"conflicts"`
}

type conflictSummaryResponse struct {
	ID         string  `json:"id"`
	EntityType string  `json:"entityType"`
	EntityID   string  `json:"entityId"`
	Strategy   *string `json:"strategy"`
}

// Status handles GET /api/sync/status.
func (h *SyncHandler) Status(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.Status(r.Context())
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	resp := statusResponse{
		Status:              string(summary.Status),
		TotalOperations:     summary.TotalOperations,
		SyncedOperations:    summary.SyncedOperations,
		PendingOperations:   summary.PendingOperations,
		UnresolvedConflicts: summary.UnresolvedConflicts,
		LastSyncTime:        summary.LastSyncTime,
		PendingByEntity:     make(map[string]int, len(summary.PendingByEntity)),
		Conflicts:           make([]conflictSummaryResponse, 0, len(summary.Conflicts)),
	}
	for et, n := range summary.PendingByEntity {
		resp.PendingByEntity[et.String()] = n
	}
	for _, c := range summary.Conflicts {
		resp.Conflicts = append(resp.Conflicts, conflictSummaryResponse{
			ID:         c.ID.String(),
			EntityType: c.EntityType.String(),
			EntityID:   c.EntityID.String(),
			Strategy:   strategyString(c.Strategy),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

type listConflictsResponse struct {
	Conflicts []conflictRecordResponse `json:"conflicts"`
	Total     int                      `json:"total"`
}

// ListConflicts handles GET /api/sync/conflicts. By default only open
// conflicts are returned; includeResolved=true returns the full history.
func (h *SyncHandler) ListConflicts(w http.ResponseWriter, r *http.Request) {
	includeResolved := r.URL.Query().Get("includeResolved") == "true"

	recs, err := h.svc.ListConflicts(r.Context(), includeResolved)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	resp := listConflictsResponse{
		Conflicts: make([]conflictRecordResponse, 0, len(recs)),
		Total:     len(recs),
	}
	for _, rec := range recs {
		resp.Conflicts = append(resp.Conflicts, toConflictRecordResponse(rec))
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *SyncHandler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrAlreadyResolved):
		writeError(w, http.StatusConflict, "conflict already resolved")
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, "conflict")
	default:
		h.log.ErrorContext(r.Context(), "internal error", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func toSyncResultResponse(res domain.SyncResult) syncResultResponse {
	out := syncResultResponse{
		OperationID: res.OperationID.String(),
		Success:     res.Success,
		Error:       res.Error,
	}
	if res.Conflict != nil {
		out.Conflict = &conflictInfoResponse{
			ConflictID:    res.Conflict.ConflictID.String(),
			LocalVersion:  res.Conflict.LocalVersion,
			ServerVersion: res.Conflict.ServerVersion,
		}
	}
	return out
}

func toConflictRecordResponse(rec *domain.ConflictRecord) conflictRecordResponse {
	return conflictRecordResponse{
		ID:              rec.ID.String(),
		EntityType:      rec.EntityType.String(),
		EntityID:        rec.EntityID.String(),
		LocalVersion:    rec.LocalVersion,
		ServerVersion:   rec.ServerVersion,
		Strategy:        strategyString(rec.Strategy),
		ResolvedVersion: rec.ResolvedVersion,
		CreatedAt:       rec.CreatedAt,
		ResolvedAt:      rec.ResolvedAt,
	}
}

func strategyString(s *domain.ResolutionStrategy) *string {
	if s == nil {
		return nil
	}
	str := s.String()
	return &str
}
