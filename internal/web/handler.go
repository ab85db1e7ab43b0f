package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"teamsync/internal/models"
	"teamsync/internal/realtime"
	"teamsync/internal/repository"
	"teamsync/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Handler exposes the attendance/membership RPC surface to the client UI.
type Handler struct {
	reconciler   service.ReconcilerService
	memberships  service.MembershipService
	synchronizer *realtime.Synchronizer
	validate     *validator.Validate
	logger       *zap.Logger
}

func NewHandler(
	reconciler service.ReconcilerService,
	memberships service.MembershipService,
	synchronizer *realtime.Synchronizer,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		reconciler:   reconciler,
		memberships:  memberships,
		synchronizer: synchronizer,
		validate:     validator.New(),
		logger:       logger,
	}
}

// Register mounts the routes.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/attendance/batch", h.SaveAttendanceBatch)
	mux.HandleFunc("GET /api/memberships/snapshot", h.GetMembershipSnapshot)
	mux.HandleFunc("POST /api/memberships", h.CreateMembership)
}

type batchRecordRequest struct {
	PlayerID string `json:"player_id" validate:"required,uuid"`
	Status   string `json:"status" validate:"required,oneof=present absent late excused"`
	Notes    string `json:"notes"`
}

type batchSaveRequest struct {
	EventID    string               `json:"event_id" validate:"required,uuid"`
	TeamID     string               `json:"team_id" validate:"required,uuid"`
	RecordedBy string               `json:"recorded_by" validate:"required,uuid"`
	Records    []batchRecordRequest `json:"records" validate:"required,min=1,dive"`
}

type recordResultResponse struct {
	PlayerID  string `json:"player_id"`
	Status    string `json:"status"`
	Credited  bool   `json:"credited"`
	Remaining *int   `json:"remaining,omitempty"`
	Message   string `json:"message,omitempty"`
}

func (h *Handler) SaveAttendanceBatch(w http.ResponseWriter, r *http.Request) {
	var req batchSaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	eventID := uuid.MustParse(req.EventID)
	teamID := uuid.MustParse(req.TeamID)
	recordedBy := uuid.MustParse(req.RecordedBy)

	records := make([]repository.BatchRecord, 0, len(req.Records))
	for _, record := range req.Records {
		records = append(records, repository.BatchRecord{
			EventID:    eventID,
			PlayerID:   uuid.MustParse(record.PlayerID),
			TeamID:     teamID,
			Status:     models.AttendanceStatus(record.Status),
			Notes:      record.Notes,
			RecordedBy: recordedBy,
		})
	}

	results, err := h.reconciler.SaveBatch(r.Context(), records)
	if err != nil {
		status, message := mapError(err)
		h.logger.Warn("batch save failed", zap.String("event_id", req.EventID), zap.Error(err))
		h.writeError(w, status, message)
		return
	}

	response := make([]recordResultResponse, 0, len(results))
	for _, result := range results {
		item := recordResultResponse{
			PlayerID: result.PlayerID.String(),
			Status:   "success",
			Credited: result.Credited,
		}
		if result.Err != nil {
			item.Status = "error"
			_, item.Message = mapError(result.Err)
		} else {
			remaining := result.Remaining
			item.Remaining = &remaining
		}
		response = append(response, item)
	}

	writeJSON(w, http.StatusOK, response)
}

func (h *Handler) GetMembershipSnapshot(w http.ResponseWriter, r *http.Request) {
	playerID, err := uuid.Parse(r.URL.Query().Get("player_id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "player_id must be a valid UUID")
		return
	}

	value, err := h.synchronizer.Get(r.Context(), realtime.Topic{
		Resource: realtime.ResourceMembership,
		ScopeID:  playerID,
	})
	if err != nil {
		status, message := mapError(err)
		h.writeError(w, status, message)
		return
	}

	snapshot, ok := value.(*models.MembershipSnapshot)
	if !ok || snapshot == nil {
		h.writeError(w, http.StatusNotFound, "no active membership for this player")
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

type createMembershipRequest struct {
	PlayerID  string `json:"player_id" validate:"required,uuid"`
	PlanCode  string `json:"plan_code" validate:"required"`
	CreatedBy string `json:"created_by" validate:"required,uuid"`
}

func (h *Handler) CreateMembership(w http.ResponseWriter, r *http.Request) {
	var req createMembershipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	membership, err := h.memberships.CreateFromPlan(
		r.Context(),
		uuid.MustParse(req.PlayerID),
		req.PlanCode,
		uuid.MustParse(req.CreatedBy),
	)
	if err != nil {
		status, message := mapError(err)
		h.writeError(w, status, message)
		return
	}
	writeJSON(w, http.StatusCreated, membership)
}

// mapError turns taxonomy errors into a status code and a message the UI
// can show as-is. Distinct failures get distinct messages; a generic
// catch-all here would hide exactly the cases users can act on.
func mapError(err error) (int, string) {
	switch {
	case errors.Is(err, repository.ErrInsufficientCredit):
		return http.StatusConflict, "Not enough classes left on the membership"
	case errors.Is(err, repository.ErrNoActiveMembership):
		return http.StatusConflict, "Player has no active membership"
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "Membership not found"
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrUnknownPlan):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, repository.ErrConflict):
		return http.StatusConflict, "Couldn't save because of a concurrent change, try again"
	case errors.Is(err, service.ErrRetryExhausted):
		return http.StatusConflict, "Couldn't save because of a concurrent change, try again"
	case errors.Is(err, service.ErrOffline):
		return http.StatusServiceUnavailable, "Couldn't reach the server, try again"
	}
	return http.StatusInternalServerError, "Couldn't save, try again"
}

func writeJSON(w http.ResponseWriter, status int, value interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(value)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
