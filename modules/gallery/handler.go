package gallery

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"escena-studio/modules/common/logger"
	"escena-studio/modules/common/model"
	"escena-studio/modules/common/response"
)

type Handler struct {
	manager *Manager
	log     *logrus.Entry
}

func NewHandler(manager *Manager) *Handler {
	return &Handler{manager: manager, log: logger.WithModule("Gallery")}
}

// Register - 조회 라우트는 r, 삭제/승격/투표는 mutating (rate limit 적용)
func (h *Handler) Register(r, mutating *mux.Router) {
	r.HandleFunc("/api/gallery", h.HandleList).Methods(http.MethodGet)
	mutating.HandleFunc("/api/gallery/{id}", h.HandleRemove).Methods(http.MethodDelete)
	mutating.HandleFunc("/api/gallery/{id}/promote", h.HandlePromote).Methods(http.MethodPost)
	r.HandleFunc("/api/classification", h.HandleClassification).Methods(http.MethodGet)
	mutating.HandleFunc("/api/classification/{id}/vote", h.HandleVote).Methods(http.MethodPost)
	r.HandleFunc("/api/history", h.HandleHistory).Methods(http.MethodGet)
	mutating.HandleFunc("/api/history", h.HandleClearHistory).Methods(http.MethodDelete)
	mutating.HandleFunc("/api/history/{id}", h.HandleRemoveHistory).Methods(http.MethodDelete)
	r.HandleFunc("/api/styles", h.HandleStyles).Methods(http.MethodGet)
}

// HandleList - GET /api/gallery
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	response.OK(w, "items", h.manager.Gallery(r.Context()))
}

// HandleRemove - DELETE /api/gallery/{id}
func (h *Handler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.manager.Remove(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, "", nil)
}

// HandlePromote - POST /api/gallery/{id}/promote
func (h *Handler) HandlePromote(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	promoted, err := h.manager.Promote(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, "promoted", promoted)
}

// HandleClassification - GET /api/classification
func (h *Handler) HandleClassification(w http.ResponseWriter, r *http.Request) {
	response.OK(w, "items", h.manager.Classification(r.Context()))
}

type voteRequest struct {
	Delta int `json:"delta"`
}

// HandleVote - POST /api/classification/{id}/vote {"delta": 1|-1}
func (h *Handler) HandleVote(w http.ResponseWriter, r *http.Request) {
	var req voteRequest
	if !response.Decode(w, r, &req) {
		return
	}
	if err := h.manager.Vote(r.Context(), mux.Vars(r)["id"], req.Delta); err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, "", nil)
}

// HandleHistory - GET /api/history
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	response.OK(w, "items", h.manager.History(r.Context()))
}

func (h *Handler) HandleRemoveHistory(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.RemoveHistory(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, "", nil)
}

func (h *Handler) HandleClearHistory(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.ClearHistory(r.Context()); err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, "", nil)
}

// HandleStyles - GET /api/styles
func (h *Handler) HandleStyles(w http.ResponseWriter, _ *http.Request) {
	response.JSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"styles":       model.VisualStyles,
		"aspectRatios": model.AspectRatios,
	})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		response.Error(w, http.StatusNotFound, response.ErrCodeNotFound, err.Error())
	case errors.Is(err, ErrInvalidVote):
		response.Error(w, http.StatusBadRequest, response.ErrCodeInvalidRequest, err.Error())
	default:
		h.log.Errorf("❌ Store write failed: %v", err)
		response.Error(w, http.StatusInternalServerError, response.ErrCodeInternalError, "storage unavailable")
	}
}
