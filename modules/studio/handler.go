package studio

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"escena-studio/modules/common/logger"
	"escena-studio/modules/common/model"
	"escena-studio/modules/common/response"
	"escena-studio/modules/common/utils"
	"escena-studio/modules/engine"
	"escena-studio/modules/gallery"
)

type Handler struct {
	registry *Registry
	log      *logrus.Entry
}

func NewHandler(registry *Registry) *Handler {
	return &Handler{registry: registry, log: logger.WithModule("Studio")}
}

// Register - 읽기 라우트는 r, 상태를 바꾸는 라우트는 mutating (rate limit 적용)
func (h *Handler) Register(r, mutating *mux.Router) {
	r.HandleFunc("/api/studio/{session}/state", h.HandleState).Methods(http.MethodGet)
	mutating.HandleFunc("/api/studio/{session}/draft", h.HandleDraft).Methods(http.MethodPut)
	mutating.HandleFunc("/api/studio/{session}/submit", h.HandleSubmit).Methods(http.MethodPost)
	mutating.HandleFunc("/api/studio/{session}/choose", h.HandleChoose).Methods(http.MethodPost)
	mutating.HandleFunc("/api/studio/{session}/reset", h.HandleReset).Methods(http.MethodPost)
	mutating.HandleFunc("/api/studio/{session}/handoff", h.HandleHandoff).Methods(http.MethodPost)
	mutating.HandleFunc("/api/studio/{session}/analyze", h.HandleAnalyze).Methods(http.MethodPost)
	mutating.HandleFunc("/api/studio/{session}/history/{id}/use", h.HandleUseHistory).Methods(http.MethodPost)
}

func (h *Handler) controller(r *http.Request) *Controller {
	return h.registry.GetOrCreate(mux.Vars(r)["session"])
}

// HandleState - GET /api/studio/{session}/state
func (h *Handler) HandleState(w http.ResponseWriter, r *http.Request) {
	response.OK(w, "state", h.controller(r).Snapshot())
}

// HandleDraft - PUT /api/studio/{session}/draft
func (h *Handler) HandleDraft(w http.ResponseWriter, r *http.Request) {
	var draft model.PromptDraft
	if !response.Decode(w, r, &draft) {
		return
	}
	c := h.controller(r)
	if err := c.UpdateDraft(draft); err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, "state", c.Snapshot())
}

// HandleSubmit - POST /api/studio/{session}/submit (202, 진행 상황은 state 또는 /ws)
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	c := h.controller(r)
	if err := c.SubmitAsync(r.Context()); err != nil {
		h.writeError(w, err)
		return
	}
	response.JSON(w, http.StatusAccepted, map[string]interface{}{"success": true, "state": c.Snapshot()})
}

type chooseRequest struct {
	Choice Choice `json:"choice"`
}

// HandleChoose - POST /api/studio/{session}/choose {"choice":"original"|"optimized"}
func (h *Handler) HandleChoose(w http.ResponseWriter, r *http.Request) {
	var req chooseRequest
	if !response.Decode(w, r, &req) {
		return
	}
	c := h.controller(r)
	if err := c.ChooseAsync(r.Context(), req.Choice); err != nil {
		h.writeError(w, err)
		return
	}
	response.JSON(w, http.StatusAccepted, map[string]interface{}{"success": true, "state": c.Snapshot()})
}

// HandleReset - POST /api/studio/{session}/reset
func (h *Handler) HandleReset(w http.ResponseWriter, r *http.Request) {
	response.OK(w, "state", h.controller(r).Reset())
}

// HandleHandoff - POST /api/studio/{session}/handoff
func (h *Handler) HandleHandoff(w http.ResponseWriter, r *http.Request) {
	snap, err := h.controller(r).Handoff(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, "state", snap)
}

type analyzeRequest struct {
	Image string `json:"image"` // data URI
}

// HandleAnalyze - POST /api/studio/{session}/analyze {"image":"data:image/png;base64,..."}
func (h *Handler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if !response.Decode(w, r, &req) {
		return
	}
	mimeType, data, err := utils.ParseDataURI(req.Image)
	if err != nil {
		response.Error(w, http.StatusBadRequest, response.ErrCodeInvalidRequest, err.Error())
		return
	}

	c := h.controller(r)
	prompt, err := c.AnalyzeImage(r.Context(), engine.Image{Data: data, MIMEType: mimeType})
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]interface{}{"success": true, "prompt": prompt, "state": c.Snapshot()})
}

// HandleUseHistory - POST /api/studio/{session}/history/{id}/use
func (h *Handler) HandleUseHistory(w http.ResponseWriter, r *http.Request) {
	c := h.controller(r)
	if err := c.UseHistoryEntry(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, "state", c.Snapshot())
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidDraft):
		response.Error(w, http.StatusBadRequest, response.ErrCodeInvalidRequest, err.Error())
	case errors.Is(err, ErrCoolingDown):
		response.Error(w, http.StatusTooManyRequests, response.ErrCodeCoolingDown, err.Error())
	case errors.Is(err, ErrInvalidTransition):
		response.Error(w, http.StatusConflict, response.ErrCodeInvalidTransition, err.Error())
	case errors.Is(err, gallery.ErrNotFound):
		response.Error(w, http.StatusNotFound, response.ErrCodeNotFound, err.Error())
	case errors.Is(err, engine.ErrUnsupported):
		response.Error(w, http.StatusNotImplemented, response.ErrCodeUnsupported, err.Error())
	default:
		h.log.Errorf("❌ Request failed: %v", err)
		response.Error(w, http.StatusBadGateway, string(engine.KindOf(err)), err.Error())
	}
}
