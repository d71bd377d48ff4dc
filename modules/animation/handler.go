package animation

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"escena-studio/modules/common/logger"
	"escena-studio/modules/common/response"
	"escena-studio/modules/gallery"
)

type Handler struct {
	service *Service
	log     *logrus.Entry
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service, log: logger.WithModule("Animation")}
}

// Register - 작업 생성은 mutating (rate limit 적용)
func (h *Handler) Register(r, mutating *mux.Router) {
	mutating.HandleFunc("/api/animations", h.HandleSubmit).Methods(http.MethodPost)
	mutating.HandleFunc("/api/animations/{id}", h.HandleCancel).Methods(http.MethodDelete)
	r.HandleFunc("/api/animations/{id}", h.HandleStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/animations/{id}/video", h.HandleVideo).Methods(http.MethodGet)
}

// HandleSubmit - POST /api/animations {galleryId | image, prompt}
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	var req Request
	if !response.Decode(w, r, &req) {
		return
	}
	job, err := h.service.Submit(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.JSON(w, http.StatusAccepted, map[string]interface{}{"success": true, "job": job})
}

// HandleStatus - GET /api/animations/{id}
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	job, err := h.service.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, "job", job)
}

// HandleCancel - DELETE /api/animations/{id}
func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	job, err := h.service.Cancel(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, "job", job)
}

// HandleVideo - GET /api/animations/{id}/video
// 바이너리가 없고 제공자 URI만 있으면 리다이렉트
func (h *Handler) HandleVideo(w http.ResponseWriter, r *http.Request) {
	data, job, err := h.service.Video(r.Context(), mux.Vars(r)["id"])
	if errors.Is(err, ErrNoVideo) && job != nil && job.VideoURI != "" {
		http.Redirect(w, r, job.VideoURI, http.StatusFound)
		return
	}
	if err != nil {
		h.writeError(w, err)
		return
	}

	mimeType := job.VideoMIME
	if mimeType == "" {
		mimeType = "video/mp4"
	}
	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		response.Error(w, http.StatusBadRequest, response.ErrCodeInvalidRequest, err.Error())
	case errors.Is(err, ErrNotFound), errors.Is(err, gallery.ErrNotFound):
		response.Error(w, http.StatusNotFound, response.ErrCodeNotFound, err.Error())
	case errors.Is(err, ErrNoVideo), errors.Is(err, ErrFinished):
		response.Error(w, http.StatusConflict, response.ErrCodeInvalidTransition, err.Error())
	case errors.Is(err, ErrQueueFull):
		response.Error(w, http.StatusServiceUnavailable, response.ErrCodeRateLimited, err.Error())
	default:
		h.log.Errorf("❌ Request failed: %v", err)
		response.Error(w, http.StatusInternalServerError, response.ErrCodeInternalError, err.Error())
	}
}
