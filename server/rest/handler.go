package rest

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/marcopiovanello/yt-dlp-fetcher/server/internal"
)

type Handler struct {
	service *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{service: svc}
}

func ApplyRouter(h *Handler) func(chi.Router) {
	return h.Routes()
}

func (h *Handler) Routes() func(chi.Router) {
	return func(r chi.Router) {
		r.Post("/download", h.StartDownload())
		r.Get("/status/{id}", h.GetStatus())
		r.Post("/cancel/{id}", h.Cancel())
		r.Post("/pause/{id}", h.Pause())
		r.Post("/resume/{id}", h.Resume())
		r.Get("/download-file/{id}", h.DownloadFile())
		r.Post("/check-formats", h.CheckFormats())
		r.Get("/downloads", h.Running())
		r.Delete("/downloads/{id}", h.Clear())
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := internal.StatusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("err", err),
		)
	}
	internal.WriteError(w, err)
}

func decode(r *http.Request, v any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("malformed request body: %w: %w", internal.ErrInvalidInput, err)
	}
	return nil
}

func (h *Handler) StartDownload() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req internal.DownloadRequest

		if err := decode(r, &req); err != nil {
			writeError(w, r, err)
			return
		}

		id, err := h.service.StartDownload(r.Context(), req)
		if err != nil {
			writeError(w, r, err)
			return
		}

		internal.WriteJSON(w, http.StatusOK, downloadResponse{DownloadId: id})
	}
}

func (h *Handler) GetStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, err := h.service.GetStatus(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, err)
			return
		}

		internal.WriteJSON(w, http.StatusOK, job)
	}
}

func (h *Handler) Cancel() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.service.Cancel(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeError(w, r, err)
			return
		}

		internal.WriteJSON(w, http.StatusOK, actionResponse{Success: true, Message: "Download cancelled"})
	}
}

func (h *Handler) Pause() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.service.Pause(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeError(w, r, err)
			return
		}

		internal.WriteJSON(w, http.StatusOK, actionResponse{Success: true, Message: "Download paused"})
	}
}

func (h *Handler) Resume() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.service.Resume(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeError(w, r, err)
			return
		}

		internal.WriteJSON(w, http.StatusOK, actionResponse{Success: true, Message: "Download resumed"})
	}
}

func (h *Handler) DownloadFile() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fd, job, err := h.service.FetchResult(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		defer fd.Close()

		info, err := fd.Stat()
		if err != nil {
			writeError(w, r, err)
			return
		}

		name := filepath.Base(job.File)
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))

		http.ServeContent(w, r, name, info.ModTime(), fd)
	}
}

func (h *Handler) CheckFormats() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req formatsRequest

		if err := decode(r, &req); err != nil {
			writeError(w, r, err)
			return
		}

		res, err := h.service.CheckFormats(r.Context(), req.URL)
		if err != nil {
			writeError(w, r, err)
			return
		}

		internal.WriteJSON(w, http.StatusOK, res)
	}
}

func (h *Handler) Running() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobs, err := h.service.Running(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}

		internal.WriteJSON(w, http.StatusOK, jobs)
	}
}

func (h *Handler) Clear() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.service.Clear(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeError(w, r, err)
			return
		}

		internal.WriteJSON(w, http.StatusOK, actionResponse{Success: true, Message: "Download removed"})
	}
}
