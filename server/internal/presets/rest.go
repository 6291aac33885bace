package presets

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/marcopiovanello/yt-dlp-fetcher/server/internal"
)

type handler struct {
	store *Store
}

func NewRestHandler(store *Store) *handler {
	return &handler{
		store: store,
	}
}

func (h *handler) ApplyRouter() func(chi.Router) {
	return func(r chi.Router) {
		r.Get("/", h.GetAllPresets)
		r.Post("/", h.SavePreset)
		r.Get("/{name}", h.GetPreset)
		r.Delete("/{name}", h.DeletePreset)
	}
}

func (h *handler) GetPreset(w http.ResponseWriter, r *http.Request) {
	p, err := h.store.Get(chi.URLParam(r, "name"))
	if err != nil {
		internal.WriteError(w, err)
		return
	}

	internal.WriteJSON(w, http.StatusOK, p)
}

func (h *handler) GetAllPresets(w http.ResponseWriter, r *http.Request) {
	p, err := h.store.List()
	if err != nil {
		internal.WriteError(w, err)
		return
	}

	internal.WriteJSON(w, http.StatusOK, p)
}

func (h *handler) SavePreset(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var req Preset

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		internal.WriteError(w, fmt.Errorf("%w: %w", internal.ErrInvalidInput, err))
		return
	}

	if err := h.store.Save(req); err != nil {
		internal.WriteError(w, err)
		return
	}

	internal.WriteJSON(w, http.StatusCreated, req)
}

func (h *handler) DeletePreset(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Delete(chi.URLParam(r, "name")); err != nil {
		internal.WriteError(w, err)
		return
	}

	internal.WriteJSON(w, http.StatusOK, "ok")
}
