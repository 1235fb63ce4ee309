package api

import (
	"errors"
	"net/http"
	"os"
	"strings"

	"github.com/ayusman/tinsel/internal/scene"
	"github.com/ayusman/tinsel/internal/store"
)

// PhotoHandler serves the photo library. Every change is written to the
// store first and then pushed to the director, so the tree always shows the
// stored order.
type PhotoHandler struct {
	store    *store.Store
	director *scene.Director
	onRemove func(path string)
}

// NewPhotoHandler creates a PhotoHandler. onRemove, if set, is called with
// the path of each deleted photo.
func NewPhotoHandler(s *store.Store, d *scene.Director, onRemove func(path string)) *PhotoHandler {
	return &PhotoHandler{store: s, director: d, onRemove: onRemove}
}

// SyncPhotos loads the library into the director.
func SyncPhotos(s *store.Store, d *scene.Director) error {
	paths, err := s.Photos().Paths()
	if err != nil {
		return err
	}
	d.SetPhotos(paths)
	return nil
}

// ServeHTTP routes /api/photos and /api/photos/{id}.
func (h *PhotoHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/photos")
	id = strings.TrimPrefix(id, "/")

	if id == "" {
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.create(w, r)
		case http.MethodPut:
			h.reorder(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.get(w, r, id)
	case http.MethodDelete:
		h.delete(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type createPhotoRequest struct {
	Path  string `json:"path"`
	Title string `json:"title"`
}

type reorderRequest struct {
	IDs []string `json:"ids"`
}

type listPhotosResponse struct {
	Photos []*store.Photo `json:"photos"`
}

// list handles GET /api/photos.
func (h *PhotoHandler) list(w http.ResponseWriter, r *http.Request) {
	photos, err := h.store.Photos().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list photos")
		return
	}
	if photos == nil {
		photos = []*store.Photo{}
	}
	writeJSON(w, http.StatusOK, listPhotosResponse{Photos: photos})
}

// create handles POST /api/photos.
func (h *PhotoHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createPhotoRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}
	info, err := os.Stat(req.Path)
	if err != nil || info.IsDir() {
		writeError(w, http.StatusBadRequest, "path is not a readable file")
		return
	}

	photo := &store.Photo{Path: req.Path, Title: req.Title}
	if err := h.store.Photos().Create(photo); err != nil {
		writeError(w, http.StatusConflict, "photo already in the library")
		return
	}
	if !h.sync(w) {
		return
	}
	writeJSON(w, http.StatusCreated, photo)
}

// get handles GET /api/photos/{id}.
func (h *PhotoHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	photo, err := h.store.Photos().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "photo not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get photo")
		return
	}
	writeJSON(w, http.StatusOK, photo)
}

// delete handles DELETE /api/photos/{id}.
func (h *PhotoHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	photo, err := h.store.Photos().GetByID(id)
	if err == nil {
		err = h.store.Photos().Delete(id)
	}
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "photo not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete photo")
		return
	}
	if !h.sync(w) {
		return
	}
	if h.onRemove != nil {
		h.onRemove(photo.Path)
	}
	w.WriteHeader(http.StatusNoContent)
}

// reorder handles PUT /api/photos with the full list of ids in display order.
func (h *PhotoHandler) reorder(w http.ResponseWriter, r *http.Request) {
	var req reorderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.store.Photos().Reorder(req.IDs); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !h.sync(w) {
		return
	}
	h.list(w, r)
}

func (h *PhotoHandler) sync(w http.ResponseWriter) bool {
	if err := SyncPhotos(h.store, h.director); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to reload photos")
		return false
	}
	return true
}
