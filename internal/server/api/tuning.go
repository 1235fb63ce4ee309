package api

import (
	"errors"
	"net/http"
	"sync"

	"github.com/ayusman/tinsel/internal/config"
	"github.com/ayusman/tinsel/internal/store"
)

// LoadOverrides returns the tuning overrides saved in the store. A store
// with no saved overrides yields an empty Tuning.
func LoadOverrides(s *store.Store) (*config.Tuning, error) {
	t := &config.Tuning{}
	err := s.Settings().GetJSON(store.SettingTuning, t)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	return t, nil
}

// TuningHandler serves /api/tuning. Overrides are layered on top of the
// base tuning loaded at startup and persisted in the settings table.
type TuningHandler struct {
	store *store.Store
	base  *config.Tuning
	apply func(*config.Tuning) error

	mu sync.Mutex
}

// NewTuningHandler creates a TuningHandler. apply, if set, receives the
// effective tuning after every change.
func NewTuningHandler(s *store.Store, base *config.Tuning, apply func(*config.Tuning) error) *TuningHandler {
	if base == nil {
		base = &config.Tuning{}
	}
	return &TuningHandler{store: s, base: base, apply: apply}
}

type tuningResponse struct {
	Effective *config.Tuning `json:"effective"`
	Overrides *config.Tuning `json:"overrides"`
}

// ServeHTTP implements the http.Handler interface.
func (h *TuningHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch r.Method {
	case http.MethodGet:
		h.get(w)
	case http.MethodPut:
		h.update(w, r)
	case http.MethodDelete:
		h.reset(w)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *TuningHandler) get(w http.ResponseWriter) {
	overrides, err := LoadOverrides(h.store)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load tuning")
		return
	}
	writeJSON(w, http.StatusOK, tuningResponse{
		Effective: h.base.Merge(overrides).Resolved(),
		Overrides: overrides,
	})
}

// update handles PUT /api/tuning. Fields in the body are merged into the
// saved overrides; omitted fields keep their saved values.
func (h *TuningHandler) update(w http.ResponseWriter, r *http.Request) {
	var req config.Tuning
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	overrides, err := LoadOverrides(h.store)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load tuning")
		return
	}
	overrides = overrides.Merge(&req)

	effective := h.base.Merge(overrides)
	if err := effective.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.Settings().SetJSON(store.SettingTuning, overrides); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save tuning")
		return
	}
	if !h.applyTuning(w, effective) {
		return
	}

	writeJSON(w, http.StatusOK, tuningResponse{Effective: effective.Resolved(), Overrides: overrides})
}

// reset handles DELETE /api/tuning by dropping every saved override.
func (h *TuningHandler) reset(w http.ResponseWriter) {
	err := h.store.Settings().Delete(store.SettingTuning)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, "failed to reset tuning")
		return
	}
	if !h.applyTuning(w, h.base) {
		return
	}
	writeJSON(w, http.StatusOK, tuningResponse{Effective: h.base.Resolved(), Overrides: &config.Tuning{}})
}

func (h *TuningHandler) applyTuning(w http.ResponseWriter, t *config.Tuning) bool {
	if h.apply == nil {
		return true
	}
	if err := h.apply(t); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to apply tuning: "+err.Error())
		return false
	}
	return true
}
