package api

import (
	"net/http"

	"github.com/ayusman/tinsel/internal/gesture"
	"github.com/ayusman/tinsel/internal/scene"
)

// StateHandler serves /api/state: the tree state, the vision toggle and the
// UI buttons.
type StateHandler struct {
	director *scene.Director
}

// NewStateHandler creates a StateHandler for the given director.
func NewStateHandler(d *scene.Director) *StateHandler {
	return &StateHandler{director: d}
}

type stateRequest struct {
	Button string `json:"button,omitempty"`
	Vision *bool  `json:"vision,omitempty"`
}

type stateResponse struct {
	State       scene.State     `json:"state"`
	Vision      bool            `json:"vision"`
	Gesture     gesture.Gesture `json:"gesture"`
	ActivePhoto *int            `json:"active_photo,omitempty"`
	Photos      int             `json:"photos"`
}

func toStateResponse(snap scene.Snapshot) stateResponse {
	resp := stateResponse{
		State:   snap.State,
		Vision:  snap.Vision,
		Gesture: snap.Gesture,
		Photos:  snap.PhotoCount,
	}
	if snap.HasActive {
		i := snap.ActivePhoto
		resp.ActivePhoto = &i
	}
	return resp
}

// ServeHTTP implements the http.Handler interface.
func (h *StateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, toStateResponse(h.director.Snapshot()))
	case http.MethodPost:
		h.update(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// update handles POST /api/state. The vision toggle is applied before the
// button so a single request can re-enable vision and press.
func (h *StateHandler) update(w http.ResponseWriter, r *http.Request) {
	var req stateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Button == "" && req.Vision == nil {
		writeError(w, http.StatusBadRequest, "button or vision is required")
		return
	}

	var (
		button  scene.Button
		pressed bool
	)
	if req.Button != "" {
		b, err := scene.ParseButton(req.Button)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		button, pressed = b, true
	}

	if req.Vision != nil {
		h.director.SetVision(*req.Vision)
	}
	if pressed {
		h.director.Press(button)
	}

	writeJSON(w, http.StatusOK, toStateResponse(h.director.Snapshot()))
}
