package server

import (
	"fmt"
	"net/http"

	"github.com/ayusman/tinsel/internal/render"
)

// StreamHandler serves rendered frames as MJPEG.
type StreamHandler struct {
	stream *render.Stream
}

// NewStreamHandler creates a new StreamHandler over the given stream surface.
func NewStreamHandler(stream *render.Stream) *StreamHandler {
	return &StreamHandler{stream: stream}
}

// ServeHTTP streams MJPEG frames to connected clients. The renderer only
// encodes frames while at least one client is subscribed.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	unsubscribe := h.stream.Subscribe()
	defer unsubscribe()

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, _ := w.(http.Flusher)
	if flusher != nil {
		flusher.Flush()
	}

	var seq uint64
	for {
		frame, next, err := h.stream.Next(r.Context(), seq)
		if err != nil {
			return
		}
		seq = next

		fmt.Fprintf(w, "--frame\r\n")
		fmt.Fprintf(w, "Content-Type: image/jpeg\r\n")
		fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(frame))
		if _, err := w.Write(frame); err != nil {
			return
		}
		fmt.Fprintf(w, "\r\n")

		if flusher != nil {
			flusher.Flush()
		}
	}
}
