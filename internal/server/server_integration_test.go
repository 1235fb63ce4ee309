package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"image"
	"io"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/tinsel/internal/animation"
	"github.com/ayusman/tinsel/internal/detector"
	"github.com/ayusman/tinsel/internal/gesture"
	"github.com/ayusman/tinsel/internal/render"
	"github.com/ayusman/tinsel/internal/scene"
	"github.com/ayusman/tinsel/internal/store"
)

func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestAPI_PhotoAndStateWorkflow(t *testing.T) {
	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer st.Close()

	photo := filepath.Join(t.TempDir(), "snow.jpg")
	if err := os.WriteFile(photo, []byte("jpeg"), 0o644); err != nil {
		t.Fatalf("failed to write photo: %v", err)
	}

	d := scene.NewDirector(1)
	srv := New(Config{Store: st, Director: d})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	client := ts.Client()

	// 1. Add a photo
	body, _ := json.Marshal(map[string]string{"path": photo})
	resp, err := client.Post(ts.URL+"/api/photos", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /api/photos error = %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("POST status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}
	resp.Body.Close()

	// 2. Explode with a button
	resp, err = client.Post(ts.URL+"/api/state", "application/json", strings.NewReader(`{"button":"explode"}`))
	if err != nil {
		t.Fatalf("POST /api/state error = %v", err)
	}
	resp.Body.Close()

	// 3. A pinch zooms the photo in
	d.Observe(gesture.Result{Gesture: gesture.Pinch})

	resp, err = client.Get(ts.URL + "/api/state")
	if err != nil {
		t.Fatalf("GET /api/state error = %v", err)
	}
	var state struct {
		State       string `json:"state"`
		ActivePhoto *int   `json:"active_photo"`
		Photos      int    `json:"photos"`
	}
	json.NewDecoder(resp.Body).Decode(&state)
	resp.Body.Close()

	if state.State != "ZOOMED" {
		t.Errorf("state = %s, want ZOOMED", state.State)
	}
	if state.ActivePhoto == nil || *state.ActivePhoto != 0 {
		t.Errorf("active_photo = %v, want 0", state.ActivePhoto)
	}
	if state.Photos != 1 {
		t.Errorf("photos = %d, want 1", state.Photos)
	}
}

func TestAPI_GestureWebsocket(t *testing.T) {
	d := scene.NewDirector(1)
	hub := NewHub(d)
	d.OnChange(hub.PublishTransition)

	ts := httptest.NewServer(New(Config{Director: d, Hub: hub}))
	defer ts.Close()

	// A result published before anyone connects is replayed on connect.
	hub.Publish(gesture.Result{Gesture: gesture.Open, Position: detector.Point3D{X: 0.25, Y: 0.5}})

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/gesture"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	defer conn.Close()

	read := func() Message {
		t.Helper()
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read message: %v", err)
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("decode message %s: %v", data, err)
		}
		return msg
	}

	replayed := read()
	if replayed.Type != "gesture" || replayed.Gesture != gesture.Open {
		t.Errorf("replayed message = %+v, want OPEN gesture", replayed)
	}
	if replayed.Position.X != 0.25 {
		t.Errorf("replayed position = %+v, want x 0.25", replayed.Position)
	}

	waitUntil(t, "client registration", func() bool { return hub.Clients() == 1 })

	hub.Publish(gesture.Result{Gesture: gesture.Fist})
	if msg := read(); msg.Gesture != gesture.Fist || msg.State != scene.Closed || !msg.Vision {
		t.Errorf("gesture message = %+v, want FIST while CLOSED with vision", msg)
	}

	d.Press(scene.Explode)
	msg := read()
	if msg.Type != "transition" || msg.Transition == nil {
		t.Fatalf("message = %+v, want a transition", msg)
	}
	if msg.Transition.To != scene.Exploded || msg.Transition.Cause != "button:explode" {
		t.Errorf("transition = %+v, want button:explode to EXPLODED", *msg.Transition)
	}

	conn.Close()
	waitUntil(t, "client removal", func() bool { return hub.Clients() == 0 })
}

func TestAPI_MJPEGStream(t *testing.T) {
	var n int
	stream := render.NewStream(1000, func(*image.RGBA) ([]byte, error) {
		n++
		return []byte("frame-" + strconv.Itoa(n)), nil
	})

	ts := httptest.NewServer(New(Config{Stream: stream}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/stream", nil)
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("GET /api/stream error = %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "multipart/x-mixed-replace; boundary=frame" {
		t.Errorf("Content-Type = %q", ct)
	}

	waitUntil(t, "viewer subscription", func() bool { return stream.Viewers() == 1 })

	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	if err := stream.Present(ctx, img, &animation.Frame{Seq: 1}); err != nil {
		t.Fatalf("Present() error = %v", err)
	}

	tp := textproto.NewReader(bufio.NewReader(resp.Body))
	line, err := tp.ReadLine()
	if err != nil || line != "--frame" {
		t.Fatalf("boundary = %q, %v", line, err)
	}
	hdr, err := tp.ReadMIMEHeader()
	if err != nil {
		t.Fatalf("read part header: %v", err)
	}
	if hdr.Get("Content-Type") != "image/jpeg" {
		t.Errorf("part Content-Type = %q, want image/jpeg", hdr.Get("Content-Type"))
	}
	size, _ := strconv.Atoi(hdr.Get("Content-Length"))
	data := make([]byte, size)
	if _, err := io.ReadFull(tp.R, data); err != nil {
		t.Fatalf("read part body: %v", err)
	}
	if string(data) != "frame-1" {
		t.Errorf("part body = %q, want frame-1", data)
	}

	cancel()
	waitUntil(t, "viewer to leave", func() bool { return stream.Viewers() == 0 })
}

func TestAPI_HealthCheck(t *testing.T) {
	srv := New(Config{})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET /api/health error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var health struct {
		Status string `json:"status"`
		Uptime string `json:"uptime"`
	}
	json.NewDecoder(resp.Body).Decode(&health)

	if health.Status != "ok" {
		t.Errorf("status = %s, want ok", health.Status)
	}
}
