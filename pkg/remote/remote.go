// Package remote serves the local volume dock: a small page for OBS custom
// docks plus the endpoints and websocket feed it talks to.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Uknong/BetterCheeseUtil/pkg/framebuf"
)

const wsWriteTimeout = 2 * time.Second

type Options struct {
	Addr   string
	Volume int
	// OnVolume is called after every accepted volume change.
	OnVolume func(volume int)
	// Status backs /api/status; nil serves {}.
	Status func() any
	// Frame backs /preview.png; nil or no frame serves 503.
	Frame func() (framebuf.Frame, bool)
}

// Server owns the dock's volume. Every change, from the dock or from the
// application, goes through SetVolume and is broadcast to all open docks.
type Server struct {
	opts Options

	mu      sync.Mutex
	volume  int
	clients map[*websocket.Conn]struct{}
}

func New(o Options) *Server {
	if o.Addr == "" {
		o.Addr = "127.0.0.1:5000"
	}
	return &Server{opts: o, volume: clamp(o.Volume), clients: map[*websocket.Conn]struct{}{}}
}

func clamp(v int) int { return max(0, min(100, v)) }

// Volume is the current dock volume.
func (s *Server) Volume() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume
}

// SetVolume stores v (clamped to 0..100), notifies OnVolume and pushes the
// value to every connected dock. It returns the stored value.
func (s *Server) SetVolume(v int) int {
	v = clamp(v)
	s.mu.Lock()
	s.volume = v
	s.broadcastLocked(v)
	s.mu.Unlock()
	if s.opts.OnVolume != nil {
		s.opts.OnVolume(v)
	}
	return v
}

type volumeMsg struct {
	Volume int `json:"volume"`
}

// broadcastLocked writes to every dock; sockets that fail are dropped.
func (s *Server) broadcastLocked(v int) {
	for ws := range s.clients {
		_ = ws.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := ws.WriteJSON(volumeMsg{Volume: v}); err != nil {
			delete(s.clients, ws)
			ws.Close()
		}
	}
}

// Clients is the number of connected docks.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.clients[ws] = struct{}{}
	_ = ws.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	_ = ws.WriteJSON(volumeMsg{Volume: s.volume})
	s.mu.Unlock()

	// Docks only listen; reading detects the close.
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}
	s.mu.Lock()
	delete(s.clients, ws)
	s.mu.Unlock()
	ws.Close()
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// Handler routes the dock endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/obs_volume_control", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(dockHTML))
	})
	mux.HandleFunc("/get_current_volume", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, volumeMsg{Volume: s.Volume()})
	})
	mux.HandleFunc("/update_volume_from_dock", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var body struct {
			Volume *int `json:"volume"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Volume == nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request"})
			return
		}
		v := s.SetVolume(*body.Volume)
		log.Printf("[REMOTE] volume %d from dock", v)
		writeJSON(w, http.StatusOK, map[string]any{"message": "Volume updated", "volume": v})
	})
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		var st any = map[string]any{}
		if s.opts.Status != nil {
			st = s.opts.Status()
		}
		writeJSON(w, http.StatusOK, st)
	})
	mux.HandleFunc("/preview.png", s.handlePreview)
	return mux
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	if s.opts.Frame == nil {
		http.Error(w, "no frame", http.StatusServiceUnavailable)
		return
	}
	f, ok := s.opts.Frame()
	if !ok {
		http.Error(w, "no frame", http.StatusServiceUnavailable)
		return
	}
	img := &image.NRGBA{Pix: f.Pix, Stride: f.Stride(), Rect: image.Rect(0, 0, f.Width, f.Height)}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(w, img); err != nil {
		log.Printf("[REMOTE] preview encode: %v", err)
	}
}

// ListenAndServe serves until ctx ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx ends, then closes open docks.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
		s.mu.Lock()
		for ws := range s.clients {
			ws.Close()
			delete(s.clients, ws)
		}
		s.mu.Unlock()
	}()
	log.Printf("[REMOTE] volume dock on http://%s/obs_volume_control", ln.Addr())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

const dockHTML = `<!DOCTYPE html>
<html lang="ko">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>치지직 영도 음량</title>
<style>
body { font-family: 'Pretendard', sans-serif; background-color: #2b2b2b; color: white;
       display: flex; flex-direction: row; align-items: center; justify-content: center;
       height: 100vh; margin: 0; padding: 0 10px; }
input[type=range] { flex-grow: 1; accent-color: #53af77; margin-right: 10px; cursor: pointer; }
#vol-label { font-size: 1rem; font-weight: bold; white-space: nowrap; min-width: 35px; }
</style>
</head>
<body>
<input type="range" id="volume-slider" min="0" max="100" value="50">
<div id="vol-label">50%</div>
<script>
const slider = document.getElementById('volume-slider');
const label = document.getElementById('vol-label');
function show(v) { slider.value = v; label.textContent = v + '%'; }

fetch('/get_current_volume').then(r => r.json()).then(d => {
  if (d.volume !== undefined) show(d.volume);
}).catch(err => console.error('Failed to fetch volume:', err));

slider.addEventListener('input', function () {
  label.textContent = this.value + '%';
  fetch('/update_volume_from_dock', {
    method: 'POST',
    headers: {'Content-Type': 'application/json'},
    body: JSON.stringify({volume: parseInt(this.value)})
  });
});

function connect() {
  const ws = new WebSocket((location.protocol === 'https:' ? 'wss://' : 'ws://') + location.host + '/ws');
  ws.onmessage = e => { const d = JSON.parse(e.data); if (d.volume !== undefined) show(d.volume); };
  ws.onclose = () => setTimeout(connect, 1000);
}
connect();
</script>
</body>
</html>
`
