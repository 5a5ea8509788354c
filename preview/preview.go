// CLAUDE:SUMMARY Static preview of the materialized project with fsnotify-driven live reload over a websocket.
// Package preview serves the project directory and tells connected browsers
// to reload when its files change.
package preview

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gorilla/websocket"
)

// LivePath is the websocket endpoint, relative to the handler's mount point.
const LivePath = "/_live"

// DefaultDebounce groups the burst of events produced by one generation.
const DefaultDebounce = 150 * time.Millisecond

const (
	sendBuffer   = 8
	writeTimeout = 5 * time.Second
)

// Message is pushed to live clients.
type Message struct {
	Type string `json:"type"`
	File string `json:"file,omitempty"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Server is an http.Handler for the project directory plus the live socket.
type Server struct {
	dir      string
	logger   *slog.Logger
	files    http.Handler
	upgrader websocket.Upgrader
	debounce time.Duration

	mu      sync.Mutex
	clients map[*client]struct{}
}

// New creates a preview Server for dir. Call Run to start watching.
func New(dir string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	return &Server{
		dir:    dir,
		logger: logger,
		files:  http.FileServer(http.Dir(dir)),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The preview is opened from the editor frontend, which may be
			// served from another origin during development.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		debounce: DefaultDebounce,
		clients:  make(map[*client]struct{}),
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == LivePath {
		s.serveLive(w, r)
		return
	}
	s.files.ServeHTTP(w, r)
}

func (s *Server) serveLive(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("preview: upgrade failed", "error", err)
		return
	}
	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}

	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()
	s.logger.Debug("preview: client connected", "remote", r.RemoteAddr)

	go s.writeLoop(c)

	// Clients never send anything; reading only detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	s.drop(c)
}

func (s *Server) writeLoop(c *client) {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			s.drop(c)
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (s *Server) drop(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		close(c.send)
	}
}

// Clients returns the number of connected live clients.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Broadcast sends msg to every live client. Slow clients are disconnected.
func (s *Server) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		select {
		case c.send <- data:
		default:
			delete(s.clients, c)
			close(c.send)
		}
	}
}

// Run watches the project directory until ctx is done. The parent directory
// is watched as well, so a directory removed and recreated by a new
// generation is picked up again.
func (s *Server) Run(ctx context.Context) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(s.dir)); err != nil {
		return err
	}
	s.arm(w)
	s.logger.Info("preview: watching", "dir", s.dir)

	timer := time.NewTimer(s.debounce)
	timer.Stop()
	defer timer.Stop()
	var pending string

	for {
		select {
		case <-ctx.Done():
			s.closeAll()
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			file, relevant := s.classify(w, ev)
			if !relevant {
				continue
			}
			pending = file
			timer.Reset(s.debounce)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("preview: watcher error", "error", err)

		case <-timer.C:
			s.Broadcast(Message{Type: "reload", File: pending})
			s.logger.Debug("preview: reload", "file", pending)
			pending = ""
		}
	}
}

// classify filters events to the project tree and keeps watches current.
// It returns the changed file relative to the project directory.
func (s *Server) classify(w *fsnotify.Watcher, ev fsnotify.Event) (string, bool) {
	if ev.Op == fsnotify.Chmod {
		return "", false
	}
	if ev.Name == s.dir {
		if ev.Has(fsnotify.Create) {
			s.arm(w)
		}
		return "", true
	}
	rel, err := filepath.Rel(s.dir, ev.Name)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			s.addTree(w, ev.Name)
		}
	}
	return filepath.ToSlash(rel), true
}

func (s *Server) arm(w *fsnotify.Watcher) {
	s.addTree(w, s.dir)
}

func (s *Server) addTree(w *fsnotify.Watcher, root string) {
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(p)
		}
		return nil
	})
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn("preview: watch failed", "dir", root, "error", err)
	}
}

func (s *Server) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		delete(s.clients, c)
		close(c.send)
	}
}
