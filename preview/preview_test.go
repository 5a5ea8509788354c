package preview

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startPreview(t *testing.T) (*Server, string, *httptest.Server) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "generated-site")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	srv := New(dir, quietLogger())
	srv.debounce = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := srv.Run(ctx); err != nil {
			t.Errorf("Run: %v", err)
		}
	}()
	ts := httptest.NewServer(srv)
	t.Cleanup(func() {
		ts.Close()
		cancel()
		<-done
	})
	return srv, dir, ts
}

func dial(t *testing.T, srv *Server, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + LivePath
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for srv.Clients() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return conn
}

// awaitReload keeps touching a file until the client sees a reload. The
// watcher starts asynchronously, so a single write could be missed.
func awaitReload(t *testing.T, conn *websocket.Conn, write func()) Message {
	t.Helper()
	got := make(chan Message, 1)
	go func() {
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			close(got)
			return
		}
		var m Message
		json.Unmarshal(data, &m)
		got <- m
	}()

	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	write()
	for {
		select {
		case m, ok := <-got:
			if !ok {
				t.Fatal("no reload message before deadline")
			}
			return m
		case <-tick.C:
			write()
		}
	}
}

func TestServesProjectFiles(t *testing.T) {
	_, dir, ts := startPreview(t)
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>hi</h1>"), 0o644); err != nil {
		t.Fatal(err)
	}

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(body) != "<h1>hi</h1>" {
		t.Errorf("GET / = %d %q", resp.StatusCode, body)
	}

	resp, err = http.Get(ts.URL + "/missing.css")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing file status = %d", resp.StatusCode)
	}
}

func TestReloadOnWrite(t *testing.T) {
	srv, dir, ts := startPreview(t)
	conn := dial(t, srv, ts)

	m := awaitReload(t, conn, func() {
		os.WriteFile(filepath.Join(dir, "style.css"), []byte("body{}"), 0o644)
	})
	if m.Type != "reload" || m.File != "style.css" {
		t.Errorf("message = %+v", m)
	}
}

func TestReloadAfterDirectoryRecreated(t *testing.T) {
	// WHAT: A regeneration removes and recreates the directory; edits after
	// that still trigger reloads.
	srv, dir, ts := startPreview(t)
	conn := dial(t, srv, ts)

	awaitReload(t, conn, func() {
		os.RemoveAll(dir)
		os.MkdirAll(dir, 0o755)
	})

	m := awaitReload(t, conn, func() {
		os.WriteFile(filepath.Join(dir, "index.html"), []byte("<p>v2</p>"), 0o644)
	})
	if m.Type != "reload" {
		t.Errorf("message = %+v", m)
	}
}

func TestBroadcastDropsClosedClients(t *testing.T) {
	srv, _, ts := startPreview(t)
	conn := dial(t, srv, ts)
	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for srv.Clients() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("closed client still registered")
		}
		srv.Broadcast(Message{Type: "reload"})
		time.Sleep(10 * time.Millisecond)
	}
}
