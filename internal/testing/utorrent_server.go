package testing

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
)

const utorrentToken = "fake-utorrent-token"

// UTorrentServer is a mock uTorrent Web UI server for testing.
type UTorrentServer struct {
	*httptest.Server
	*torrentStore
}

// NewUTorrentServer creates a new mock uTorrent server.
func NewUTorrentServer() *UTorrentServer {
	s := &UTorrentServer{torrentStore: newTorrentStore()}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /gui/token.html", s.handleToken)
	mux.HandleFunc("GET /gui/", s.handleGUI)

	s.Server = httptest.NewServer(mux)
	return s
}

// GUIURL returns the Web UI root URL.
func (s *UTorrentServer) GUIURL() string {
	return s.URL + "/gui/"
}

func (s *UTorrentServer) handleToken(w http.ResponseWriter, _ *http.Request) {
	http.SetCookie(w, &http.Cookie{Name: "GUID", Value: "fake-guid", Path: "/"})
	w.Header().Set("Content-Type", "text/html")
	_, _ = w.Write([]byte("<html><div id='token' style='display:none;'>" + utorrentToken + "</div></html>"))
}

func (s *UTorrentServer) handleGUI(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("token") != utorrentToken {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	if q.Get("list") == "1" {
		rows := make([][]any, 0)
		for _, t := range s.sorted() {
			status := 1
			if t.State == "paused" {
				status = 33
			}
			rows = append(rows, []any{t.Hash, status, t.Name, 0})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"build": 1, "torrents": rows})
		return
	}

	hash := q.Get("hash")
	switch q.Get("action") {
	case "stop", "pause":
		s.apply("pause", hash, false)
	case "start", "unpause":
		s.apply("resume", hash, false)
	case "remove":
		s.apply("remove", hash, false)
	case "removedata":
		s.apply("remove", hash, true)
	default:
		http.Error(w, "unknown action", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"build":1}`))
}
