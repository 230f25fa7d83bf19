package testing

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
)

// QBittorrentServer is a mock qBittorrent Web API server for testing.
type QBittorrentServer struct {
	*httptest.Server
	*torrentStore
}

// NewQBittorrentServer creates a new mock qBittorrent server.
func NewQBittorrentServer() *QBittorrentServer {
	s := &QBittorrentServer{torrentStore: newTorrentStore()}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v2/auth/login", s.handleLogin)
	mux.HandleFunc("GET /api/v2/app/version", s.handleVersion)
	mux.HandleFunc("GET /api/v2/app/webapiVersion", s.handleWebAPIVersion)
	mux.HandleFunc("GET /api/v2/torrents/info", s.handleTorrentsInfo)
	mux.HandleFunc("POST /api/v2/torrents/info", s.handleTorrentsInfo)
	mux.HandleFunc("POST /api/v2/torrents/pause", s.handleAction("pause"))
	mux.HandleFunc("POST /api/v2/torrents/stop", s.handleAction("pause"))
	mux.HandleFunc("POST /api/v2/torrents/resume", s.handleAction("resume"))
	mux.HandleFunc("POST /api/v2/torrents/start", s.handleAction("resume"))
	mux.HandleFunc("POST /api/v2/torrents/delete", s.handleAction("remove"))

	s.Server = httptest.NewServer(mux)
	return s
}

// handleLogin handles POST /api/v2/auth/login.
func (s *QBittorrentServer) handleLogin(w http.ResponseWriter, _ *http.Request) {
	// Always succeed - we don't care about auth in tests
	http.SetCookie(w, &http.Cookie{Name: "SID", Value: "test-session", Path: "/"})
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Ok."))
}

// handleVersion handles GET /api/v2/app/version.
func (s *QBittorrentServer) handleVersion(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("v5.0.0"))
}

// handleWebAPIVersion handles GET /api/v2/app/webapiVersion.
func (s *QBittorrentServer) handleWebAPIVersion(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("2.11.2"))
}

// qbAPITorrent matches the qBittorrent API response format.
type qbAPITorrent struct {
	Hash  string `json:"hash"`
	Name  string `json:"name"`
	State string `json:"state"`
}

// handleTorrentsInfo handles /api/v2/torrents/info.
func (s *QBittorrentServer) handleTorrentsInfo(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()

	var hashFilter map[string]bool
	if hashes := r.Form.Get("hashes"); hashes != "" {
		hashFilter = make(map[string]bool)
		for h := range strings.SplitSeq(hashes, "|") {
			hashFilter[h] = true
		}
	}

	result := make([]qbAPITorrent, 0)
	for _, t := range s.sorted() {
		if hashFilter != nil && !hashFilter[t.Hash] {
			continue
		}
		result = append(result, qbAPITorrent{Hash: t.Hash, Name: t.Name, State: t.State})
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(result)
}

// handleAction handles the pause/stop, resume/start and delete endpoints.
func (s *QBittorrentServer) handleAction(action string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "invalid form", http.StatusBadRequest)
			return
		}

		deleteData := r.Form.Get("deleteFiles") == "true"
		for h := range strings.SplitSeq(r.Form.Get("hashes"), "|") {
			if h != "" {
				s.apply(action, h, deleteData)
			}
		}

		w.WriteHeader(http.StatusOK)
	}
}
