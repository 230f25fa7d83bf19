package testing

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
)

// GamezUpdate is a status update received by the mock Gamez server.
type GamezUpdate struct {
	ID     string
	Status string
}

// GamezServer is a mock Gamez API server for testing.
type GamezServer struct {
	*httptest.Server

	apiKey string

	mu      sync.RWMutex
	updates []GamezUpdate
	success bool
}

// NewGamezServer creates a new mock Gamez server accepting apiKey.
func NewGamezServer(apiKey string) *GamezServer {
	s := &GamezServer{apiKey: apiKey, success: true}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api", s.handleAPI)

	s.Server = httptest.NewServer(mux)
	return s
}

// SetSuccess sets the success field of responses.
func (s *GamezServer) SetSuccess(success bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.success = success
}

// Updates returns the status updates received so far.
func (s *GamezServer) Updates() []GamezUpdate {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]GamezUpdate, len(s.updates))
	copy(out, s.updates)
	return out
}

func (s *GamezServer) handleAPI(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("api_key") != s.apiKey {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if q.Get("mode") != "UPDATEREQUESTEDSTATUS" {
		http.Error(w, "unknown mode", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.updates = append(s.updates, GamezUpdate{ID: q.Get("db_id"), Status: q.Get("status")})
	success := s.success
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"success": success})
}
