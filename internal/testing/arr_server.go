package testing

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"
)

// ArrCommand represents a command received by the mock Arr server.
type ArrCommand struct {
	ID        int
	Name      string
	Path      string
	APIKey    string
	Timestamp time.Time
}

// ArrServer is a mock Sonarr/Radarr API server for testing.
type ArrServer struct {
	*httptest.Server

	mu       sync.RWMutex
	commands []ArrCommand
	polls    map[int]int
	sequence []string
	reject   bool
	appName  string
	version  string
}

// NewArrServer creates a new mock Arr server.
// appName should be "Sonarr" or "Radarr" for realistic responses.
// Queued commands report "started" on the first status poll and "completed" afterwards.
func NewArrServer(appName string) *ArrServer {
	s := &ArrServer{
		commands: make([]ArrCommand, 0),
		polls:    make(map[int]int),
		sequence: []string{"started", "completed"},
		appName:  appName,
		version:  "4.0.0.0",
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v3/system/status", s.handleSystemStatus)
	mux.HandleFunc("POST /api/v3/command", s.handleCommand)
	mux.HandleFunc("GET /api/v3/command/{id}", s.handleCommandStatus)

	s.Server = httptest.NewServer(mux)
	return s
}

// SetStatusSequence sets the statuses reported by successive polls of a command.
// The last status repeats once the sequence is exhausted.
func (s *ArrServer) SetStatusSequence(statuses ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sequence = statuses
}

// SetReject makes the server answer commands with a failed command resource.
func (s *ArrServer) SetReject(reject bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reject = reject
}

// GetCommands returns all commands received by the server.
func (s *ArrServer) GetCommands() []ArrCommand {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]ArrCommand, len(s.commands))
	copy(result, s.commands)
	return result
}

// Polls returns how often the status of command id was requested.
func (s *ArrServer) Polls(id int) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.polls[id]
}

// arrSystemStatus matches the Arr API response format.
type arrSystemStatus struct {
	Version string `json:"version"`
	AppName string `json:"appName"`
}

// handleSystemStatus handles GET /api/v3/system/status.
func (s *ArrServer) handleSystemStatus(w http.ResponseWriter, _ *http.Request) {
	resp := arrSystemStatus{
		Version: s.version,
		AppName: s.appName,
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// arrCommandRequest matches the Arr API request format.
type arrCommandRequest struct {
	Name string `json:"name"`
	Path string `json:"path,omitempty"`
}

// arrCommandResponse matches the Arr API response format.
type arrCommandResponse struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	Result    string    `json:"result,omitempty"`
	Queued    time.Time `json:"queued"`
	StateTime time.Time `json:"stateChangeTime"`
}

// handleCommand handles POST /api/v3/command.
func (s *ArrServer) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req arrCommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	cmd := ArrCommand{
		ID:        len(s.commands) + 1,
		Name:      req.Name,
		Path:      req.Path,
		APIKey:    r.Header.Get("X-Api-Key"),
		Timestamp: time.Now(),
	}
	s.commands = append(s.commands, cmd)
	reject := s.reject
	s.mu.Unlock()

	resp := arrCommandResponse{
		ID:        cmd.ID,
		Name:      req.Name,
		Status:    "queued",
		Queued:    cmd.Timestamp,
		StateTime: cmd.Timestamp,
	}
	if reject {
		resp.Status = "failed"
		resp.Result = "unsuccessful"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(resp)
}

// handleCommandStatus handles GET /api/v3/command/{id}.
func (s *ArrServer) handleCommandStatus(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	if id < 1 || id > len(s.commands) {
		s.mu.Unlock()
		http.NotFound(w, r)
		return
	}
	cmd := s.commands[id-1]
	n := s.polls[id]
	s.polls[id] = n + 1
	status := "queued"
	if len(s.sequence) > 0 {
		status = s.sequence[min(n, len(s.sequence)-1)]
	}
	s.mu.Unlock()

	resp := arrCommandResponse{
		ID:        cmd.ID,
		Name:      cmd.Name,
		Status:    status,
		Queued:    cmd.Timestamp,
		StateTime: time.Now(),
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
