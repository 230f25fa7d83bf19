package testing

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"slices"
	"sync"
)

// SickBeardServer is a mock SickBeard server that accepts the processEpisode
// parameters of a single fork.
type SickBeardServer struct {
	*httptest.Server

	username string
	password string
	accepted []string

	mu       sync.RWMutex
	requests []url.Values
	output   string
}

// NewSickBeardServer creates a mock SickBeard server requiring basic auth
// with username and password (when set). Requests carrying any parameter
// outside accepted, quiet and nzbName are refused with 400, the way forks
// reject unknown arguments.
func NewSickBeardServer(username, password string, accepted ...string) *SickBeardServer {
	s := &SickBeardServer{
		username: username,
		password: password,
		accepted: append([]string{"quiet", "nzbName"}, accepted...),
		output:   "Processing succeeded\n",
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /home/postprocess/processEpisode", s.handleProcess)

	s.Server = httptest.NewServer(mux)
	return s
}

// SetOutput sets the text streamed back for accepted requests.
func (s *SickBeardServer) SetOutput(output string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.output = output
}

// Requests returns the query of every request received, including probes.
func (s *SickBeardServer) Requests() []url.Values {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.requests)
}

func (s *SickBeardServer) handleProcess(w http.ResponseWriter, r *http.Request) {
	if s.username != "" || s.password != "" {
		user, pass, ok := r.BasicAuth()
		if !ok || user != s.username || pass != s.password {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
	}

	params := r.URL.Query()

	s.mu.Lock()
	s.requests = append(s.requests, params)
	output := s.output
	s.mu.Unlock()

	for key := range params {
		if !slices.Contains(s.accepted, key) {
			http.Error(w, "unexpected keyword argument '"+key+"'", http.StatusBadRequest)
			return
		}
	}

	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte(output))
}
