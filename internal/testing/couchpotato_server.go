package testing

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
)

// FakeRelease is a release of a FakeMovie.
type FakeRelease struct {
	Status     string
	DownloadID string
}

// FakeMovie represents a movie in the mock CouchPotato library.
type FakeMovie struct {
	ID       string
	IMDb     string
	Status   string
	Releases []FakeRelease
}

// CouchPotatoCall is one API call received by the mock CouchPotato server.
type CouchPotatoCall struct {
	Command string
	Params  url.Values
}

// CouchPotatoServer is a mock CouchPotato API server for testing.
type CouchPotatoServer struct {
	*httptest.Server

	apiKey string

	mu      sync.RWMutex
	movies  []*FakeMovie
	calls   []CouchPotatoCall
	success bool
	// scanMarksDone flips the scanned movie and its release to "done".
	scanMarksDone bool
}

// NewCouchPotatoServer creates a new mock CouchPotato server accepting apiKey.
func NewCouchPotatoServer(apiKey string) *CouchPotatoServer {
	s := &CouchPotatoServer{apiKey: apiKey, success: true}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/{key}/{command}/", s.handle)

	s.Server = httptest.NewServer(mux)
	return s
}

// AddMovie adds a movie to the library.
func (s *CouchPotatoServer) AddMovie(m *FakeMovie) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.movies = append(s.movies, m)
}

// SetSuccess sets the success field returned by scan commands.
func (s *CouchPotatoServer) SetSuccess(success bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.success = success
}

// SetScanMarksDone makes renamer scans mark the matching movie as done.
func (s *CouchPotatoServer) SetScanMarksDone(done bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scanMarksDone = done
}

// SetReleaseStatus changes the status of the release with downloadID.
func (s *CouchPotatoServer) SetReleaseStatus(downloadID, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range s.movies {
		for i := range m.Releases {
			if m.Releases[i].DownloadID == downloadID {
				m.Releases[i].Status = status
			}
		}
	}
}

// Calls returns the API calls received so far.
func (s *CouchPotatoServer) Calls() []CouchPotatoCall {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]CouchPotatoCall, len(s.calls))
	copy(out, s.calls)
	return out
}

// CallsTo returns the calls of one command.
func (s *CouchPotatoServer) CallsTo(command string) []CouchPotatoCall {
	var out []CouchPotatoCall
	for _, c := range s.Calls() {
		if c.Command == command {
			out = append(out, c)
		}
	}
	return out
}

type cpAPIRelease struct {
	Status       string            `json:"status"`
	DownloadInfo map[string]string `json:"download_info,omitempty"`
}

type cpAPIMovie struct {
	ID          string            `json:"_id"`
	Status      string            `json:"status"`
	Identifiers map[string]string `json:"identifiers"`
	Releases    []cpAPIRelease    `json:"releases"`
}

func toAPIMovie(m *FakeMovie) cpAPIMovie {
	out := cpAPIMovie{
		ID:          m.ID,
		Status:      m.Status,
		Identifiers: map[string]string{"imdb": m.IMDb},
		Releases:    make([]cpAPIRelease, 0, len(m.Releases)),
	}
	for _, r := range m.Releases {
		rel := cpAPIRelease{Status: r.Status}
		if r.DownloadID != "" {
			rel.DownloadInfo = map[string]string{"id": r.DownloadID}
		}
		out.Releases = append(out.Releases, rel)
	}
	return out
}

func (s *CouchPotatoServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.PathValue("key") != s.apiKey {
		http.NotFound(w, r)
		return
	}

	command := r.PathValue("command")
	params := r.URL.Query()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, CouchPotatoCall{Command: command, Params: params})

	var resp any
	switch command {
	case "media.list":
		resp = s.list(params)
	case "media.get":
		resp = map[string]any{"success": true, "media": s.get(params.Get("id"))}
	case "renamer.scan", "manage.update":
		if s.success && s.scanMarksDone {
			s.markDone(params.Get("download_id"))
		}
		resp = map[string]any{"success": s.success}
	case "movie.searcher.try_next":
		resp = map[string]any{"success": true}
	default:
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *CouchPotatoServer) list(params url.Values) map[string]any {
	limit, offset := 50, 0
	if lo := params.Get("limit_offset"); lo != "" {
		l, o, _ := strings.Cut(lo, ",")
		limit, _ = strconv.Atoi(l)
		offset, _ = strconv.Atoi(o)
	}

	movies := make([]cpAPIMovie, 0)
	for i := offset; i < len(s.movies) && i < offset+limit; i++ {
		movies = append(movies, toAPIMovie(s.movies[i]))
	}
	return map[string]any{"success": true, "movies": movies}
}

func (s *CouchPotatoServer) get(id string) any {
	for _, m := range s.movies {
		if m.ID == id {
			return toAPIMovie(m)
		}
	}
	return nil
}

func (s *CouchPotatoServer) markDone(downloadID string) {
	for _, m := range s.movies {
		for i := range m.Releases {
			if m.Releases[i].DownloadID == downloadID {
				m.Releases[i].Status = "done"
				m.Status = "done"
			}
		}
	}
}
