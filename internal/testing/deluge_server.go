package testing

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
)

// DelugeServer is a mock Deluge Web UI JSON-RPC server for testing.
type DelugeServer struct {
	*httptest.Server
	*torrentStore

	password string
}

// NewDelugeServer creates a new mock Deluge server accepting password.
func NewDelugeServer(password string) *DelugeServer {
	s := &DelugeServer{torrentStore: newTorrentStore(), password: password}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /json", s.handleJSON)

	s.Server = httptest.NewServer(mux)
	return s
}

type delugeRPCRequest struct {
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
	ID     int64             `json:"id"`
}

func (s *DelugeServer) handleJSON(w http.ResponseWriter, r *http.Request) {
	var req delugeRPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	resp := map[string]any{"id": req.ID, "error": nil, "result": nil}
	write := func() {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}

	if req.Method == "auth.login" {
		var password string
		if len(req.Params) > 0 {
			_ = json.Unmarshal(req.Params[0], &password)
		}
		ok := password == s.password
		if ok {
			http.SetCookie(w, &http.Cookie{Name: "_session_id", Value: "deluge-session", Path: "/"})
		}
		resp["result"] = ok
		write()
		return
	}

	if _, err := r.Cookie("_session_id"); err != nil {
		resp["error"] = map[string]any{"message": "Not authenticated", "code": 1}
		write()
		return
	}

	switch req.Method {
	case "core.pause_torrent", "core.resume_torrent":
		action := "pause"
		if req.Method == "core.resume_torrent" {
			action = "resume"
		}
		var ids []string
		if len(req.Params) > 0 {
			_ = json.Unmarshal(req.Params[0], &ids)
		}
		for _, id := range ids {
			s.apply(action, id, false)
		}
		resp["result"] = true
	case "core.remove_torrent":
		var id string
		var deleteData bool
		if len(req.Params) > 1 {
			_ = json.Unmarshal(req.Params[0], &id)
			_ = json.Unmarshal(req.Params[1], &deleteData)
		}
		s.apply("remove", id, deleteData)
		resp["result"] = true
	case "core.get_torrents_status":
		status := make(map[string]any)
		for _, t := range s.sorted() {
			status[t.Hash] = map[string]any{"name": t.Name, "state": t.State, "hash": t.Hash}
		}
		resp["result"] = status
	default:
		resp["error"] = map[string]any{"message": "Unknown method", "code": 2}
	}

	write()
}
