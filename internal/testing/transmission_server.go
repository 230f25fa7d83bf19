package testing

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
)

const transmissionSessionID = "fake-session-id"

// TransmissionServer is a mock Transmission RPC server for testing.
// Requests without the session header are answered with 409, as Transmission does.
type TransmissionServer struct {
	*httptest.Server
	*torrentStore
}

// NewTransmissionServer creates a new mock Transmission server.
func NewTransmissionServer() *TransmissionServer {
	s := &TransmissionServer{torrentStore: newTorrentStore()}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /transmission/rpc", s.handleRPC)

	s.Server = httptest.NewServer(mux)
	return s
}

// RPCURL returns the RPC endpoint URL.
func (s *TransmissionServer) RPCURL() string {
	return s.URL + "/transmission/rpc"
}

type transmissionRPCRequest struct {
	Method    string `json:"method"`
	Tag       *int   `json:"tag,omitempty"`
	Arguments struct {
		IDs             []any `json:"ids"`
		DeleteLocalData bool  `json:"delete-local-data"`
	} `json:"arguments"`
}

type transmissionRPCTorrent struct {
	ID         int    `json:"id"`
	HashString string `json:"hashString"`
	Name       string `json:"name"`
	Status     int    `json:"status"`
}

func (s *TransmissionServer) handleRPC(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("X-Transmission-Session-Id") != transmissionSessionID {
		w.Header().Set("X-Transmission-Session-Id", transmissionSessionID)
		w.WriteHeader(http.StatusConflict)
		return
	}

	var req transmissionRPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	resp := map[string]any{"result": "success", "arguments": map[string]any{}}
	if req.Tag != nil {
		resp["tag"] = *req.Tag
	}

	switch req.Method {
	case "session-get":
		resp["arguments"] = map[string]any{
			"version":             "4.0.5",
			"rpc-version":         17,
			"rpc-version-minimum": 14,
		}
	case "torrent-stop", "torrent-start", "torrent-remove":
		action := map[string]string{
			"torrent-stop":   "pause",
			"torrent-start":  "resume",
			"torrent-remove": "remove",
		}[req.Method]
		for _, id := range req.Arguments.IDs {
			s.apply(action, s.resolve(id), req.Arguments.DeleteLocalData)
		}
	case "torrent-get":
		wanted := make(map[string]bool, len(req.Arguments.IDs))
		for _, id := range req.Arguments.IDs {
			wanted[s.resolve(id)] = true
		}

		torrents := make([]transmissionRPCTorrent, 0)
		for _, t := range s.sorted() {
			if len(wanted) > 0 && !wanted[t.Hash] {
				continue
			}
			status := 6
			if t.State == "paused" {
				status = 0
			}
			torrents = append(torrents, transmissionRPCTorrent{
				ID: t.ID, HashString: t.Hash, Name: t.Name, Status: status,
			})
		}
		resp["arguments"] = map[string]any{"torrents": torrents}
	default:
		resp["result"] = "method name not recognized"
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *TransmissionServer) resolve(id any) string {
	switch v := id.(type) {
	case string:
		return s.lookup(v, 0)
	case float64:
		return s.lookup(fmt.Sprint(int(v)), int(v))
	default:
		return fmt.Sprint(v)
	}
}
