package testing

import (
	"slices"
	"sort"
	"sync"
)

// FakeTorrent represents a torrent in the mock torrent client servers.
type FakeTorrent struct {
	Hash  string
	ID    int
	Name  string
	State string // "downloading", "paused", "seeding", ...
}

// TorrentAction is a state change received by a mock torrent client.
type TorrentAction struct {
	Action     string // "pause", "resume" or "remove"
	Hash       string
	DeleteData bool
}

// torrentStore is the state shared by the mock torrent client servers.
type torrentStore struct {
	mu       sync.RWMutex
	torrents map[string]*FakeTorrent
	actions  []TorrentAction
}

func newTorrentStore() *torrentStore {
	return &torrentStore{torrents: make(map[string]*FakeTorrent)}
}

// AddTorrent adds a torrent to the mock server.
func (s *torrentStore) AddTorrent(t *FakeTorrent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.torrents[t.Hash] = t
}

// GetTorrent returns a torrent by hash, or nil once removed.
func (s *torrentStore) GetTorrent(hash string) *FakeTorrent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.torrents[hash]
}

// Actions returns the state changes received so far.
func (s *torrentStore) Actions() []TorrentAction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.actions)
}

// sorted returns the torrents ordered by hash.
func (s *torrentStore) sorted() []FakeTorrent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]FakeTorrent, 0, len(s.torrents))
	for _, t := range s.torrents {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Hash < out[j].Hash })
	return out
}

// lookup resolves a hash or numeric id to a stored hash.
func (s *torrentStore) lookup(key string, id int) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.torrents[key]; ok {
		return key
	}
	for hash, t := range s.torrents {
		if id != 0 && t.ID == id {
			return hash
		}
	}
	return key
}

func (s *torrentStore) apply(action, hash string, deleteData bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.actions = append(s.actions, TorrentAction{Action: action, Hash: hash, DeleteData: deleteData})

	t, ok := s.torrents[hash]
	if !ok {
		return
	}
	switch action {
	case "pause":
		t.State = "paused"
	case "resume":
		t.State = "seeding"
	case "remove":
		delete(s.torrents, hash)
	}
}
