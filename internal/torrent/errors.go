package torrent

import "errors"

// Sentinel errors for torrent clients.
var (
	// ErrNoIdentifier is returned when a handle carries neither hash nor id.
	ErrNoIdentifier = errors.New("torrent handle has no hash or id")

	// ErrRPC is returned when a client answers a call with an error.
	ErrRPC = errors.New("torrent client rpc error")

	// ErrAuth is returned when a client rejects the configured credentials.
	ErrAuth = errors.New("torrent client authentication failed")
)
