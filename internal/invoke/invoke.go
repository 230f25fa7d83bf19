// Package invoke turns the arguments and environment a download client
// passes to its post-processing script into a pipeline request.
package invoke

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/seedreap/postreap/internal/pipeline"
)

// Exit codes understood by NZBGet from post-processing scripts.
const (
	NZBGetSuccess = 93
	NZBGetError   = 94
	NZBGetNone    = 95
)

// Client names reported to managers.
const (
	ClientNZBGet       = "nzbget"
	ClientSABnzbd      = "sabnzbd"
	ClientRTorrent     = "rtorrent"
	ClientUTorrent     = "utorrent"
	ClientDeluge       = "deluge"
	ClientTransmission = "transmission"
	ClientQBittorrent  = "qbittorrent"
	ClientOther        = "other"
)

// minNZBGetMajor is the first NZBGet release with the NZBPP_* script interface.
const minNZBGetMajor = 11

// healthComplete is NZBGet's health value for a download with no missing articles.
const healthComplete = 1000

// Sentinel errors for the invoke package.
var (
	// ErrNotNZBGet is returned when the NZBGet script environment is missing.
	ErrNotNZBGet = errors.New("not called from NZBGet")

	// ErrNZBGetVersion is returned for NZBGet releases older than 11.0.
	ErrNZBGetVersion = errors.New("unsupported NZBGet version")

	// ErrUnpackDisabled is returned when NZBGet does not unpack downloads itself.
	ErrUnpackDisabled = errors.New("NZBGet option Unpack is disabled")

	// ErrArguments is returned when a client passed too few arguments.
	ErrArguments = errors.New("invalid number of arguments")

	// ErrUnknownClient is returned for a torrent client without an argument convention.
	ErrUnknownClient = errors.New("unknown torrent client")
)

// LookupEnv reads an environment variable. os.LookupEnv satisfies it.
type LookupEnv func(key string) (string, bool)

func getenv(env LookupEnv, key string) string {
	v, _ := env(key)
	return v
}

// NZBGetJob is a request parsed from the NZBGet environment.
type NZBGetJob struct {
	Request pipeline.Request
	// Skip is set when there is nothing to process and the script should exit
	// with NZBGetNone.
	Skip bool
}

// NZBGet reads the NZBPP_* environment of an NZBGet post-processing script.
// Par and unpack results decide whether the download counts as failed; a
// download whose directory is gone is failed as well.
func NZBGet(env LookupEnv, fs afero.Fs, logger zerolog.Logger) (NZBGetJob, error) {
	if _, ok := env("NZBOP_SCRIPTDIR"); !ok {
		return NZBGetJob{}, ErrNotNZBGet
	}

	raw := getenv(env, "NZBOP_VERSION")
	version, err := semver.NewVersion(raw)
	if err != nil || version.Major() < minNZBGetMajor {
		return NZBGetJob{}, fmt.Errorf("%w: %q", ErrNZBGetVersion, raw)
	}

	if getenv(env, "NZBOP_UNPACK") != "yes" {
		return NZBGetJob{}, ErrUnpackDisabled
	}

	job := NZBGetJob{Request: pipeline.Request{
		Dir:        getenv(env, "NZBPP_DIRECTORY"),
		Name:       getenv(env, "NZBPP_NZBFILENAME"),
		Category:   getenv(env, "NZBPP_CATEGORY"),
		Client:     ClientNZBGet,
		DownloadID: getenv(env, "NZBPR_COUCHPOTATO"),
	}}
	if job.Request.Name == "" {
		job.Request.Name = getenv(env, "NZBPP_NZBNAME")
	}

	parStatus := getenv(env, "NZBPP_PARSTATUS")
	unpackStatus := getenv(env, "NZBPP_UNPACKSTATUS")

	if parStatus == "3" {
		logger.Warn().Msg("par-check successful, but par-repair disabled, nothing to do")
		job.Skip = true
		return job, nil
	}

	if parStatus == "1" || parStatus == "4" {
		logger.Warn().Str("par_status", parStatus).Msg("par-repair failed, setting status failed")
		job.Request.Failed = true
	}

	if unpackStatus == "1" {
		logger.Warn().Msg("unpack failed, setting status failed")
		job.Request.Failed = true
	}

	if unpackStatus == "0" && parStatus == "0" {
		health, err := strconv.Atoi(getenv(env, "NZBPP_HEALTH"))
		if err != nil || health < healthComplete {
			logger.Warn().
				Int("health", health).
				Msg("download health is compromised and par-check/repair disabled or no .par2 files found, setting status failed")
			job.Request.Failed = true
		} else {
			logger.Info().Msg("par-check/repair disabled or no .par2 files found, and unpack not required; health is ok")
		}
	}

	if exists, _ := afero.DirExists(fs, job.Request.Dir); !exists {
		logger.Error().Str("dir", job.Request.Dir).Msg("nothing to post-process: destination directory does not exist, setting status failed")
		job.Request.Failed = true
	}

	return job, nil
}

// sabnzbdArgs is the number of positional arguments SABnzbd passes since 0.7.17
// leaves off the failure URL.
const sabnzbdArgs = 7

// SABnzbd parses the positional arguments of a SABnzbd script: final
// directory, NZB file name, clean job name, indexer report number, category,
// newsgroup, post-processing status and, since 0.7.17, a failure URL.
// Any status other than 0 marks the download failed.
func SABnzbd(args []string) (pipeline.Request, error) {
	if len(args) < sabnzbdArgs {
		return pipeline.Request{}, fmt.Errorf("%w: SABnzbd passes at least %d, got %d", ErrArguments, sabnzbdArgs, len(args))
	}

	return pipeline.Request{
		Dir:      args[0],
		Name:     args[1],
		Category: args[4],
		Failed:   strings.TrimSpace(args[6]) != "0",
		Client:   ClientSABnzbd,
	}, nil
}

// Torrent parses the arguments of a torrent client's completion hook.
//
//	rtorrent, qbittorrent:  dir [name [label [hash]]]
//	utorrent:               dir name [label [hash]]
//	deluge:                 id name dir
//	transmission:           TR_TORRENT_DIR, TR_TORRENT_NAME, TR_TORRENT_HASH, TR_TORRENT_ID
//	other:                  dir
func Torrent(client string, args []string, env LookupEnv) (pipeline.Request, error) {
	client = strings.ToLower(client)
	req := pipeline.Request{Client: client, Torrent: true}

	arg := func(i int) string {
		if i < len(args) {
			return args[i]
		}
		return ""
	}

	switch client {
	case ClientRTorrent, ClientQBittorrent:
		if len(args) < 1 {
			return req, fmt.Errorf("%w: %s passes at least 1", ErrArguments, client)
		}
		req.Dir, req.Name, req.Category, req.DownloadID = arg(0), arg(1), arg(2), arg(3)
	case ClientUTorrent:
		if len(args) < 2 {
			return req, fmt.Errorf("%w: utorrent passes at least 2", ErrArguments)
		}
		req.Dir, req.Name, req.Category, req.DownloadID = arg(0), arg(1), arg(2), arg(3)
	case ClientDeluge:
		if len(args) < 3 {
			return req, fmt.Errorf("%w: deluge passes 3", ErrArguments)
		}
		req.DownloadID, req.Name, req.Dir = arg(0), arg(1), arg(2)
	case ClientTransmission:
		req.Dir = getenv(env, "TR_TORRENT_DIR")
		req.Name = getenv(env, "TR_TORRENT_NAME")
		req.DownloadID = getenv(env, "TR_TORRENT_HASH")
		req.TorrentID = getenv(env, "TR_TORRENT_ID")
		if req.Dir == "" {
			return req, fmt.Errorf("%w: TR_TORRENT_DIR is not set", ErrArguments)
		}
	case ClientOther:
		if len(args) < 1 {
			return req, fmt.Errorf("%w: other passes 1", ErrArguments)
		}
		req.Dir = arg(0)
	default:
		return req, fmt.Errorf("%w: %q", ErrUnknownClient, client)
	}

	req.Dir = filepath.Clean(req.Dir)
	return req, nil
}
