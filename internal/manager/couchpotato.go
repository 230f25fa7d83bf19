package manager

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/seedreap/postreap/internal/resolver"
)

const couchPotatoPageSize = 50

// couchPotatoClient implements the Manager interface for CouchPotato.
// It is private and only exposed via the Manager interface.
type couchPotatoClient struct {
	httpBase
}

type cpRelease struct {
	Status       string `json:"status"`
	DownloadInfo *struct {
		ID string `json:"id"`
	} `json:"download_info"`
}

type cpMovie struct {
	ID          string `json:"_id"`
	Status      string `json:"status"`
	Identifier  string `json:"identifier"`
	Identifiers struct {
		IMDb string `json:"imdb"`
	} `json:"identifiers"`
	Releases []cpRelease `json:"releases"`
}

func (m cpMovie) imdb() string {
	if m.Identifier != "" {
		return m.Identifier
	}
	return m.Identifiers.IMDb
}

// snatched returns the snatched releases, narrowed to downloadID when set.
func (m cpMovie) snatched(downloadID string) []cpRelease {
	var out []cpRelease
	for _, r := range m.Releases {
		if r.Status != "snatched" || r.DownloadInfo == nil {
			continue
		}
		if downloadID != "" && !strings.EqualFold(r.DownloadInfo.ID, downloadID) {
			continue
		}
		out = append(out, r)
	}
	return out
}

type successResponse struct {
	Success bool `json:"success"`
}

func newCouchPotato(section Section) *couchPotatoClient {
	return &couchPotatoClient{httpBase: newHTTPBase(section)}
}

func (c *couchPotatoClient) apiURL(command string, params url.Values) string {
	u := c.section.BaseURL() + "/api/" + c.section.APIKey + "/" + command + "/"
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

// Lookup finds the movie by imdb id or download id in the active snatched list.
func (c *couchPotatoClient) Lookup(ctx context.Context, req Request) (Target, error) {
	target := Target{
		ExternalID: resolver.ExternalID(req.Name, req.Dir),
		DownloadID: req.DownloadID,
	}
	if target.ExternalID == "" {
		target.ExternalID = resolver.IMDbID(req.Name, req.Dir)
	}

	if target.ExternalID == "" && target.DownloadID == "" {
		return target, nil
	}

	var movies []cpMovie
	for offset := 0; ; offset += couchPotatoPageSize {
		var page struct {
			Movies []cpMovie `json:"movies"`
		}
		params := url.Values{
			"status":         {"active"},
			"release_status": {"snatched"},
			"limit_offset":   {fmt.Sprintf("%d,%d", couchPotatoPageSize, offset)},
		}
		if err := c.getJSON(ctx, c.apiURL("media.list", params), &page); err != nil {
			return target, err
		}
		movies = append(movies, page.Movies...)
		if len(page.Movies) < couchPotatoPageSize {
			break
		}
	}

	for _, movie := range movies {
		releases := movie.snatched(target.DownloadID)

		switch {
		case target.ExternalID != "" && movie.imdb() == target.ExternalID:
			if target.DownloadID == "" && len(releases) == 1 {
				target.DownloadID = releases[0].DownloadInfo.ID
			}
		case target.ExternalID == "" && target.DownloadID != "" && len(releases) > 0:
			target.ExternalID = movie.imdb()
		default:
			continue
		}

		target.ID = movie.ID
		target.Status.Item = movie.Status
		if len(releases) == 1 {
			target.Status.Sub = releases[0].Status
		}

		c.logger.Info().
			Str("movie_id", target.ID).
			Str("imdb", target.ExternalID).
			Str("status", target.Status.Item).
			Msg("found movie in library")
		return target, nil
	}

	c.logger.Warn().Str("imdb", target.ExternalID).Str("download_id", target.DownloadID).Msg("could not find movie in library")
	return target, nil
}

// Dispatch starts a renamer scan (or a manage update).
func (c *couchPotatoClient) Dispatch(ctx context.Context, req Request, target Target) (Target, error) {
	command := "renamer.scan"
	params := url.Values{}

	if c.section.Method == "manage" {
		command = "manage.update"
	} else if !req.Manual() && target.DownloadID != "" {
		if !c.section.Remote {
			params.Set("media_folder", c.section.MapPath(req.Dir))
		}
		params.Set("downloader", req.Client)
		params.Set("download_id", target.DownloadID)
	}

	ctx, cancel := withTimeout(ctx, req.Timeout)
	defer cancel()

	var result successResponse
	if err := c.getJSON(ctx, c.apiURL(command, params), &result); err != nil {
		return target, err
	}
	if !result.Success {
		return target, fmt.Errorf("%w: %s scan has not started for %s", ErrRejected, command, req.Name)
	}

	c.logger.Info().Str("command", command).Str("name", req.Name).Msg("scan started")
	return target, nil
}

// NotifyFailed asks CouchPotato to snatch the next best release.
func (c *couchPotatoClient) NotifyFailed(ctx context.Context, req Request, target Target) error {
	if target.ID == "" {
		return fmt.Errorf("%w: no movie for release %s", ErrNotFound, req.Name)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.apiURL("movie.searcher.try_next", url.Values{"media_id": {target.ID}}), nil)
	if err != nil {
		return err
	}
	if _, err := c.do(httpReq); err != nil {
		return err
	}

	c.logger.Info().Str("movie_id", target.ID).Msg("movie set to try the next best release")
	return nil
}

// Status reads the movie status and the status of the tracked release.
func (c *couchPotatoClient) Status(ctx context.Context, target Target) (Status, error) {
	if target.ID == "" {
		return Status{}, ErrNotFound
	}

	var result struct {
		Media cpMovie `json:"media"`
	}
	if err := c.getJSON(ctx, c.apiURL("media.get", url.Values{"id": {target.ID}}), &result); err != nil {
		return Status{}, err
	}

	status := Status{Item: result.Media.Status}
	releases := result.Media.Releases

	if len(releases) == 1 && releases[0].Status == "done" {
		status.Sub = releases[0].Status
		return status, nil
	}

	var matching []string
	for _, r := range releases {
		if r.DownloadInfo != nil && target.DownloadID != "" && strings.EqualFold(r.DownloadInfo.ID, target.DownloadID) {
			matching = append(matching, r.Status)
		}
	}
	if len(matching) == 1 {
		status.Sub = matching[0]
	}

	return status, nil
}
