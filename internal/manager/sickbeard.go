package manager

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const processEpisodePath = "/home/postprocess/processEpisode"

// sickBeardClient implements the Manager interface for SickBeard and its forks.
// It is private and only exposed via the Manager interface.
type sickBeardClient struct {
	httpBase
	dialect Dialect
}

func newSickBeard(section Section, dialect Dialect) *sickBeardClient {
	if dialect.Name == "" {
		dialect = DefaultDialect(KindSickBeard)
	}
	return &sickBeardClient{httpBase: newHTTPBase(section), dialect: dialect}
}

// Lookup has nothing to resolve: SickBeard offers no status to poll.
func (c *sickBeardClient) Lookup(context.Context, Request) (Target, error) {
	return Target{}, nil
}

// params builds the processEpisode query for the dialect.
func (c *sickBeardClient) params(req Request) url.Values {
	params := url.Values{"quiet": {"1"}}
	if req.Name != "" {
		params.Set("nzbName", req.Name)
	}

	for _, p := range c.dialect.Params {
		switch p {
		case "failed":
			if req.Failed {
				params.Set(p, "1")
			} else {
				params.Set(p, "0")
			}
		case "dir", "dirName":
			params.Set(p, c.section.MapPath(req.Dir))
		case "process_method":
			if c.dialect.Torrent && c.section.TorrentNoLink && req.Torrent {
				continue
			}
			if c.section.ProcessMethod != "" {
				params.Set(p, c.section.ProcessMethod)
			}
		}
	}

	return params
}

// Dispatch calls processEpisode and logs the streamed output. A line reporting
// a processing failure rejects the request.
func (c *sickBeardClient) Dispatch(ctx context.Context, req Request, target Target) (Target, error) {
	ctx, cancel := withTimeout(ctx, req.Timeout)
	defer cancel()

	if err := c.process(ctx, req); err != nil {
		return target, err
	}
	return target, nil
}

// NotifyFailed sends a failed=1 process request on dialects that handle it.
func (c *sickBeardClient) NotifyFailed(ctx context.Context, req Request, _ Target) error {
	if !c.dialect.HandlesFailed {
		return fmt.Errorf("%w: %s dialect does not handle failed downloads", ErrUnsupported, c.dialect.Name)
	}

	req.Failed = true
	return c.process(ctx, req)
}

// Status is not available for SickBeard.
func (c *sickBeardClient) Status(context.Context, Target) (Status, error) {
	return Status{}, ErrUnsupported
}

func (c *sickBeardClient) process(ctx context.Context, req Request) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.section.BaseURL()+processEpisodePath+"?"+c.params(req).Encode(), nil)
	if err != nil {
		return err
	}
	if c.section.Username != "" || c.section.Password != "" {
		httpReq.SetBasicAuth(c.section.Username, c.section.Password)
	}

	body, err := c.do(httpReq)
	if err != nil {
		return err
	}

	scanner := bufio.NewScanner(bytes.NewReader(body))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		c.logger.Info().Str("section", c.section.Name).Msg(line)
		if strings.Contains(strings.ToLower(line), "processing failed") {
			return fmt.Errorf("%w: %s", ErrRejected, line)
		}
	}

	return nil
}
