package manager

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// gamezClient implements the Manager interface for Gamez.
// It is private and only exposed via the Manager interface.
type gamezClient struct {
	httpBase
}

func newGamez(section Section) *gamezClient {
	return &gamezClient{httpBase: newHTTPBase(section)}
}

// gamezID takes the database id from a "[id]-name" release name.
func gamezID(name string) string {
	field, _, _ := strings.Cut(name, "-")
	return strings.NewReplacer("[", "", "]", "", " ", "").Replace(field)
}

// Lookup reads the game id from the release name.
func (c *gamezClient) Lookup(_ context.Context, req Request) (Target, error) {
	id := gamezID(req.Name)
	if id == "" {
		return Target{}, fmt.Errorf("%w: no game id in %q", ErrNotFound, req.Name)
	}
	return Target{ExternalID: id}, nil
}

// Dispatch marks the game as downloaded.
func (c *gamezClient) Dispatch(ctx context.Context, req Request, target Target) (Target, error) {
	ctx, cancel := withTimeout(ctx, req.Timeout)
	defer cancel()

	return target, c.updateStatus(ctx, req, target, "Downloaded")
}

// NotifyFailed puts the game back to wanted.
func (c *gamezClient) NotifyFailed(ctx context.Context, req Request, target Target) error {
	return c.updateStatus(ctx, req, target, "Wanted")
}

// Status is not available for Gamez.
func (c *gamezClient) Status(context.Context, Target) (Status, error) {
	return Status{}, ErrUnsupported
}

func (c *gamezClient) updateStatus(ctx context.Context, req Request, target Target, status string) error {
	id := target.ExternalID
	if id == "" {
		id = gamezID(req.Name)
	}

	params := url.Values{
		"api_key": {c.section.APIKey},
		"mode":    {"UPDATEREQUESTEDSTATUS"},
		"db_id":   {id},
		"status":  {status},
	}

	var result successResponse
	if err := c.getJSON(ctx, c.section.BaseURL()+"/api?"+params.Encode(), &result); err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("%w: status for %s has not been updated", ErrRejected, id)
	}

	c.logger.Info().Str("game_id", id).Str("status", status).Msg("game status updated")
	return nil
}
