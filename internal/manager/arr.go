package manager

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
)

// arrClient implements the Manager interface for *arr applications (Sonarr, Radarr).
// It is private and only exposed via the Manager interface.
type arrClient struct {
	httpBase
	scanCommand string
}

// arrCommandRequest represents a command request to the *arr API.
type arrCommandRequest struct {
	Name string `json:"name"`
	Path string `json:"path,omitempty"`
}

// arrCommandResponse is the command resource returned by the *arr API.
type arrCommandResponse struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
	Result string `json:"result"`
}

func newArr(section Section, scanCommand string) *arrClient {
	return &arrClient{httpBase: newHTTPBase(section), scanCommand: scanCommand}
}

// Lookup has nothing to resolve: the dispatched command is the polled item.
func (c *arrClient) Lookup(context.Context, Request) (Target, error) {
	return Target{}, nil
}

// Dispatch queues a downloaded-scan command for the content directory and
// returns the command as the target to poll.
func (c *arrClient) Dispatch(ctx context.Context, req Request, target Target) (Target, error) {
	ctx, cancel := withTimeout(ctx, req.Timeout)
	defer cancel()

	body, err := json.Marshal(arrCommandRequest{Name: c.scanCommand, Path: c.section.MapPath(req.Dir)})
	if err != nil {
		return target, fmt.Errorf("failed to marshal command: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.section.BaseURL()+"/api/v3/command", bytes.NewReader(body))
	if err != nil {
		return target, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Api-Key", c.section.APIKey)

	respBody, err := c.do(httpReq)
	if err != nil {
		return target, err
	}

	var cmd arrCommandResponse
	if err := json.Unmarshal(respBody, &cmd); err != nil {
		return target, fmt.Errorf("%w: decode command: %w", ErrRejected, err)
	}
	if cmd.ID == 0 || cmd.Status == "failed" {
		return target, fmt.Errorf("%w: %s command not accepted (status %q)", ErrRejected, c.scanCommand, cmd.Status)
	}

	c.logger.Info().
		Str("name", c.section.Name).
		Str("path", req.Dir).
		Int("command_id", cmd.ID).
		Msgf("triggered %s", c.scanCommand)

	target.ID = strconv.Itoa(cmd.ID)
	target.Status = Status{Item: cmd.Status, Sub: cmd.Result}
	return target, nil
}

// NotifyFailed is not supported: the *arr applications track failed
// downloads through their own download-client integration.
func (c *arrClient) NotifyFailed(context.Context, Request, Target) error {
	return fmt.Errorf("%w: %s handles failed downloads itself", ErrUnsupported, c.section.Kind)
}

// Status reads the command status.
func (c *arrClient) Status(ctx context.Context, target Target) (Status, error) {
	if target.ID == "" {
		return Status{}, ErrNotFound
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.section.BaseURL()+"/api/v3/command/"+target.ID, nil)
	if err != nil {
		return Status{}, err
	}
	httpReq.Header.Set("X-Api-Key", c.section.APIKey)

	body, err := c.do(httpReq)
	if err != nil {
		return Status{}, err
	}

	var cmd arrCommandResponse
	if err := json.Unmarshal(body, &cmd); err != nil {
		return Status{}, fmt.Errorf("decode command: %w", err)
	}
	return Status{Item: cmd.Status, Sub: cmd.Result}, nil
}
