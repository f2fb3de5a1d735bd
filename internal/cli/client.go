package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/opencode-ai/themesync/internal/api"
	"github.com/opencode-ai/themesync/internal/appearance"
	"github.com/opencode-ai/themesync/internal/models"
)

const defaultDaemonTimeout = 30 * time.Second

// ErrDaemonUnreachable reports that no daemon answered.
var ErrDaemonUnreachable = errors.New("themesync daemon not reachable")

// daemonClient calls a running `themesync serve`.
type daemonClient struct {
	baseURL    string
	httpClient *http.Client
}

func newDaemonClient(baseURL string, timeout time.Duration) *daemonClient {
	if timeout <= 0 {
		timeout = defaultDaemonTimeout
	}
	return &daemonClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *daemonClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w at %s: %v", ErrDaemonUnreachable, c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("daemon returned %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	if s, ok := out.(*string); ok {
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}
		*s = string(data)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *daemonClient) SetActive(ctx context.Context, id string) (appearance.Result, error) {
	var res appearance.Result
	req := api.ActiveRequest{}
	if id != "" {
		req.ID = &id
	}
	err := c.do(ctx, http.MethodPost, "/api/active", req, &res)
	return res, err
}

func (c *daemonClient) Cycle(ctx context.Context, direction int) (appearance.Result, error) {
	var res appearance.Result
	err := c.do(ctx, http.MethodPost, "/api/cycle", api.CycleRequest{Direction: direction}, &res)
	return res, err
}

func (c *daemonClient) Toggle(ctx context.Context) (bool, error) {
	var res api.ToggleResponse
	err := c.do(ctx, http.MethodPost, "/api/toggle", nil, &res)
	return res.Applied, err
}

func (c *daemonClient) ReloadBase(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/reload-base", nil, nil)
}

func (c *daemonClient) Status(ctx context.Context) (api.StatusResponse, error) {
	var res api.StatusResponse
	err := c.do(ctx, http.MethodGet, "/api/status", nil, &res)
	return res, err
}

func (c *daemonClient) CSS(ctx context.Context) (string, error) {
	var css string
	err := c.do(ctx, http.MethodGet, "/api/theme.css", nil, &css)
	return css, err
}

func (c *daemonClient) Themes(ctx context.Context) ([]*models.Theme, error) {
	var themes []*models.Theme
	err := c.do(ctx, http.MethodGet, "/api/themes", nil, &themes)
	return themes, err
}

func (c *daemonClient) ReloadThemes(ctx context.Context) (appearance.Result, error) {
	var res appearance.Result
	err := c.do(ctx, http.MethodPost, "/api/reload-themes", nil, &res)
	return res, err
}

func (c *daemonClient) DeleteTheme(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/themes/"+url.PathEscape(id), nil, nil)
}
