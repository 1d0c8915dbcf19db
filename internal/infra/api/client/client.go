// Package client talks to a running appdeck daemon over its HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"appdeck/internal/domain/model"
	"appdeck/internal/infra/api"

	"github.com/gorilla/websocket"
)

// Error is a non-2xx response from the daemon.
type Error struct {
	StatusCode int
	Message    string
	Stage      string
}

func (e *Error) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("%s (stage %s, HTTP %d)", e.Message, e.Stage, e.StatusCode)
	}
	return fmt.Sprintf("%s (HTTP %d)", e.Message, e.StatusCode)
}

type Client struct {
	client   *http.Client
	endpoint string
}

// New returns a client for the daemon listening at endpoint, for example
// "http://127.0.0.1:8420".
func New(c *http.Client, endpoint string) *Client {
	if c == nil {
		c = http.DefaultClient
	}
	return &Client{client: c, endpoint: strings.TrimRight(endpoint, "/")}
}

func (c *Client) ListApps(ctx context.Context) ([]*model.App, error) {
	var res []*model.App
	err := c.do(ctx, http.MethodGet, "/api/apps", nil, &res)
	return res, err
}

func (c *Client) GetApp(ctx context.Context, id string) (*model.AppDetails, error) {
	var res model.AppDetails
	if err := c.do(ctx, http.MethodGet, appPath(id, ""), nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) Import(ctx context.Context, location string) (*model.AppDetails, error) {
	var res model.AppDetails
	if err := c.do(ctx, http.MethodPost, "/api/apps/import", api.ImportRequest{Location: location}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) ImportDescriptor(ctx context.Context, name, descriptor string) (*model.AppDetails, error) {
	var res model.AppDetails
	req := api.ImportDescriptorRequest{Name: name, Descriptor: descriptor}
	if err := c.do(ctx, http.MethodPost, "/api/apps/descriptor", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Deploy starts a run. With wait set the returned result is final;
// otherwise only RunID is filled in.
func (c *Client) Deploy(ctx context.Context, id string, opts model.RunOptions, wait bool) (model.RunResult, error) {
	var res model.RunResult
	err := c.do(ctx, http.MethodPost, appPath(id, "/deploy"), api.DeployRequest{RunOptions: opts, Wait: wait}, &res)
	return res, err
}

func (c *Client) GetDescriptor(ctx context.Context, id string) (string, error) {
	var res api.DescriptorBody
	err := c.do(ctx, http.MethodGet, appPath(id, "/descriptor"), nil, &res)
	return res.Descriptor, err
}

func (c *Client) PutDescriptor(ctx context.Context, id, descriptor string) error {
	return c.do(ctx, http.MethodPut, appPath(id, "/descriptor"), api.DescriptorBody{Descriptor: descriptor}, nil)
}

func (c *Client) Reconcile(ctx context.Context, id, descriptor string) (api.ReconcileResponse, error) {
	var res api.ReconcileResponse
	err := c.do(ctx, http.MethodPost, appPath(id, "/reconcile"), api.DescriptorBody{Descriptor: descriptor}, &res)
	return res, err
}

// SetRunning starts or stops an installed application.
func (c *Client) SetRunning(ctx context.Context, id string, start bool) (*model.AppDetails, error) {
	action := "/stop"
	if start {
		action = "/start"
	}
	var res model.AppDetails
	if err := c.do(ctx, http.MethodPost, appPath(id, action), nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) SetAutoUpdate(ctx context.Context, id string, enabled bool, intervalMinutes int) (*model.AppDetails, error) {
	var res model.AppDetails
	req := api.AutoUpdateRequest{Enabled: enabled, IntervalMinutes: intervalMinutes}
	if err := c.do(ctx, http.MethodPut, appPath(id, "/auto-update"), req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) Remove(ctx context.Context, id string, preserveData bool) error {
	return c.do(ctx, http.MethodDelete, appPath(id, "")+"?preserve_data="+strconv.FormatBool(preserveData), nil, nil)
}

func (c *Client) Events(ctx context.Context, id string, afterSeq uint64, runID string) ([]model.Event, error) {
	var res []model.Event
	err := c.do(ctx, http.MethodGet, appPath(id, "/events")+eventQuery(afterSeq, runID), nil, &res)
	return res, err
}

// StreamEvents calls fn for each event until fn returns false, the stream
// ends or ctx is cancelled.
func (c *Client) StreamEvents(ctx context.Context, id string, afterSeq uint64, runID string, fn func(model.Event) bool) error {
	u, err := url.Parse(c.endpoint + appPath(id, "/events/stream") + eventQuery(afterSeq, runID))
	if err != nil {
		return fmt.Errorf("constructing URL: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}

	ws, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("opening event stream: %w", err)
	}
	defer ws.Close()

	stop := context.AfterFunc(ctx, func() { _ = ws.Close() })
	defer stop()

	for {
		var e model.Event
		if err := ws.ReadJSON(&e); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("reading event stream: %w", err)
		}
		if !fn(e) {
			return nil
		}
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, dest interface{}) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, reader)
	if err != nil {
		return fmt.Errorf("constructing request %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("executing HTTP request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &Error{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(data))}
		var decoded struct {
			Error string `json:"error"`
			Stage string `json:"stage"`
		}
		if json.Unmarshal(data, &decoded) == nil && decoded.Error != "" {
			apiErr.Message = decoded.Error
			apiErr.Stage = decoded.Stage
		}
		if apiErr.Message == "" {
			apiErr.Message = resp.Status
		}
		return apiErr
	}

	if dest == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("decoding response from server: %w", err)
	}
	return nil
}

func appPath(id, suffix string) string {
	return "/api/apps/" + url.PathEscape(id) + suffix
}

func eventQuery(afterSeq uint64, runID string) string {
	q := url.Values{}
	if afterSeq > 0 {
		q.Set("after", strconv.FormatUint(afterSeq, 10))
	}
	if runID != "" {
		q.Set("run_id", runID)
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}
