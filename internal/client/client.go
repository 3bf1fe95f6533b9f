// Package client talks to a running clawbridge daemon over its REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/user/clawbridge/internal/command"
	"github.com/user/clawbridge/internal/db"
	"github.com/user/clawbridge/internal/freshness"
	"github.com/user/clawbridge/internal/session"
	"github.com/user/clawbridge/internal/status"
)

// APIError is a non-2xx reply from the daemon.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("daemon returned %d", e.Status)
	}
	return fmt.Sprintf("daemon returned %d: %s", e.Status, e.Message)
}

// IsNotFound reports whether err is a 404 from the daemon.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		// Freshness checks wait on two package manager queries.
		http: &http.Client{Timeout: 3 * time.Minute},
	}
}

type Output struct {
	Role  session.Role `json:"role"`
	Lines []string     `json:"lines"`
}

type CheckResult struct {
	freshness.Result
	Message string `json:"message"`
	Offer   string `json:"offer,omitempty"`
}

func (c *Client) Status(ctx context.Context) (status.Snapshot, error) {
	var s status.Snapshot
	err := c.do(ctx, http.MethodGet, "/api/status", nil, &s)
	return s, err
}

func (c *Client) Sessions(ctx context.Context) ([]session.Info, error) {
	var list []session.Info
	err := c.do(ctx, http.MethodGet, "/api/sessions", nil, &list)
	return list, err
}

func (c *Client) Output(ctx context.Context, role session.Role, lines int) ([]string, error) {
	path := "/api/sessions/" + url.PathEscape(string(role)) + "/output"
	if lines > 0 {
		path += "?lines=" + strconv.Itoa(lines)
	}
	var out Output
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Lines, nil
}

// Run asks the daemon to dispatch cmd.
func (c *Client) Run(ctx context.Context, cmd command.Command) error {
	if p, ok := cmd.(command.Pair); ok {
		return c.Pair(ctx, string(p.App), p.Code)
	}
	fields := strings.Fields(cmd.Name())
	body := map[string]any{"command": fields[0]}
	if len(fields) > 1 {
		body["args"] = fields[1:]
	}
	return c.do(ctx, http.MethodPost, "/api/commands", body, nil)
}

func (c *Client) Pair(ctx context.Context, app, code string) error {
	return c.do(ctx, http.MethodPost, "/api/pairing", map[string]string{"app": app, "code": code}, nil)
}

func (c *Client) CheckFreshness(ctx context.Context) (freshness.Result, error) {
	res, err := c.Check(ctx)
	return res.Result, err
}

// Check is CheckFreshness with the daemon's rendered message and offer.
func (c *Client) Check(ctx context.Context) (CheckResult, error) {
	var res CheckResult
	err := c.do(ctx, http.MethodPost, "/api/freshness/check", nil, &res)
	return res, err
}

func (c *Client) Install(ctx context.Context, res freshness.Result) error {
	return c.do(ctx, http.MethodPost, "/api/freshness/install", res, nil)
}

// LastCheck returns nil without error when no check was recorded.
func (c *Client) LastCheck(ctx context.Context) (*db.FreshnessCheck, error) {
	var last db.FreshnessCheck
	if err := c.do(ctx, http.MethodGet, "/api/freshness/last", nil, &last); err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &last, nil
}

func (c *Client) History(ctx context.Context, filter db.DispatchFilter) ([]*db.Dispatch, error) {
	q := url.Values{}
	if filter.Role != "" {
		q.Set("role", filter.Role)
	}
	if filter.Outcome != "" {
		q.Set("outcome", filter.Outcome)
	}
	if filter.Limit > 0 {
		q.Set("limit", strconv.Itoa(filter.Limit))
	}
	path := "/api/history"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var list []*db.Dispatch
	err := c.do(ctx, http.MethodGet, path, nil, &list)
	return list, err
}

func (c *Client) do(ctx context.Context, method, path string, body, dst any) error {
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
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("daemon unreachable at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&e)
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}
	if dst == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
