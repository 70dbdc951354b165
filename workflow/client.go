package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to the hosted cron-trigger service. It never schedules
// anything locally; the service calls our endpoints back.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewClient(baseURL, token string, client *http.Client) *Client {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), token: token, client: client}
}

var ErrNotConfigured = errors.New("workflow: token not configured")

type Schedule struct {
	ID          string `json:"scheduleId"`
	Cron        string `json:"cron"`
	Destination string `json:"destination"`
	Method      string `json:"method,omitempty"`
	CreatedAt   int64  `json:"createdAt,omitempty"`
	IsPaused    bool   `json:"isPaused,omitempty"`
}

// Schedule registers destination to be POSTed on cron. It returns the new
// schedule id.
func (c *Client) Schedule(ctx context.Context, destination, cron string) (string, error) {
	if strings.TrimSpace(cron) == "" {
		return "", errors.New("workflow: empty cron expression")
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/v2/schedules/"+destination, strings.NewReader("{}"))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Upstash-Cron", cron)

	var out struct {
		ScheduleID string `json:"scheduleId"`
	}
	if err := c.do(req, &out); err != nil {
		return "", fmt.Errorf("create schedule: %w", err)
	}
	if out.ScheduleID == "" {
		return "", errors.New("workflow: empty schedule id")
	}
	return out.ScheduleID, nil
}

func (c *Client) ListSchedules(ctx context.Context) ([]Schedule, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/v2/schedules", nil)
	if err != nil {
		return nil, err
	}
	var out []Schedule
	if err := c.do(req, &out); err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	return out, nil
}

func (c *Client) DeleteSchedule(ctx context.Context, id string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, "/v2/schedules/"+url.PathEscape(id), nil)
	if err != nil {
		return err
	}
	if err := c.do(req, nil); err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	if c.token == "" {
		return nil, ErrNotConfigured
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(b)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
