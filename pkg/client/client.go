package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/mcpherson-lab/pubsync/internal/domain"
)

// Client is the API client for pubsync
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new API client
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// GetRuns retrieves recent sync runs
func (c *Client) GetRuns(limit int) ([]*domain.SyncRun, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var response struct {
		Data []*domain.SyncRun `json:"data"`
	}
	if err := c.get("/api/v1/runs", params, &response); err != nil {
		return nil, err
	}
	return response.Data, nil
}

// GetRun retrieves one sync run by ID
func (c *Client) GetRun(id string) (*domain.SyncRun, error) {
	var response struct {
		Data *domain.SyncRun `json:"data"`
	}
	if err := c.get("/api/v1/runs/"+url.PathEscape(id), nil, &response); err != nil {
		return nil, err
	}
	return response.Data, nil
}

// GetMembers retrieves the configured roster
func (c *Client) GetMembers() ([]*domain.Member, error) {
	var response struct {
		Data []*domain.Member `json:"data"`
	}
	if err := c.get("/api/v1/members", nil, &response); err != nil {
		return nil, err
	}
	return response.Data, nil
}

// GetMemberStats retrieves per-member lifetime sync totals
func (c *Client) GetMemberStats() ([]*domain.MemberStats, error) {
	var response struct {
		Data []*domain.MemberStats `json:"data"`
	}
	if err := c.get("/api/v1/members/stats", nil, &response); err != nil {
		return nil, err
	}
	return response.Data, nil
}

// TriggerSync starts a sync run on the server and returns its summary.
// member restricts the run to one roster member; empty means everyone.
func (c *Client) TriggerSync(member string, dryRun bool) (*domain.SyncRun, error) {
	body, err := json.Marshal(map[string]interface{}{
		"member":  member,
		"dry_run": dryRun,
	})
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Post(c.baseURL+"/api/v1/sync", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API error: %s - %s", resp.Status, string(data))
	}

	var response struct {
		Data *domain.SyncRun `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, err
	}
	return response.Data, nil
}

// HealthCheck checks if the API is healthy
func (c *Client) HealthCheck() error {
	var response struct {
		Status string `json:"status"`
	}
	if err := c.get("/health", nil, &response); err != nil {
		return err
	}
	if response.Status != "ok" {
		return fmt.Errorf("unhealthy status: %s", response.Status)
	}
	return nil
}

func (c *Client) get(path string, params url.Values, result interface{}) error {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return err
	}
	if params != nil {
		u.RawQuery = params.Encode()
	}

	resp, err := c.httpClient.Get(u.String())
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API error: %s - %s", resp.Status, string(body))
	}

	return json.NewDecoder(resp.Body).Decode(result)
}
