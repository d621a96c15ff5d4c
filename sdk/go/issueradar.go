// Package sdk is a small client for the IssueRadar HTTP API.
package sdk

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

func New(baseURL, token string) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	return &Client{BaseURL: strings.TrimRight(baseURL, "/"), Token: token, HTTP: http.DefaultClient}
}

// APIError is returned for any non-2xx response
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("issueradar: HTTP %d: %s", e.StatusCode, e.Message)
}

type BrandRunResult struct {
	BrandID            string `json:"brandId"`
	ScannedMentions    int    `json:"scannedMentions"`
	AssignedToExisting int    `json:"assignedToExisting"`
	CreatedIssues      int    `json:"createdIssues"`
	Errors             int    `json:"errors"`
	StatusUpdated      int    `json:"statusUpdated"`
	StatusErrors       int    `json:"statusErrors"`
	Skipped            bool   `json:"skipped,omitempty"`
	Error              string `json:"error,omitempty"`
}

type ClusterRun struct {
	OK      bool             `json:"ok"`
	OrgID   string           `json:"orgId"`
	Results []BrandRunResult `json:"results"`
}

type RiskRun struct {
	OK           bool   `json:"ok"`
	OrgID        string `json:"orgId"`
	IssuesScored int    `json:"issuesScored"`
	Skipped      int    `json:"skipped"`
	Errors       int    `json:"errors"`
	BrandErrors  int    `json:"brandErrors"`
}

type SourceError struct {
	SourceID string `json:"sourceId"`
	Name     string `json:"name"`
	Error    string `json:"error"`
}

type IngestRun struct {
	OK           bool          `json:"ok"`
	OrgID        string        `json:"orgId"`
	TotalNew     int           `json:"totalNew"`
	TotalSkipped int           `json:"totalSkipped"`
	Errors       []SourceError `json:"errors"`
}

// ClusterRun triggers clustering; an empty orgID lets the server pick
func (c *Client) ClusterRun(ctx context.Context, orgID string) (*ClusterRun, error) {
	var out ClusterRun
	return &out, c.post(ctx, "/v1/cluster/run", orgID, &out)
}

func (c *Client) RiskRun(ctx context.Context, orgID string) (*RiskRun, error) {
	var out RiskRun
	return &out, c.post(ctx, "/v1/risk/run", orgID, &out)
}

func (c *Client) IngestRSS(ctx context.Context, orgID string) (*IngestRun, error) {
	var out IngestRun
	return &out, c.post(ctx, "/v1/ingest/rss", orgID, &out)
}

// Issues returns the raw issue overviews of a brand, newest first
func (c *Client) Issues(ctx context.Context, brandID string, limit int) ([]map[string]interface{}, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out struct {
		Data []map[string]interface{} `json:"data"`
	}
	err := c.do(ctx, http.MethodGet, "/v1/brands/"+url.PathEscape(brandID)+"/issues", q, &out)
	return out.Data, err
}

func (c *Client) post(ctx context.Context, path, orgID string, out interface{}) error {
	q := url.Values{}
	if orgID != "" {
		q.Set("org", orgID)
	}
	return c.do(ctx, http.MethodPost, path, q, out)
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, out interface{}) error {
	u := c.BaseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return err
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var e struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		msg := strings.TrimSpace(string(body))
		if json.Unmarshal(body, &e) == nil {
			msg = e.Error
			if e.Message != "" {
				msg = e.Message
			}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
