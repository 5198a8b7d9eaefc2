package navigator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"metasync/internal/catalog"
	"metasync/sink"
)

const maxErrorBody = 4 << 10

// Client talks to the catalog's REST API.
type Client struct {
	cfg Config
	hc  *http.Client
}

// NewClient returns a client for cfg. A nil hc uses http.DefaultClient.
func NewClient(cfg Config, hc *http.Client) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{cfg: cfg, hc: hc}
}

// writeResult is the catalog's reply to an entity write.
type writeResult struct {
	Errors []sink.FieldError `json:"errors"`
}

// Write upserts one entity. Field level rejections come back as a partial
// *sink.WriteError.
func (c *Client) Write(ctx context.Context, e catalog.Entity) error {
	body, err := json.Marshal([]catalog.Entity{e})
	if err != nil {
		return &sink.WriteError{Sink: "navigator", EntityID: e.ExternalID, Err: err}
	}

	u := c.cfg.NavigatorURL + "/entities?autocommit=" + strconv.FormatBool(c.cfg.Autocommit)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return &sink.WriteError{Sink: "navigator", EntityID: e.ExternalID, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.cfg.Username, c.cfg.Password)

	resp, err := c.hc.Do(req)
	if err != nil {
		return &sink.WriteError{Sink: "navigator", EntityID: e.ExternalID, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &sink.WriteError{
			Sink:     "navigator",
			EntityID: e.ExternalID,
			Err:      fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(msg)),
		}
	}

	var res writeResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil && err != io.EOF {
		// the write went through; an unreadable body is not worth failing it
		return nil
	}
	if len(res.Errors) > 0 {
		return &sink.WriteError{Sink: "navigator", EntityID: e.ExternalID, Fields: res.Errors}
	}
	return nil
}

// Query is one page of a catalog search.
type Query struct {
	Query      string
	Limit      int
	CursorMark string
}

// Search runs q against the catalog's paging API and returns the raw page.
func (c *Client) Search(ctx context.Context, q Query) (json.RawMessage, error) {
	v := url.Values{}
	v.Set("query", q.Query)
	v.Set("limit", strconv.Itoa(q.Limit))
	v.Set("cursorMark", q.CursorMark)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.cfg.NavigatorURL+"/entities/paging?"+v.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.cfg.Username, c.cfg.Password)

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("navigator search: %w", err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("navigator search: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("navigator search: status %d: %s", resp.StatusCode, bytes.TrimSpace(b))
	}
	if !json.Valid(b) {
		return nil, fmt.Errorf("navigator search: response is not JSON")
	}
	return b, nil
}
