// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// HTTPClient speaks the catalog's JSON API:
//
//	GET /collections/{collection}
//	GET /collections/{collection}/items/{item}
//	PUT /collections/{collection}/items/{item}/essences/{filename}
type HTTPClient struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewHTTPClient(baseURL, token string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

// StatusError is a non-2xx catalog response.
type StatusError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("catalog %s %s: status %d: %s", e.Method, e.Path, e.Status, e.Body)
}

func (c *HTTPClient) GetCollection(ctx context.Context, collection string) (Collection, error) {
	var out Collection
	err := c.do(ctx, http.MethodGet, "/collections/"+url.PathEscape(collection), nil, &out)
	return out, err
}

func (c *HTTPClient) GetItem(ctx context.Context, collection, item string) (Item, error) {
	var out Item
	err := c.do(ctx, http.MethodGet, "/collections/"+url.PathEscape(collection)+"/items/"+url.PathEscape(item), nil, &out)
	return out, err
}

func (c *HTTPClient) PutEssence(ctx context.Context, collection, item string, essence Essence) error {
	path := "/collections/" + url.PathEscape(collection) + "/items/" + url.PathEscape(item) +
		"/essences/" + url.PathEscape(essence.Filename)
	return c.do(ctx, http.MethodPut, path, essence, nil)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode catalog request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build catalog request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("catalog %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("catalog %s %s: %w", method, path, ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &StatusError{Method: method, Path: path, Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode catalog response: %w", err)
	}
	return nil
}
