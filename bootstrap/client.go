// Copyright (C) 2019-2026, The Holochain Core Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package bootstrap

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/holochain/dht-core/codec"
	"github.com/holochain/dht-core/hash"
)

// Client is the counterpart to Service: the HTTP caller a joining
// node uses to publish its own AgentInfo and sample an initial peer
// set from a known bootstrap server's address.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// NewClient returns a Client targeting baseURL (e.g.
// "https://bootstrap.example.org"), using http.DefaultClient if none
// is given.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{BaseURL: baseURL, HTTP: httpClient}
}

func (c *Client) post(ctx context.Context, op string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("bootstrap: building request: %w", err)
	}
	req.Header.Set("X-Op", op)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %s request: %w", op, err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: reading %s response: %w", op, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bootstrap: %s request rejected: %s", op, respBody)
	}
	return respBody, nil
}

// Put publishes info to the bootstrap server.
func (c *Client) Put(ctx context.Context, info AgentInfo) error {
	body, err := codec.Codec.Marshal(codec.CurrentVersion, info)
	if err != nil {
		return fmt.Errorf("bootstrap: encoding agent info: %w", err)
	}
	_, err = c.post(ctx, "put", body)
	return err
}

// Random samples up to n unexpired AgentInfo entries for space.
func (c *Client) Random(ctx context.Context, space hash.Hash, n int) ([]AgentInfo, error) {
	body, err := codec.Codec.Marshal(codec.CurrentVersion, RandomRequest{Space: space, Limit: n})
	if err != nil {
		return nil, fmt.Errorf("bootstrap: encoding random request: %w", err)
	}
	respBody, err := c.post(ctx, "random", body)
	if err != nil {
		return nil, err
	}
	var resp RandomResponse
	if _, err := codec.Codec.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("bootstrap: decoding random response: %w", err)
	}
	return resp.Agents, nil
}
