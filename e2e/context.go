// Package e2e drives a running tessera server through its HTTP API.
//
// The suite is black-box: it needs a server URL and the shared admin token,
// plus the secret of one registered price feed so it can sign attestations.
package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// TestContext holds per-scenario HTTP state and the environment handles the
// step packages share.
type TestContext struct {
	baseURL    string
	adminToken string
	feedID     string
	feedSecret string
	client     *http.Client

	lastStatus int
	lastBody   []byte
	lastJSON   map[string]any

	assetID uint64
}

func NewTestContext() *TestContext {
	return &TestContext{
		baseURL:    envDefault("TESSERA_E2E_BASE_URL", "http://localhost:8080"),
		adminToken: os.Getenv("TESSERA_E2E_ADMIN_TOKEN"),
		feedID:     envDefault("TESSERA_E2E_FEED_ID", "RWA-REIT/USD"),
		feedSecret: os.Getenv("TESSERA_E2E_FEED_SECRET"),
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// Reset clears per-scenario state. Called before each scenario.
func (tc *TestContext) Reset() {
	tc.lastStatus = 0
	tc.lastBody = nil
	tc.lastJSON = nil
	tc.assetID = 0
}

func (tc *TestContext) FeedID() string     { return tc.feedID }
func (tc *TestContext) FeedSecret() string { return tc.feedSecret }

func (tc *TestContext) SetAssetID(id uint64) { tc.assetID = id }
func (tc *TestContext) AssetID() uint64      { return tc.assetID }

// POST sends a JSON body and records the response.
func (tc *TestContext) POST(path string, body any) error {
	return tc.do(http.MethodPost, path, body, false)
}

// PUT sends a JSON body to an admin route with the admin token attached.
func (tc *TestContext) AdminPUT(path string, body any) error {
	return tc.do(http.MethodPut, path, body, true)
}

// AdminDELETE calls an admin route with the admin token attached.
func (tc *TestContext) AdminDELETE(path string) error {
	return tc.do(http.MethodDelete, path, nil, true)
}

// GET records the response of a plain GET.
func (tc *TestContext) GET(path string) error {
	return tc.do(http.MethodGet, path, nil, false)
}

func (tc *TestContext) do(method, path string, body any, admin bool) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequest(method, tc.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if admin {
		req.Header.Set("X-Admin-Token", tc.adminToken)
	}

	resp, err := tc.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	tc.lastStatus = resp.StatusCode
	tc.lastBody, err = io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	tc.lastJSON = nil
	if len(tc.lastBody) > 0 {
		_ = json.Unmarshal(tc.lastBody, &tc.lastJSON)
	}
	return nil
}

// LastStatus returns the status code of the most recent response.
func (tc *TestContext) LastStatus() int { return tc.lastStatus }

// GetResponseField reads a top-level field from the last JSON response.
func (tc *TestContext) GetResponseField(field string) (any, error) {
	if tc.lastJSON == nil {
		return nil, fmt.Errorf("last response was not JSON: %q", tc.lastBody)
	}
	v, ok := tc.lastJSON[field]
	if !ok {
		return nil, fmt.Errorf("field %q not in response: %q", field, tc.lastBody)
	}
	return v, nil
}

func envDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
