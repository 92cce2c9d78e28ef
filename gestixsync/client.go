package gestixsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrGestixUnavailable marks a transport-level failure against Gestix.
// It aborts the whole cycle: the watermark must not move when we cannot
// even list the new orders.
var ErrGestixUnavailable = errors.New("gestix unavailable")

type gestixClient struct {
	baseURL   string
	apiKey    string
	apiKeyHdr string
	http      *http.Client
}

func newGestixClient() (*gestixClient, error) {
	baseURL := strings.TrimSpace(os.Getenv("GESTIX_API_BASE_URL"))
	if baseURL == "" {
		baseURL = "https://api.gestix.local"
	}
	apiKey := strings.TrimSpace(os.Getenv("GESTIX_API_KEY"))
	if apiKey == "" {
		return nil, errors.New("gestix api key is empty")
	}
	apiKeyHeader := strings.TrimSpace(os.Getenv("GESTIX_API_KEY_HEADER"))
	if apiKeyHeader == "" {
		apiKeyHeader = "X-API-Key"
	}
	timeoutSeconds := 60
	if v := strings.TrimSpace(os.Getenv("GESTIX_HTTP_TIMEOUT_SECONDS")); v != "" {
		if n, err := parseInt(v); err == nil && n > 0 {
			timeoutSeconds = n
		}
	}

	return &gestixClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		apiKeyHdr: apiKeyHeader,
		http:      &http.Client{Timeout: time.Duration(timeoutSeconds) * time.Second},
	}, nil
}

type gestixListResponse struct {
	Data []json.RawMessage `json:"data"`
}

func (c *gestixClient) getList(ctx context.Context, path string, params url.Values) (gestixListResponse, error) {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint = endpoint + "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return gestixListResponse{}, err
	}
	req.Header.Set(c.apiKeyHdr, c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		// Connection refused, DNS failure, timeout: the caller decides
		// whether this is fatal for the cycle.
		return gestixListResponse{}, fmt.Errorf("%w: %v", ErrGestixUnavailable, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return gestixListResponse{}, fmt.Errorf("gestix api error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed gestixListResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return gestixListResponse{}, err
	}
	return parsed, nil
}

func (c *gestixClient) postJSON(ctx context.Context, path string, payload interface{}, dest interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(string(body)))
	if err != nil {
		return err
	}
	req.Header.Set(c.apiKeyHdr, c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGestixUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("gestix api error %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	if dest == nil {
		return nil
	}
	envelope := struct {
		Data json.RawMessage `json:"data"`
	}{}
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return err
	}
	return json.Unmarshal(envelope.Data, dest)
}

// LookupClient finds the Gestix client id for a local client code.
// Returns 0 when Gestix has no match.
func (c *gestixClient) LookupClient(ctx context.Context, code string) (int, error) {
	params := url.Values{}
	params.Set("code", code)
	resp, err := c.getList(ctx, "/v1/clients", params)
	if err != nil {
		return 0, err
	}
	for _, raw := range resp.Data {
		var rec gestixClientRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(rec.Code), code) {
			return rec.ID, nil
		}
	}
	return 0, nil
}

// ExportClient creates the client in Gestix and returns its assigned id.
func (c *gestixClient) ExportClient(ctx context.Context, code, name string) (int, error) {
	var rec gestixClientRecord
	payload := map[string]string{"code": code, "name": name}
	if err := c.postJSON(ctx, "/v1/clients", payload, &rec); err != nil {
		return 0, err
	}
	if rec.ID == 0 {
		return 0, errors.New("gestix returned no client id")
	}
	return rec.ID, nil
}

func parseInt(v string) (int, error) {
	return strconv.Atoi(v)
}
