package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"tenderwatch/internal"
	"tenderwatch/internal/config"
)

// Client talks to the tender platform backend. Every method returns an
// explicit error; non-2xx responses surface as *HTTPError so callers can
// distinguish them from transport failures.
type Client struct {
	cfg        config.Config
	httpClient *http.Client
	limiter    *RateLimiter
}

// HTTPError is a response the server did send, with the message read from
// its detail/message field.
type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("api error: status=%d %s", e.Status, e.Message)
}

type errorBody struct {
	Detail  json.RawMessage `json:"detail"`
	Message string          `json:"message"`
}

func NewClient(cfg config.Config) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: time.Duration(cfg.APITimeoutMs) * time.Millisecond},
		limiter:    NewRateLimiter(cfg.APIRateLimitRPS),
	}
}

// ListParams are the tender list filters; every distinct combination is a
// distinct cache key upstream.
type ListParams struct {
	Query    string
	Status   string
	DateFrom string
	DateTo   string
	Page     int
	PerPage  int
}

func (p ListParams) Values() url.Values {
	q := url.Values{}
	if strings.TrimSpace(p.Query) != "" {
		q.Set("q", p.Query)
	}
	if strings.TrimSpace(p.Status) != "" {
		q.Set("status", p.Status)
	}
	if strings.TrimSpace(p.DateFrom) != "" {
		q.Set("date_from", p.DateFrom)
	}
	if strings.TrimSpace(p.DateTo) != "" {
		q.Set("date_to", p.DateTo)
	}
	if p.Page > 0 {
		q.Set("page", strconv.Itoa(p.Page))
	}
	if p.PerPage > 0 {
		q.Set("per_page", strconv.Itoa(p.PerPage))
	}
	return q
}

func (c *Client) Health(ctx context.Context) (internal.Health, error) {
	var out internal.Health
	// The health probe is its own failure signal; retrying would only delay
	// the offline banner.
	err := c.getJSON(ctx, "/health", nil, &out, 1)
	return out, err
}

func (c *Client) ListTenders(ctx context.Context, params ListParams) (internal.TenderPage, error) {
	var out internal.TenderPage
	err := c.getJSON(ctx, "/api/tenders", params.Values(), &out, c.cfg.APIRetryAttempts)
	return out, err
}

func (c *Client) GetTender(ctx context.Context, id string) (internal.Tender, error) {
	var out internal.Tender
	err := c.getJSON(ctx, "/api/tenders/"+url.PathEscape(id), nil, &out, c.cfg.APIRetryAttempts)
	return out, err
}

func (c *Client) Analyze(ctx context.Context, id string) (internal.Tender, error) {
	var out internal.Tender
	err := c.postJSON(ctx, "/api/tenders/"+url.PathEscape(id)+"/analyze", nil, &out)
	return out, err
}

func (c *Client) Ask(ctx context.Context, id, question string) (internal.Answer, error) {
	var out internal.Answer
	body := map[string]string{"question": question}
	err := c.postJSON(ctx, "/api/tenders/"+url.PathEscape(id)+"/ask", body, &out)
	return out, err
}

func (c *Client) RunScraper(ctx context.Context, startDate, endDate string) (internal.ScraperRun, error) {
	var out internal.ScraperRun
	body := map[string]string{"start_date": startDate, "end_date": endDate}
	err := c.postJSON(ctx, "/api/scraper/run", body, &out)
	return out, err
}

func (c *Client) ScraperStatus(ctx context.Context) (internal.ScraperStatus, error) {
	var out internal.ScraperStatus
	err := c.getJSON(ctx, "/api/scraper/status", nil, &out, c.cfg.APIRetryAttempts)
	return out, err
}

func (c *Client) StopScraper(ctx context.Context) (internal.StopResult, error) {
	var out internal.StopResult
	err := c.postJSON(ctx, "/api/scraper/stop", nil, &out)
	return out, err
}

func (c *Client) getJSON(ctx context.Context, endpoint string, params url.Values, out any, attempts int) error {
	u, err := c.endpointURL(endpoint, params)
	if err != nil {
		return err
	}
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := c.limiter.WaitTurn(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")

		body, status, err := c.roundTrip(req)
		if err != nil {
			lastErr = err
			if attempt < attempts {
				backoffSleep(attempt)
			}
			continue
		}

		if status < 200 || status >= 300 {
			if isRetryableStatus(status) && attempt < attempts {
				backoffSleep(attempt)
				lastErr = &HTTPError{Status: status, Message: errorMessage(status, body)}
				continue
			}
			return &HTTPError{Status: status, Message: errorMessage(status, body)}
		}

		return json.Unmarshal(body, out)
	}
	return lastErr
}

// Mutations are sent exactly once; retrying a POST could trigger the same
// server-side job twice.
func (c *Client) postJSON(ctx context.Context, endpoint string, payload any, out any) error {
	u, err := c.endpointURL(endpoint, nil)
	if err != nil {
		return err
	}
	if err := c.limiter.WaitTurn(ctx); err != nil {
		return err
	}

	var reader io.Reader
	if payload != nil {
		blob, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(blob)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	body, status, err := c.roundTrip(req)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return &HTTPError{Status: status, Message: errorMessage(status, body)}
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(body, out)
}

func (c *Client) roundTrip(req *http.Request) ([]byte, int, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request %s: %w", req.URL.Path, err)
	}
	body, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, 0, fmt.Errorf("read response %s: %w", req.URL.Path, readErr)
	}
	return body, resp.StatusCode, nil
}

func (c *Client) endpointURL(endpoint string, params url.Values) (string, error) {
	base := strings.TrimRight(c.cfg.APIBaseURL, "/")
	u, err := url.Parse(base + endpoint)
	if err != nil {
		return "", err
	}
	if len(params) > 0 {
		u.RawQuery = params.Encode()
	}
	return u.String(), nil
}

// errorMessage reads detail or message from the body; any non-success status
// is a failure regardless of body shape, so a generic message is synthesized
// when neither parses.
func errorMessage(status int, body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		var detail string
		if len(eb.Detail) > 0 && json.Unmarshal(eb.Detail, &detail) == nil && strings.TrimSpace(detail) != "" {
			return detail
		}
		if strings.TrimSpace(eb.Message) != "" {
			return eb.Message
		}
	}
	return fmt.Sprintf("request failed with status %d", status)
}

func isRetryableStatus(status int) bool {
	switch status {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func backoffSleep(attempt int) {
	backoff := time.Duration(250*(1<<(attempt-1))+rand.Intn(100)) * time.Millisecond
	time.Sleep(backoff)
}
