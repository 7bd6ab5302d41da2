// Package recognition is an HTTP client for the remote recognition service
// that identifies codes and watermarks in uploaded frames.
package recognition

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"scanstream/internal/prepare"
)

const (
	// DefaultBaseURL is the public API endpoint.
	DefaultBaseURL = "https://api.evrythng.com"

	identificationsPath = "/scan/identifications"
	anonymousUserPath   = "/auth/evrythng/users"
)

// ScanOptions are the query parameters of a scan request.
type ScanOptions struct {
	// Filter is the encoded filter, e.g. "method=2d&type=qr_code".
	Filter  string
	PerPage int
	Debug   bool
}

// ClientOptions configures a Client.
type ClientOptions struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Logger     *log.Logger
}

// Client talks to the recognition service. It is safe for concurrent use.
type Client struct {
	baseURL    *url.URL
	apiKey     string
	httpClient *http.Client
	logger     *log.Logger
	tracer     trace.Tracer
}

// NewClient validates opts and returns a Client.
func NewClient(opts ClientOptions) (*Client, error) {
	raw := strings.TrimSpace(opts.BaseURL)
	if raw == "" {
		raw = DefaultBaseURL
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base URL %q must be absolute", raw)
	}
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, fmt.Errorf("api key is required")
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	return &Client{
		baseURL:    base,
		apiKey:     opts.APIKey,
		httpClient: httpClient,
		logger:     logger,
		tracer:     otel.Tracer("scanstream/internal/recognition"),
	}, nil
}

// Scan uploads an encoded frame for recognition.
func (c *Client) Scan(ctx context.Context, payload prepare.Payload, opts ScanOptions) (ResultList, error) {
	ctx, span := c.tracer.Start(ctx, "recognition.Scan", trace.WithAttributes(
		attribute.String("scan.filter", opts.Filter),
		attribute.Int("scan.payload_bytes", len(payload)),
	))
	defer span.End()

	params := url.Values{}
	if opts.Filter != "" {
		params.Set("filter", opts.Filter)
	}
	if opts.PerPage > 0 {
		params.Set("perPage", strconv.Itoa(opts.PerPage))
	}
	if opts.Debug {
		params.Set("debug", "true")
	}

	body, err := json.Marshal(map[string]string{"image": payload.String()})
	if err != nil {
		return nil, err
	}

	var out ResultList
	err = c.do(ctx, http.MethodPost, identificationsPath, params, body, &out)
	finishSpan(span, err)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("scan.matches", out.Matches()))
	return out, nil
}

// Identify looks up a value decoded locally, e.g. a QR code URL.
func (c *Client) Identify(ctx context.Context, typ, value string) (ResultList, error) {
	ctx, span := c.tracer.Start(ctx, "recognition.Identify", trace.WithAttributes(
		attribute.String("scan.type", typ),
	))
	defer span.End()

	params := url.Values{}
	params.Set("filter", "type="+typ+"&value="+value)

	var out ResultList
	err := c.do(ctx, http.MethodGet, identificationsPath, params, nil, &out)
	finishSpan(span, err)
	return out, err
}

// CreateAnonymousUser registers a new anonymous application user.
func (c *Client) CreateAnonymousUser(ctx context.Context) (User, error) {
	ctx, span := c.tracer.Start(ctx, "recognition.CreateAnonymousUser")
	defer span.End()

	params := url.Values{}
	params.Set("anonymous", "true")

	var out User
	err := c.do(ctx, http.MethodPost, anonymousUserPath, params, []byte(`{"anonymous":true}`), &out)
	finishSpan(span, err)
	if err != nil {
		return User{}, err
	}
	if out.APIKey == "" {
		return User{}, fmt.Errorf("anonymous user response carried no api key")
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, body []byte, out any) error {
	u := c.baseURL.JoinPath(path)
	u.RawQuery = params.Encode()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", path, err)
	}
	c.logger.Printf("recognition: %s %s -> %d in %s", method, path, resp.StatusCode, time.Since(started).Round(time.Millisecond))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{}
		if jsonErr := json.Unmarshal(data, apiErr); jsonErr != nil || len(apiErr.Errors) == 0 {
			apiErr.Errors = []string{strings.TrimSpace(string(data))}
		}
		apiErr.Status = resp.StatusCode
		return apiErr
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func finishSpan(span trace.Span, err error) {
	if err == nil {
		return
	}
	if IsInsufficientDetail(err) {
		span.SetAttributes(attribute.Bool("scan.insufficient_detail", true))
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
