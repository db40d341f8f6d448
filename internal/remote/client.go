// Package remote is the HTTP client for the stock-management assistant
// service. Every call goes through one response normalizer: callers get
// either a decoded body, a *StatusError carrying a human-readable message,
// or an error wrapping ErrTransport. No call is retried.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	configPath = "/config/"
	chatPath   = "/chat/"

	// RequestIDHeader carries a per-request correlation id.
	RequestIDHeader = "X-Request-ID"

	tracerName = "github.com/flemzord/stockchat/internal/remote"
)

// Options configures a Client.
type Options struct {
	// BaseURL is the service address, e.g. "http://localhost:8000" (required).
	BaseURL string

	// Timeout bounds dial, TLS handshake and response headers. Zero leaves
	// the transport defaults in place.
	Timeout time.Duration

	// HTTPClient overrides the client built from Timeout.
	HTTPClient *http.Client

	Logger         *slog.Logger
	Metrics        *Metrics
	TracerProvider trace.TracerProvider
}

// Client talks to the assistant service. It is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
	metrics *Metrics
	tracer  trace.Tracer
}

// New validates opts and builds a Client.
func New(opts Options) (*Client, error) {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		return nil, errors.New("remote: base_url is required")
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("remote: invalid base_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("remote: base_url scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, errors.New("remote: base_url must include a host")
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
		if opts.Timeout > 0 {
			hc.Transport = &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				DialContext:           (&net.Dialer{Timeout: opts.Timeout}).DialContext,
				TLSHandshakeTimeout:   opts.Timeout,
				ResponseHeaderTimeout: opts.Timeout,
			}
		}
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tp := opts.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	return &Client{
		baseURL: base,
		http:    hc,
		logger:  logger,
		metrics: opts.Metrics,
		tracer:  tp.Tracer(tracerName),
	}, nil
}

// BaseURL returns the normalized service address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// FetchConfiguration reads the stored configuration. Absent fields decode
// to empty strings.
func (c *Client) FetchConfiguration(ctx context.Context) (Configuration, error) {
	var cfg Configuration
	if err := c.do(ctx, http.MethodGet, configPath, nil, &cfg); err != nil {
		return Configuration{}, err
	}
	return cfg, nil
}

// SaveConfiguration writes cfg and returns the service's acknowledgement
// body verbatim (nil when the body is empty).
func (c *Client) SaveConfiguration(ctx context.Context, cfg Configuration) (json.RawMessage, error) {
	var ack json.RawMessage
	if err := c.do(ctx, http.MethodPost, configPath, cfg, &ack); err != nil {
		return nil, err
	}
	return ack, nil
}

// SendChatTurn posts one user message. session is "" until the service has
// assigned one.
func (c *Client) SendChatTurn(ctx context.Context, message, session string) (ChatReply, error) {
	var reply ChatReply
	req := chatRequest{Message: message, Session: session}
	if err := c.do(ctx, http.MethodPost, chatPath, req, &reply); err != nil {
		return ChatReply{}, err
	}
	return reply, nil
}

// do performs one request and routes the response through the normalizer.
func (c *Client) do(ctx context.Context, method, path string, in, out any) (err error) {
	requestID := uuid.Must(uuid.NewV7()).String()

	ctx, span := c.tracer.Start(ctx, "remote "+method+" "+path,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.path", path),
			attribute.String("stockchat.request_id", requestID),
		),
	)
	defer span.End()

	start := time.Now()
	outcome := outcomeOK
	defer func() {
		elapsed := time.Since(start)
		c.metrics.observe(path, outcome, elapsed)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			c.logger.Debug("remote: request failed",
				"method", method, "path", path, "request_id", requestID,
				"duration", elapsed, "error", err)
			return
		}
		c.logger.Debug("remote: request completed",
			"method", method, "path", path, "request_id", requestID, "duration", elapsed)
	}()

	var body io.Reader
	if in != nil {
		data, mErr := json.Marshal(in)
		if mErr != nil {
			outcome = outcomeDecode
			return fmt.Errorf("remote: marshaling request: %w", mErr)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		outcome = outcomeTransport
		return fmt.Errorf("remote: creating request: %w", err)
	}
	if in != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(RequestIDHeader, requestID)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		outcome = outcomeTransport
		return fmt.Errorf("%w: %s %s: %w", ErrTransport, method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		outcome = outcomeStatus
		return normalizeError(resp.StatusCode, resp.Body)
	}

	if err := decodeBody(resp.Body, out); err != nil {
		outcome = outcomeDecode
		return err
	}
	return nil
}

// decodeBody decodes a successful JSON body into out. An empty body leaves
// out untouched.
func decodeBody(body io.Reader, out any) error {
	if out == nil {
		_, _ = io.Copy(io.Discard, body)
		return nil
	}
	if err := json.NewDecoder(body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("remote: decoding response: %w", err)
	}
	return nil
}
