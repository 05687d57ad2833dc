// Package llmclient implements the Ollama-style HTTP text-generation
// backend the LLM Analysis strategy treats as a fallible, untrusted
// collaborator: a reused http.Client, context-scoped requests, apperr
// wrapping per step, and a tracing span per call.
package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"selector-healer/pkg/apperr"
	"selector-healer/pkg/logg"
	"selector-healer/pkg/tracing"
)

const tracerName = "llmclient"

// defaultAllowedHosts and defaultAllowedPorts are the loopback-only
// defaults; construction fails closed if the configured endpoint
// falls outside them.
var (
	defaultAllowedHosts = map[string]bool{
		"localhost": true,
		"127.0.0.1": true,
	}
	defaultAllowedPorts = map[string]bool{
		"80": true, "443": true, "8080": true, "11434": true,
	}
)

// Client is the Ollama HTTP backend: GET /api/tags for availability,
// POST /api/generate for non-streaming completion.
type Client struct {
	baseURL string
	model   string
	timeout time.Duration
	http    *http.Client
	logger  *zap.Logger
	tracer  trace.Tracer
}

// Params configures Client construction. AllowedHosts/AllowedPorts
// override the defaults when non-empty.
type Params struct {
	BaseURL      string
	Model        string
	Timeout      time.Duration
	AllowedHosts []string
	AllowedPorts []string
	Logger       *zap.Logger
}

// New validates the endpoint against the host/port allow-list before
// constructing the client. Construction fails if the check fails.
func New(p Params) (*Client, error) {
	const op = "llmclient.New"

	if err := validateEndpoint(p.BaseURL, p.AllowedHosts, p.AllowedPorts); err != nil {
		return nil, apperr.Wrap(op, apperr.CodeInvalidArgument, err, map[string]any{
			apperr.MetaReason: "endpoint_not_allowlisted",
			apperr.MetaURL:    p.BaseURL,
		})
	}

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		baseURL: p.BaseURL,
		model:   p.Model,
		timeout: timeout,
		http:    &http.Client{},
		logger:  logger.With(zap.String(logg.Layer, "llmclient")),
		tracer:  otel.Tracer(tracerName),
	}, nil
}

func validateEndpoint(raw string, allowedHosts, allowedPorts []string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse endpoint: %w", err)
	}

	hosts := defaultAllowedHosts
	if len(allowedHosts) > 0 {
		hosts = make(map[string]bool, len(allowedHosts))
		for _, h := range allowedHosts {
			hosts[h] = true
		}
	}

	ports := defaultAllowedPorts
	if len(allowedPorts) > 0 {
		ports = make(map[string]bool, len(allowedPorts))
		for _, p := range allowedPorts {
			ports[p] = true
		}
	}

	host := u.Hostname()
	if !hosts[host] {
		return fmt.Errorf("host %q not allow-listed", host)
	}

	port := u.Port()
	if port == "" {
		port = defaultPortFor(u.Scheme)
	}

	if !ports[port] {
		return fmt.Errorf("port %q not allow-listed", port)
	}

	return nil
}

func defaultPortFor(scheme string) string {
	if scheme == "https" {
		return "443"
	}

	return "80"
}

// Available probes GET /api/tags with a 5s timeout.
func (c *Client) Available(ctx context.Context) bool {
	const op = "Available"

	ctx, step := tracing.StartSpan(ctx, c.tracer, c.logger, op)

	var err error

	defer func() { step.End(err) }()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if reqErr != nil {
		err = reqErr

		return false
	}

	resp, doErr := c.http.Do(req)
	if doErr != nil {
		err = doErr

		return false
	}

	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

type generateRequest struct {
	Model   string                 `json:"model"`
	Prompt  string                 `json:"prompt"`
	Stream  bool                   `json:"stream"`
	Options generateRequestOptions `json:"options"`
}

type generateRequestOptions struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Generate runs one non-streaming completion, abortable by ctx or
// the client's own configured timeout, whichever elapses first.
func (c *Client) Generate(ctx context.Context, prompt string) (response string, err error) {
	const op = "Generate"

	ctx, step := tracing.StartSpan(ctx, c.tracer, c.logger, op)
	defer func() { step.End(err) }()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(generateRequest{
		Model:  c.model,
		Prompt: prompt,
		Stream: false,
		Options: generateRequestOptions{
			Temperature: 0.3,
			TopP:        0.9,
		},
	})
	if err != nil {
		return "", apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "marshal_request",
		})
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "build_request",
		})
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		code := apperr.CodeLLMUnavailable
		if ctx.Err() != nil {
			code = apperr.CodeLLMTimeout
		}

		c.logger.Error("generate request failed", zap.Error(err))

		return "", apperr.Wrap(op, code, err, map[string]any{
			apperr.MetaReason: "request_failed",
		})
	}

	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", apperr.Wrap(op, apperr.CodeLLMMalformed, err, map[string]any{
			apperr.MetaReason: "read_body",
		})
	}

	if resp.StatusCode != http.StatusOK {
		return "", apperr.Wrap(op, apperr.CodeLLMUnavailable, fmt.Errorf("status %d", resp.StatusCode), map[string]any{
			apperr.MetaReason: "non_200",
		})
	}

	var decoded generateResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", apperr.Wrap(op, apperr.CodeLLMMalformed, err, map[string]any{
			apperr.MetaReason: "unmarshal_response",
		})
	}

	step.AddEvent("generate.complete")

	return decoded.Response, nil
}
