// Package mcp calls tools on a Model Context Protocol server over the
// streamable HTTP transport. It wraps the official Go SDK behind a small
// interface and re-establishes the session when the server drops it.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/docrouter/internal/resilience"
)

// Client defines the MCP operations used by the router.
type Client interface {
	CallTool(ctx context.Context, name string, args map[string]any) (*ToolResult, error)
}

// ToolResult is the result of a tools/call request.
type ToolResult struct {
	Content           []Content      `json:"content"`
	StructuredContent map[string]any `json:"structuredContent,omitempty"`
	IsError           bool           `json:"isError,omitempty"`
}

// Content is one content item of a tool result.
type Content struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
}

// Text joins the text content items of the result.
func (r *ToolResult) Text() string {
	var parts []string
	for _, c := range r.Content {
		if c.Type == "text" {
			parts = append(parts, c.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// Option configures a SessionClient.
type Option func(*SessionClient)

// WithHTTPClient sets the HTTP client used for every request.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *SessionClient) { c.http = hc }
}

// WithHeader adds a header sent on every request, e.g. Authorization.
func WithHeader(key, value string) Option {
	return func(c *SessionClient) { c.headers.Add(key, value) }
}

// WithClientInfo sets the implementation name and version reported
// during initialization.
func WithClientInfo(name, version string) Option {
	return func(c *SessionClient) {
		c.impl.Name = name
		c.impl.Version = version
	}
}

// SessionClient holds one MCP session, connecting on first use. When the
// server reports the session as gone the session is discarded and the call
// is retried once on a fresh one. Safe for concurrent use.
type SessionClient struct {
	url     string
	http    *http.Client
	headers http.Header
	impl    sdk.Implementation
	client  *sdk.Client

	mu      sync.Mutex
	session *sdk.ClientSession
}

var _ Client = (*SessionClient)(nil)

// NewClient creates a client for the MCP endpoint at url.
func NewClient(url string, opts ...Option) *SessionClient {
	c := &SessionClient{
		url:     url,
		http:    &http.Client{Timeout: 5 * time.Minute},
		headers: http.Header{},
		impl:    sdk.Implementation{Name: "docrouter", Version: "1.0.0"},
	}
	for _, o := range opts {
		o(c)
	}
	impl := c.impl
	c.client = sdk.NewClient(&impl, nil)
	return c
}

// CallTool invokes a tool. A result flagged isError is returned as an error.
func (c *SessionClient) CallTool(ctx context.Context, name string, args map[string]any) (*ToolResult, error) {
	res, err := c.call(ctx, name, args)
	if sessionLost(err) && ctx.Err() == nil {
		zap.L().Info("mcp: session lost, reconnecting",
			zap.String("url", c.url),
			zap.String("tool", name),
			zap.Error(err),
		)
		res, err = c.call(ctx, name, args)
	}
	if err != nil {
		return nil, classify(name, err)
	}

	out, err := convertResult(res)
	if err != nil {
		return nil, eris.Wrapf(err, "mcp: decode %s result", name)
	}
	if out.IsError {
		return out, eris.Errorf("mcp: tool %s failed: %s", name, out.Text())
	}
	return out, nil
}

// Close ends the current session, if any.
func (c *SessionClient) Close() error {
	c.mu.Lock()
	sess := c.session
	c.session = nil
	c.mu.Unlock()

	if sess == nil {
		return nil
	}
	if err := sess.Close(); err != nil && !sessionLost(err) {
		return eris.Wrap(err, "mcp: close session")
	}
	return nil
}

func (c *SessionClient) call(ctx context.Context, name string, args map[string]any) (*sdk.CallToolResult, error) {
	sess, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}
	res, err := sess.CallTool(ctx, &sdk.CallToolParams{Name: name, Arguments: args})
	if sessionLost(err) {
		c.drop(sess)
	}
	return res, err
}

func (c *SessionClient) connect(ctx context.Context) (*sdk.ClientSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != nil {
		return c.session, nil
	}
	transport := &sdk.StreamableClientTransport{
		Endpoint:             c.url,
		HTTPClient:           c.httpClient(),
		DisableStandaloneSSE: true,
	}
	sess, err := c.client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, eris.Wrap(err, "mcp: initialize")
	}
	c.session = sess
	zap.L().Debug("mcp: session established",
		zap.String("url", c.url),
		zap.String("session_id", sess.ID()),
	)
	return sess, nil
}

// drop forgets sess if it is still the current session.
func (c *SessionClient) drop(sess *sdk.ClientSession) {
	c.mu.Lock()
	if c.session == sess {
		c.session = nil
	}
	c.mu.Unlock()
	_ = sess.Close()
}

func (c *SessionClient) httpClient() *http.Client {
	if len(c.headers) == 0 {
		return c.http
	}
	hc := *c.http
	base := hc.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	hc.Transport = &headerTransport{base: base, headers: c.headers}
	return &hc
}

type headerTransport struct {
	base    http.RoundTripper
	headers http.Header
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, vs := range t.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	return t.base.RoundTrip(req)
}

func sessionLost(err error) bool {
	return errors.Is(err, sdk.ErrSessionMissing) || errors.Is(err, sdk.ErrConnectionClosed)
}

// classify marks transport failures as transient so the resilience guard
// retries them. Errors reported by the server itself are returned as is.
func classify(name string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return eris.Wrapf(err, "mcp: call %s", name)
	}
	var wire *jsonrpc.Error
	if errors.As(err, &wire) {
		return eris.Wrapf(err, "mcp: call %s", name)
	}
	return resilience.NewTransientError(eris.Wrapf(err, "mcp: call %s", name), 0)
}

func convertResult(res *sdk.CallToolResult) (*ToolResult, error) {
	out := &ToolResult{IsError: res.IsError}
	for _, item := range res.Content {
		switch v := item.(type) {
		case *sdk.TextContent:
			out.Content = append(out.Content, Content{Type: "text", Text: v.Text})
		case *sdk.ImageContent:
			out.Content = append(out.Content, Content{Type: "image", MimeType: v.MIMEType})
		case *sdk.AudioContent:
			out.Content = append(out.Content, Content{Type: "audio", MimeType: v.MIMEType})
		}
	}

	switch sc := res.StructuredContent.(type) {
	case nil:
	case map[string]any:
		out.StructuredContent = sc
	default:
		raw, err := json.Marshal(sc)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &out.StructuredContent); err != nil {
			return nil, err
		}
	}
	return out, nil
}
