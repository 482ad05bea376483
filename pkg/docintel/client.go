// Package docintel is a client for the Azure AI Document Intelligence REST
// API (formerly Form Recognizer). It submits documents to a prebuilt or
// custom model and polls the long-running analyze operation.
package docintel

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/docrouter/internal/resilience"
)

const (
	defaultAPIVersion   = "2024-11-30"
	defaultPollInterval = time.Second
	defaultTimeout      = 2 * time.Minute
	defaultRatePerSec   = 15

	serviceName = "docintel"
)

// Client defines the Document Intelligence operations used by the router.
type Client interface {
	Analyze(ctx context.Context, req AnalyzeRequest) (*AnalyzeResult, error)
}

// AnalyzeRequest identifies the document to analyze. Exactly one of
// URLSource or Document must be set.
type AnalyzeRequest struct {
	ModelID   string
	URLSource string
	Document  []byte
	// Pages limits analysis to a page range such as "1-3".
	Pages string
}

// Option configures the httpClient.
type Option func(*httpClient)

// WithAPIVersion overrides the REST API version.
func WithAPIVersion(v string) Option {
	return func(c *httpClient) {
		if v != "" {
			c.apiVersion = v
		}
	}
}

// WithHTTPClient sets a custom *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithPollInterval sets the delay between operation status checks.
func WithPollInterval(d time.Duration) Option {
	return func(c *httpClient) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithTimeout bounds a whole analyze call (submit plus polling) when the
// caller's context has no deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRateLimit sets the initial request rate per second.
func WithRateLimit(perSecond float64) Option {
	return func(c *httpClient) {
		if perSecond > 0 {
			c.limiter = NewAdaptiveLimiter(perSecond)
		}
	}
}

type httpClient struct {
	endpoint     string
	key          string
	apiVersion   string
	pollInterval time.Duration
	timeout      time.Duration
	http         *http.Client
	limiter      *AdaptiveLimiter
}

// NewClient creates a Document Intelligence client for the resource at
// endpoint (e.g. https://<name>.cognitiveservices.azure.com).
func NewClient(endpoint, key string, opts ...Option) Client {
	c := &httpClient{
		endpoint:     strings.TrimRight(endpoint, "/"),
		key:          key,
		apiVersion:   defaultAPIVersion,
		pollInterval: defaultPollInterval,
		timeout:      defaultTimeout,
		http: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: NewAdaptiveLimiter(defaultRatePerSec),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type analyzeBody struct {
	URLSource    string `json:"urlSource,omitempty"`
	Base64Source string `json:"base64Source,omitempty"`
}

func (c *httpClient) Analyze(ctx context.Context, req AnalyzeRequest) (*AnalyzeResult, error) {
	if req.ModelID == "" {
		return nil, eris.New("docintel: model id is required")
	}
	if (req.URLSource == "") == (len(req.Document) == 0) {
		return nil, eris.New("docintel: exactly one of url source or document is required")
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	opURL, err := c.submit(ctx, req)
	if err != nil {
		return nil, eris.Wrapf(err, "docintel: submit %s", req.ModelID)
	}

	result, err := c.poll(ctx, opURL)
	if err != nil {
		return nil, eris.Wrapf(err, "docintel: poll %s", req.ModelID)
	}
	return result, nil
}

func (c *httpClient) submit(ctx context.Context, req AnalyzeRequest) (string, error) {
	body := analyzeBody{URLSource: req.URLSource}
	if len(req.Document) > 0 {
		body.Base64Source = base64.StdEncoding.EncodeToString(req.Document)
	}
	buf, err := json.Marshal(body)
	if err != nil {
		return "", eris.Wrap(err, "marshal request")
	}

	q := url.Values{}
	q.Set("api-version", c.apiVersion)
	if req.Pages != "" {
		q.Set("pages", req.Pages)
	}
	u := fmt.Sprintf("%s/documentintelligence/documentModels/%s:analyze?%s",
		c.endpoint, url.PathEscape(req.ModelID), q.Encode())

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(buf))
	if err != nil {
		return "", eris.Wrap(err, "create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, _, err := c.do(httpReq)
	if err != nil {
		return "", err
	}

	opURL := resp.Header.Get("Operation-Location")
	if opURL == "" {
		return "", eris.New("response has no Operation-Location header")
	}
	return opURL, nil
}

func (c *httpClient) poll(ctx context.Context, opURL string) (*AnalyzeResult, error) {
	for {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, opURL, nil)
		if err != nil {
			return nil, eris.Wrap(err, "create request")
		}

		resp, data, err := c.do(httpReq)
		if err != nil {
			return nil, err
		}

		var op AnalyzeOperation
		if err := json.Unmarshal(data, &op); err != nil {
			return nil, eris.Wrap(err, "decode operation")
		}

		switch op.Status {
		case StatusSucceeded:
			if op.AnalyzeResult == nil {
				return nil, eris.New("operation succeeded without a result")
			}
			return op.AnalyzeResult, nil
		case StatusFailed, StatusCanceled:
			if op.Error != nil {
				return nil, eris.Errorf("operation %s: %s: %s", op.Status, op.Error.Code, op.Error.Message)
			}
			return nil, eris.Errorf("operation %s", op.Status)
		}

		wait := c.pollInterval
		if ra := retryAfter(resp); ra > 0 {
			wait = ra
		}
		zap.L().Debug("docintel: operation pending", zap.String("status", op.Status), zap.Duration("wait", wait))

		select {
		case <-ctx.Done():
			return nil, eris.Wrap(ctx.Err(), "operation timed out")
		case <-time.After(wait):
		}
	}
}

// do sends req after waiting on the limiter and returns the response with
// its body read. Non-2xx statuses become resilience.HTTPError values.
func (c *httpClient) do(req *http.Request) (*http.Response, []byte, error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return nil, nil, eris.Wrap(err, "rate limit wait")
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", c.key)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, eris.Wrap(err, "execute request")
	}
	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, eris.Wrap(err, "read response body")
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		c.limiter.OnThrottled()
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, nil, resilience.HTTPError(serviceName, resp.StatusCode, string(data))
	}
	c.limiter.OnSuccess()
	return resp, data, nil
}

func retryAfter(resp *http.Response) time.Duration {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	var secs int
	if _, err := fmt.Sscanf(v, "%d", &secs); err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
