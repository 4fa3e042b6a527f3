package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// maxImageBytes caps how much of a provider response is read into memory.
const maxImageBytes = 32 << 20

// Endpoint is one candidate way of calling a provider. Adapters may carry
// several candidates because some providers expose multiple endpoint/schema
// variants; they are probed in order within the adapter's single attempt
// budget.
type Endpoint struct {
	// URL is the target; BuildURL overrides it for providers that encode the
	// request into the URL itself.
	URL      string
	Method   string
	Headers  map[string]string
	BuildURL func(req Request) string
	// Body builds the JSON request payload. Nil means no body is sent.
	Body func(req Request) any
	// Binary marks endpoints whose successful response body is the image
	// itself rather than JSON.
	Binary bool
	// URLPaths and B64Paths are ordered extraction rules locating a hosted
	// image URL or an inline base64 payload in a JSON response.
	URLPaths []string
	B64Paths []string
}

// Options configures an HTTPAdapter.
type Options struct {
	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     zerolog.Logger
}

// HTTPAdapter implements Adapter for any HTTP image-generation API described
// by a list of Endpoint configurations.
type HTTPAdapter struct {
	id        string
	endpoints []Endpoint
	client    *http.Client
	timeout   time.Duration
	logger    zerolog.Logger
}

// NewHTTPAdapter constructs an adapter from endpoint configuration data.
func NewHTTPAdapter(id string, endpoints []Endpoint, opts Options) *HTTPAdapter {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &HTTPAdapter{
		id:        id,
		endpoints: endpoints,
		client:    client,
		timeout:   timeout,
		logger:    opts.Logger.With().Str("provider", id).Logger(),
	}
}

// ID returns the adapter identifier recorded on completed jobs.
func (a *HTTPAdapter) ID() string { return a.id }

// Generate probes the configured endpoints in order until one yields image
// bytes. The whole attempt shares one deadline so a hung endpoint cannot
// starve the fallback chain.
func (a *HTTPAdapter) Generate(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, &Failure{ProviderID: a.id, Reason: ReasonMalformed, Err: errors.New("empty prompt")}
	}
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	var last *Failure
	for i := range a.endpoints {
		res, fail := a.try(ctx, &a.endpoints[i], req)
		if fail == nil {
			return res, nil
		}
		a.logger.Debug().
			Str("endpoint", a.endpoints[i].URL).
			Str("reason", string(fail.Reason)).
			Err(fail.Err).
			Msg("endpoint attempt failed")
		last = fail
		if ctx.Err() != nil {
			break
		}
	}
	if last == nil {
		last = &Failure{ProviderID: a.id, Reason: ReasonNoImage, Err: errors.New("no endpoints configured")}
	}
	return nil, last
}

func (a *HTTPAdapter) try(ctx context.Context, ep *Endpoint, req Request) (*Result, *Failure) {
	target := ep.URL
	if ep.BuildURL != nil {
		target = ep.BuildURL(req)
	}
	method := ep.Method
	if method == "" {
		method = http.MethodPost
	}

	var body io.Reader
	if ep.Body != nil {
		payload, err := json.Marshal(ep.Body(req))
		if err != nil {
			return nil, &Failure{ProviderID: a.id, Reason: ReasonMalformed, Err: fmt.Errorf("encode request: %w", err)}
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, &Failure{ProviderID: a.id, Reason: ReasonMalformed, Err: fmt.Errorf("build request: %w", err)}
	}
	if ep.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range ep.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, &Failure{ProviderID: a.id, Reason: classifyTransport(err), Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, &Failure{ProviderID: a.id, Reason: classifyTransport(err), Err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode >= 300 {
		detail := strings.TrimSpace(string(raw))
		if len(detail) > 200 {
			detail = detail[:200]
		}
		return nil, &Failure{
			ProviderID: a.id,
			Reason:     ReasonBadStatus,
			HTTPStatus: resp.StatusCode,
			Err:        fmt.Errorf("status %d: %s", resp.StatusCode, detail),
		}
	}

	if ep.Binary {
		if len(raw) == 0 {
			return nil, &Failure{ProviderID: a.id, Reason: ReasonNoImage, Err: errors.New("empty image body")}
		}
		return &Result{ProviderID: a.id, Data: raw, ContentType: imageContentType(resp.Header.Get("Content-Type"))}, nil
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, &Failure{ProviderID: a.id, Reason: ReasonMalformed, Err: fmt.Errorf("decode response: %w", err)}
	}
	found, ok := extractImage(doc, ep.URLPaths, ep.B64Paths)
	if !ok {
		return nil, &Failure{ProviderID: a.id, Reason: ReasonNoImage, Err: errors.New("no recognizable image field in response body")}
	}
	if len(found.data) > 0 {
		return &Result{ProviderID: a.id, Data: found.data, ContentType: "image/png"}, nil
	}
	return a.download(ctx, found.url)
}

// download fetches a hosted image URL returned by a provider.
func (a *HTTPAdapter) download(ctx context.Context, imageURL string) (*Result, *Failure) {
	parsed, err := url.Parse(imageURL)
	if err != nil || parsed.Scheme == "" {
		return nil, &Failure{ProviderID: a.id, Reason: ReasonMalformed, Err: fmt.Errorf("invalid image url: %s", imageURL)}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, &Failure{ProviderID: a.id, Reason: ReasonMalformed, Err: fmt.Errorf("build download request: %w", err)}
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, &Failure{ProviderID: a.id, Reason: classifyTransport(err), Err: fmt.Errorf("download image: %w", err)}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, &Failure{ProviderID: a.id, Reason: ReasonBadStatus, HTTPStatus: resp.StatusCode, Err: fmt.Errorf("download status %d", resp.StatusCode)}
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, &Failure{ProviderID: a.id, Reason: classifyTransport(err), Err: fmt.Errorf("read image: %w", err)}
	}
	if len(data) == 0 {
		return nil, &Failure{ProviderID: a.id, Reason: ReasonNoImage, Err: errors.New("empty image download")}
	}
	return &Result{
		ProviderID:  a.id,
		Data:        data,
		ContentType: imageContentType(resp.Header.Get("Content-Type")),
		SourceURL:   parsed.String(),
	}, nil
}

func classifyTransport(err error) FailureReason {
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonTimeout
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return ReasonTimeout
	}
	return ReasonNetwork
}

func imageContentType(header string) string {
	header = strings.ToLower(strings.TrimSpace(header))
	if idx := strings.Index(header, ";"); idx >= 0 {
		header = strings.TrimSpace(header[:idx])
	}
	if strings.HasPrefix(header, "image/") {
		return header
	}
	return "image/png"
}

var _ Adapter = (*HTTPAdapter)(nil)
