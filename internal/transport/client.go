// Package transport is the HTTP boundary of bankrotscan.
//
// It owns the http.Client (connection pool, cookie jar, timeout), injects
// browser-like identification headers into every request, optionally routes
// traffic through a SOCKS5 egress proxy, and caps response bodies. It has no
// retry logic of its own; see package fetch for that.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/proxy"

	"github.com/nao1215/bankrotscan/internal/log"
)

const (
	// DefaultTimeout bounds one HTTP exchange, including reading the body.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxBodySize caps how much of a response body is read.
	DefaultMaxBodySize = 5 * 1024 * 1024

	// maxRedirects stops redirect loops on the upstream site.
	maxRedirects = 10
)

// DefaultHeaders are sent with every request unless overridden.
// The registry rejects requests that do not look like they come from its
// own single-page frontend.
var DefaultHeaders = map[string]string{
	"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",
	"Accept":          "application/json, text/plain, */*",
	"Accept-Language": "ru-RU,ru;q=0.9,en-US;q=0.8,en;q=0.7",
	"Origin":          "https://bankrot.fedresurs.ru",
}

var (
	// ErrInvalidProxyAddress is returned for a proxy that is neither
	// "host:port" nor a socks5:// URL.
	ErrInvalidProxyAddress = errors.New("invalid proxy address: expected host:port or socks5://[user:pass@]host:port")

	// ErrBodyTooLarge is returned when a response exceeds the body limit.
	ErrBodyTooLarge = errors.New("response body exceeds size limit")
)

// Client performs GET requests against the registry.
type Client struct {
	http        *http.Client
	maxBodySize int64
	logger      *slog.Logger
}

// Option configures a Client.
type Option func(*options)

type options struct {
	timeout     time.Duration
	proxy       string
	headers     map[string]string
	cookie      string
	maxBodySize int64
	logger      *slog.Logger
	base        http.RoundTripper
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithProxy routes connections through a SOCKS5 proxy.
// An empty address means a direct connection.
func WithProxy(address string) Option {
	return func(o *options) {
		o.proxy = address
	}
}

// WithHeaders adds or overrides request headers. An empty value removes
// a default header.
func WithHeaders(headers map[string]string) Option {
	return func(o *options) {
		for k, v := range headers {
			o.headers[http.CanonicalHeaderKey(k)] = v
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(o *options) {
		if ua != "" {
			o.headers["User-Agent"] = ua
		}
	}
}

// WithCookie sends a fixed cookie string with every request, in addition
// to cookies collected by the jar.
func WithCookie(cookie string) Option {
	return func(o *options) {
		o.cookie = cookie
	}
}

// WithMaxBodySize caps response bodies. Zero keeps the default.
func WithMaxBodySize(n int64) Option {
	return func(o *options) {
		if n > 0 {
			o.maxBodySize = n
		}
	}
}

// WithLogger sets the logger for request tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// withRoundTripper replaces the network transport. Used by tests.
func withRoundTripper(rt http.RoundTripper) Option {
	return func(o *options) {
		o.base = rt
	}
}

// New creates a Client. It validates the proxy address but does not
// contact the proxy or the registry.
func New(opts ...Option) (*Client, error) {
	o := &options{
		timeout:     DefaultTimeout,
		headers:     make(map[string]string, len(DefaultHeaders)),
		maxBodySize: DefaultMaxBodySize,
		logger:      log.Discard(),
	}
	for k, v := range DefaultHeaders {
		o.headers[k] = v
	}
	for _, opt := range opts {
		opt(o)
	}

	base := o.base
	if base == nil {
		t, err := newNetTransport(o.proxy)
		if err != nil {
			return nil, err
		}
		base = t
	}

	jar, _ := cookiejar.New(nil) //nolint:errcheck // cookiejar.New only fails with invalid options

	return &Client{
		http: &http.Client{
			Transport: &headerInjectingTransport{
				base:    base,
				cookie:  o.cookie,
				headers: o.headers,
			},
			Timeout: o.timeout,
			Jar:     jar,
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		maxBodySize: o.maxBodySize,
		logger:      o.logger,
	}, nil
}

func newNetTransport(proxyAddress string) (*http.Transport, error) {
	t := &http.Transport{
		Proxy:               nil,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	if proxyAddress == "" {
		t.DialContext = (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext
		return t, nil
	}

	dialer, err := socksDialer(proxyAddress)
	if err != nil {
		return nil, err
	}
	t.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		if cd, ok := dialer.(proxy.ContextDialer); ok {
			return cd.DialContext(ctx, network, addr)
		}
		return dialer.Dial(network, addr)
	}
	return t, nil
}

// socksDialer builds a SOCKS5 dialer from "host:port" or a socks5:// URL
// that may carry credentials.
func socksDialer(address string) (proxy.Dialer, error) {
	hostport := address
	var auth *proxy.Auth

	if strings.Contains(address, "://") {
		u, err := url.Parse(address)
		if err != nil || (u.Scheme != "socks5" && u.Scheme != "socks5h") {
			return nil, ErrInvalidProxyAddress
		}
		hostport = u.Host
		if u.User != nil {
			pass, _ := u.User.Password()
			auth = &proxy.Auth{User: u.User.Username(), Password: pass}
		}
	}
	if !isValidHostPort(hostport) {
		return nil, ErrInvalidProxyAddress
	}

	d, err := proxy.SOCKS5("tcp", hostport, auth, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
	}
	return d, nil
}

func isValidHostPort(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	return err == nil && n >= 1 && n <= 65535
}

// Get performs a GET request and returns the status code and body.
// An error means no HTTP response was obtained (network failure, timeout,
// oversized body); non-2xx statuses are not errors.
func (c *Client) Get(ctx context.Context, rawURL string, header http.Header) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize+1))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > c.maxBodySize {
		return resp.StatusCode, nil, ErrBodyTooLarge
	}

	c.logger.Debug("http get",
		"url", rawURL,
		"status", resp.StatusCode,
		"bytes", len(body),
		"elapsed", time.Since(start).Round(time.Millisecond))
	return resp.StatusCode, body, nil
}

// Warmup loads a frontend page once so that the cookie jar picks up the
// session cookies the registry hands out to browsers.
func (c *Client) Warmup(ctx context.Context, pageURL string) error {
	header := http.Header{}
	header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	status, _, err := c.Get(ctx, pageURL, header)
	if err != nil {
		return fmt.Errorf("warmup %s: %w", pageURL, err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("warmup %s: unexpected status %d", pageURL, status)
	}
	return nil
}

// headerInjectingTransport sets the configured headers on every request
// that does not already carry them.
type headerInjectingTransport struct {
	base    http.RoundTripper
	cookie  string
	headers map[string]string
}

// RoundTrip implements http.RoundTripper.
func (t *headerInjectingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())

	for key, value := range t.headers {
		if clone.Header.Get(key) != "" {
			continue
		}
		if value == "" {
			clone.Header.Del(key)
			continue
		}
		clone.Header.Set(key, value)
	}

	if t.cookie != "" {
		if existing := clone.Header.Get("Cookie"); existing != "" {
			clone.Header.Set("Cookie", existing+"; "+t.cookie)
		} else {
			clone.Header.Set("Cookie", t.cookie)
		}
	}

	return t.base.RoundTrip(clone)
}
