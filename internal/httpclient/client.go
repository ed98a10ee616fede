// Package httpclient builds the HTTP client used to reach generation
// endpoints. Unless private addresses are allowed, every connection is
// checked after DNS resolution, so a public name that resolves to a
// loopback or internal address is refused at dial time.
package httpclient

import (
	"context"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/teranos/jitter/errors"
)

// DefaultMaxRedirects applies when Options.MaxRedirects is zero
const DefaultMaxRedirects = 10

// Options configure a Client
type Options struct {
	Timeout      time.Duration // 0 = none
	AllowPrivate bool          // loopback, RFC 1918 and link-local targets
	MaxRedirects int
}

// Client is an http.Client that refuses non-HTTP schemes, credentials in
// URLs and, unless allowed, private targets
type Client struct {
	*http.Client
	opts Options
}

// New creates a client
func New(opts Options) *Client {
	if opts.MaxRedirects <= 0 {
		opts.MaxRedirects = DefaultMaxRedirects
	}
	c := &Client{Client: &http.Client{Timeout: opts.Timeout}, opts: opts}

	c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= c.opts.MaxRedirects {
			return errors.Newf("stopped after %d redirects", c.opts.MaxRedirects)
		}
		return errors.Wrap(c.Check(req.URL), "redirect blocked")
	}

	if !opts.AllowPrivate {
		dialer := &net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
			Control:   refusePrivate,
		}
		c.Transport = &http.Transport{
			DialContext:           dialer.DialContext,
			MaxIdleConns:          16,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: time.Second,
		}
	}
	return c
}

// Check validates a target URL before any connection is made
func (c *Client) Check(u *url.URL) error {
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return errors.Newf("scheme %q not allowed", u.Scheme)
	}
	if u.User != nil {
		return errors.New("URL must not carry credentials")
	}
	host := u.Hostname()
	if host == "" {
		return errors.New("URL missing hostname")
	}
	if c.opts.AllowPrivate {
		return nil
	}
	if isLocalhost(host) {
		return errors.Newf("localhost access blocked: %s", host)
	}
	if addr, err := netip.ParseAddr(host); err == nil && Private(addr) {
		return errors.Newf("private address blocked: %s", addr)
	}
	return nil
}

// Do checks the request URL, then sends it
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if err := c.Check(req.URL); err != nil {
		return nil, errors.Wrap(err, "request blocked")
	}
	return c.Client.Do(req)
}

// Post sends body to rawURL with the given content type and headers
func (c *Client) Post(ctx context.Context, rawURL, contentType string, header http.Header, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(string(body)))
	if err != nil {
		return nil, errors.Wrapf(err, "build request for %s", rawURL)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", contentType)
	return c.Do(req)
}

func refusePrivate(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return errors.Wrap(err, "invalid address")
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return errors.Wrapf(err, "unexpected dial address %q", host)
	}
	if Private(addr) {
		return errors.Newf("private address blocked: %s", addr)
	}
	return nil
}

var reserved = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("240.0.0.0/4"),
	netip.MustParsePrefix("100.64.0.0/10"), // carrier-grade NAT
	netip.MustParsePrefix("2001:db8::/32"), // documentation
	netip.MustParsePrefix("fec0::/10"),     // deprecated site-local
}

// Private reports whether addr is loopback, private, link-local, multicast,
// unspecified or otherwise not a public unicast address
func Private(addr netip.Addr) bool {
	addr = addr.Unmap()
	if addr.IsLoopback() || addr.IsPrivate() || addr.IsLinkLocalUnicast() ||
		addr.IsLinkLocalMulticast() || addr.IsMulticast() || addr.IsUnspecified() {
		return true
	}
	for _, p := range reserved {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func isLocalhost(host string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	return host == "localhost" || host == "localhost.localdomain" || strings.HasSuffix(host, ".localhost")
}
