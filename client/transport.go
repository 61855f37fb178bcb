package client

import (
	"net/http"
	"net/http/cookiejar"
	"net/url"

	"golang.org/x/net/publicsuffix"
)

// XHRTransport wraps an http.RoundTripper to mark requests as XMLHttpRequests
// and disable response caching
type XHRTransport struct {
	Base http.RoundTripper
}

// RoundTrip implements http.RoundTripper
func (t *XHRTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// Clone the request to avoid mutating the original
	req2 := req.Clone(req.Context())
	req2.Header.Set("X-Requested-With", "XMLHttpRequest")
	req2.Header.Set("Cache-Control", "no-cache")
	req2.Header.Set("Pragma", "no-cache")

	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	return base.RoundTrip(req2)
}

// NewXHRTransport creates an XHRTransport over the default transport
func NewXHRTransport() *XHRTransport {
	return &XHRTransport{Base: http.DefaultTransport}
}

// NewXHRTransportWithBase creates an XHRTransport with a custom base transport
func NewXHRTransportWithBase(base http.RoundTripper) *XHRTransport {
	return &XHRTransport{Base: base}
}

// sameOriginRedirects refuses to follow redirects that leave the origin of the
// original request, so credentials never travel to another site. The redirect
// response itself is returned to the caller.
func sameOriginRedirects(req *http.Request, via []*http.Request) error {
	if len(via) == 0 {
		return nil
	}
	if len(via) >= 10 {
		return http.ErrUseLastResponse
	}
	if !sameOrigin(req.URL, via[0].URL) {
		return http.ErrUseLastResponse
	}
	return nil
}

func sameOrigin(a, b *url.URL) bool {
	return a.Scheme == b.Scheme && a.Host == b.Host
}

// newCookieJar returns a jar that keeps the backend's session cookies between calls
func newCookieJar() http.CookieJar {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		// cookiejar.New never fails with these options
		return nil
	}
	return jar
}
