package structuring

import (
	"net/http"

	"menu-scan/pkg/logging"
)

// requestIDTransport forwards the request ID from the call context as an
// X-Request-ID header on outgoing provider requests.
type requestIDTransport struct {
	base http.RoundTripper
}

func (t *requestIDTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	if id := logging.RequestID(req.Context()); id != "" && req.Header.Get("X-Request-ID") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("X-Request-ID", id)
	}
	return base.RoundTrip(req)
}

func newInstrumentedHTTPClient() *http.Client {
	return &http.Client{
		Transport: &requestIDTransport{base: http.DefaultTransport},
	}
}
