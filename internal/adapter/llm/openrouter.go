package llm

import (
	"net/http"
)

// attributionTransport injects the HTTP-Referer and X-Title headers that
// OpenRouter uses to attribute traffic to an application.
type attributionTransport struct {
	base    http.RoundTripper
	referer string
	title   string
}

func (t *attributionTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// Clone the request to avoid mutating the original.
	clone := req.Clone(req.Context())
	if t.referer != "" {
		clone.Header.Set("HTTP-Referer", t.referer)
	}
	if t.title != "" {
		clone.Header.Set("X-Title", t.title)
	}
	return t.base.RoundTrip(clone)
}

// withAttribution wraps client's transport when referer or title is set.
func withAttribution(client *http.Client, referer, title string) *http.Client {
	if referer == "" && title == "" {
		return client
	}
	base := client.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	client.Transport = &attributionTransport{base: base, referer: referer, title: title}
	return client
}
