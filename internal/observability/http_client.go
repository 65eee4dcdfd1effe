package observability

import (
	"net/http"
	"time"

	sentryhttpclient "github.com/getsentry/sentry-go/httpclient"
)

var tracePropagationTargets = []string{
	"api.phonepe.com",
	"api-preprod.phonepe.com",
	"api-m.paypal.com",
	"api-m.sandbox.paypal.com",
}

func WrapRoundTripper(base http.RoundTripper) http.RoundTripper {
	return sentryhttpclient.NewSentryRoundTripper(
		base,
		sentryhttpclient.WithTracePropagationTargets(tracePropagationTargets),
	)
}

// NewHTTPClient returns a traced client with a bounded timeout for outbound
// gateway calls. A timeout surfaces to callers as an upstream gateway error.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &http.Client{
		Transport: WrapRoundTripper(http.DefaultTransport),
		Timeout:   timeout,
	}
}
