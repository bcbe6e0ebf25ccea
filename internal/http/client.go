package http

import (
	"crypto/tls"
	nethttp "net/http"
	"os"

	"golang.org/x/net/http2"

	"github.com/preservica-tools/preservica-upload/internal/config"
)

// CreateOptimizedClient creates an HTTP client tuned for large package
// uploads, on top of the proxy configuration from ConfigureHTTPClient.
//
// Key features:
//   - Connection pool sized for concurrent multipart parts
//   - Extended TLS handshake timeout for slow networks
//   - HTTP/2 with runtime toggle (DISABLE_HTTP2 env var)
//   - Disabled compression (packages are already zip archives)
//
// The same client backs both the REST API and the object-storage uploads
// so they share proxy behavior. If cfg is nil no proxy is configured.
func CreateOptimizedClient(cfg *config.Config) (*nethttp.Client, error) {
	var baseClient *nethttp.Client
	var err error

	if cfg != nil {
		baseClient, err = ConfigureHTTPClient(cfg)
		if err != nil {
			return nil, err
		}
	} else {
		baseClient = &nethttp.Client{Transport: newBaseTransport()}
	}

	tr, ok := baseClient.Transport.(*nethttp.Transport)
	if !ok {
		// NTLM mode wraps the transport in ntlmssp.Negotiator; leave it alone.
		// Per-operation timeouts come from the context.
		baseClient.Timeout = 0
		return baseClient, nil
	}

	tr.MaxIdleConns = 64
	tr.MaxIdleConnsPerHost = 16
	tr.MaxConnsPerHost = 16

	tr.DisableCompression = true
	tr.ForceAttemptHTTP2 = true

	_ = http2.ConfigureTransport(tr)

	if os.Getenv("DISABLE_HTTP2") == "true" || (proxyActive(cfg) && os.Getenv("FORCE_HTTP2") != "true") {
		// Proxies often break HTTP/2 multiplexing mid-transfer
		tr.ForceAttemptHTTP2 = false
		tr.TLSNextProto = make(map[string]func(string, *tls.Conn) nethttp.RoundTripper)
	}

	baseClient.Transport = tr
	baseClient.Timeout = 0 // No overall timeout - each operation sets its own timeout

	return baseClient, nil
}

// proxyActive reports whether requests will go through a proxy.
// Trusts the configured mode first; only "system" mode looks at env vars.
func proxyActive(cfg *config.Config) bool {
	envProxy := os.Getenv("HTTP_PROXY") != "" || os.Getenv("HTTPS_PROXY") != "" ||
		os.Getenv("http_proxy") != "" || os.Getenv("https_proxy") != ""

	if cfg == nil {
		return false
	}
	switch cfg.ProxyMode {
	case "no-proxy", "":
		return false
	case "system":
		return envProxy
	default:
		return true
	}
}
