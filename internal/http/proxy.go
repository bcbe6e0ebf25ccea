package http

import (
	"crypto/tls"
	"fmt"
	"net"
	nethttp "net/http"
	"net/url"
	"strings"
	"time"

	ntlmssp "github.com/Azure/go-ntlmssp"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http/httpproxy"

	"github.com/preservica-tools/preservica-upload/internal/config"
	"github.com/preservica-tools/preservica-upload/internal/constants"
)

// defaultClientTimeout bounds API calls made without a context deadline.
// CreateOptimizedClient clears it for uploads.
const defaultClientTimeout = 300 * time.Second

func newBaseTransport() *nethttp.Transport {
	return &nethttp.Transport{
		DialContext: (&net.Dialer{
			Timeout:   constants.HTTPDialTimeout,
			KeepAlive: constants.HTTPDialKeepAlive,
		}).DialContext,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   100,
		MaxConnsPerHost:       100,
		IdleConnTimeout:       constants.HTTPIdleConnTimeout,
		TLSHandshakeTimeout:   constants.HTTPTLSHandshakeTimeout,
		ExpectContinueTimeout: constants.HTTPExpectContinueTimeout,
	}
}

// ConfigureHTTPClient configures an HTTP client with proxy settings
func ConfigureHTTPClient(cfg *config.Config) (*nethttp.Client, error) {
	transport := newBaseTransport()

	switch strings.ToLower(cfg.ProxyMode) {
	case "no-proxy", "":
		transport.Proxy = nil

	case "system":
		transport.Proxy = nethttp.ProxyFromEnvironment

	case "ntlm":
		if cfg.ProxyHost == "" {
			log.Warn().Msg("Proxy mode is NTLM but host is missing - falling back to no-proxy mode")
			transport.Proxy = nil
			break
		}

		transport.Proxy = proxyFuncWithBypass(buildProxyURL(cfg), cfg.NoProxy)

		return &nethttp.Client{
			Transport: ntlmssp.Negotiator{
				RoundTripper: transport,
			},
			Timeout: defaultClientTimeout,
		}, nil

	case "basic":
		if cfg.ProxyHost == "" {
			log.Warn().Msg("Proxy mode is basic but host is missing - falling back to no-proxy mode")
			transport.Proxy = nil
			break
		}

		transport.Proxy = proxyFuncWithBypass(buildProxyURL(cfg), cfg.NoProxy)

		if cfg.ProxyUser != "" && cfg.ProxyPassword == "" {
			log.Warn().Msg("Proxy user configured but password missing - proxy auth disabled until password is set")
		}

	default:
		return nil, fmt.Errorf("unsupported proxy mode: %s", cfg.ProxyMode)
	}

	return &nethttp.Client{
		Transport: transport,
		Timeout:   defaultClientTimeout,
	}, nil
}

// buildProxyURL constructs a proxy URL from config
func buildProxyURL(cfg *config.Config) *url.URL {
	port := cfg.ProxyPort
	if port == 0 {
		port = 8080 // Default proxy port
	}

	proxyURL := &url.URL{
		Scheme: "http",
		Host:   fmt.Sprintf("%s:%d", cfg.ProxyHost, port),
	}

	// Only embed credentials if both user AND password are provided.
	// An empty password in the URL makes some proxies reject the request.
	if cfg.ProxyUser != "" && cfg.ProxyPassword != "" {
		proxyURL.User = url.UserPassword(cfg.ProxyUser, cfg.ProxyPassword)
	}

	return proxyURL
}

// proxyFuncWithBypass returns a proxy function that respects the NoProxy bypass list.
// If noProxy is empty, behaves identically to nethttp.ProxyURL.
// When noProxy is set, uses golang.org/x/net/http/httpproxy to match hosts/CIDRs.
func proxyFuncWithBypass(proxyURL *url.URL, noProxy string) func(*nethttp.Request) (*url.URL, error) {
	if noProxy == "" {
		return nethttp.ProxyURL(proxyURL)
	}
	cfg := httpproxy.Config{
		HTTPProxy:  proxyURL.String(),
		HTTPSProxy: proxyURL.String(),
		NoProxy:    noProxy,
	}
	proxyFunc := cfg.ProxyFunc()
	return func(req *nethttp.Request) (*url.URL, error) {
		result, err := proxyFunc(req.URL)
		if result == nil {
			log.Debug().Str("host", req.URL.Host).Msg("proxy bypass (direct connection)")
		} else {
			log.Debug().Str("host", req.URL.Host).Str("proxy", result.Host).Msg("proxied")
		}
		return result, err
	}
}

// NeedsProxyPassword returns true if the proxy configuration requires a password
// but one has not been provided.
func NeedsProxyPassword(cfg *config.Config) bool {
	mode := strings.ToLower(cfg.ProxyMode)
	if mode != "basic" && mode != "ntlm" {
		return false
	}
	return cfg.ProxyUser != "" && cfg.ProxyPassword == ""
}
