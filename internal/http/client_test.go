package http

import (
	nethttp "net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	ntlmssp "github.com/Azure/go-ntlmssp"
	"github.com/rs/zerolog"

	"github.com/preservica-tools/preservica-upload/internal/config"
)

func TestConfigureHTTPClient_Modes(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.Config
		wantNTLM bool
		wantErr  bool
	}{
		{name: "no proxy", cfg: config.Config{ProxyMode: "no-proxy"}},
		{name: "empty mode", cfg: config.Config{}},
		{name: "system", cfg: config.Config{ProxyMode: "system"}},
		{name: "basic", cfg: config.Config{ProxyMode: "basic", ProxyHost: "proxy.corp", ProxyPort: 3128}},
		{name: "ntlm", cfg: config.Config{ProxyMode: "ntlm", ProxyHost: "proxy.corp"}, wantNTLM: true},
		{name: "ntlm without host falls back", cfg: config.Config{ProxyMode: "ntlm"}},
		{name: "unknown", cfg: config.Config{ProxyMode: "socks"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := ConfigureHTTPClient(&tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			_, isNTLM := client.Transport.(ntlmssp.Negotiator)
			if isNTLM != tt.wantNTLM {
				t.Errorf("NTLM transport = %v, want %v", isNTLM, tt.wantNTLM)
			}
		})
	}
}

func TestBuildProxyURL(t *testing.T) {
	u := buildProxyURL(&config.Config{ProxyHost: "proxy.corp", ProxyUser: "alice", ProxyPassword: "pw"})
	if u.Host != "proxy.corp:8080" {
		t.Errorf("Host = %q, want default port 8080", u.Host)
	}
	if u.User == nil || u.User.Username() != "alice" {
		t.Errorf("expected embedded credentials, got %v", u.User)
	}

	u = buildProxyURL(&config.Config{ProxyHost: "proxy.corp", ProxyPort: 3128, ProxyUser: "alice"})
	if u.User != nil {
		t.Error("credentials without password should not be embedded")
	}
}

func TestNeedsProxyPassword(t *testing.T) {
	if !NeedsProxyPassword(&config.Config{ProxyMode: "basic", ProxyUser: "alice"}) {
		t.Error("basic proxy with user and no password needs a password")
	}
	if NeedsProxyPassword(&config.Config{ProxyMode: "system", ProxyUser: "alice"}) {
		t.Error("system proxy never needs a password")
	}
}

func TestCreateOptimizedClient_NoTimeout(t *testing.T) {
	client, err := CreateOptimizedClient(&config.Config{ProxyMode: "no-proxy"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.Timeout != 0 {
		t.Errorf("Timeout = %v, want 0", client.Timeout)
	}
	tr, ok := client.Transport.(*nethttp.Transport)
	if !ok {
		t.Fatalf("unexpected transport type %T", client.Transport)
	}
	if !tr.DisableCompression {
		t.Error("compression should be disabled for package uploads")
	}
}

func TestNewRetryingClient_RetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(nethttp.StatusBadGateway)
			return
		}
		w.WriteHeader(nethttp.StatusOK)
	}))
	defer server.Close()

	client := NewRetryingClient(server.Client(), zerolog.Nop(), RetryOptions{
		RetryMax:     4,
		RetryWaitMin: 1,
		RetryWaitMax: 2,
	})

	resp, err := client.Get(server.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != nethttp.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if hits.Load() != 3 {
		t.Errorf("server hits = %d, want 3", hits.Load())
	}
}
