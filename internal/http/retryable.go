package http

import (
	nethttp "net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
)

// retryLogger implements the retryablehttp.LeveledLogger interface
type retryLogger struct {
	log zerolog.Logger
}

func (l *retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.log.Error().Fields(keysAndValues).Msg("[RETRY] " + msg)
}

func (l *retryLogger) Info(msg string, keysAndValues ...interface{}) {
	// Only log errors and warnings, not all info
}

func (l *retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	// Only log errors and warnings
}

func (l *retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.log.Warn().Fields(keysAndValues).Msg("[RETRY] " + msg)
}

// RetryOptions tunes NewRetryingClient. Zero values take the defaults.
type RetryOptions struct {
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
}

// NewRetryingClient wraps base with go-retryablehttp so idempotent API calls
// survive transient 5xx and connection errors. The returned client is a
// plain *http.Client and can be used anywhere one is expected.
func NewRetryingClient(base *nethttp.Client, logger zerolog.Logger, opts RetryOptions) *nethttp.Client {
	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient = base
	retryClient.RetryMax = 5
	retryClient.RetryWaitMin = 1 * time.Second
	retryClient.RetryWaitMax = 30 * time.Second
	if opts.RetryMax > 0 {
		retryClient.RetryMax = opts.RetryMax
	}
	if opts.RetryWaitMin > 0 {
		retryClient.RetryWaitMin = opts.RetryWaitMin
	}
	if opts.RetryWaitMax > 0 {
		retryClient.RetryWaitMax = opts.RetryWaitMax
	}
	retryClient.Logger = &retryLogger{log: logger}
	return retryClient.StandardClient()
}
