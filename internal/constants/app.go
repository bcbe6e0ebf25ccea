// Package constants holds shared tuning values for preservica-upload.
package constants

import (
	"time"
)

// Transport selection
const (
	// DefaultBulkThresholdMB - packaged archives at or above this size (MB) use
	// the bulk object-storage transport instead of the direct gateway upload
	DefaultBulkThresholdMB = 100

	// PartSize - size of each part for bulk multipart uploads (32 MB)
	//
	// Trade-offs:
	// - Smaller parts = more HTTP requests but better progress granularity
	// - Larger parts = better throughput but coarser progress updates
	PartSize = 32 * 1024 * 1024

	// MinPartSize - AWS S3 minimum part size (5 MB, except last part)
	MinPartSize = 5 * 1024 * 1024

	// BulkUploadWorkers - number of parts uploaded concurrently in bulk mode
	BulkUploadWorkers = 4

	// PartUploadTimeout - per-part timeout for bulk uploads (10 minutes)
	PartUploadTimeout = 10 * time.Minute
)

// Retry configuration
const (
	// MaxRetries - maximum number of retries for transient errors
	MaxRetries = 10

	// RetryInitialDelay - initial delay before first retry (200ms)
	RetryInitialDelay = 200 * time.Millisecond

	// RetryMaxDelay - maximum delay between retries (15s)
	// Exponential backoff with jitter caps at this value
	RetryMaxDelay = 15 * time.Second
)

// Progress reporting
const (
	// ProgressStepPercent - minimum percentage-point increase between two
	// emitted progress events. 100% is always emitted once.
	ProgressStepPercent = 5
)

// Event System
const (
	// EventBusDefaultBuffer - default buffer size for event channels
	EventBusDefaultBuffer = 256

	// EventBusMaxBuffer - maximum buffer size for event channels
	EventBusMaxBuffer = 4096
)

// Preservica API
const (
	// EntityPageSize - children requested per page from the entity API
	EntityPageSize = 100

	// MaxPaginationPages - maximum pages to fetch before stopping (prevents infinite loops)
	MaxPaginationPages = 1000

	// APIRequestsPerSecond - steady-state request rate towards the REST API
	APIRequestsPerSecond = 5

	// APIRequestBurst - burst allowance for the REST API limiter
	APIRequestBurst = 10

	// TokenLifetime - Preservica access tokens are valid for 15 minutes;
	// we re-login slightly before that
	TokenLifetime = 14 * time.Minute

	// DefaultUploadBucketSuffix - suffix appended to the tenant name to form
	// the direct-upload bucket on the Preservica S3 gateway
	DefaultUploadBucketSuffix = ".package.upload"

	// DefaultS3Region - region used when none is configured
	DefaultS3Region = "us-east-1"
)

// Files
const (
	// ErrorLogFile - fixed-name diagnostic log written on upload failure
	ErrorLogFile = "upload_error.log"

	// AppLogFile - log file used while the terminal UI owns the screen
	AppLogFile = "preservica-upload.log"
)

// API and Context Timeouts
const (
	// APIContextTimeout - default timeout for API operations (30 seconds)
	APIContextTimeout = 30 * time.Second

	// TreeLoadTimeout - timeout for loading one level of the remote tree
	TreeLoadTimeout = 60 * time.Second
)

// HTTP Client Timeouts
const (
	// HTTPIdleConnTimeout - how long to keep idle connections open (90 seconds)
	HTTPIdleConnTimeout = 90 * time.Second

	// HTTPTLSHandshakeTimeout - timeout for TLS handshake (60 seconds)
	HTTPTLSHandshakeTimeout = 60 * time.Second

	// HTTPExpectContinueTimeout - timeout for 100-continue response (1 second)
	HTTPExpectContinueTimeout = 1 * time.Second

	// HTTPDialTimeout - timeout for establishing connection (30 seconds)
	HTTPDialTimeout = 30 * time.Second

	// HTTPDialKeepAlive - keep-alive period for dialer (30 seconds)
	HTTPDialKeepAlive = 30 * time.Second
)
