package service

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/safing/rdapd/base/info"
	"github.com/safing/rdapd/base/log"
)

// Config holds the configuration of a service instance.
type Config struct {
	// DataDir is where the lookup cache and other variable data live.
	DataDir string

	// LogToStdout directs logs to stdout instead of log files.
	LogToStdout bool
	// LogDir is where log files are written when not logging to stdout.
	LogDir string
	// LogLevel is the lowest severity to log.
	LogLevel string

	// ListenAddress is the address the HTTP API listens on.
	ListenAddress string

	// BootstrapURL is where the IANA bootstrap registry documents are
	// published. Empty means the well-known IANA location.
	BootstrapURL string
	// RegistryMaxAge is the bootstrap snapshot age after which a refresh is
	// due.
	RegistryMaxAge time.Duration

	// UserAgent is sent with all upstream requests.
	UserAgent string
	// RequestTimeout bounds every single upstream request attempt.
	RequestTimeout time.Duration
	// MaxRetries is the number of additional attempts after a failed first
	// one.
	MaxRetries int
	// MaxRedirects bounds the number of followed redirects per RDAP query.
	MaxRedirects int

	// DNSResolveTimeout bounds plain DNS address lookups.
	DNSResolveTimeout time.Duration
}

// Init checks the configuration and fills unset fields with defaults.
func (c *Config) Init() error {
	// Check directories.
	switch runtime.GOOS {
	case "linux":
		// Fall back to defaults.
		if c.DataDir == "" {
			c.DataDir = "/var/lib/rdapd"
		}
		if c.LogDir == "" {
			c.LogDir = "/var/log/rdapd"
		}

	default:
		// Fail if not configured on other platforms.
		if c.DataDir == "" {
			return errors.New("data directory must be configured - auto-detection not supported on this platform")
		}
		if !c.LogToStdout && c.LogDir == "" {
			return errors.New("logging directory must be configured - auto-detection not supported on this platform")
		}
	}

	// Expand path variables.
	c.DataDir = os.ExpandEnv(c.DataDir)
	c.LogDir = os.ExpandEnv(c.LogDir)

	// Identify to upstream servers.
	if c.UserAgent == "" {
		c.UserAgent = fmt.Sprintf("rdapd/%s (%s %s)", info.VersionNumber(), runtime.GOOS, runtime.GOARCH)
	}

	// Check log level.
	if c.LogLevel != "" && log.ParseLevel(c.LogLevel) == 0 {
		return fmt.Errorf("invalid log level %q", c.LogLevel)
	}

	return nil
}
