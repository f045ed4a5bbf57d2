package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	DefaultAddr            = "0.0.0.0:8000"
	DefaultMaxUploadBytes  = 4 << 30
	DefaultShutdownTimeout = 15
)

// Config is intentionally small and JSON-friendly.
// There is no authentication: anyone who can reach Addr can read and write Root.
type Config struct {
	// Root is the directory served by filedrop. Created if missing.
	Root string `json:"root"`

	// Addr is the listen address. Default: 0.0.0.0:8000.
	Addr string `json:"addr,omitempty"`

	// MaxUploadBytes caps one /upload request body. Default 4 GiB; negative disables the cap.
	MaxUploadBytes int64 `json:"maxUploadBytes,omitempty"`

	// WebDAV mounts the root at /dav/ as well.
	WebDAV bool `json:"webdav,omitempty"`

	// Thumbnails enables /thumb for image previews. Default: true.
	Thumbnails *bool `json:"thumbnails,omitempty"`

	// ShutdownTimeoutSeconds bounds graceful shutdown. Default: 15.
	ShutdownTimeoutSeconds int `json:"shutdownTimeoutSeconds,omitempty"`

	TLS TLS `json:"tls,omitempty"`
}

// TLS selects how HTTPS is served. Leave it empty for plain HTTP.
type TLS struct {
	CertFile string `json:"certFile,omitempty"`
	KeyFile  string `json:"keyFile,omitempty"`

	// AutocertHosts enables ACME (Let's Encrypt) certificates for these hosts.
	// Requires ports 80 and 443.
	AutocertHosts    []string `json:"autocertHosts,omitempty"`
	AutocertCacheDir string   `json:"autocertCacheDir,omitempty"`
	AutocertEmail    string   `json:"autocertEmail,omitempty"`
}

func (t TLS) Enabled() bool {
	return t.CertFile != "" || len(t.AutocertHosts) > 0
}

// Load reads a JSON config file. Unknown fields are rejected so typos surface.
func Load(path string) (Config, error) {
	var cfg Config
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Normalize fills defaults, makes Root absolute and validates the result.
func (c *Config) Normalize() error {
	if strings.TrimSpace(c.Root) == "" {
		return errors.New("config: root is required")
	}
	abs, err := filepath.Abs(c.Root)
	if err != nil {
		return fmt.Errorf("config: abs root: %w", err)
	}
	c.Root = abs
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.MaxUploadBytes == 0 {
		c.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if c.Thumbnails == nil {
		on := true
		c.Thumbnails = &on
	}
	if c.ShutdownTimeoutSeconds <= 0 {
		c.ShutdownTimeoutSeconds = DefaultShutdownTimeout
	}

	t := &c.TLS
	if (t.CertFile == "") != (t.KeyFile == "") {
		return errors.New("config: tls certFile and keyFile must be set together")
	}
	if t.CertFile != "" && len(t.AutocertHosts) > 0 {
		return errors.New("config: tls certFile and autocertHosts are mutually exclusive")
	}
	if len(t.AutocertHosts) > 0 && t.AutocertCacheDir == "" {
		t.AutocertCacheDir = filepath.Join(c.Root, ".filedrop", "certs")
	}
	return nil
}

func (c Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

func (c Config) ThumbnailsEnabled() bool {
	return c.Thumbnails == nil || *c.Thumbnails
}
