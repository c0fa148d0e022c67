// Package config loads the connection profile used by cmd/imapcli,
// searching a fixed list of candidate paths for a YAML file rather than
// relying on flags alone.
package config

import (
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

// Config is one named IMAP connection profile.
type Config struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// TLSMode is "none", "starttls", or "implicit" (port 993 style).
	TLSMode string `yaml:"tls_mode"`

	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// SASLMechanism, if set, selects AUTHENTICATE over LOGIN.
	SASLMechanism string `yaml:"sasl_mechanism"`

	DialTimeout time.Duration `yaml:"dial_timeout"`
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// BufferBlockSize, if positive, is passed to imapc.WithBufferBlockSize
	// so this connection gets a dedicated buffer pool sized in
	// BufferBlockSize-byte blocks instead of the process-wide shared one;
	// 0 keeps the library default.
	BufferBlockSize int `yaml:"buffer_block_size"`
}

// defaults mirrors what a bare Dial would otherwise assume.
func defaults() Config {
	return Config{
		Port:        143,
		TLSMode:     "starttls",
		DialTimeout: 30 * time.Second,
		IdleTimeout: 29 * time.Minute,
	}
}

// Load reads the first existing path from candidates (or the built-in
// search list, if candidates is empty) and unmarshals it over the
// defaults.
func Load(candidates ...string) (*Config, error) {
	if len(candidates) == 0 {
		candidates = []string{
			"/etc/imapc/imapc.yaml",
			"./config/imapc.yaml",
			"./imapc.yaml",
		}
	}

	var data []byte
	var err error
	for _, path := range candidates {
		data, err = os.ReadFile(filepath.Clean(path))
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, err
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Addr returns "host:port" for use with net.Dial.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
