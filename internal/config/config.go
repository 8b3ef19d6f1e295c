// Package config loads and hot-reloads the service-level configuration:
// the default encryption method, key-manager endpoint, resolver backend
// credentials, audit sink wiring, and hardware-acceleration toggles.
package config

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// HardwareConfig toggles hardware-accelerated cipher paths.
type HardwareConfig struct {
	EnableAESNI    bool `yaml:"enable_aes_ni"`
	EnableARMv8AES bool `yaml:"enable_armv8_aes"`
}

// SinkConfig describes one audit sink.
type SinkConfig struct {
	Type          string            `yaml:"type"` // "stdout", "file", "http", "redis"
	Endpoint      string            `yaml:"endpoint,omitempty"`
	Headers       map[string]string `yaml:"headers,omitempty"`
	FilePath      string            `yaml:"file_path,omitempty"`
	RedisAddr     string            `yaml:"redis_addr,omitempty"`
	RedisKey      string            `yaml:"redis_key,omitempty"`
	BatchSize     int               `yaml:"batch_size,omitempty"`
	FlushInterval time.Duration     `yaml:"flush_interval,omitempty"`
	RetryCount    int               `yaml:"retry_count,omitempty"`
	RetryBackoff  time.Duration     `yaml:"retry_backoff,omitempty"`
}

// AuditConfig configures the audit logger.
type AuditConfig struct {
	Enabled             bool       `yaml:"enabled"`
	MaxEvents           int        `yaml:"max_events"`
	Sink                SinkConfig `yaml:"sink"`
	RedactMetadataKeys  []string   `yaml:"redact_metadata_keys,omitempty"`
	RedactMetadataGlobs []string   `yaml:"redact_metadata_globs,omitempty"`
}

// BackendConfig configures the resolver's S3-compatible backend used for
// CipherReference URIs with the s3:// scheme.
type BackendConfig struct {
	Provider  string `yaml:"provider"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint,omitempty"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
}

// KeyManagerConfig selects and configures the pluggable key manager.
type KeyManagerConfig struct {
	Type           string              `yaml:"type"` // "static", "kmip"
	KMIPEndpoint   string              `yaml:"kmip_endpoint,omitempty"`
	KMIPProvider   string              `yaml:"kmip_provider,omitempty"`
	DualReadWindow int                 `yaml:"dual_read_window,omitempty"`
	Timeout        time.Duration       `yaml:"timeout,omitempty"`
	StaticKeys     map[string][]byte   `yaml:"-"` // loaded out-of-band, never serialized
}

// Config is the top-level service configuration, loaded from YAML and
// hot-reloadable via Watch.
type Config struct {
	// EncryptionMethod is Ctx's default EncryptionMethod Algorithm URI,
	// used when a template omits one.
	EncryptionMethod string `yaml:"encryption_method"`
	// IgnoreType mirrors xmlenc.Ctx.IgnoreType.
	IgnoreType bool `yaml:"ignore_type"`

	Hardware   HardwareConfig   `yaml:"hardware"`
	Audit      AuditConfig      `yaml:"audit"`
	Backend    BackendConfig    `yaml:"backend"`
	KeyManager KeyManagerConfig `yaml:"key_manager"`

	LogLevel string `yaml:"log_level"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return &cfg, nil
}

// Watcher hot-reloads a Config from disk whenever the backing file
// changes, using fsnotify to watch the file itself for writes.
type Watcher struct {
	mu     sync.RWMutex
	cfg    *Config
	path   string
	logger *logrus.Logger
	watch  *fsnotify.Watcher
	done   chan struct{}
}

// NewWatcher loads path once, then starts watching it for changes.
func NewWatcher(path string, logger *logrus.Logger) (*Watcher, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: starting watcher: %w", err)
	}
	if err := fw.Add(path); err != nil {
		fw.Close()
		return nil, fmt.Errorf("config: watching %s: %w", path, err)
	}

	w := &Watcher{
		cfg:    cfg,
		path:   path,
		logger: logger,
		watch:  fw,
		done:   make(chan struct{}),
	}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.watch.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := Load(w.path)
			if err != nil {
				w.logger.WithError(err).WithField("path", w.path).Warn("config: reload failed, keeping previous config")
				continue
			}
			w.mu.Lock()
			w.cfg = cfg
			w.mu.Unlock()
			w.logger.WithField("path", w.path).Info("config: reloaded")
		case err, ok := <-w.watch.Errors:
			if !ok {
				return
			}
			w.logger.WithError(err).Warn("config: watcher error")
		case <-w.done:
			return
		}
	}
}

// Current returns the most recently loaded configuration.
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	cfg := *w.cfg
	return &cfg
}

// Close stops watching and releases the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.watch.Close()
}
