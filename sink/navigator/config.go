package navigator

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	DefaultPort         = 7187
	DefaultNamespace    = "CDAP"
	DefaultFileFormat   = "JSON"
	DefaultWriteTimeout = 10 * time.Second
	EnvPrefix           = "METASYNC_NAVIGATOR__"
	apiPath             = "/api/v8"
	redacted            = "********"
)

var ErrInvalidConfig = errors.New("navigator: invalid config")

// Config is the catalog connection. Writes and searches go to NavigatorURL;
// ApplicationURL and MetadataParentURI are only reported in the startup log.
type Config struct {
	Host              string        `koanf:"host"`
	Port              int           `koanf:"port"`
	Username          string        `koanf:"username"`
	Password          string        `koanf:"password"`
	Autocommit        bool          `koanf:"autocommit"`
	Namespace         string        `koanf:"namespace"`
	ApplicationURL    string        `koanf:"application_url"`
	FileFormat        string        `koanf:"file_format"`
	NavigatorURL      string        `koanf:"navigator_url"`
	MetadataParentURI string        `koanf:"metadata_parent_uri"`
	WriteTimeout      time.Duration `koanf:"write_timeout"`
	MaxWritesPerSec   int64         `koanf:"max_writes_per_sec"` // 0 = unlimited
}

// LoadConfig merges YAML (if present) with env-vars
// (prefix `METASYNC_NAVIGATOR__`).
func LoadConfig(path string) (Config, error) {
	k := koanf.New(".")
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil &&
			!errors.Is(err, fs.ErrNotExist) {
			return Config{}, err
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, err
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// ApplyDefaults fills derived URLs from host and port.
func (c *Config) ApplyDefaults() {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Namespace == "" {
		c.Namespace = DefaultNamespace
	}
	if c.FileFormat == "" {
		c.FileFormat = DefaultFileFormat
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.Host == "" {
		return
	}
	if c.ApplicationURL == "" {
		c.ApplicationURL = "http://" + c.Host
	}
	if c.NavigatorURL == "" {
		c.NavigatorURL = fmt.Sprintf("http://%s:%d%s", c.Host, c.Port, apiPath)
	}
	if c.MetadataParentURI == "" {
		c.MetadataParentURI = fmt.Sprintf("http://%s:%d%s/metadata/plugin", c.Host, c.Port, apiPath)
	}
}

func (c Config) Validate() error {
	switch {
	case c.Host == "":
		return fmt.Errorf("%w: host must be provided", ErrInvalidConfig)
	case c.Namespace == "":
		return fmt.Errorf("%w: namespace must be provided", ErrInvalidConfig)
	case c.Username == "":
		return fmt.Errorf("%w: username must be provided", ErrInvalidConfig)
	case c.Password == "":
		return fmt.Errorf("%w: password must be provided", ErrInvalidConfig)
	case !strings.EqualFold(c.FileFormat, DefaultFileFormat):
		return fmt.Errorf("%w: file format %q not supported", ErrInvalidConfig, c.FileFormat)
	}
	return nil
}

// Map renders the effective settings for logging. The password is redacted.
func (c Config) Map() map[string]string {
	pw := ""
	if c.Password != "" {
		pw = redacted
	}
	return map[string]string{
		"application_url":     c.ApplicationURL,
		"file_format":         c.FileFormat,
		"navigator_url":       c.NavigatorURL,
		"metadata_parent_uri": c.MetadataParentURI,
		"username":            c.Username,
		"password":            pw,
		"namespace":           c.Namespace,
		"autocommit":          strconv.FormatBool(c.Autocommit),
	}
}
