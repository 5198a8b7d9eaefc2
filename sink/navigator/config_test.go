package navigator

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig_DerivesURLs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "navigator.yml")
	require.NoError(t, os.WriteFile(path, []byte("host: nav.local\nusername: admin\npassword: secret\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	require.Equal(t, DefaultPort, cfg.Port)
	require.Equal(t, "CDAP", cfg.Namespace)
	require.Equal(t, "JSON", cfg.FileFormat)
	require.Equal(t, "http://nav.local", cfg.ApplicationURL)
	require.Equal(t, "http://nav.local:7187/api/v8", cfg.NavigatorURL)
	require.Equal(t, "http://nav.local:7187/api/v8/metadata/plugin", cfg.MetadataParentURI)
	require.Equal(t, 10*time.Second, cfg.WriteTimeout)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("METASYNC_NAVIGATOR__HOST", "env-host")
	t.Setenv("METASYNC_NAVIGATOR__PORT", "9000")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	require.Equal(t, "env-host", cfg.Host)
	require.Equal(t, "http://env-host:9000/api/v8", cfg.NavigatorURL)
}

func TestConfig_Validate(t *testing.T) {
	valid := Config{Host: "h", Username: "u", Password: "p"}
	valid.ApplyDefaults()
	require.NoError(t, valid.Validate())

	cases := map[string]func(*Config){
		"host":        func(c *Config) { c.Host = "" },
		"namespace":   func(c *Config) { c.Namespace = "" },
		"username":    func(c *Config) { c.Username = "" },
		"password":    func(c *Config) { c.Password = "" },
		"file format": func(c *Config) { c.FileFormat = "AVRO" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := valid
			mutate(&c)
			err := c.Validate()
			require.Error(t, err)
			require.True(t, errors.Is(err, ErrInvalidConfig))
		})
	}
}

func TestConfig_MapRedactsPassword(t *testing.T) {
	c := Config{Host: "h", Username: "u", Password: "hunter2", Autocommit: true}
	c.ApplyDefaults()

	m := c.Map()
	require.Equal(t, redacted, m["password"])
	require.Equal(t, "true", m["autocommit"])
	require.Equal(t, "u", m["username"])
	require.Equal(t, "http://h:7187/api/v8", m["navigator_url"])
	for _, v := range m {
		require.NotContains(t, v, "hunter2")
	}
}
