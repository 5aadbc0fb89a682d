package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDefaultConfig 测试默认配置
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NotNil(t, cfg)
	assert.NoError(t, cfg.Validate())

	assert.Equal(t, "tcp://127.0.0.1:19999", cfg.DaemonURL)
	assert.Equal(t, 30*time.Second, cfg.Dispatcher.CallTimeout.Duration())
	assert.Equal(t, 5*time.Second, cfg.Transport.DialTimeout.Duration())

	t.Log("✅ DefaultConfig 测试通过")
}

// TestDuration 测试 Duration 的 JSON 与文本解析
func TestDuration(t *testing.T) {
	t.Run("JSON_String", func(t *testing.T) {
		var d Duration
		require.NoError(t, json.Unmarshal([]byte(`"1m30s"`), &d))
		assert.Equal(t, 90*time.Second, d.Duration())
	})

	t.Run("JSON_Nanoseconds", func(t *testing.T) {
		var d Duration
		require.NoError(t, json.Unmarshal([]byte(`1500000000`), &d))
		assert.Equal(t, 1500*time.Millisecond, d.Duration())
	})

	t.Run("JSON_Invalid", func(t *testing.T) {
		var d Duration
		assert.Error(t, json.Unmarshal([]byte(`"soon"`), &d))
		assert.Error(t, json.Unmarshal([]byte(`true`), &d))
	})

	t.Run("Text", func(t *testing.T) {
		var d Duration
		require.NoError(t, d.UnmarshalText([]byte("250ms")))
		assert.Equal(t, 250*time.Millisecond, d.Duration())
		require.NoError(t, d.UnmarshalText([]byte("1000")))
		assert.Equal(t, time.Microsecond, d.Duration())
		assert.Error(t, d.UnmarshalText([]byte("later")))
	})

	t.Run("Marshal", func(t *testing.T) {
		raw, err := json.Marshal(Duration(2 * time.Second))
		require.NoError(t, err)
		assert.Equal(t, `"2s"`, string(raw))
	})
}

// TestFromJSON 测试 JSON 解析
func TestFromJSON(t *testing.T) {
	cfg, err := FromJSON([]byte(`{
		"node_id": "planner",
		"daemon_url": "tcp://10.0.0.2:19999",
		"dispatcher": {"call_timeout": "10s"}
	}`))
	require.NoError(t, err)

	assert.Equal(t, "planner", cfg.NodeID)
	assert.Equal(t, "tcp://10.0.0.2:19999", cfg.DaemonURL)
	assert.Equal(t, 10*time.Second, cfg.Dispatcher.CallTimeout.Duration())
	// 未出现的字段保留默认值
	assert.Equal(t, 1024, cfg.Dispatcher.ExpiredCacheSize)
	assert.Equal(t, 256, cfg.Transport.InboundQueueSize)

	_, err = FromJSON([]byte(`{"dameon_url": "x"}`))
	assert.Error(t, err, "unknown fields are rejected")
}

// TestFromTOML 测试 TOML 解析
func TestFromTOML(t *testing.T) {
	cfg, err := FromTOML([]byte(`
node_id = "planner"
daemon_url = "ws://10.0.0.2:8080/bus"

[transport]
dial_timeout = "2s"
max_frame_bytes = 65536

[log]
level = "core/dispatcher=debug,warn"
format = "json"
`))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "planner", cfg.NodeID)
	assert.Equal(t, "ws://10.0.0.2:8080/bus", cfg.DaemonURL)
	assert.Equal(t, 2*time.Second, cfg.Transport.DialTimeout.Duration())
	assert.Equal(t, 65536, cfg.Transport.MaxFrameBytes)
	assert.Equal(t, 10*time.Second, cfg.Transport.WriteTimeout.Duration())
	assert.Equal(t, "json", cfg.Log.Format)
}

// TestLoad 测试文件加载与环境变量覆盖
func TestLoad(t *testing.T) {
	dir := t.TempDir()

	t.Run("JSON", func(t *testing.T) {
		path := filepath.Join(dir, "node.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"node_id":"a","daemon_url":"tcp://h:1"}`), 0o644))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "a", cfg.NodeID)
		assert.Equal(t, "tcp://h:1", cfg.DaemonURL)
	})

	t.Run("TOML", func(t *testing.T) {
		path := filepath.Join(dir, "node.TOML")
		require.NoError(t, os.WriteFile(path, []byte("node_id = \"b\"\n"), 0o644))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "b", cfg.NodeID)
	})

	t.Run("EnvOverrides", func(t *testing.T) {
		path := filepath.Join(dir, "env.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"node_id":"file","daemon_url":"tcp://file:1"}`), 0o644))
		t.Setenv(EnvDaemonURL, "tcp://env:2")
		t.Setenv(EnvNodeID, "env_node")
		t.Setenv(EnvSecretsFile, "/run/secrets/node.toml")

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "tcp://env:2", cfg.DaemonURL)
		assert.Equal(t, "env_node", cfg.NodeID)
		assert.Equal(t, "/run/secrets/node.toml", cfg.SecretsFile)
	})

	t.Run("NoFile", func(t *testing.T) {
		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig().DaemonURL, cfg.DaemonURL)
	})

	t.Run("Missing", func(t *testing.T) {
		_, err := Load(filepath.Join(dir, "absent.json"))
		assert.Error(t, err)
	})

	t.Run("Invalid", func(t *testing.T) {
		path := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"daemon_url":"udp://h:1"}`), 0o644))
		_, err := Load(path)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})
}

// TestConfig_Validate 测试配置验证
func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"DaemonURL", func(c *Config) { c.DaemonURL = "tcp://missing-port" }},
		{"DialTimeout", func(c *Config) { c.Transport.DialTimeout = -1 }},
		{"QueueSize", func(c *Config) { c.Transport.InboundQueueSize = -1 }},
		{"CallTimeout", func(c *Config) { c.Dispatcher.CallTimeout = Duration(-time.Second) }},
		{"LogFormat", func(c *Config) { c.Log.Format = "xml" }},
		{"LogLevel", func(c *Config) { c.Log.Level = "core=loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}

	var nilCfg *Config
	assert.ErrorIs(t, nilCfg.Validate(), ErrInvalidConfig)
}

// TestConfig_Options 测试到组件配置的转换
func TestConfig_Options(t *testing.T) {
	cfg := DefaultConfig().WithCallTimeout(3 * time.Second)
	cfg.DaemonURL = "tcp://h:9"

	tc := cfg.TransportOptions("n1")
	assert.Equal(t, "tcp://h:9", tc.Address)
	assert.Equal(t, "n1", tc.NodeID)
	assert.Equal(t, 8*1024*1024, tc.Limits.MaxFrameBytes)

	dc := cfg.DispatcherOptions()
	assert.Equal(t, 3*time.Second, dc.CallTimeout)

	cp := cfg.Clone()
	cp.DaemonURL = "tcp://other:1"
	assert.Equal(t, "tcp://h:9", cfg.DaemonURL)
}

// TestSave 测试保存后可重新加载
func TestSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	cfg := DefaultConfig()
	cfg.NodeID = "saved"
	require.NoError(t, Save(cfg, path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "saved", loaded.NodeID)
	assert.Equal(t, cfg.Dispatcher, loaded.Dispatcher)

	assert.Error(t, Save(nil, path))
}
