package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// 环境变量
const (
	EnvDaemonURL   = "TAGENTACLE_DAEMON_URL"
	EnvSecretsFile = "TAGENTACLE_SECRETS_FILE"
	EnvNodeID      = "TAGENTACLE_NODE_ID"
)

// FromJSON 从 JSON 数据创建配置，未出现的字段保留默认值
//
// 示例 JSON:
//
//	{
//	  "daemon_url": "tcp://10.0.0.2:19999",
//	  "dispatcher": {"call_timeout": "10s"}
//	}
func FromJSON(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// FromTOML 从 TOML 数据创建配置，未出现的字段保留默认值
func FromTOML(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// Load 读取配置文件，应用环境变量覆盖并校验
//
// .toml 后缀按 TOML 解析，其余按 JSON。path 为空时只使用默认值与环境变量。
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if strings.EqualFold(filepath.Ext(path), ".toml") {
			cfg, err = FromTOML(data)
		} else {
			cfg, err = FromJSON(data)
		}
		if err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	ApplyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv 用非空的环境变量覆盖配置
func ApplyEnv(cfg *Config) {
	if v := os.Getenv(EnvDaemonURL); v != "" {
		cfg.DaemonURL = v
	}
	if v := os.Getenv(EnvSecretsFile); v != "" {
		cfg.SecretsFile = v
	}
	if v := os.Getenv(EnvNodeID); v != "" {
		cfg.NodeID = v
	}
}

// Save 以 JSON 保存配置
func Save(cfg *Config, path string) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
