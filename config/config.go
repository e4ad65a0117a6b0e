package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config 调试服务端配置
type Config struct {
	// Port 调试适配器监听的端口
	Port int `yaml:"port"`

	// Log 日志配置
	Log LogConfig `yaml:"log"`

	// Breakpoints 会话创建时的初始断点
	Breakpoints []BreakpointConfig `yaml:"breakpoints,omitempty"`
}

// LogConfig 日志输出配置
type LogConfig struct {
	Path  string `yaml:"path,omitempty"`  // 日志文件路径，为空输出到标准输出
	Level string `yaml:"level,omitempty"` // debug、info、warn、error
}

// BreakpointConfig 配置文件中的断点
type BreakpointConfig struct {
	File string `yaml:"file"`
	Line int    `yaml:"line"`
}

func DefaultConfig() *Config {
	return &Config{
		Port: 54528,
		Log:  LogConfig{Level: "info"},
	}
}

// LoadConfig 读取并解析yaml配置文件
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	return ParseConfig(data)
}

// ParseConfig 解析yaml配置，未设置的字段使用默认值
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 检查配置的合法性
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: invalid port %d", c.Port)
	}
	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log level %q", c.Log.Level)
	}
	for index, breakpoint := range c.Breakpoints {
		if breakpoint.File == "" {
			return fmt.Errorf("config: breakpoint %d has empty file", index)
		}
		if breakpoint.Line <= 0 {
			return fmt.Errorf("config: breakpoint %d has invalid line %d", index, breakpoint.Line)
		}
	}
	return nil
}
