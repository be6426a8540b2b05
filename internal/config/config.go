package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	LLM        LLMConfig        `yaml:"llm"`
	Simulation SimulationConfig `yaml:"simulation"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	Charset  string `yaml:"charset"`
}

type LLMConfig struct {
	// OpenAI 兼容端点（chat/completions）
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	// 采样温度：0.5-0.6 偏稳定，0.7-0.8 偏发散
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	// 单次出站请求的超时（秒）
	RequestTimeoutSeconds int `yaml:"request_timeout_seconds"`
	// 出站限流（请求/秒），0 表示不限流
	RateLimitPerSecond float64 `yaml:"rate_limit_per_second"`
}

type SimulationConfig struct {
	// 整批模拟的全局截止时间（秒）
	GlobalDeadlineSeconds int `yaml:"global_deadline_seconds"`
	// 单个 persona 任务的超时（秒，含一次重试），必须 <= 全局截止时间
	TaskTimeoutSeconds int `yaml:"task_timeout_seconds"`
	// 并发上限（persona 集合很小，通常等于集合大小）
	MaxConcurrency int `yaml:"max_concurrency"`
	// 每个 persona 集合的固定人数
	PersonasPerSet int `yaml:"personas_per_set"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	config.applyDefaults()
	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "gpt-4o"
	}
	if c.LLM.Temperature == 0 {
		c.LLM.Temperature = 0.7
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = 2000
	}
	if c.LLM.RequestTimeoutSeconds == 0 {
		c.LLM.RequestTimeoutSeconds = 60
	}
	if c.Simulation.GlobalDeadlineSeconds == 0 {
		c.Simulation.GlobalDeadlineSeconds = 60
	}
	if c.Simulation.TaskTimeoutSeconds == 0 {
		c.Simulation.TaskTimeoutSeconds = 25
	}
	if c.Simulation.MaxConcurrency == 0 {
		c.Simulation.MaxConcurrency = 5
	}
	if c.Simulation.PersonasPerSet == 0 {
		c.Simulation.PersonasPerSet = 5
	}
}

func (c *Config) validate() error {
	if c.Simulation.TaskTimeoutSeconds > c.Simulation.GlobalDeadlineSeconds {
		return fmt.Errorf("配置不合法: task_timeout_seconds(%d) 不能大于 global_deadline_seconds(%d)",
			c.Simulation.TaskTimeoutSeconds, c.Simulation.GlobalDeadlineSeconds)
	}
	if c.Simulation.MaxConcurrency < 1 {
		return fmt.Errorf("配置不合法: max_concurrency 必须 >= 1")
	}
	return nil
}

// GlobalDeadline 整批模拟的全局截止时间
func (c *Config) GlobalDeadline() time.Duration {
	return time.Duration(c.Simulation.GlobalDeadlineSeconds) * time.Second
}

// TaskTimeout 单个 persona 任务（含一次重试）的超时
func (c *Config) TaskTimeout() time.Duration {
	return time.Duration(c.Simulation.TaskTimeoutSeconds) * time.Second
}

// RequestTimeout 单次出站 LLM 请求的超时
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.LLM.RequestTimeoutSeconds) * time.Second
}
