package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("写入临时配置失败: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  host: localhost
  port: 3306
  user: root
  password: root
  dbname: fanecho
llm:
  base_url: https://api.example.com/v1
  api_key: test-key
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("server.port 默认值期望 8080，实际 %d", cfg.Server.Port)
	}
	if cfg.Simulation.GlobalDeadlineSeconds != 60 {
		t.Errorf("global_deadline_seconds 默认值期望 60，实际 %d", cfg.Simulation.GlobalDeadlineSeconds)
	}
	if cfg.Simulation.TaskTimeoutSeconds != 25 {
		t.Errorf("task_timeout_seconds 默认值期望 25，实际 %d", cfg.Simulation.TaskTimeoutSeconds)
	}
	if cfg.Simulation.MaxConcurrency != 5 || cfg.Simulation.PersonasPerSet != 5 {
		t.Errorf("模拟默认值错误: concurrency=%d per_set=%d",
			cfg.Simulation.MaxConcurrency, cfg.Simulation.PersonasPerSet)
	}
}

func TestLoadConfigValidation(t *testing.T) {
	// 单任务超时不能大于全局截止时间
	path := writeConfig(t, `
simulation:
  global_deadline_seconds: 30
  task_timeout_seconds: 60
`)
	if _, err := LoadConfig(path); err == nil {
		t.Error("task_timeout > global_deadline 应当拒绝")
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("缺失文件应当报错")
	}
}
