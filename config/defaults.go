// =============================================================================
// 📦 Body 默认配置
// =============================================================================
// 提供所有配置项的合理默认值。感知通道的超时取值对应 Termux API
// 各命令的实测延迟特征（相机冷启动最慢，定位次之）。
// =============================================================================
package config

import (
	"os"
	"path/filepath"
	"time"
)

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:  DefaultServerConfig(),
		Sensors: DefaultSensorsConfig(),
		Collab:  DefaultCollabConfig(),
		Store:   DefaultStoreConfig(),
		Log:     DefaultLogConfig(),
	}
}

// DefaultServerConfig 返回默认网关配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:            "127.0.0.1:8800",
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    120 * time.Second, // 推理协作方可能很慢
		ShutdownTimeout: 15 * time.Second,
		RateLimitRPS:    10,
		RateLimitBurst:  20,
	}
}

// DefaultSensorsConfig 返回默认感知通道配置
func DefaultSensorsConfig() SensorsConfig {
	return SensorsConfig{
		Camera: ChannelConfig{
			Timeout: 15 * time.Second,
			Retries: 2,
			Backoff: 500 * time.Millisecond,
		},
		Microphone: ChannelConfig{
			// 录音时长由请求参数决定，超时在时长基础上再加余量
			Timeout: 10 * time.Second,
			Retries: 2,
			Backoff: 500 * time.Millisecond,
		},
		GPS: ChannelConfig{
			Timeout: 10 * time.Second,
			Retries: 2,
			Backoff: 500 * time.Millisecond,
		},
		Accelerometer: ChannelConfig{
			Timeout: 5 * time.Second,
			Retries: 2,
			Backoff: 500 * time.Millisecond,
		},
	}
}

// DefaultCollabConfig 返回默认协作配置
func DefaultCollabConfig() CollabConfig {
	return CollabConfig{
		Persona:        "[Arianna]",
		ExpiryWindow:   10 * time.Minute,
		SweepInterval:  30 * time.Second,
		DeliverTimeout: 10 * time.Second,
		Apps: map[string]string{
			"claude":     "com.anthropic.claude",
			"gpt":        "com.openai.chatgpt",
			"gemini":     "com.google.android.apps.bard",
			"perplexity": "ai.perplexity.app.android",
			"grok":       "com.x.android",
		},
	}
}

// DefaultStoreConfig 返回默认存储配置
func DefaultStoreConfig() StoreConfig {
	base := baseDir()
	return StoreConfig{
		ArtifactDir: filepath.Join(base, "artifacts"),
		LogBackend:  "sqlite",
		SQLitePath:  filepath.Join(base, "db", "resonance.sqlite3"),
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			DB:        0,
			KeyPrefix: "body:",
		},
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:  "info",
		Format: "console",
	}
}

// baseDir 返回设备上的数据根目录（~/.arianna）
func baseDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".arianna"
	}
	return filepath.Join(home, ".arianna")
}
