// =============================================================================
// 📦 Body 配置加载器
// =============================================================================
// 统一配置加载，支持 YAML 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("body.yaml").
//	    WithEnvPrefix("BODY").
//	    Load()
//
// 配置优先级: 默认值 → YAML 文件 → 环境变量
// =============================================================================
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ariannamethod/body/types"
)

// =============================================================================
// 🎯 核心配置结构
// =============================================================================

// Config 是 Body 网桥的完整配置结构
type Config struct {
	// Server 本地网关服务器配置
	Server ServerConfig `yaml:"server" env:"SERVER"`

	// Sensors 各感知通道配置
	Sensors SensorsConfig `yaml:"sensors" env:"SENSORS"`

	// Collab 跨应用协作配置
	Collab CollabConfig `yaml:"collab" env:"COLLAB"`

	// Store 持久化存储配置
	Store StoreConfig `yaml:"store" env:"STORE"`

	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`
}

// ServerConfig 网关服务器配置
type ServerConfig struct {
	// 监听地址（默认仅本机，伴生客户端在同一设备上）
	Addr string `yaml:"addr" env:"ADDR"`
	// 读取超时
	ReadTimeout time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	// 写入超时
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	// 优雅关闭超时
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	// 限流 QPS
	RateLimitRPS float64 `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	// 限流突发量
	RateLimitBurst int `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
}

// SensorsConfig 感知通道配置（每通道一项）
type SensorsConfig struct {
	Camera        ChannelConfig `yaml:"camera" env:"CAMERA"`
	Microphone    ChannelConfig `yaml:"microphone" env:"MICROPHONE"`
	GPS           ChannelConfig `yaml:"gps" env:"GPS"`
	Accelerometer ChannelConfig `yaml:"accelerometer" env:"ACCELEROMETER"`
}

// ChannelConfig 单个感知通道配置
type ChannelConfig struct {
	// 捕获命令（留空使用通道默认，如 termux-camera-photo）
	Command string `yaml:"command" env:"COMMAND"`
	// 单次捕获超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// timeout / device-busy 的最大重试次数
	Retries int `yaml:"retries" env:"RETRIES"`
	// 线性退避步长（第 n 次重试等待 n*Backoff）
	Backoff time.Duration `yaml:"backoff" env:"BACKOFF"`
}

// ByKind 返回指定通道的配置
func (s SensorsConfig) ByKind(kind types.ChannelKind) ChannelConfig {
	switch kind {
	case types.ChannelCamera:
		return s.Camera
	case types.ChannelMicrophone:
		return s.Microphone
	case types.ChannelGPS:
		return s.GPS
	case types.ChannelAccelerometer:
		return s.Accelerometer
	}
	return ChannelConfig{}
}

// CollabConfig 跨应用协作配置
type CollabConfig struct {
	// 人格标签，前缀到每条外发消息（如 "[Arianna]"）
	Persona string `yaml:"persona" env:"PERSONA"`
	// 等待回复的关联窗口，超过后 pending 消息过期
	ExpiryWindow time.Duration `yaml:"expiry_window" env:"EXPIRY_WINDOW"`
	// 过期扫描间隔
	SweepInterval time.Duration `yaml:"sweep_interval" env:"SWEEP_INTERVAL"`
	// 投递超时（clipboard / intent 命令）
	DeliverTimeout time.Duration `yaml:"deliver_timeout" env:"DELIVER_TIMEOUT"`
	// 目标应用包名表（app → Android package）
	Apps map[string]string `yaml:"apps" env:"-"`
}

// StoreConfig 持久化存储配置
type StoreConfig struct {
	// 媒体工件目录
	ArtifactDir string `yaml:"artifact_dir" env:"ARTIFACT_DIR"`
	// 共鸣日志后端: memory, sqlite, redis
	LogBackend string `yaml:"log_backend" env:"LOG_BACKEND"`
	// sqlite 数据库文件路径
	SQLitePath string `yaml:"sqlite_path" env:"SQLITE_PATH"`
	// Redis 配置（LogBackend 为 redis 时生效）
	Redis RedisConfig `yaml:"redis" env:"REDIS"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	// 地址
	Addr string `yaml:"addr" env:"ADDR"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库编号
	DB int `yaml:"db" env:"DB"`
	// 键前缀
	KeyPrefix string `yaml:"key_prefix" env:"KEY_PREFIX"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
}

// =============================================================================
// 🔧 配置加载器
// =============================================================================

// Loader 配置加载器（Builder 模式）
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader 创建新的配置加载器
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "BODY",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath 设置配置文件路径
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix 设置环境变量前缀
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator 添加配置验证器
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load 加载配置
// 优先级: 默认值 → YAML 文件 → 环境变量
func (l *Loader) Load() (*Config, error) {
	// 1. 从默认值开始
	cfg := DefaultConfig()

	// 2. 如果指定了配置文件，从文件加载
	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// 3. 从环境变量覆盖
	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	// 4. 运行验证器
	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

// loadFromFile 从 YAML 文件加载配置
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// 文件不存在，使用默认值
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// loadFromEnv 从环境变量加载配置
func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv 递归设置结构体字段
func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		// 获取 env tag
		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		// 如果是结构体，递归处理
		if field.Kind() == reflect.Struct {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		// 获取环境变量值
		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}

		// 设置字段值
		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

// setFieldValue 设置字段值
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		// 特殊处理 time.Duration
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		// 支持逗号分隔的字符串切片
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}

	return nil
}

// =============================================================================
// 🔍 辅助函数
// =============================================================================

// MustLoad 加载配置，失败时 panic
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// Validate 验证配置
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Addr == "" {
		errs = append(errs, "server addr must not be empty")
	}
	if strings.TrimSpace(c.Collab.Persona) == "" {
		errs = append(errs, "collab persona must not be empty")
	}
	if c.Collab.ExpiryWindow <= 0 {
		errs = append(errs, "collab expiry_window must be positive")
	}
	for _, kind := range []types.ChannelKind{
		types.ChannelCamera, types.ChannelMicrophone,
		types.ChannelGPS, types.ChannelAccelerometer,
	} {
		cc := c.Sensors.ByKind(kind)
		if cc.Timeout <= 0 {
			errs = append(errs, fmt.Sprintf("%s timeout must be positive", kind))
		}
		if cc.Retries < 0 {
			errs = append(errs, fmt.Sprintf("%s retries must not be negative", kind))
		}
	}
	switch c.Store.LogBackend {
	case "memory", "sqlite", "redis":
	default:
		errs = append(errs, fmt.Sprintf("unknown log backend: %s", c.Store.LogBackend))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}
