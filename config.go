// Configuration for rxcore
// 基于viper的配置加载：YAML文件、.env文件与RXCORE_前缀的环境变量
package rxcore

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DefaultEnvPrefix 环境变量前缀
const DefaultEnvPrefix = "RXCORE"

// Config 调度器注册表与日志的配置
type Config struct {
	// ComputationWorkers 计算调度器的并发数，0表示CPU核数
	ComputationWorkers int `mapstructure:"computation_workers" validate:"gte=0"`
	// IOMaxGoroutines IO调度器的并发上限，0表示不限制
	IOMaxGoroutines int       `mapstructure:"io_max_goroutines" validate:"gte=0"`
	Log             LogConfig `mapstructure:"log"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"omitempty,oneof=trace debug info warn error fatal panic disabled"`
	Format string `mapstructure:"format" validate:"omitempty,oneof=console json"`
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults 填充未设置的字段
func (c *Config) ApplyDefaults() {
	if c.ComputationWorkers == 0 {
		c.ComputationWorkers = runtime.NumCPU()
	}
	if c.Log.Level == "" {
		c.Log.Level = "warn"
	}
	if c.Log.Format == "" {
		c.Log.Format = LogFormatJSON
	}
}

var configValidator = validator.New(validator.WithRequiredStructEnabled())

// Validate 校验配置
func (c *Config) Validate() error {
	if err := configValidator.Struct(c); err != nil {
		return fmt.Errorf("invalid rxcore config: %w", err)
	}
	return nil
}

// ============================================================================
// 加载
// ============================================================================

type loaderConfig struct {
	configFile string
	envFile    string
	envPrefix  string
}

// LoadOption 加载选项
type LoadOption func(*loaderConfig)

// WithConfigFile 指定YAML配置文件
func WithConfigFile(path string) LoadOption {
	return func(lc *loaderConfig) { lc.configFile = path }
}

// WithEnvFile 指定.env文件
func WithEnvFile(path string) LoadOption {
	return func(lc *loaderConfig) { lc.envFile = path }
}

// WithEnvPrefix 指定环境变量前缀
func WithEnvPrefix(prefix string) LoadOption {
	return func(lc *loaderConfig) { lc.envPrefix = prefix }
}

// LoadConfig 加载配置。优先级：环境变量 > .env > 配置文件 > 默认值
func LoadConfig(opts ...LoadOption) (*Config, error) {
	lc := loaderConfig{envPrefix: DefaultEnvPrefix}
	for _, opt := range opts {
		opt(&lc)
	}

	if lc.envFile != "" {
		if err := godotenv.Load(lc.envFile); err != nil {
			return nil, fmt.Errorf("loading env file %s: %w", lc.envFile, err)
		}
	}

	defaults := DefaultConfig()

	v := viper.New()
	v.SetDefault("computation_workers", defaults.ComputationWorkers)
	v.SetDefault("io_max_goroutines", defaults.IOMaxGoroutines)
	v.SetDefault("log.level", defaults.Log.Level)
	v.SetDefault("log.format", defaults.Log.Format)

	if lc.configFile != "" {
		v.SetConfigFile(lc.configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", lc.configFile, err)
		}
	}

	v.SetEnvPrefix(lc.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal rxcore config: %w", err)
	}
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
