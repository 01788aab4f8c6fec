// Package config 启动时加载一次的进程级配置：YAML 文件 + 环境变量覆盖，之后只读。
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// 配置路径与环境变量名
const (
	defaultConfigPath = "config.yaml"
	envConfigPath     = "CONFIG_PATH"

	envOpenAIKey     = "OPENAI_API_KEY"
	envOpenAIBaseURL = "OPENAI_BASE_URL"
	envOpenAIModel   = "OPENAI_MODEL"
	envLLMTimeoutSec = "LLM_TIMEOUT_SEC"

	envAppTitle   = "APP_TITLE"
	envLogLevel   = "LOG_LEVEL"
	envLogDir     = "LOG_DIR"
	envListenAddr = "LISTEN_ADDR"

	envDefaultDays        = "DEFAULT_TRADING_DAYS"
	envMaxDays            = "MAX_TRADING_DAYS"
	envProviderTimeoutSec = "PROVIDER_TIMEOUT_SEC"
)

// 默认值
const (
	DefaultBaseURL         = "https://api.openai.com/v1"
	DefaultModel           = "gpt-3.5-turbo"
	DefaultTemperature     = 0.7
	DefaultMaxTokens       = 1500
	DefaultLLMTimeout      = 120 * time.Second
	DefaultTitle           = "个股资金流分析专家"
	DefaultLogLevel        = "info"
	DefaultLogDir          = "logs"
	DefaultListen          = ":8080"
	DefaultDays            = 30
	DefaultMaxDays         = 50
	DefaultProviderTimeout = 10 * time.Second
	// MinDays 回看天数下限，不可配置
	MinDays = 10
)

type LLM struct {
	APIKey      string        `yaml:"api_key"`
	BaseURL     string        `yaml:"base_url" validate:"required,url"`
	Model       string        `yaml:"model" validate:"required"`
	// Temperature 未配置时为 nil，显式写 0 表示确定性输出
	Temperature *float32      `yaml:"temperature" validate:"omitempty,gte=0,lte=2"`
	MaxTokens   int           `yaml:"max_tokens" validate:"gt=0"`
	Timeout     time.Duration `yaml:"timeout" validate:"gt=0"`
}

type App struct {
	Title    string `yaml:"title" validate:"required"`
	LogLevel string `yaml:"log_level" validate:"oneof=debug info warn warning error"`
	LogDir   string `yaml:"log_dir"`
	Listen   string `yaml:"listen" validate:"required"`
}

type Flow struct {
	DefaultDays     int           `yaml:"default_days" validate:"gte=10"`
	MaxDays         int           `yaml:"max_days" validate:"gte=10,lte=500"`
	ProviderTimeout time.Duration `yaml:"provider_timeout" validate:"gt=0"`
}

type Config struct {
	LLM  LLM   `yaml:"llm"`
	App  App   `yaml:"app"`
	Flow Flow  `yaml:"flow"`
	SMTP *SMTP `yaml:"smtp"`
	// Path 实际读取的配置文件，不存在时仍记录
	Path string `yaml:"-"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load 读取 envConfigPath 指定的 YAML（默认 config.yaml，不存在则跳过），再被环境变量覆盖，补默认值后校验。
func Load() (*Config, error) {
	path := os.Getenv(envConfigPath)
	if path == "" {
		path = defaultConfigPath
	}
	return LoadFile(path)
}

func LoadFile(path string) (*Config, error) {
	cfg := &Config{Path: path}
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setStr(&c.LLM.APIKey, envOpenAIKey)
	setStr(&c.LLM.BaseURL, envOpenAIBaseURL)
	setStr(&c.LLM.Model, envOpenAIModel)
	setStr(&c.App.Title, envAppTitle)
	setStr(&c.App.LogLevel, envLogLevel)
	setStr(&c.App.LogDir, envLogDir)
	setStr(&c.App.Listen, envListenAddr)
	if err := setSeconds(&c.LLM.Timeout, envLLMTimeoutSec); err != nil {
		return err
	}
	if err := setSeconds(&c.Flow.ProviderTimeout, envProviderTimeoutSec); err != nil {
		return err
	}
	if err := setInt(&c.Flow.DefaultDays, envDefaultDays); err != nil {
		return err
	}
	if err := setInt(&c.Flow.MaxDays, envMaxDays); err != nil {
		return err
	}
	if c.SMTP == nil {
		c.SMTP = &SMTP{}
	}
	return c.SMTP.applyEnv()
}

func (c *Config) applyDefaults() {
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = DefaultBaseURL
	}
	c.LLM.BaseURL = strings.TrimRight(c.LLM.BaseURL, "/")
	if c.LLM.Model == "" {
		c.LLM.Model = DefaultModel
	}
	if c.LLM.Temperature == nil {
		t := float32(DefaultTemperature)
		c.LLM.Temperature = &t
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = DefaultMaxTokens
	}
	if c.LLM.Timeout == 0 {
		c.LLM.Timeout = DefaultLLMTimeout
	}
	if c.App.Title == "" {
		c.App.Title = DefaultTitle
	}
	c.App.LogLevel = strings.ToLower(strings.TrimSpace(c.App.LogLevel))
	if c.App.LogLevel == "" {
		c.App.LogLevel = DefaultLogLevel
	}
	if c.App.LogDir == "" {
		c.App.LogDir = DefaultLogDir
	}
	if c.App.Listen == "" {
		c.App.Listen = DefaultListen
	}
	if c.Flow.MaxDays == 0 {
		c.Flow.MaxDays = DefaultMaxDays
	}
	if c.Flow.DefaultDays == 0 {
		c.Flow.DefaultDays = DefaultDays
		if c.Flow.DefaultDays > c.Flow.MaxDays {
			c.Flow.DefaultDays = c.Flow.MaxDays
		}
	}
	if c.Flow.ProviderTimeout == 0 {
		c.Flow.ProviderTimeout = DefaultProviderTimeout
	}
	if c.SMTP.From == "" && c.SMTP.User != "" {
		c.SMTP.From = c.SMTP.User
	}
}

// Validate 字段约束由 validator 校验，跨字段约束手动校验。
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var ves validator.ValidationErrors
		if errors.As(err, &ves) {
			fields := make([]string, 0, len(ves))
			for _, fe := range ves {
				fields = append(fields, fmt.Sprintf("%s(%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(fields, ", "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Flow.DefaultDays > c.Flow.MaxDays {
		return fmt.Errorf("invalid config: flow.default_days %d > flow.max_days %d", c.Flow.DefaultDays, c.Flow.MaxDays)
	}
	return nil
}

// Missing 缺失的必要配置项（环境变量名），用于页面提示。
func (c *Config) Missing() []string {
	var out []string
	if strings.TrimSpace(c.LLM.APIKey) == "" {
		out = append(out, envOpenAIKey)
	}
	return out
}

func setStr(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

func setInt(dst *int, env string) error {
	v := os.Getenv(env)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("env %s=%q: %w", env, v, err)
	}
	*dst = n
	return nil
}

func setSeconds(dst *time.Duration, env string) error {
	v := os.Getenv(env)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || n <= 0 {
		return fmt.Errorf("env %s=%q: want positive seconds", env, v)
	}
	*dst = time.Duration(n * float64(time.Second))
	return nil
}
