package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// SMTP 环境变量名
const (
	envSMTPServer   = "SMTP_SERVER"
	envSMTPPort     = "SMTP_PORT"
	envSMTPUser     = "SMTP_USER"
	envSMTPPassword = "SMTP_PASSWORD"
	envSMTPAuthCode = "SMTP_AUTH_CODE"
	envSMTPFrom     = "SMTP_FROM"
	envSMTPTo       = "SMTP_TO"
)

// SMTP 分析报告邮件配置；server/from/to 任一为空即视为未启用。
type SMTP struct {
	Server   string `yaml:"server"`
	Port     int    `yaml:"port" validate:"gte=0,lte=65535"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	To       string `yaml:"to"`
}

// applyEnv SMTP_AUTH_CODE 优先于 SMTP_PASSWORD（QQ/163 邮箱授权码）。
func (s *SMTP) applyEnv() error {
	setStr(&s.Server, envSMTPServer)
	if v := os.Getenv(envSMTPPort); v != "" {
		p, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("env %s=%q: %w", envSMTPPort, v, err)
		}
		s.Port = p
	}
	setStr(&s.User, envSMTPUser)
	setStr(&s.Password, envSMTPPassword)
	setStr(&s.Password, envSMTPAuthCode)
	setStr(&s.From, envSMTPFrom)
	setStr(&s.To, envSMTPTo)
	return nil
}

func (s *SMTP) Enabled() bool {
	if s == nil {
		return false
	}
	srv := strings.TrimSpace(s.Server)
	from := strings.TrimSpace(s.From)
	to := strings.TrimSpace(s.To)
	return srv != "" && from != "" && to != ""
}

// Recipients 逗号分隔的收件人列表。
func (s *SMTP) Recipients() []string {
	var out []string
	for _, t := range strings.Split(s.To, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
