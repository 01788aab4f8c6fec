// Package trace 在 context 中传递 trace ID，日志每行带 TRACE=id 便于排查；后端为 zap，
// 同时写控制台、app.log 与 error.log（lumberjack 按天轮转）。
package trace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type ctxKey int

const traceIDKey ctxKey = 0

// 日志文件与保留天数
const (
	appLogFile       = "app.log"
	errorLogFile     = "error.log"
	appLogMaxAgeDays = 7
	errLogMaxAgeDays = 30
	logMaxSizeMB     = 100
)

var (
	logMu  sync.RWMutex
	logger = zap.New(consoleCore(zapcore.InfoLevel))
	rolls  []*lumberjack.Logger
	stopCh chan struct{}
)

func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceIDKey, id)
}

func TraceID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(traceIDKey).(string); ok {
		return id
	}
	return ""
}

// NewTraceID 取 uuid 前 8 位，足够在单机日志中区分请求。
func NewTraceID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// Setup 按级别与目录初始化日志；dir 为空时只输出控制台。可重复调用，后一次覆盖前一次。
func Setup(level, dir string) error {
	name := strings.ToLower(strings.TrimSpace(level))
	if name == "warning" {
		name = "warn"
	}
	lvl, err := zapcore.ParseLevel(name)
	if err != nil {
		return fmt.Errorf("trace: bad log level %q: %w", level, err)
	}
	cores := []zapcore.Core{consoleCore(lvl)}
	var newRolls []*lumberjack.Logger
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("trace: mkdir %s: %w", dir, err)
		}
		app := &lumberjack.Logger{
			Filename: filepath.Join(dir, appLogFile),
			MaxSize:  logMaxSizeMB,
			MaxAge:   appLogMaxAgeDays,
			Compress: true,
		}
		errLog := &lumberjack.Logger{
			Filename: filepath.Join(dir, errorLogFile),
			MaxSize:  logMaxSizeMB,
			MaxAge:   errLogMaxAgeDays,
			Compress: true,
		}
		newRolls = append(newRolls, app, errLog)
		cores = append(cores,
			zapcore.NewCore(fileEncoder(), zapcore.AddSync(app), zapcore.InfoLevel),
			zapcore.NewCore(fileEncoder(), zapcore.AddSync(errLog), zapcore.ErrorLevel),
		)
	}
	logMu.Lock()
	old := logger
	oldRolls := rolls
	logger = zap.New(zapcore.NewTee(cores...))
	rolls = newRolls
	if stopCh != nil {
		close(stopCh)
		stopCh = nil
	}
	if len(newRolls) > 0 {
		stopCh = make(chan struct{})
		go rotateDaily(newRolls, stopCh)
	}
	logMu.Unlock()
	_ = old.Sync()
	for _, r := range oldRolls {
		_ = r.Close()
	}
	return nil
}

// Close 刷新并关闭日志文件。
func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	_ = logger.Sync()
	if stopCh != nil {
		close(stopCh)
		stopCh = nil
	}
	for _, r := range rolls {
		_ = r.Close()
	}
	rolls = nil
}

// rotateDaily lumberjack 只按大小切分，这里补上每日零点切分。
func rotateDaily(rs []*lumberjack.Logger, stop <-chan struct{}) {
	for {
		now := time.Now()
		y, m, d := now.Date()
		next := time.Date(y, m, d+1, 0, 0, 0, 0, now.Location())
		select {
		case <-stop:
			return
		case <-time.After(time.Until(next)):
			for _, r := range rs {
				_ = r.Rotate()
			}
		}
	}
}

func consoleCore(lvl zapcore.Level) zapcore.Core {
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return zapcore.NewCore(zapcore.NewConsoleEncoder(cfg), zapcore.Lock(os.Stdout), lvl)
}

func fileEncoder() zapcore.Encoder {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000")
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return zapcore.NewConsoleEncoder(cfg)
}

func current() *zap.Logger {
	logMu.RLock()
	defer logMu.RUnlock()
	return logger
}

func line(ctx context.Context, format string, args ...interface{}) string {
	id := TraceID(ctx)
	if id == "" {
		id = "-"
	}
	return fmt.Sprintf("TRACE=%s | %s", id, fmt.Sprintf(format, args...))
}

// Log 打 info 日志，每行开头固定为 TRACE=id，便于一眼看到 trace 并 grep
func Log(ctx context.Context, format string, args ...interface{}) {
	current().Info(line(ctx, format, args...))
}

func Debug(ctx context.Context, format string, args ...interface{}) {
	current().Debug(line(ctx, format, args...))
}

func Warn(ctx context.Context, format string, args ...interface{}) {
	current().Warn(line(ctx, format, args...))
}

// Error 同时写入 error.log。
func Error(ctx context.Context, format string, args ...interface{}) {
	current().Error(line(ctx, format, args...))
}

// Logger 供需要结构化字段的调用方（如 HTTP 错误处理）使用。
func Logger() *zap.Logger {
	return current()
}
