// Package llm 调用 OpenAI 兼容接口，对资金流表格做流式文字解读。
package llm

import (
	"context"
	"errors"
	"io"
	"math"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"stockFundFlow/internal/errs"
	"stockFundFlow/internal/trace"
)

// 默认参数
const (
	DefaultBaseURL     = "https://api.openai.com/v1"
	DefaultModel       = "gpt-3.5-turbo"
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 1500
	DefaultTimeout     = 120 * time.Second
	pingMaxTokens      = 10
	pingTimeout        = 20 * time.Second
)

type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	// Temperature 为 nil 时使用 DefaultTemperature
	Temperature *float32
	MaxTokens   int
	Timeout     time.Duration
}

// Enabled 是否配置了 API Key。
func (c Config) Enabled() bool {
	return strings.TrimSpace(c.APIKey) != ""
}

type Narrator struct {
	cfg    Config
	client *openai.Client
}

// NewNarrator 缺省字段用默认值补齐；未配置 API Key 时仍返回实例，调用时报 NarrationUnavailable。
func NewNarrator(cfg Config) *Narrator {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	temp := float32(DefaultTemperature)
	if cfg.Temperature != nil {
		temp = *cfg.Temperature
	}
	cfg.Temperature = &temp
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Narrator{cfg: cfg, client: openai.NewClientWithConfig(oc)}
}

func (n *Narrator) Model() string { return n.cfg.Model }

// requestTemperature 请求体对 0 值省略 temperature 字段，服务端会回落到自身默认值，
// 显式 0 因此以最小正数发送。
func (n *Narrator) requestTemperature() float32 {
	if *n.cfg.Temperature == 0 {
		return math.SmallestNonzeroFloat32
	}
	return *n.cfg.Temperature
}

func (n *Narrator) Enabled() bool { return n != nil && n.cfg.Enabled() }

// Narrate 流式解读，每收到一段文本调用一次 onChunk。已回调的片段不会撤回；
// onChunk 返回错误时立即停止并原样返回该错误。
func (n *Narrator) Narrate(ctx context.Context, req Request, onChunk func(string) error) error {
	if !n.Enabled() {
		return errs.New(errs.CodeNarrationUnavailable, "未配置 OPENAI_API_KEY，无法生成 AI 解读")
	}
	prompt := BuildPrompt(req)
	trace.Log(ctx, "llm: === 分析提示词 ===\n%s\n=== 提示词结束 ===", prompt)
	trace.Log(ctx, "llm: 开始分析 %s model=%s timeout=%s", req.Code, n.cfg.Model, n.cfg.Timeout)

	tctx, cancel := context.WithTimeout(ctx, n.cfg.Timeout)
	defer cancel()
	stream, err := n.client.CreateChatCompletionStream(tctx, openai.ChatCompletionRequest{
		Model: n.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Stream:      true,
		Temperature: n.requestTemperature(),
		MaxTokens:   n.cfg.MaxTokens,
	})
	if err != nil {
		return n.classify(ctx, tctx, err)
	}
	defer stream.Close()

	chunks := 0
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			trace.Log(ctx, "llm: 分析完成 chunks=%d", chunks)
			return nil
		}
		if err != nil {
			return n.classify(ctx, tctx, err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		text := resp.Choices[0].Delta.Content
		if text == "" {
			continue
		}
		chunks++
		if err := onChunk(text); err != nil {
			trace.Log(ctx, "llm: 下游中止 chunks=%d err=%v", chunks, err)
			return err
		}
	}
}

// classify 超时归为 NarrationTimeout，其余归为 NarrationUnavailable。
func (n *Narrator) classify(parent, tctx context.Context, err error) error {
	if parent.Err() == nil && errors.Is(tctx.Err(), context.DeadlineExceeded) {
		trace.Error(parent, "llm: 超时 %s err=%v", n.cfg.Timeout, err)
		return errs.Wrap(errs.CodeNarrationTimeout, err, "AI 解读超时（%s）", n.cfg.Timeout)
	}
	if errors.Is(parent.Err(), context.DeadlineExceeded) {
		trace.Error(parent, "llm: 超时 err=%v", err)
		return errs.Wrap(errs.CodeNarrationTimeout, err, "AI 解读超时")
	}
	trace.Error(parent, "llm: 调用失败 err=%v", err)
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return errs.Wrap(errs.CodeNarrationUnavailable, err, "AI 服务返回错误（HTTP %d）", apiErr.HTTPStatusCode)
	}
	return errs.Wrap(errs.CodeNarrationUnavailable, err, "AI 服务不可用")
}

// Ping 发送一条极短请求验证地址、密钥与模型是否可用。
func (n *Narrator) Ping(ctx context.Context) error {
	if !n.Enabled() {
		return errs.New(errs.CodeNarrationUnavailable, "未配置 OPENAI_API_KEY")
	}
	trace.Log(ctx, "llm: 测试连接 base=%s model=%s", n.cfg.BaseURL, n.cfg.Model)
	timeout := pingTimeout
	if n.cfg.Timeout < timeout {
		timeout = n.cfg.Timeout
	}
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	_, err := n.client.CreateChatCompletion(tctx, openai.ChatCompletionRequest{
		Model:     n.cfg.Model,
		Messages:  []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: "Hello"}},
		MaxTokens: pingMaxTokens,
	})
	if err != nil {
		return n.classify(ctx, tctx, err)
	}
	trace.Log(ctx, "llm: 连接测试成功")
	return nil
}
