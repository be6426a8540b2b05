package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"fanecho/internal/config"
	"fanecho/internal/model"

	"golang.org/x/time/rate"
)

// GatewayError 网关层的类型化失败：只区分 timeout / transport_error / provider_error。
// 内容是否合法由调用方（Reaction 任务）校验，网关不关心。
type GatewayError struct {
	Reason model.FailureReason
	Err    error
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return string(e.Reason)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Messages    []ChatMessage
	Temperature float64
	MaxTokens   int
}

type ChatResponse struct {
	Content string
	Usage   struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	}
}

// LLMGateway 统一调用契约：给定结构化提示词，返回结构化输出或类型化失败。
// 超时通过 ctx 传入；限流是网关内部的事，编排器不做串行化。
type LLMGateway interface {
	Invoke(ctx context.Context, req ChatRequest) (*ChatResponse, *GatewayError)
}

// LLMClient OpenAI 兼容端点（chat/completions）的网关实现
type LLMClient struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int

	Client  *http.Client
	limiter *rate.Limiter
}

func NewLLMClient(cfg config.LLMConfig) *LLMClient {
	var limiter *rate.Limiter
	if cfg.RateLimitPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitPerSecond), 1)
	}

	return &LLMClient{
		BaseURL:     cfg.BaseURL,
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		limiter:     limiter,
		Client: &http.Client{
			// 兜底超时；每次调用的精确超时由 ctx 控制
			Timeout: time.Duration(cfg.RequestTimeoutSeconds+5) * time.Second,
		},
	}
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

func (c *LLMClient) Invoke(ctx context.Context, req ChatRequest) (*ChatResponse, *GatewayError) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			// 限流等待期间超时/取消，按 timeout 处理
			return nil, &GatewayError{Reason: model.FailureTimeout, Err: err}
		}
	}

	temperature := req.Temperature
	if temperature == 0 {
		temperature = c.Temperature
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.MaxTokens
	}

	reqBody := chatCompletionRequest{
		Model:       c.Model,
		Messages:    req.Messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, &GatewayError{Reason: model.FailureTransportError, Err: fmt.Errorf("序列化请求失败: %w", err)}
	}

	url := fmt.Sprintf("%s/chat/completions", c.BaseURL)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, &GatewayError{Reason: model.FailureTransportError, Err: fmt.Errorf("创建请求失败: %w", err)}
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.APIKey))

	resp, err := c.Client.Do(httpReq)
	if err != nil {
		return nil, classifyTransportError(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		// 尝试解析错误信息
		var errResp struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(body, &errResp) == nil && errResp.Error.Message != "" {
			return nil, &GatewayError{
				Reason: model.FailureProviderError,
				Err:    fmt.Errorf("API返回错误: %d, %s", resp.StatusCode, errResp.Error.Message),
			}
		}
		// 无法解析则返回原始body（截取前500字符避免过长）
		bodyStr := string(body)
		if len(bodyStr) > 500 {
			bodyStr = bodyStr[:500] + "..."
		}
		return nil, &GatewayError{
			Reason: model.FailureProviderError,
			Err:    fmt.Errorf("API返回错误: %d, %s", resp.StatusCode, bodyStr),
		}
	}

	var chatResp chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, &GatewayError{Reason: model.FailureTransportError, Err: fmt.Errorf("解析响应失败: %w", err)}
	}

	if len(chatResp.Choices) == 0 {
		return nil, &GatewayError{Reason: model.FailureProviderError, Err: fmt.Errorf("响应缺少choices")}
	}

	out := &ChatResponse{Content: chatResp.Choices[0].Message.Content}
	out.Usage.PromptTokens = chatResp.Usage.PromptTokens
	out.Usage.CompletionTokens = chatResp.Usage.CompletionTokens
	out.Usage.TotalTokens = chatResp.Usage.TotalTokens
	return out, nil
}

// classifyTransportError 区分超时与一般传输失败
func classifyTransportError(ctx context.Context, err error) *GatewayError {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(ctx.Err(), context.Canceled) {
		return &GatewayError{Reason: model.FailureTimeout, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &GatewayError{Reason: model.FailureTimeout, Err: err}
	}
	return &GatewayError{Reason: model.FailureTransportError, Err: fmt.Errorf("请求失败: %w", err)}
}

// invokeWithRetry 调用一次，失败且属可重试类型（timeout/transport_error）时
// 用相同输入再试恰好一次。invalid_response 由调用方判定，永不进入这里的重试。
func invokeWithRetry(ctx context.Context, gateway LLMGateway, req ChatRequest) (*ChatResponse, *GatewayError) {
	resp, gerr := gateway.Invoke(ctx, req)
	if gerr == nil {
		return resp, nil
	}
	if !gerr.Reason.Retryable() {
		return nil, gerr
	}
	// ctx 已耗尽就不再浪费一次调用
	if ctx.Err() != nil {
		return nil, gerr
	}
	return gateway.Invoke(ctx, req)
}
