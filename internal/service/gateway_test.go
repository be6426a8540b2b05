package service

import (
	"context"
	"encoding/json"
	"sync"
)

// fakeGateway 可编程的测试网关：按调用序号返回预设结果，并记录调用次数
type fakeGateway struct {
	mu    sync.Mutex
	calls int
	fn    func(call int, req ChatRequest) (*ChatResponse, *GatewayError)
}

func (f *fakeGateway) Invoke(ctx context.Context, req ChatRequest) (*ChatResponse, *GatewayError) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.mu.Unlock()
	return f.fn(call, req)
}

func (f *fakeGateway) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// reactionContent 构造一条合法的反应响应 JSON
func reactionContent(trust, excitement, backlash int) string {
	body := map[string]any{
		"internal_monologue": "说实话这条内容让我有点犹豫，不过整体还能接受",
		"public_comment":     "有点意思，观望一下",
		"scores": map[string]int{
			"trust":         trust,
			"excitement":    excitement,
			"backlash_risk": backlash,
		},
		"reasoning": "分数基于内容与我的核心价值观的匹配程度",
	}
	data, _ := json.Marshal(body)
	return string(data)
}

func successResponse(trust, excitement, backlash int) *ChatResponse {
	return &ChatResponse{Content: reactionContent(trust, excitement, backlash)}
}
