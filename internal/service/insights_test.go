package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"fanecho/internal/model"
)

// TestDimensionDelta 偏差计算与离群判定
func TestDimensionDelta(t *testing.T) {
	avg := 6.4

	d := dimensionDelta(9, &avg)
	if d == nil {
		t.Fatal("均值存在时偏差不应为空")
	}
	if d.Deviation != 2.6 {
		t.Errorf("偏差期望 2.6，实际 %v", d.Deviation)
	}
	if !d.Outlier {
		t.Error("偏差 2.6 >= 2.5，应判定为离群")
	}

	d = dimensionDelta(5, &avg)
	if d.Outlier {
		t.Errorf("偏差 %v 不应判定为离群", d.Deviation)
	}

	// 阈值本身不算离群，必须严格大于 2.5
	edge := 6.5
	d = dimensionDelta(9, &edge)
	if d.Deviation != 2.5 || d.Outlier {
		t.Errorf("偏差恰为 2.5 不应判定为离群: deviation=%v outlier=%v", d.Deviation, d.Outlier)
	}

	// 负向偏离同样算离群
	d = dimensionDelta(3, &avg)
	if d.Deviation != -3.4 || !d.Outlier {
		t.Errorf("负向偏差期望 -3.4 且离群，实际 %v outlier=%v", d.Deviation, d.Outlier)
	}

	if dimensionDelta(5, nil) != nil {
		t.Error("均值缺失时（零成功run）偏差必须为空")
	}
}

// TestSynthesizePainPointsFeedbackOrder 注入提示词的反馈必须按 backlash 降序，
// 与结果集合的存储顺序无关
func TestSynthesizePainPointsFeedbackOrder(t *testing.T) {
	var captured string
	gw := &fakeGateway{fn: func(call int, req ChatRequest) (*ChatResponse, *GatewayError) {
		captured = req.Messages[1].Content
		return &ChatResponse{Content: `[{"text": "涨价公告的措辞", "severity": "high", "affected_personas": ["The Critic"], "reasoning": "触发抵触"}]`}, nil
	}}
	s := &InsightService{gateway: gw, taskTimeout: 5 * time.Second}

	mild := successOutcomeWith(7, 7, 2)
	mild.PersonaName = "The Evangelist"
	harsh := successOutcomeWith(3, 2, 9)
	harsh.PersonaName = "The Critic"
	middling := successOutcomeWith(5, 5, 5)
	middling.PersonaName = "The Skeptic"

	_, err := s.synthesizePainPoints(context.Background(), "我们决定把下个版本的发售日推迟两个月", []model.ReactionOutcome{mild, harsh, middling})
	if err != nil {
		t.Fatalf("痛点合成失败: %v", err)
	}

	critic := strings.Index(captured, "The Critic")
	skeptic := strings.Index(captured, "The Skeptic")
	evangelist := strings.Index(captured, "The Evangelist")
	if critic < 0 || skeptic < 0 || evangelist < 0 {
		t.Fatal("提示词缺少 persona 反馈")
	}
	if !(critic < skeptic && skeptic < evangelist) {
		t.Errorf("反馈顺序必须按 backlash 降序: critic=%d skeptic=%d evangelist=%d", critic, skeptic, evangelist)
	}
}

// TestDecodeInsight 落库的洞察能完整解码
func TestDecodeInsight(t *testing.T) {
	avg := 6.4
	insight := &model.Insight{
		SimulationID:        "sim-1",
		PainPointsJSON:      `[{"text": "涨价公告的措辞", "severity": "high", "affected_personas": ["The Critic"], "reasoning": "触发抵触"}]`,
		ImprovementTipsJSON: `[{"tip": "先解释原因再公布价格", "rationale": "缓冲负面反应", "impact": "high", "addresses": ["涨价公告的措辞"]}]`,
		OverallSentiment:    SentimentNeutral,
		AvgTrust:            &avg,
	}

	result, err := decodeInsight(insight, true)
	if err != nil {
		t.Fatalf("解码失败: %v", err)
	}
	if len(result.PainPoints) != 1 || result.PainPoints[0].Severity != "high" {
		t.Errorf("痛点解码错误: %+v", result.PainPoints)
	}
	if len(result.ImprovementTips) != 1 {
		t.Errorf("建议解码错误: %+v", result.ImprovementTips)
	}
	if !result.Cached {
		t.Error("缓存标记丢失")
	}

	insight.PainPointsJSON = "not json"
	if _, err := decodeInsight(insight, false); err == nil {
		t.Error("损坏的 JSON 应当报错")
	}
}
