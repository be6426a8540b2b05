package service

import (
	"testing"

	"fanecho/internal/model"
)

func successOutcomeWith(trust, excitement, backlash int) model.ReactionOutcome {
	return model.ReactionOutcome{
		Status:            model.OutcomeStatusSuccess,
		TrustScore:        &trust,
		ExcitementScore:   &excitement,
		BacklashRiskScore: &backlash,
	}
}

func failureOutcomeWith(reason model.FailureReason) model.ReactionOutcome {
	return model.ReactionOutcome{
		Status:        model.OutcomeStatusFailure,
		FailureReason: reason,
	}
}

// TestComputeAggregateAllSuccess 全员成功场景：逐维度求均值并判定整体情绪
func TestComputeAggregateAllSuccess(t *testing.T) {
	t.Log("===== 场景：5个persona全部成功 =====")

	outcomes := []model.ReactionOutcome{
		successOutcomeWith(6, 7, 3),
		successOutcomeWith(7, 8, 2),
		successOutcomeWith(5, 6, 4),
		successOutcomeWith(8, 7, 2),
		successOutcomeWith(6, 6, 3),
	}

	agg := ComputeAggregate(outcomes)

	if agg.SuccessCount != 5 || agg.FailureCount != 0 {
		t.Fatalf("计数错误: success=%d failure=%d", agg.SuccessCount, agg.FailureCount)
	}
	if agg.AvgTrust == nil || *agg.AvgTrust != 6.4 {
		t.Errorf("avg_trust 期望 6.4，实际 %v", agg.AvgTrust)
	}
	if agg.AvgExcitement == nil || *agg.AvgExcitement != 6.8 {
		t.Errorf("avg_excitement 期望 6.8，实际 %v", agg.AvgExcitement)
	}
	if agg.AvgBacklashRisk == nil || *agg.AvgBacklashRisk != 2.8 {
		t.Errorf("avg_backlash_risk 期望 2.8，实际 %v", agg.AvgBacklashRisk)
	}
	if agg.OverallSentiment != SentimentPositive {
		t.Errorf("整体情绪期望 %s，实际 %s", SentimentPositive, agg.OverallSentiment)
	}
}

// TestComputeAggregatePartialFailure 部分失败场景：均值只取成功的反应
func TestComputeAggregatePartialFailure(t *testing.T) {
	t.Log("===== 场景：3成功+2失败，均值只统计成功者 =====")

	outcomes := []model.ReactionOutcome{
		successOutcomeWith(4, 5, 5),
		failureOutcomeWith(model.FailureTimeout),
		successOutcomeWith(5, 5, 5),
		failureOutcomeWith(model.FailureInvalidResponse),
		successOutcomeWith(6, 5, 5),
	}

	agg := ComputeAggregate(outcomes)

	if agg.SuccessCount != 3 || agg.FailureCount != 2 {
		t.Fatalf("计数错误: success=%d failure=%d", agg.SuccessCount, agg.FailureCount)
	}
	if agg.AvgTrust == nil || *agg.AvgTrust != 5.0 {
		t.Errorf("avg_trust 期望 5.0，实际 %v", agg.AvgTrust)
	}
	if agg.SuccessCount+agg.FailureCount != len(outcomes) {
		t.Errorf("计数之和必须等于 persona 总数")
	}
}

// TestComputeAggregateTotalFailure 全员失败场景：均值为空而不是 0
func TestComputeAggregateTotalFailure(t *testing.T) {
	t.Log("===== 场景：0/5 成功，聚合不得伪造 0 分 =====")

	outcomes := []model.ReactionOutcome{
		failureOutcomeWith(model.FailureTimeout),
		failureOutcomeWith(model.FailureTimeout),
		failureOutcomeWith(model.FailureTransportError),
		failureOutcomeWith(model.FailureProviderError),
		failureOutcomeWith(model.FailureInvalidResponse),
	}

	agg := ComputeAggregate(outcomes)

	if agg.SuccessCount != 0 || agg.FailureCount != 5 {
		t.Fatalf("计数错误: success=%d failure=%d", agg.SuccessCount, agg.FailureCount)
	}
	if agg.AvgTrust != nil || agg.AvgExcitement != nil || agg.AvgBacklashRisk != nil {
		t.Errorf("零成功时均值必须为空: trust=%v excitement=%v backlash=%v",
			agg.AvgTrust, agg.AvgExcitement, agg.AvgBacklashRisk)
	}
	if agg.OverallSentiment != SentimentNeutral {
		t.Errorf("零成功时整体情绪期望 %s，实际 %s", SentimentNeutral, agg.OverallSentiment)
	}
}

// TestClassifySentiment 情绪判定规则及其单调性
func TestClassifySentiment(t *testing.T) {
	cases := []struct {
		name                         string
		trust, excitement, backlash  float64
		want                         string
	}{
		{"高信任高兴奋低风险", 8, 8, 2, SentimentPositive},
		{"临界正向", 6.4, 6.8, 2.8, SentimentPositive},
		{"中间地带", 5, 5, 4, SentimentNeutral},
		{"高风险压倒", 2, 2, 5, SentimentNegative},
		{"极端负向", 1, 1, 9, SentimentNegative},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := classifySentiment(c.trust, c.excitement, c.backlash)
			if got != c.want {
				t.Errorf("(%.1f, %.1f, %.1f) 期望 %s，实际 %s",
					c.trust, c.excitement, c.backlash, c.want, got)
			}
		})
	}

	// 单调性：其他维度不变时，提高 trust 不会让情绪变差
	rank := map[string]int{SentimentNegative: 0, SentimentNeutral: 1, SentimentPositive: 2}
	prev := classifySentiment(1, 5, 4)
	for trust := 2.0; trust <= 10; trust++ {
		cur := classifySentiment(trust, 5, 4)
		if rank[cur] < rank[prev] {
			t.Errorf("单调性破坏: trust=%.0f 时从 %s 降为 %s", trust, prev, cur)
		}
		prev = cur
	}
}
