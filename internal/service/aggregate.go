package service

import (
	"math"

	"fanecho/internal/model"
)

const (
	SentimentPositive = "positive"
	SentimentNeutral  = "neutral"
	SentimentNegative = "negative"
)

// AggregateSummary 对一个结果集合的派生汇总：随时可以从同一批
// ReactionOutcome 重新算出，本身不是独立事实
type AggregateSummary struct {
	// 均值只统计 success 结果；零成功时为 nil（显式未定义，不是 0.0）
	AvgTrust        *float64 `json:"avg_trust"`
	AvgExcitement   *float64 `json:"avg_excitement"`
	AvgBacklashRisk *float64 `json:"avg_backlash_risk"`

	SuccessCount int `json:"success_count"`
	FailureCount int `json:"failure_count"`

	OverallSentiment string `json:"overall_sentiment"`
}

// ComputeAggregate 纯函数：无 I/O、无重试、无副作用
func ComputeAggregate(outcomes []model.ReactionOutcome) AggregateSummary {
	summary := AggregateSummary{OverallSentiment: SentimentNeutral}

	var totalTrust, totalExcitement, totalBacklash int
	for _, o := range outcomes {
		if !o.Succeeded() {
			summary.FailureCount++
			continue
		}
		summary.SuccessCount++
		totalTrust += *o.TrustScore
		totalExcitement += *o.ExcitementScore
		totalBacklash += *o.BacklashRiskScore
	}

	if summary.SuccessCount == 0 {
		return summary
	}

	n := float64(summary.SuccessCount)
	summary.AvgTrust = round2(float64(totalTrust) / n)
	summary.AvgExcitement = round2(float64(totalExcitement) / n)
	summary.AvgBacklashRisk = round2(float64(totalBacklash) / n)
	summary.OverallSentiment = classifySentiment(*summary.AvgTrust, *summary.AvgExcitement, *summary.AvgBacklashRisk)

	return summary
}

// classifySentiment 固定阈值规则（backlash 权重加倍）：
//
//	positive: trust+excitement > 2*backlash + 3
//	negative: 2*backlash > trust+excitement + 3
//	其余为 neutral
//
// 三个维度同时变好（trust/excitement 上升、backlash 下降）只会向 positive 方向移动
func classifySentiment(avgTrust, avgExcitement, avgBacklash float64) string {
	positiveScore := avgTrust + avgExcitement
	negativeScore := avgBacklash * 2

	switch {
	case positiveScore > negativeScore+3:
		return SentimentPositive
	case negativeScore > positiveScore+3:
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}

func round2(v float64) *float64 {
	r := math.Round(v*100) / 100
	return &r
}
