package service

import (
	"context"
	"log"
	"time"

	"fanecho/internal/model"
)

// runReaction 一个 Reaction 任务：一个 (persona, draft) 对产出恰好一个
// ReactionOutcome，无论发生什么都不向外抛错误。
//
// taskTimeout 覆盖单次调用加至多一次重试的总时长；重试只针对
// timeout/transport_error，结构校验失败（invalid_response）是确定性的内容
// 失败，重试无意义。
func runReaction(ctx context.Context, gateway LLMGateway, persona *model.Persona, draftContent string, taskTimeout time.Duration) model.ReactionOutcome {
	outcome := model.ReactionOutcome{
		PersonaID:   persona.ID,
		PersonaName: persona.Name,
	}

	taskCtx, cancel := context.WithTimeout(ctx, taskTimeout)
	defer cancel()

	req := ChatRequest{
		Messages: []ChatMessage{
			{Role: "system", Content: personaReactionSystemPrompt},
			{Role: "user", Content: buildReactionPrompt(persona, draftContent)},
		},
		MaxTokens: 800,
	}

	resp, gerr := invokeWithRetry(taskCtx, gateway, req)
	if gerr != nil {
		log.Printf("[simulation] persona=%s 反应调用失败: %v", persona.Name, gerr)
		outcome.Status = model.OutcomeStatusFailure
		outcome.FailureReason = gerr.Reason
		return outcome
	}

	ans, err := parseReactionAnswer(resp.Content)
	if err != nil {
		log.Printf("[simulation] persona=%s 反应响应校验失败: %v", persona.Name, err)
		outcome.Status = model.OutcomeStatusFailure
		outcome.FailureReason = model.FailureInvalidResponse
		return outcome
	}

	outcome.Status = model.OutcomeStatusSuccess
	outcome.TrustScore = ans.Scores.Trust
	outcome.ExcitementScore = ans.Scores.Excitement
	outcome.BacklashRiskScore = ans.Scores.BacklashRisk
	outcome.InternalMonologue = *ans.InternalMonologue
	outcome.PublicComment = *ans.PublicComment
	outcome.Reasoning = *ans.Reasoning
	return outcome
}
