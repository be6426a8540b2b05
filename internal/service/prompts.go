package service

import (
	"encoding/json"
	"fmt"
	"strings"

	"fanecho/internal/model"
)

const personaGenerationSystemPrompt = `You are an expert at creating realistic audience personas for market research and content testing. Your personas should represent diverse viewpoints within a target audience, ranging from enthusiastic supporters to skeptical critics.

When given an audience description, generate exactly 5 distinct personas that capture the spectrum of that audience's perspectives. Each persona should feel authentic and grounded in real human psychology.`

const personaReactionSystemPrompt = `You are simulating the reaction of a specific persona to content. Your goal is to provide authentic, psychologically realistic responses that reflect the persona's traits, loyalty level, and core values.

You will provide TWO types of responses:
1. Internal Monologue: the persona's brutally honest, unfiltered internal thoughts
2. Public Comment: what they would actually type in a public comment section (may be more measured)

You will also score the content on three dimensions (1-10 scale):
- Trust: how much they trust the brand/creator after reading this
- Excitement: their enthusiasm level about the announcement
- Backlash Risk: likelihood they would publicly criticize or spread negative sentiment`

const painPointSystemPrompt = `You are an expert at analyzing social media reactions and identifying problematic content. You must respond ONLY with a valid JSON array, no other text.`

const improvementTipsSystemPrompt = `You are an expert social media strategist who provides actionable, specific advice. You must respond ONLY with a valid JSON array containing exactly 3 tips, no other text.`

// buildPersonaGenerationPrompt 根据受众描述生成 5 个 persona 的用户提示词
func buildPersonaGenerationPrompt(audienceDescription string) string {
	var prompt strings.Builder
	prompt.WriteString("Generate exactly 5 distinct personas for the following target audience:\n\n")
	prompt.WriteString(fmt.Sprintf("Audience Description: %s\n\n", audienceDescription))
	prompt.WriteString(`For each persona, provide:
1. "name": a memorable archetype name (e.g., "The Veteran", "The Skeptic", "The Casual Fan")
2. "archetype": a concise description (2-5 words preferred, max 15 words)
3. "loyalty_level": an integer from 1-10, where 1 is "barely interested" and 10 is "die-hard fan"
4. "core_values": 2-4 key values that drive their decisions (e.g., "Transparency", "Value for Money", "Community")

Ensure the 5 personas represent diverse perspectives:
- Include both optimistic (high loyalty) and skeptical (low loyalty) personas
- Vary the core values to represent different priorities
- Make each archetype distinct and memorable

Respond ONLY with valid JSON in this exact format:
{"personas": [{"name": "...", "archetype": "...", "loyalty_level": 7, "core_values": ["...", "..."]}]}
`)
	return prompt.String()
}

// buildReactionPrompt 构建单个 persona 对草稿的反应提示词
func buildReactionPrompt(persona *model.Persona, draftContent string) string {
	var prompt strings.Builder
	prompt.WriteString("You are simulating this persona:\n\n")
	prompt.WriteString(fmt.Sprintf("Name: %s\n", persona.Name))
	prompt.WriteString(fmt.Sprintf("Archetype: %s\n", persona.Archetype))
	prompt.WriteString(fmt.Sprintf("Loyalty Level: %d/10\n", persona.LoyaltyLevel))
	prompt.WriteString(fmt.Sprintf("Core Values: %s\n", strings.Join(persona.CoreValues(), ", ")))
	prompt.WriteString(fmt.Sprintf("Audience Context: %s\n\n", persona.AudienceDescription))
	prompt.WriteString("React to this content:\n\n---\n")
	prompt.WriteString(draftContent)
	prompt.WriteString("\n---\n\n")
	prompt.WriteString(`Provide YOUR response in this exact JSON format:
{
  "internal_monologue": "Your honest, unfiltered thoughts (100-300 chars)",
  "public_comment": "What you'd actually post publicly (50-200 chars)",
  "scores": {"trust": 5, "excitement": 3, "backlash_risk": 7},
  "reasoning": "Brief explanation for your scores"
}

Remember:
- Stay true to your loyalty level and core values
- Internal monologue can be more extreme than public comment
- Scores must be integers from 1-10
- Be specific about what triggered your reaction
`)
	return prompt.String()
}

// buildPainPointPrompt 痛点提取提示词：persona 反馈按 backlash 分数降序排列后注入
func buildPainPointPrompt(draftContent string, feedbackJSON string) string {
	var prompt strings.Builder
	prompt.WriteString("You are analyzing persona reactions to identify problematic content in a social media draft.\n\n")
	prompt.WriteString(fmt.Sprintf("Draft Content:\n%s\n\n", draftContent))
	prompt.WriteString(fmt.Sprintf("Persona Feedback (sorted by backlash score):\n%s\n\n", feedbackJSON))
	prompt.WriteString(`Identify up to 5 pain points - specific phrases or concepts in the draft that triggered negative reactions.

For each pain point, provide:
1. "text": the exact phrase from the draft (or short paraphrase if conceptual)
2. "severity": "high" | "medium" | "low" (based on backlash scores)
3. "affected_personas": list of persona names who reacted negatively
4. "reasoning": why this is problematic (synthesize from persona reasoning)

Rank by severity (highest first). Respond ONLY with a valid JSON array. Do not include any other text.
`)
	return prompt.String()
}

// buildImprovementTipsPrompt 改进建议提示词：注入聚合分析、persona 摘要与已识别的痛点
func buildImprovementTipsPrompt(draftContent, analyticsJSON, summariesJSON, painPointsJSON string) string {
	var prompt strings.Builder
	prompt.WriteString("You are a social media strategist providing actionable advice to improve draft content.\n\n")
	prompt.WriteString(fmt.Sprintf("Draft Content:\n%s\n\n", draftContent))
	prompt.WriteString(fmt.Sprintf("Aggregate Analytics:\n%s\n\n", analyticsJSON))
	prompt.WriteString(fmt.Sprintf("Persona Summaries:\n%s\n\n", summariesJSON))
	prompt.WriteString(fmt.Sprintf("Identified Pain Points:\n%s\n\n", painPointsJSON))
	prompt.WriteString(`Generate EXACTLY 3 actionable improvement tips that would most effectively improve the draft.

For each tip, provide:
1. "tip": specific, actionable suggestion (not generic advice)
2. "rationale": why this would help, based on the data
3. "impact": "high" | "medium" | "low" (estimated improvement potential)
4. "addresses": list of pain point texts this tip would fix

Requirements:
- Tips must be SPECIFIC to this draft (avoid generic advice like "be more authentic")
- Tips should address the highest severity pain points first
- Tips should be immediately actionable
- Rank tips by potential impact (highest first)

Respond ONLY with a valid JSON array of exactly 3 tips. Do not include any other text.
`)
	return prompt.String()
}

// extractJSON 剥离模型偶尔包裹的 markdown 代码块，返回内部 JSON 文本
func extractJSON(content string) string {
	content = strings.TrimSpace(content)
	if idx := strings.Index(content, "```json"); idx >= 0 {
		content = content[idx+len("```json"):]
		if end := strings.Index(content, "```"); end >= 0 {
			content = content[:end]
		}
		return strings.TrimSpace(content)
	}
	if idx := strings.Index(content, "```"); idx >= 0 {
		content = content[idx+len("```"):]
		if end := strings.Index(content, "```"); end >= 0 {
			content = content[:end]
		}
		return strings.TrimSpace(content)
	}
	return content
}

// reactionAnswer 反应调用的严格响应结构。
// 指针字段用于区分“缺字段”和“零值”，任何缺失/越界都按 invalid_response 处理。
type reactionAnswer struct {
	InternalMonologue *string `json:"internal_monologue"`
	PublicComment     *string `json:"public_comment"`
	Scores            *struct {
		Trust        *int `json:"trust"`
		Excitement   *int `json:"excitement"`
		BacklashRisk *int `json:"backlash_risk"`
	} `json:"scores"`
	Reasoning *string `json:"reasoning"`
}

// parseReactionAnswer 把模型输出解析为经过范围校验的反应结果；
// 越界或非整数分数视为整体解析失败，不算部分成功
func parseReactionAnswer(content string) (*reactionAnswer, error) {
	var ans reactionAnswer
	if err := json.Unmarshal([]byte(extractJSON(content)), &ans); err != nil {
		return nil, fmt.Errorf("解析反应JSON失败: %w", err)
	}
	if ans.InternalMonologue == nil || ans.PublicComment == nil || ans.Scores == nil || ans.Reasoning == nil {
		return nil, fmt.Errorf("反应响应缺少必需字段")
	}
	for name, score := range map[string]*int{
		"trust":         ans.Scores.Trust,
		"excitement":    ans.Scores.Excitement,
		"backlash_risk": ans.Scores.BacklashRisk,
	} {
		if score == nil {
			return nil, fmt.Errorf("反应响应缺少分数: %s", name)
		}
		if *score < 1 || *score > 10 {
			return nil, fmt.Errorf("分数越界: %s=%d（必须在 1-10）", name, *score)
		}
	}
	return &ans, nil
}

type generatedPersona struct {
	Name         string   `json:"name"`
	Archetype    string   `json:"archetype"`
	LoyaltyLevel int      `json:"loyalty_level"`
	CoreValues   []string `json:"core_values"`
}

// parsePersonaGeneration 解析并校验 persona 生成响应：数量必须恰好等于
// expected，loyalty 1-10，core_values 2-4 个
func parsePersonaGeneration(content string, expected int) ([]generatedPersona, error) {
	var resp struct {
		Personas []generatedPersona `json:"personas"`
	}
	if err := json.Unmarshal([]byte(extractJSON(content)), &resp); err != nil {
		return nil, fmt.Errorf("解析persona生成JSON失败: %w", err)
	}
	if len(resp.Personas) != expected {
		return nil, fmt.Errorf("persona 数量错误: 期望 %d，实际 %d", expected, len(resp.Personas))
	}
	for i, p := range resp.Personas {
		if p.Name == "" || p.Archetype == "" {
			return nil, fmt.Errorf("第 %d 个 persona 缺少 name/archetype", i+1)
		}
		if p.LoyaltyLevel < 1 || p.LoyaltyLevel > 10 {
			return nil, fmt.Errorf("第 %d 个 persona loyalty_level 越界: %d", i+1, p.LoyaltyLevel)
		}
		if len(p.CoreValues) < 2 || len(p.CoreValues) > 4 {
			return nil, fmt.Errorf("第 %d 个 persona core_values 数量越界: %d", i+1, len(p.CoreValues))
		}
	}
	return resp.Personas, nil
}

// PainPoint 草稿中的问题片段
type PainPoint struct {
	Text             string   `json:"text"`
	Severity         string   `json:"severity"`
	AffectedPersonas []string `json:"affected_personas"`
	Reasoning        string   `json:"reasoning"`
}

// ImprovementTip 可执行的改进建议
type ImprovementTip struct {
	Tip       string   `json:"tip"`
	Rationale string   `json:"rationale"`
	Impact    string   `json:"impact"`
	Addresses []string `json:"addresses"`
}

func validSeverity(s string) bool {
	return s == "high" || s == "medium" || s == "low"
}

// parsePainPoints 解析痛点数组；最多保留 5 条
func parsePainPoints(content string) ([]PainPoint, error) {
	var points []PainPoint
	if err := json.Unmarshal([]byte(extractJSON(content)), &points); err != nil {
		return nil, fmt.Errorf("解析痛点JSON失败: %w", err)
	}
	for i, p := range points {
		if p.Text == "" {
			return nil, fmt.Errorf("第 %d 个痛点缺少 text", i+1)
		}
		if !validSeverity(p.Severity) {
			return nil, fmt.Errorf("第 %d 个痛点 severity 非法: %q", i+1, p.Severity)
		}
	}
	if len(points) > 5 {
		points = points[:5]
	}
	return points, nil
}

// parseImprovementTips 解析改进建议数组；多于 3 条时截断到 3 条
func parseImprovementTips(content string) ([]ImprovementTip, error) {
	var tips []ImprovementTip
	if err := json.Unmarshal([]byte(extractJSON(content)), &tips); err != nil {
		return nil, fmt.Errorf("解析改进建议JSON失败: %w", err)
	}
	if len(tips) == 0 {
		return nil, fmt.Errorf("改进建议为空")
	}
	for i, t := range tips {
		if t.Tip == "" {
			return nil, fmt.Errorf("第 %d 条建议缺少 tip", i+1)
		}
		if !validSeverity(t.Impact) {
			return nil, fmt.Errorf("第 %d 条建议 impact 非法: %q", i+1, t.Impact)
		}
	}
	if len(tips) > 3 {
		tips = tips[:3]
	}
	return tips, nil
}
