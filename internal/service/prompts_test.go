package service

import (
	"strings"
	"testing"
)

// TestExtractJSON 剥离模型输出里的 markdown 代码块
func TestExtractJSON(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    string
	}{
		{"裸JSON", `{"a": 1}`, `{"a": 1}`},
		{"json代码块", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"无语言代码块", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"代码块前有文字", "Here is the result:\n```json\n{\"a\": 1}\n```", `{"a": 1}`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := extractJSON(c.content); got != c.want {
				t.Errorf("期望 %q，实际 %q", c.want, got)
			}
		})
	}
}

// TestBuildReactionPrompt 反应提示词必须携带 persona 特征与草稿全文
func TestBuildReactionPrompt(t *testing.T) {
	p := testPersona(1, "The Veteran")
	draft := "我们决定把下个版本的发售日推迟两个月"

	prompt := buildReactionPrompt(p, draft)

	for _, want := range []string{"The Veteran", "7/10", "Transparency", draft} {
		if !strings.Contains(prompt, want) {
			t.Errorf("提示词缺少 %q", want)
		}
	}
}

// TestParsePersonaGeneration persona 生成结果的数量与边界校验
func TestParsePersonaGeneration(t *testing.T) {
	valid := `{"personas": [
		{"name": "The Veteran", "archetype": "长期老粉", "loyalty_level": 9, "core_values": ["Community", "Transparency"]},
		{"name": "The Skeptic", "archetype": "谨慎观察者", "loyalty_level": 3, "core_values": ["Value for Money", "Honesty"]},
		{"name": "The Casual Fan", "archetype": "路过围观", "loyalty_level": 5, "core_values": ["Fun", "Convenience"]},
		{"name": "The Critic", "archetype": "公开批评者", "loyalty_level": 2, "core_values": ["Accountability", "Quality"]},
		{"name": "The Evangelist", "archetype": "自来水", "loyalty_level": 10, "core_values": ["Community", "Innovation"]}
	]}`

	personas, err := parsePersonaGeneration(valid, 5)
	if err != nil {
		t.Fatalf("合法输入解析失败: %v", err)
	}
	if len(personas) != 5 {
		t.Fatalf("期望 5 个 persona，实际 %d 个", len(personas))
	}

	invalid := []struct {
		name    string
		content string
	}{
		{"数量不足", `{"personas": [{"name": "A", "archetype": "B", "loyalty_level": 5, "core_values": ["x", "y"]}]}`},
		{"loyalty越界", strings.Replace(valid, `"loyalty_level": 9`, `"loyalty_level": 11`, 1)},
		{"core_values过少", strings.Replace(valid, `["Community", "Transparency"]`, `["Community"]`, 1)},
		{"缺少name", strings.Replace(valid, `"name": "The Veteran", `, ``, 1)},
	}
	for _, c := range invalid {
		t.Run(c.name, func(t *testing.T) {
			if _, err := parsePersonaGeneration(c.content, 5); err == nil {
				t.Error("非法输入应当整体拒绝")
			}
		})
	}
}

// TestParsePainPoints 痛点解析：severity 枚举校验 + 最多 5 条
func TestParsePainPoints(t *testing.T) {
	var entries []string
	for i := 0; i < 7; i++ {
		entries = append(entries, `{"text": "涨价公告的措辞", "severity": "high", "affected_personas": ["The Critic"], "reasoning": "直接触发抵触"}`)
	}
	content := "[" + strings.Join(entries, ",") + "]"

	points, err := parsePainPoints(content)
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if len(points) != 5 {
		t.Errorf("痛点最多 5 条，实际 %d 条", len(points))
	}

	if _, err := parsePainPoints(`[{"text": "x", "severity": "catastrophic"}]`); err == nil {
		t.Error("非法 severity 应当拒绝")
	}
	if _, err := parsePainPoints(`[{"severity": "high"}]`); err == nil {
		t.Error("缺少 text 应当拒绝")
	}
}

// TestParseImprovementTips 改进建议解析：非空 + 截断到 3 条
func TestParseImprovementTips(t *testing.T) {
	var entries []string
	for i := 0; i < 5; i++ {
		entries = append(entries, `{"tip": "把涨价原因放在第一段说明", "rationale": "信任分数最低的痛点", "impact": "high", "addresses": ["涨价公告的措辞"]}`)
	}
	content := "[" + strings.Join(entries, ",") + "]"

	tips, err := parseImprovementTips(content)
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if len(tips) != 3 {
		t.Errorf("建议必须截断到 3 条，实际 %d 条", len(tips))
	}

	if _, err := parseImprovementTips(`[]`); err == nil {
		t.Error("空建议列表应当拒绝")
	}
	if _, err := parseImprovementTips(`[{"tip": "x", "impact": "huge"}]`); err == nil {
		t.Error("非法 impact 应当拒绝")
	}
}
