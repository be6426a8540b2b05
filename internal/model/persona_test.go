package model

import (
	"strings"
	"testing"
)

func TestPersonaValidate(t *testing.T) {
	base := func() *Persona {
		p := &Persona{
			SetID:        "set-1",
			Name:         "The Veteran",
			Archetype:    "长期老粉",
			LoyaltyLevel: 7,
		}
		_ = p.SetCoreValues([]string{"Community", "Transparency"})
		return p
	}

	if err := base().Validate(); err != nil {
		t.Fatalf("合法 persona 校验失败: %v", err)
	}

	t.Run("loyalty越界", func(t *testing.T) {
		p := base()
		p.LoyaltyLevel = 0
		if p.Validate() == nil {
			t.Error("loyalty_level=0 应当拒绝")
		}
		p.LoyaltyLevel = 11
		if p.Validate() == nil {
			t.Error("loyalty_level=11 应当拒绝")
		}
	})

	t.Run("core_values数量越界", func(t *testing.T) {
		p := base()
		_ = p.SetCoreValues([]string{"Community"})
		if p.Validate() == nil {
			t.Error("1 个核心价值观应当拒绝")
		}
		_ = p.SetCoreValues([]string{"a", "b", "c", "d", "e"})
		if p.Validate() == nil {
			t.Error("5 个核心价值观应当拒绝")
		}
	})

	t.Run("名称为空", func(t *testing.T) {
		p := base()
		p.Name = ""
		if p.Validate() == nil {
			t.Error("空名称应当拒绝")
		}
	})
}

func TestPersonaCoreValuesRoundTrip(t *testing.T) {
	p := &Persona{}
	values := []string{"Transparency", "Value for Money", "社区归属感"}
	if err := p.SetCoreValues(values); err != nil {
		t.Fatalf("序列化失败: %v", err)
	}
	got := p.CoreValues()
	if len(got) != len(values) {
		t.Fatalf("期望 %d 个，实际 %d 个", len(values), len(got))
	}
	for i := range values {
		if got[i] != values[i] {
			t.Errorf("第 %d 个值期望 %q，实际 %q", i, values[i], got[i])
		}
	}
}

func TestValidateDraftContent(t *testing.T) {
	if err := ValidateDraftContent("这是一条足够长的合法草稿"); err != nil {
		t.Errorf("合法草稿被拒绝: %v", err)
	}
	if err := ValidateDraftContent("太短"); err == nil {
		t.Error("过短草稿应当拒绝")
	}
	if err := ValidateDraftContent(strings.Repeat("长", DraftMaxLength+1)); err == nil {
		t.Error("过长草稿应当拒绝")
	}
	// 边界值本身合法
	if err := ValidateDraftContent(strings.Repeat("字", DraftMinLength)); err != nil {
		t.Errorf("最小长度草稿被拒绝: %v", err)
	}
	if err := ValidateDraftContent(strings.Repeat("字", DraftMaxLength)); err != nil {
		t.Errorf("最大长度草稿被拒绝: %v", err)
	}
}

func TestFailureReasonRetryable(t *testing.T) {
	cases := map[FailureReason]bool{
		FailureTimeout:          true,
		FailureTransportError:   true,
		FailureProviderError:    false,
		FailureInvalidResponse:  false,
		FailureInsufficientData: false,
	}
	for reason, want := range cases {
		if reason.Retryable() != want {
			t.Errorf("%s.Retryable() 期望 %v", reason, want)
		}
	}
}
