package agent

import (
	"strings"
	"testing"

	"github.com/crewclaw/crewclaw/pkg/llm"
)

func TestEstimateTokensStringLaw(t *testing.T) {
	for _, n := range []int{0, 1, 10, 1000} {
		s := strings.Repeat("x", 4*n)
		if got := EstimateTokens(s); got != n {
			t.Errorf("EstimateTokens(%d chars) = %d, want %d", 4*n, got, n)
		}
	}
}

func TestEstimateTokensEmpty(t *testing.T) {
	if got := EstimateTokens(""); got != 0 {
		t.Errorf("EstimateTokens(\"\") = %d, want 0", got)
	}
}

func TestEstimateTokensImageBlock(t *testing.T) {
	img := llm.Block{Type: "image", Source: map[string]any{"data": "..."}}
	if got := EstimateTokens(img); got != 2000 {
		t.Errorf("image block = %d tokens, want 2000", got)
	}

	// Fixed per-image cost plus the serialized envelope; the payload
	// itself never contributes.
	msg := llm.Message{Role: "user", Content: []llm.Block{img, img}}
	got := EstimateTokens(msg)
	if got < 4000 || got > 4100 {
		t.Errorf("two image blocks = %d tokens, want 4000 plus a small envelope", got)
	}

	big := llm.Message{Role: "user", Content: []llm.Block{
		{Type: "image", Source: map[string]any{"data": strings.Repeat("A", 100000)}},
	}}
	if bigGot := EstimateTokens(big); bigGot > 2100 {
		t.Errorf("large image payload leaked into the estimate: %d tokens", bigGot)
	}
}

func TestEstimateTokensMessageSerializesWholeValue(t *testing.T) {
	msg := llm.Message{Role: "user", Content: []llm.Block{
		llm.TextBlock(strings.Repeat("a", 400)),
	}}
	got := EstimateTokens(msg)
	if got < 100 {
		t.Errorf("message estimate = %d, want >= 100", got)
	}
	// The role envelope counts: the whole message estimates higher than
	// its lone block.
	if block := EstimateTokens(msg.Content[0]); got <= block {
		t.Errorf("message estimate %d not above block estimate %d", got, block)
	}
}
