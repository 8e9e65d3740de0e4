package agent

import (
	"encoding/json"

	"github.com/crewclaw/crewclaw/pkg/llm"
)

// imageTokenEstimate is the fixed cost charged for an image block.
const imageTokenEstimate = 2000

// EstimateTokens approximates the token footprint of a value as
// serialized-length / 4. Every compression policy is expressed in
// terms of this estimate, so it must stay deterministic.
func EstimateTokens(v any) int {
	switch x := v.(type) {
	case string:
		return len(x) / 4
	case llm.Block:
		if x.Type == "image" {
			return imageTokenEstimate
		}
		data, err := json.Marshal(x)
		if err != nil {
			return 0
		}
		return len(data) / 4
	case llm.Message:
		return estimateMessage(x)
	case []llm.Message:
		total := 0
		for _, m := range x {
			total += estimateMessage(m)
		}
		return total
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return 0
		}
		return len(data) / 4
	}
}

// estimateMessage serializes the whole message, role envelope included.
// Image payloads are swapped for the fixed per-image cost so a large
// base64 source never dominates the estimate.
func estimateMessage(msg llm.Message) int {
	images := 0
	blocks := make([]llm.Block, len(msg.Content))
	for i, b := range msg.Content {
		if b.Type == "image" {
			b.Source = nil
			images++
		}
		blocks[i] = b
	}
	msg.Content = blocks

	data, err := json.Marshal(msg)
	if err != nil {
		return images * imageTokenEstimate
	}
	return len(data)/4 + images*imageTokenEstimate
}
