package domain

import (
	"fmt"
	"maps"
	"strings"
)

const messagePreviewRunes = 100

// BuildTraceMetadata merges request-derived fields, then extra, then the
// request's custom metadata. Later sources win on key collision and absent
// sampling parameters are left out.
func BuildTraceMetadata(req *CompletionRequest, extra map[string]any) map[string]any {
	metadata := make(map[string]any, len(extra)+len(req.Metadata)+7)

	metadata["model"] = req.Model
	metadata["stream"] = req.Stream

	if req.Temperature != nil {
		metadata["temperature"] = *req.Temperature
	}
	if req.MaxTokens != nil {
		metadata["max_tokens"] = *req.MaxTokens
	}
	if req.TopP != nil {
		metadata["top_p"] = *req.TopP
	}
	if req.FrequencyPenalty != nil {
		metadata["frequency_penalty"] = *req.FrequencyPenalty
	}
	if req.PresencePenalty != nil {
		metadata["presence_penalty"] = *req.PresencePenalty
	}

	maps.Copy(metadata, extra)

	for key, value := range req.Metadata {
		if value == nil {
			continue
		}
		metadata[key] = value
	}

	return metadata
}

// FormatMessages renders messages as a single log-friendly line.
func FormatMessages(messages []Message) string {
	parts := make([]string, 0, len(messages))
	for _, msg := range messages {
		content := []rune(msg.Content)
		preview := msg.Content
		if len(content) > messagePreviewRunes {
			preview = string(content[:messagePreviewRunes]) + "..."
		}
		parts = append(parts, fmt.Sprintf("%s: %s", msg.Role, preview))
	}
	return strings.Join(parts, " | ")
}
