package chatagent

import (
	"encoding/json"
	"strings"
)

const (
	actionOpenTag  = "<RUMPBOT_ACTION>"
	actionCloseTag = "</RUMPBOT_ACTION>"
	memoryOpenTag  = "<TIFFBOT_MEMORY>"
	memoryCloseTag = "</TIFFBOT_MEMORY>"

	placeholderText = "Working on it..."
)

// actionPayload is the shape of a parsed action block.
type actionPayload struct {
	Type    string `json:"type"`
	Task    string `json:"task"`
	Context string `json:"context"`
	Urgency string `json:"urgency"`
}

// parsed holds everything extracted from one assistant reply.
type parsed struct {
	ChatText      string
	WorkTask      string
	WorkContext   string
	WorkUrgency   string
	HasWork       bool
	MemoryNote    string
	HasMemory     bool
}

// parseReply strips the action and memory delimiter blocks from text,
// extracts a Work Request when the action block is valid, and substitutes
// a placeholder if nothing is left to show the user. Malformed action JSON
// is ignored (the caller is expected to log it); the surrounding chat text
// still returns.
func parseReply(text string, onMalformedAction func(raw string)) parsed {
	out := parsed{}

	remaining, actionRaw, hasAction := extractBlock(text, actionOpenTag, actionCloseTag)
	if hasAction {
		var payload actionPayload
		if err := json.Unmarshal([]byte(actionRaw), &payload); err != nil {
			if onMalformedAction != nil {
				onMalformedAction(actionRaw)
			}
		} else if payload.Type == "work_request" && strings.TrimSpace(payload.Task) != "" {
			out.WorkTask = payload.Task
			out.WorkContext = payload.Context
			out.WorkUrgency = payload.Urgency
			out.HasWork = true
		}
	}

	remaining, memoryRaw, hasMemory := extractBlock(remaining, memoryOpenTag, memoryCloseTag)
	if hasMemory {
		trimmed := strings.TrimSpace(memoryRaw)
		if trimmed != "" {
			out.MemoryNote = trimmed
			out.HasMemory = true
		}
	}

	chatText := strings.TrimSpace(remaining)
	if chatText == "" {
		chatText = placeholderText
	}
	out.ChatText = chatText
	return out
}

// extractBlock removes the first occurrence of a delimited block from text
// and returns the remaining text plus the block's inner payload.
func extractBlock(text, open, close string) (remaining, inner string, found bool) {
	start := strings.Index(text, open)
	if start < 0 {
		return text, "", false
	}
	contentStart := start + len(open)
	end := strings.Index(text[contentStart:], close)
	if end < 0 {
		return text, "", false
	}
	end += contentStart

	inner = strings.TrimSpace(text[contentStart:end])
	remaining = text[:start] + text[end+len(close):]
	return remaining, inner, true
}
