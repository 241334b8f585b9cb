// Package chatagent is the thin layer between a chat message and the
// assistant CLI: it classifies whether a message is conversational or
// work-bearing, and extracts any action or memory block the assistant
// embedded in its reply.
package chatagent

import (
	"context"
	"time"

	"github.com/relay-labs/rumpbot/internal/assistant"
	"github.com/relay-labs/rumpbot/internal/domain"
)

// MemoryContext supplies the optional memory-context block to prepend to a
// user prompt.
type MemoryContext interface {
	ContextBlock(chatID string) *string
}

// Logger receives diagnostics the chat agent can't usefully return to the
// caller, such as a malformed action block.
type Logger interface {
	LogMalformedAction(chatID, raw string)
}

// Config is the chat tier's model, turn cap, timeout, and system prompt.
type Config struct {
	Model        string
	MaxTurns     int
	Timeout      time.Duration
	SystemPrompt string
}

// Reply is what Handle returns for one user message.
type Reply struct {
	Text       string
	Work       *domain.WorkRequest
	MemoryNote string
}

// caller is the subset of *assistant.Invoker the chat agent needs, kept as
// an interface so tests can supply a fake assistant.
type caller interface {
	Call(ctx context.Context, in assistant.CallInput) (assistant.Result, error)
}

// Agent wraps the Invoker with chat-tier session handling and the
// action/memory delimiter protocol.
type Agent struct {
	invoker caller
	session sessionStore
	memory  MemoryContext
	logger  Logger
	config  Config
}

// sessionStore is the subset of session.Store the chat agent needs.
type sessionStore interface {
	Get(chatID string, tier domain.Tier) (domain.SessionData, bool)
	Set(chatID, sessionID, cwd string, tier domain.Tier)
}

// New constructs a chat Agent.
func New(invoker caller, sessions sessionStore, memory MemoryContext, logger Logger, config Config) *Agent {
	return &Agent{invoker: invoker, session: sessions, memory: memory, logger: logger, config: config}
}

// Handle runs one user message through the assistant and returns the
// parsed reply. The chat-tier session is resumed if one exists and
// refreshed with whatever session id the call returns.
func (a *Agent) Handle(ctx context.Context, chatID, text string) (Reply, error) {
	prompt := text
	if a.memory != nil {
		if block := a.memory.ContextBlock(chatID); block != nil {
			prompt = *block + "\n\n" + text
		}
	}

	var sessionID, cwd string
	if data, ok := a.session.Get(chatID, domain.TierChat); ok {
		sessionID = data.SessionID
		cwd = data.ProjectDir
	}

	result, err := a.invoker.Call(ctx, assistant.CallInput{
		Prompt:       prompt,
		SystemPrompt: a.config.SystemPrompt,
		Model:        a.config.Model,
		MaxTurns:     a.config.MaxTurns,
		SessionID:    sessionID,
		Cwd:          cwd,
		Timeout:      a.config.Timeout,
	})
	if err != nil {
		return Reply{}, err
	}

	if result.SessionID != "" {
		a.session.Set(chatID, result.SessionID, cwd, domain.TierChat)
	}

	parsedReply := parseReply(result.Text, func(raw string) {
		if a.logger != nil {
			a.logger.LogMalformedAction(chatID, raw)
		}
	})

	reply := Reply{Text: parsedReply.ChatText}
	if parsedReply.HasWork {
		urgency := domain.UrgencyNormal
		if parsedReply.WorkUrgency == string(domain.UrgencyQuick) {
			urgency = domain.UrgencyQuick
		}
		reply.Work = &domain.WorkRequest{
			Task:    parsedReply.WorkTask,
			Context: parsedReply.WorkContext,
			Urgency: urgency,
		}
	}
	if parsedReply.HasMemory {
		reply.MemoryNote = parsedReply.MemoryNote
	}
	return reply, nil
}
