// Package engine is the composition glue a chat-surface adapter drives:
// one call per inbound message, dispatching to the Chat Agent and, when
// the reply carries a Work Request, to the Orchestrator — mirroring the
// teacher's master/worker dispatch in agent.Brain.Think, but as an
// explicit, constructed component rather than a Think interface
// implementation.
package engine

import (
	"context"
	"fmt"

	"github.com/relay-labs/rumpbot/internal/chatagent"
	"github.com/relay-labs/rumpbot/internal/domain"
	"github.com/relay-labs/rumpbot/internal/invocationlog"
	"github.com/relay-labs/rumpbot/internal/memory"
	"github.com/relay-labs/rumpbot/internal/observability"
	"github.com/relay-labs/rumpbot/internal/orchestrator"
	"github.com/relay-labs/rumpbot/internal/registry"
	"github.com/relay-labs/rumpbot/internal/workspace"
)

// Sender delivers a reply to a chat, independent of which gateway
// received the original message.
type Sender interface {
	Send(chatID, text string) error
}

// Engine wires the Chat Agent and Orchestrator behind a single per-message
// entry point.
type Engine struct {
	Chat         *chatagent.Agent
	Orchestrator *orchestrator.Orchestrator
	Memory       *memory.Store
	Registry     *registry.Registry
	Workspace    *workspace.Root
	InvocationLog *invocationlog.Logger
	Logger       *observability.Logger
}

// HandleMessage runs one inbound chat message to completion: it always
// replies with the Chat Agent's conversational text (if any), stores any
// memory note, and — if the reply carries a Work Request — kicks off an
// Orchestrator run in the background, streaming status updates and the
// final summary back through send.
func (e *Engine) HandleMessage(ctx context.Context, chatID, text string, send Sender) error {
	reply, err := e.Chat.Handle(ctx, chatID, text)
	if err != nil {
		return fmt.Errorf("engine: chat agent: %w", err)
	}

	if reply.MemoryNote != "" && e.Memory != nil {
		e.Memory.AddNote(chatID, reply.MemoryNote, domain.MemorySourceAuto)
	}

	if reply.Text != "" {
		if err := send.Send(chatID, reply.Text); err != nil {
			return fmt.Errorf("engine: send chat reply: %w", err)
		}
	}

	if reply.Work == nil {
		return nil
	}

	if _, active := e.Registry.ActiveOrchestratorForChat(chatID); active {
		return send.Send(chatID, "Already working on a previous request for this chat — please wait for it to finish.")
	}

	cwd, err := e.Workspace.Prepare(chatID)
	if err != nil {
		return send.Send(chatID, "Couldn't prepare a workspace for this request: "+err.Error())
	}

	go e.runOrchestration(chatID, *reply.Work, cwd, send)
	return nil
}

func (e *Engine) runOrchestration(chatID string, req domain.WorkRequest, cwd string, send Sender) {
	ctx := context.Background()

	cb := orchestrator.Callbacks{
		OnStatusUpdate: func(u domain.StatusUpdate) {
			if !u.Important {
				return
			}
			_ = send.Send(chatID, u.Message)
		},
		OnInvocation: func(rec domain.InvocationRecord) {
			if e.InvocationLog != nil {
				_ = e.InvocationLog.Record(rec)
			}
			if e.Logger != nil {
				e.Logger.LogInvocation(chatID, "", string(rec.Tier), rec.DurationMs, rec.CostUSD, rec.NumTurns, rec.StopReason, rec.IsError)
			}
		},
	}

	summary := e.Orchestrator.Execute(ctx, chatID, req, cwd, cb)

	text := summary.Summary
	if summary.NeedsRestart {
		text += "\n\n(a dependent service may need to be restarted)"
	}
	_ = send.Send(chatID, text)
}
