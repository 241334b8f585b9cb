package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/relay-labs/rumpbot/internal/assistant"
	"github.com/relay-labs/rumpbot/internal/chatagent"
	"github.com/relay-labs/rumpbot/internal/engine"
	"github.com/relay-labs/rumpbot/internal/gateway"
	"github.com/relay-labs/rumpbot/internal/governance"
	"github.com/relay-labs/rumpbot/internal/invocationlog"
	"github.com/relay-labs/rumpbot/internal/memory"
	"github.com/relay-labs/rumpbot/internal/observability"
	"github.com/relay-labs/rumpbot/internal/orchestrator"
	"github.com/relay-labs/rumpbot/internal/prompts"
	"github.com/relay-labs/rumpbot/internal/registry"
	"github.com/relay-labs/rumpbot/internal/session"
	"github.com/relay-labs/rumpbot/internal/worker"
	"github.com/relay-labs/rumpbot/internal/workspace"
	"github.com/relay-labs/rumpbot/pkg/config"
)

func main() {
	observability.PrintBanner()
	observability.InitializeTerminal()
	log.SetOutput(observability.NewTermWriter())

	cfg := config.LoadConfig("config.json")

	workspaceRoot, err := workspace.NewRoot(cfg.App.Workspace)
	if err != nil {
		log.Fatal(err)
	}

	sessions := session.New()
	sessionSnapshotPath := filepath.Join(cfg.App.Workspace, "sessions.yaml")
	if err := sessions.Load(sessionSnapshotPath); err != nil {
		log.Printf("Warning: no prior session snapshot loaded: %v", err)
	}

	mem := memory.New()
	reg := registry.New()
	logger := observability.NewLogger()

	invLog, err := invocationlog.Open(cfg.Memory.Path)
	if err != nil {
		log.Fatal(err)
	}
	defer invLog.Close()

	policy, err := governance.NewEngineWithDefaults()
	if err != nil {
		log.Fatal(err)
	}

	invoker := assistant.New()

	promptMgr := prompts.NewManager("./prompts")
	chatPrompt, err := promptMgr.ChatPrompt()
	if err != nil {
		log.Printf("Warning: failed to load chat prompt: %v", err)
	}
	planningPrompt, err := promptMgr.PlanningPrompt()
	if err != nil {
		log.Printf("Warning: failed to load planning prompt: %v", err)
	}
	summaryPrompt, err := promptMgr.SummaryPrompt()
	if err != nil {
		log.Printf("Warning: failed to load summary prompt: %v", err)
	}

	chatAgent := chatagent.New(invoker, sessions, mem, nil, chatagent.Config{
		Model:        cfg.Tiers.Chat.Model,
		MaxTurns:     cfg.Tiers.Chat.MaxTurns,
		Timeout:      cfg.Tiers.Chat.Timeout,
		SystemPrompt: chatPrompt,
	})

	workerExec := worker.New(invoker, worker.Config{
		Model:    cfg.Tiers.Worker.Model,
		MaxTurns: cfg.Tiers.Worker.MaxTurns,
		Timeout:  cfg.Tiers.Worker.Timeout,
	})

	orch := orchestrator.New(invoker, workerExec, reg, policy, logger, orchestrator.Config{
		PlanningModel:   cfg.Tiers.Planning.Model,
		PlanningPrompt:  planningPrompt,
		PlanningTimeout: cfg.Tiers.Planning.Timeout,
		SummaryModel:    cfg.Tiers.Summary.Model,
		SummaryPrompt:   summaryPrompt,
		ServiceTokens:   cfg.App.ServiceTokens,
	})

	eng := &engine.Engine{
		Chat:          chatAgent,
		Orchestrator:  orch,
		Memory:        mem,
		Registry:      reg,
		Workspace:     workspaceRoot,
		InvocationLog: invLog,
		Logger:        logger,
	}

	var messengers []gateway.Messenger

	if tgCfg, ok := cfg.GetTelegramConfig(); ok {
		tg, err := gateway.NewTelegramGateway(tgCfg.Token, eng)
		if err != nil {
			log.Fatal(err)
		}
		messengers = append(messengers, tg)
	}

	if dcCfg, ok := cfg.Gateways["discord"]; ok && dcCfg.Enabled {
		dc, err := gateway.NewDiscordGateway(dcCfg.Token, eng)
		if err != nil {
			log.Fatal(err)
		}
		messengers = append(messengers, dc)
	}

	if len(messengers) == 0 {
		log.Fatal("no chat gateway is enabled in config.json")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dashboard := observability.NewDashboard(reg)
	go func() {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				dashboard.Print()
			}
		}
	}()

	for _, m := range messengers {
		m := m
		go func() {
			if err := m.Start(); err != nil {
				log.Printf("\033[91m[ FAIL ] GATEWAY CRITICAL ERROR: %v\033[0m", err)
				stop()
			}
		}()
	}

	<-ctx.Done()

	for _, m := range messengers {
		_ = m.Stop()
	}
	if err := sessions.Save(sessionSnapshotPath); err != nil {
		log.Printf("Warning: failed to persist session snapshot: %v", err)
	}

	observability.CleanupTerminal()
	time.Sleep(500 * time.Millisecond)
	log.Println("\033[95m[ EXIT ] CORE DE-INITIALIZED. GOODBYE.\033[0m")
}
