package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ZaynJarvis/vikingbot/pkg/agent"
	"github.com/ZaynJarvis/vikingbot/pkg/bus"
	"github.com/ZaynJarvis/vikingbot/pkg/channels"
	"github.com/ZaynJarvis/vikingbot/pkg/config"
	"github.com/ZaynJarvis/vikingbot/pkg/cron"
	"github.com/ZaynJarvis/vikingbot/pkg/heartbeat"
	"github.com/ZaynJarvis/vikingbot/pkg/hooks"
	"github.com/ZaynJarvis/vikingbot/pkg/providers"
	"github.com/ZaynJarvis/vikingbot/pkg/sandbox"
	"github.com/ZaynJarvis/vikingbot/pkg/session"
	"github.com/ZaynJarvis/vikingbot/pkg/utils"
	"github.com/ZaynJarvis/vikingbot/pkg/viking"
	"github.com/sirupsen/logrus"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: vikingbot <command> [args]")
		fmt.Println("Commands: agent, onboard")
		os.Exit(1)
	}

	switch os.Args[1] {
	case "agent":
		runAgent(os.Args[2:])
	case "onboard":
		runOnboard()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}
}

func runAgent(args []string) {
	fs := flag.NewFlagSet("agent", flag.ExitOnError)
	message := fs.String("m", "", "Process one message and exit")
	configPath := fs.String("c", "", "Path to config file")
	fs.Parse(args)

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	workspace := cfg.WorkspacePath()
	if err := os.MkdirAll(workspace, 0755); err != nil {
		fmt.Printf("Error creating workspace: %v\n", err)
		os.Exit(1)
	}
	utils.SetupLogger(filepath.Join(workspace, "logs"))

	provider, err := providers.NewProvider(cfg)
	if err != nil {
		fmt.Printf("Error initializing provider: %v\n", err)
		fmt.Println("Please run 'vikingbot onboard' or edit ~/.vikingbot/config.json")
		os.Exit(1)
	}

	var vikingClient viking.Client
	if cfg.Viking.Enabled && cfg.Viking.BaseURL != "" {
		vikingClient = viking.NewHTTPClient(cfg.Viking.BaseURL, cfg.Viking.APIKey)
	}

	hookMgr := hooks.NewManager()
	if vikingClient != nil {
		hookMgr.Register(hooks.EventToolPostCall, hooks.NewSkillMemoryHook(vikingClient))
		hookMgr.Register(hooks.EventMessageCompact, hooks.NewConversationCommitHook(vikingClient))
	}

	// With sandboxing disabled, tools still route through the manager
	// on a shared direct backend
	sandboxCfg := cfg.Sandbox
	if !sandboxCfg.Enabled {
		sandboxCfg.Mode = "shared"
		sandboxCfg.Backend = "direct"
	}
	sandboxMgr := sandbox.NewManager(sandboxCfg, workspace)
	defer sandboxMgr.CleanupAll()

	sessions := session.NewManager(workspace, sandboxMgr)
	messageBus := bus.NewMessageBus()

	cronService := cron.NewService(filepath.Join(workspace, "cron.json"), func(job cron.Job) {
		kind := bus.KindSystem
		if job.Payload.Kind == "agent_turn" {
			kind = bus.KindUser
		}
		key := job.Payload.SessionKey
		if key == (session.Key{}) {
			key = session.NewKey("cron", "default", job.ID)
		}
		messageBus.PublishInbound(bus.InboundMessage{
			Kind:       kind,
			SenderID:   "cron",
			SessionKey: key,
			Content:    job.Payload.Message,
			Timestamp:  time.Now(),
		})
	})
	cronService.Start()
	defer cronService.Stop()

	loop := agent.NewLoop(agent.Options{
		Bus:      messageBus,
		Provider: provider,
		Config:   cfg,
		Sessions: sessions,
		Sandbox:  sandboxMgr,
		Hooks:    hookMgr,
		Cron:     cronService,
		Viking:   vikingClient,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go messageBus.DispatchOutbound()

	if *message != "" {
		response, err := loop.ProcessDirect(ctx, *message, session.CLIKey())
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(response)
		return
	}

	startChannels(ctx, cfg, messageBus, workspace)

	hb := heartbeat.NewService(
		workspace,
		sandboxCfg.Mode,
		time.Duration(cfg.Heartbeat.IntervalMinutes)*time.Minute,
		cfg.Heartbeat.Enabled,
		sessions,
		loop.ProcessDirect,
	)
	go hb.Start(ctx)
	defer hb.Stop()

	go loop.Run(ctx)
	defer loop.Stop()

	fmt.Println("Agent running. Press Ctrl+C to stop.")
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	logrus.Info("Shutting down")
}

func startChannels(ctx context.Context, cfg *config.Config, messageBus *bus.MessageBus, workspace string) {
	mediaDir := filepath.Join(workspace, "media")

	var active []channels.Channel
	if cfg.Channels.Telegram.Enabled {
		active = append(active, channels.NewTelegramChannel(cfg.Channels.Telegram, messageBus, mediaDir))
	}
	if cfg.Channels.Feishu.Enabled {
		active = append(active, channels.NewFeishuChannel(cfg.Channels.Feishu, messageBus, workspace))
	}
	if cfg.Channels.DingTalk.Enabled {
		active = append(active, channels.NewDingTalkChannel(cfg.Channels.DingTalk, messageBus))
	}

	for _, ch := range active {
		ch := ch
		if err := ch.Start(ctx); err != nil {
			logrus.Errorf("Error starting %s channel: %v", ch.Name(), err)
			continue
		}
		messageBus.SubscribeOutbound(ch.Name(), func(msg bus.OutboundMessage) {
			if err := ch.Send(msg); err != nil {
				logrus.Errorf("Error sending to %s: %v", ch.Name(), err)
			}
		})
	}
}

func runOnboard() {
	configFile := config.DefaultPath()
	cfg := config.DefaultConfig()

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		if err := config.Save(configFile, cfg); err != nil {
			fmt.Printf("Warning: could not create config file: %v\n", err)
		} else {
			fmt.Printf("Created config file at %s\n", configFile)
		}
	} else {
		fmt.Printf("Config file already exists at %s\n", configFile)
		if loaded, err := config.LoadConfig(configFile); err == nil {
			cfg = loaded
		}
	}

	workspace := cfg.WorkspacePath()
	for _, dir := range []string{workspace, filepath.Join(workspace, "memory"), filepath.Join(workspace, "skills"), filepath.Join(workspace, "sessions")} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			fmt.Printf("Error creating %s: %v\n", dir, err)
			os.Exit(1)
		}
	}
	fmt.Printf("Created workspace at %s\n", workspace)

	soulPath := filepath.Join(workspace, "SOUL.md")
	if _, err := os.Stat(soulPath); os.IsNotExist(err) {
		soul := `# SOUL

You are VikingBot, a helpful and concise assistant.

Define your persona, tone, and fundamental behavioral rules here.
This file is loaded into every conversation.
`
		if err := os.WriteFile(soulPath, []byte(soul), 0644); err != nil {
			fmt.Printf("Error creating SOUL.md: %v\n", err)
		} else {
			fmt.Printf("Created default SOUL.md at %s\n", soulPath)
		}
	}

	readmePath := filepath.Join(workspace, "skills", "README.md")
	if _, err := os.Stat(readmePath); os.IsNotExist(err) {
		readme := `# Skills

Add your skills here. Each skill lives in its own directory with a ` + "`SKILL.md`" + ` file:

` + "```" + `
skills/
  weather/
    SKILL.md
  github/
    SKILL.md
` + "```" + `

The ` + "`SKILL.md`" + ` frontmatter declares the skill's description and requirements.
`
		os.WriteFile(readmePath, []byte(readme), 0644)
	}

	fmt.Println("Onboarding complete! Edit the config file to add your API key.")
}
