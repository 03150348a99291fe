package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"rebaltrader/internal/broker"
	"rebaltrader/internal/config"
	"rebaltrader/internal/executor"
	"rebaltrader/internal/logger"
	"rebaltrader/internal/schedule"
	"rebaltrader/internal/telegram"
)

const logFile = "rebaltrader.log"
const versionFile = "version.latest"

const heartbeatInterval = 6 * time.Hour

func main() {
	// Load configuration first to get logger settings.
	cfg := config.Load()
	cfg.Version = readVersion()

	logger.Setup(logFile, cfg.MaxLogSizeMB, cfg.MaxLogBackups)

	settings, err := config.LoadSettings(cfg.SettingsFile)
	if err != nil {
		log.Fatalf("CRITICAL: loading %s: %v", cfg.SettingsFile, err)
	}
	loc, err := settings.Location()
	if err != nil {
		log.Fatalf("CRITICAL: %v", err)
	}
	if err := os.MkdirAll(settings.DataDir, 0o755); err != nil {
		log.Fatalf("CRITICAL: creating data dir: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Without an explicit broker list the single env-configured endpoint
	// carries both roles.
	brokers := settings.Brokers
	if len(brokers) == 0 {
		brokers = []config.Broker{{Name: "default", BaseURL: os.Getenv("APCA_API_BASE_URL")}}
	}
	gateway := broker.NewGateway(brokers, settings.LimitOffsetPct)
	if err := gateway.Connect(); err != nil {
		// Degraded, not fatal: orders against a down connection are
		// skipped and reported per run.
		log.Printf("WARN: not every broker connection came up: %v", err)
	}
	defer gateway.Close()

	notifier := telegram.NewClient(cfg.TelegramBotToken, cfg.TelegramChatID)

	sched := schedule.New()
	sched.Register(schedule.NewHeartbeatTask(heartbeatInterval))
	for _, profile := range settings.Strategies {
		exec := executor.New(profile, settings, gateway, notifier, loc)
		task, err := executor.NewRebalanceTask(ctx, profile, exec, loc)
		if err != nil {
			log.Fatalf("CRITICAL: %v", err)
		}
		sched.Register(task)
		log.Printf("Strategy %s scheduled, next trigger %s",
			profile.Name, task.NextTriggerTime().In(loc).Format("2006-01-02 15:04:05 MST"))
	}

	go notifier.Listen(ctx, commandHandler(sched, loc))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		log.Println("Shutting down: signal received")
		cancel()
	}()

	log.Printf("rebaltrader %s initialized, %d strategies", cfg.Version, len(settings.Strategies))
	sched.Start(ctx)
	log.Println("Scheduler stopped")
}

// commandHandler answers the operator commands arriving over Telegram.
func commandHandler(sched *schedule.Scheduler, loc *time.Location) telegram.CommandHandler {
	startedAt := time.Now()
	return func(command string, args []string) string {
		switch command {
		case "/ping":
			return fmt.Sprintf("pong, up since %s", startedAt.In(loc).Format("2006-01-02 15:04:05 MST"))

		case "/next":
			times := sched.TriggerTimes()
			names := make([]string, 0, len(times))
			for name := range times {
				names = append(names, name)
			}
			sort.Strings(names)
			var b strings.Builder
			b.WriteString("Next trigger times:\n")
			for _, name := range names {
				fmt.Fprintf(&b, "%s: %s\n", name, times[name].In(loc).Format("2006-01-02 15:04:05 MST"))
			}
			return b.String()

		case "/forcerun":
			if len(args) != 1 {
				return "Usage: /forcerun <strategy>"
			}
			task := sched.Find(args[0])
			if task == nil {
				return fmt.Sprintf("Unknown strategy %q", args[0])
			}
			rt, ok := task.(interface{ ForceRun() })
			if !ok {
				return fmt.Sprintf("%s cannot be force-run", args[0])
			}
			go rt.ForceRun()
			return fmt.Sprintf("Forced simulated run of %s started", args[0])

		default:
			return "Commands: /ping, /next, /forcerun <strategy>"
		}
	}
}

func readVersion() string {
	version, err := os.ReadFile(versionFile)
	if err != nil {
		return "v0.0.0-dev"
	}
	return strings.TrimSpace(string(version))
}
