package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	log "github.com/inconshreveable/log15"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"hiretrack/internal/ai"
	"hiretrack/internal/bot"
	"hiretrack/internal/cache"
	"hiretrack/internal/config"
	"hiretrack/internal/db"
	"hiretrack/internal/format"
	"hiretrack/internal/scheduler"
	"hiretrack/internal/tracker"
	"hiretrack/internal/web"
)

var logger = log.New("module", "main")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "hiretrack: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hiretrack",
		Short: "Discord job application tracker",
		Long: `HireTrack tracks job applications through Discord slash commands, derives
each application's current stage from its history, and delivers reminder DMs
on a minute scheduler.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBot(cmd.Context())
		},
	}
	cmd.AddCommand(
		newRunCmd(),
		newCheckCmd(),
	)
	return cmd
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the bot, reminder scheduler and ops server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBot(cmd.Context())
		},
	}
}

func runBot(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	gdb, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	svc := tracker.New(gdb)

	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return fmt.Errorf("create discord session: %w", err)
	}

	sched := scheduler.New(svc, bot.NewDMNotifier(session))

	var searcher *ai.Searcher
	if cfg.GeminiAPIKey != "" {
		searcher = ai.NewSearcher(svc, ai.NewGeminiClient(cfg.GeminiAPIKey))
	} else {
		logger.Warn("GEMINI_API_KEY not set, /search will be disabled")
	}

	cooldown, err := cache.NewCooldown(cfg.RedisURL, cfg.SearchCooldown)
	if err != nil {
		return err
	}
	defer cooldown.Close()

	b := bot.New(session, svc, sched, searcher, cooldown, bot.Options{
		MultiGuild: cfg.MultiGuild,
		StaleDays:  cfg.StaleDays,
	})
	if err := b.Start(); err != nil {
		return err
	}
	if err := sched.Start(); err != nil {
		b.Stop()
		return err
	}

	ops := web.New(cfg.HTTPAddr, sched)
	webErr := make(chan error, 1)
	go func() { webErr <- ops.Start() }()

	logger.Info("hiretrack is running")

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-webErr:
		if err != nil {
			logger.Error("http server failed", "err", err)
		}
	}

	// Stop ticking before dropping the gateway so no delivery races a
	// closing session.
	sched.Stop()
	if err := b.Stop(); err != nil {
		logger.Error("error closing discord session", "err", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := ops.Shutdown(shutdownCtx); err != nil {
		logger.Error("error stopping http server", "err", err)
	}

	logger.Info("shutdown complete")
	return nil
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify the environment, database and core services",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChecks(cmd.Context())
		},
	}
}

func runChecks(ctx context.Context) error {
	checks := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"environment", checkEnvironment},
		{"database", checkDatabase},
		{"services", checkServices},
		{"formatting", checkFormatting},
	}

	failed := 0
	for _, c := range checks {
		if err := c.fn(ctx); err != nil {
			fmt.Printf("❌ %s: %v\n", c.name, err)
			failed++
			continue
		}
		fmt.Printf("✅ %s\n", c.name)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d checks failed", failed, len(checks))
	}
	fmt.Println("All checks passed. Run `hiretrack run` to start the bot.")
	return nil
}

func checkEnvironment(ctx context.Context) error {
	_, err := config.Load()
	return err
}

// scratchDB opens a throwaway sqlite database for the checks.
func scratchDB() (*gorm.DB, func(), error) {
	path := filepath.Join(os.TempDir(), fmt.Sprintf("hiretrack-check-%s.db", uuid.NewString()))
	gdb, err := db.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return gdb, func() { os.Remove(path) }, nil
}

func checkDatabase(ctx context.Context) error {
	_, cleanup, err := scratchDB()
	if err != nil {
		return err
	}
	cleanup()
	return nil
}

func checkServices(ctx context.Context) error {
	gdb, cleanup, err := scratchDB()
	if err != nil {
		return err
	}
	defer cleanup()

	svc := tracker.New(gdb)
	if _, err := svc.AddApplication(ctx, "Test Company", "Test Role", 123456, "", nil); err != nil {
		return err
	}
	stats, err := svc.Stats(ctx, 123456)
	if err != nil {
		return err
	}
	if stats[db.StageApplied] != 1 {
		return fmt.Errorf("unexpected stats after round-trip: %v", stats)
	}
	return nil
}

func checkFormatting(ctx context.Context) error {
	data := map[string]int{"Applied": 5, "OA": 3, "Phone": 2}
	if chart := format.ASCIIBarChart(data, "Check"); chart == "" {
		return fmt.Errorf("empty bar chart")
	}
	if summary := format.StatsSummary(data); summary == "" {
		return fmt.Errorf("empty stats summary")
	}
	return nil
}
