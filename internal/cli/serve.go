package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gzhole/groupguard/internal/analyzer"
	"github.com/gzhole/groupguard/internal/config"
	"github.com/gzhole/groupguard/internal/engine"
	"github.com/gzhole/groupguard/internal/history"
	"github.com/gzhole/groupguard/internal/logger"
	"github.com/gzhole/groupguard/internal/onebot"
	"github.com/gzhole/groupguard/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Connect to OneBot and moderate group chats",
	Long: `Connect to the OneBot websocket, buffer group messages and run batch
analysis cycles until interrupted. The admin API (status, manual checks,
metrics) listens on admin.listen.

  groupguard serve --config ./config.yaml`,
	RunE: serveCommand,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serveCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return serve(ctx, cfg, appLog)
}

func serve(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	if cfg.OneBot.WSURL == "" {
		return errors.New("onebot.ws_url is required")
	}
	if cfg.OneBot.HTTPURL == "" {
		return errors.New("onebot.http_url is required to mute users and send warnings")
	}

	store, err := openHistory(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	audit, closeAudit, err := openAudit(cfg)
	if err != nil {
		return err
	}
	defer closeAudit()

	registry, err := analyzer.FromConfig(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to set up analyzer: %w", err)
	}
	if cfg.LLMProvider == "" {
		log.Warn("llm_provider is not set, batches will be cleared without analysis")
	}

	opts, err := engine.OptionsFromConfig(cfg)
	if err != nil {
		return err
	}
	client := onebot.NewClient(cfg.OneBot.HTTPURL, cfg.OneBot.AccessToken, cfg.OneBot.ActionsPerSecond, log)
	eng := engine.New(opts, engine.Deps{
		History:       store,
		Gateway:       registry,
		DefaultHandle: client,
		Audit:         audit,
		Logger:        log,
	})

	listener := onebot.NewListener(cfg.OneBot.WSURL, cfg.OneBot.AccessToken, func(ctx context.Context, m onebot.Message) {
		eng.OnMessage(ctx, eventFrom(m, client))
	}, log)

	log.Info("groupguard starting",
		zap.String("version", Version),
		zap.String("mode", cfg.TriggerMode),
		zap.Int("batch_size", cfg.BatchSize),
		zap.Int("check_interval", cfg.CheckInterval),
		zap.String("provider", cfg.LLMProvider))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return eng.Run(ctx) })
	g.Go(func() error { return listener.Run(ctx) })
	if cfg.Admin.Listen != "" {
		admin := server.New(cfg.Admin.Listen, eng, store, log)
		g.Go(func() error { return admin.Run(ctx) })
	}
	if cfg.RulesFile != "" {
		watcher := analyzer.NewRulesWatcher(cfg.RulesFile, registry.Prompt(), log)
		g.Go(func() error { return watcher.Run(ctx) })
	}

	err = g.Wait()
	eng.Wait()
	log.Info("groupguard stopped")
	return err
}

func eventFrom(m onebot.Message, h engine.Handle) engine.Event {
	return engine.Event{
		GroupID:     m.GroupID,
		UserID:      m.UserID,
		Text:        m.Text,
		DisplayName: m.DisplayName,
		ArrivedAt:   m.ArrivedAt,
		IsSelf:      m.IsSelf,
		Handle:      h,
	}
}

func openHistory(cfg *config.Config) (history.Store, error) {
	if cfg.History.Backend != "sqlite" {
		return history.NewMemoryStore(), nil
	}
	if err := config.EnsureDir(cfg.History.Path); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}
	store, err := history.OpenSQLite(cfg.History.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history %s: %w", cfg.History.Path, err)
	}
	return store, nil
}

// openAudit returns a nil Auditor when audit_log is empty.
func openAudit(cfg *config.Config) (engine.Auditor, func(), error) {
	if cfg.AuditLog == "" {
		return nil, func() {}, nil
	}
	if err := config.EnsureDir(cfg.AuditLog); err != nil {
		return nil, nil, fmt.Errorf("failed to create audit log directory: %w", err)
	}
	audit, err := logger.New(cfg.AuditLog)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	return audit, func() { _ = audit.Close() }, nil
}
