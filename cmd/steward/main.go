// Command steward runs the operations copilot as an interactive chat:
// lines read from stdin are conversation turns, replies go to stdout.
package main

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Mindburn-Labs/steward/pkg/audit"
	"github.com/Mindburn-Labs/steward/pkg/billing"
	"github.com/Mindburn-Labs/steward/pkg/config"
	"github.com/Mindburn-Labs/steward/pkg/conversation"
	"github.com/Mindburn-Labs/steward/pkg/executor"
	"github.com/Mindburn-Labs/steward/pkg/idempotency"
	"github.com/Mindburn-Labs/steward/pkg/knowledge"
	"github.com/Mindburn-Labs/steward/pkg/limiter"
	"github.com/Mindburn-Labs/steward/pkg/llm"
	"github.com/Mindburn-Labs/steward/pkg/observability"
	"github.com/Mindburn-Labs/steward/pkg/orchestrator"
	"github.com/Mindburn-Labs/steward/pkg/registry"
	"github.com/Mindburn-Labs/steward/pkg/store"
	"github.com/Mindburn-Labs/steward/pkg/tiers"

	_ "github.com/lib/pq"  // Postgres driver
	_ "modernc.org/sqlite" // SQLite driver
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "steward:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	profile, err := config.LoadProfile(cfg.ProfilePath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cfg.DatabaseDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", cfg.DatabaseDriver)
	}

	db, err := sql.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() { _ = db.Close() }()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	dataStore := store.NewSQLStore(db)
	if err := dataStore.Init(ctx); err != nil {
		return fmt.Errorf("init data store: %w", err)
	}
	idemStore := idempotency.NewSQLStore(db)
	if err := idemStore.Init(ctx); err != nil {
		return fmt.Errorf("init idempotency store: %w", err)
	}
	convStore := conversation.NewSQLStore(db).WithDriver(cfg.DatabaseDriver)
	if err := convStore.Init(ctx); err != nil {
		return fmt.Errorf("init conversation store: %w", err)
	}

	reg, err := registry.New()
	if err != nil {
		return err
	}
	quota, err := billing.NewQuotaChecker(profile.Quotas.Expression)
	if err != nil {
		return err
	}

	obs, err := observability.New(ctx, &observability.Config{
		ServiceName:  "steward",
		Environment:  "production",
		OTLPEndpoint: cfg.OTLPEndpoint,
		SampleRate:   1.0,
		BatchTimeout: 5 * time.Second,
		Enabled:      cfg.OTLPEndpoint != "",
		Insecure:     true,
	})
	if err != nil {
		return err
	}
	defer func() { _ = obs.Shutdown(context.Background()) }()

	ledger := idempotency.NewLedger(idemStore, idempotency.WithTTL(profile.IdempotencyTTL()))
	go sweepLoop(ctx, ledger)

	exec := executor.New(executor.Deps{
		Registry: reg,
		Stores:   dataStore.Stores(),
		Previews: dataStore,
		Ledger:   ledger,
		Quota:    quota,
		Limits: billing.Limits{
			MinValue:   profile.Billing.MinValue,
			MaxValue:   profile.Billing.MaxValue,
			Currency:   profile.Billing.Currency,
			PreviewTTL: profile.PreviewTTL(),
		},
		IntegrationActive: profile.Billing.IntegrationActive,
		Audit:             audit.NewLogger(),
	})

	policy := limiter.Policy{TurnsPerMinute: profile.Turns.PerMinute, Burst: profile.Turns.Burst}
	var turnLimiter limiter.Limiter
	if cfg.RedisAddr != "" {
		turnLimiter = limiter.NewRedisLimiter(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}), policy)
	} else {
		turnLimiter = limiter.NewLocalLimiter(policy)
	}

	var kb knowledge.Searcher
	if len(profile.Knowledge) > 0 {
		docs := make([]knowledge.Result, 0, len(profile.Knowledge))
		for _, d := range profile.Knowledge {
			docs = append(docs, knowledge.Result{Title: d.Title, Content: d.Content, Source: d.Source})
		}
		kb = knowledge.NewStaticSearcher(docs...)
	}

	orch := orchestrator.New(orchestrator.Deps{
		Conversations: convStore,
		Executor:      exec,
		Registry:      reg,
		Model:         llm.NewOpenAIClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel),
		Knowledge:     kb,
		Limiter:       turnLimiter,
		Observability: obs,
		HistoryWindow: profile.HistoryWindow,
		KnowledgeTopK: profile.KnowledgeTopK,
	})

	return chatLoop(ctx, orch)
}

// chatLoop drives one conversation over stdin/stdout.
func chatLoop(ctx context.Context, orch *orchestrator.Orchestrator) error {
	userID := envOr("STEWARD_USER", "local")
	tier := tiers.TierID(envOr("STEWARD_TIER", string(tiers.TierPro)))
	conversationID := uuid.NewString()

	fmt.Println("steward ready — type a message, ctrl-d to quit")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		message := strings.TrimSpace(scanner.Text())
		if message == "" {
			continue
		}
		reply := orch.HandleTurn(ctx, orchestrator.Turn{
			ConversationID: conversationID,
			UserID:         userID,
			Tier:           tier,
			Message:        message,
		})
		fmt.Println(reply.Text)
	}
	return scanner.Err()
}

// sweepLoop periodically deletes expired idempotency records.
func sweepLoop(ctx context.Context, ledger *idempotency.Ledger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := ledger.SweepExpired(ctx); err != nil {
				slog.Warn("idempotency sweep failed", "error", err)
			} else if n > 0 {
				slog.Info("idempotency sweep", "deleted", n)
			}
		}
	}
}

func setupLogging(level string) {
	var lvl slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		lvl = slog.LevelDebug
	case "WARN":
		lvl = slog.LevelWarn
	case "ERROR":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
