package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/kestrelhq/kestrel/ai/generation"
	"github.com/kestrelhq/kestrel/ai/grounding"
	"github.com/kestrelhq/kestrel/ai/intent"
	"github.com/kestrelhq/kestrel/ai/llm"
	"github.com/kestrelhq/kestrel/ai/metrics"
	"github.com/kestrelhq/kestrel/ai/pipeline"
	"github.com/kestrelhq/kestrel/ai/routing"
	"github.com/kestrelhq/kestrel/ai/trust"
	"github.com/kestrelhq/kestrel/internal/profile"
	"github.com/kestrelhq/kestrel/internal/version"
	"github.com/kestrelhq/kestrel/plugin/channels/telegram"
	"github.com/kestrelhq/kestrel/server"
	"github.com/kestrelhq/kestrel/server/auth"
	"github.com/kestrelhq/kestrel/store"
	"github.com/kestrelhq/kestrel/store/db"
)

var rootCmd = &cobra.Command{
	Use:   "kestrel",
	Short: "A trust-gated personal assistant that resolves intents in tiers.",
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		_ = godotenv.Load()
		return nil
	},
	RunE: func(_ *cobra.Command, _ []string) error {
		instanceProfile := loadProfile()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		dbDriver, err := db.NewDBDriver(instanceProfile)
		if err != nil {
			slog.Error("failed to create db driver", "error", err)
			return err
		}
		storeInstance := store.New(dbDriver, instanceProfile)
		defer storeInstance.Close()
		if err := storeInstance.Migrate(ctx); err != nil {
			slog.Error("failed to migrate", "error", err)
			return err
		}

		registry := intent.DefaultRegistry()
		if err := registry.Validate(); err != nil {
			return err
		}

		// The LLM service is optional: without an API key, tier 3
		// classification and free-form generation are disabled and the
		// assistant runs on tiers 0-2 alone.
		exporter := metrics.NewPrometheusExporter(metrics.ExporterConfig{})

		var llmService llm.Service
		if instanceProfile.IsAIEnabled() {
			llmCfg := llm.NewConfigFromProfile(instanceProfile)
			llmCfg.Observer = exporter
			llmService, err = llm.NewService(llmCfg)
			if err != nil {
				slog.Error("failed to create llm service", "error", err)
				return err
			}
		} else {
			slog.Warn("no LLM API key configured, running without tier 3 and generation")
		}

		var tier3 *routing.LLMClassifier
		if llmService != nil {
			tier3 = routing.NewLLMClassifier(llmService, registry,
				float32(instanceProfile.Tier3Ceiling),
				time.Duration(instanceProfile.Tier3TimeoutMs)*time.Millisecond)
		}

		chainCfg := routing.ChainConfigFromProfile(instanceProfile)
		chainCfg.Registry = registry
		chainCfg.Tier3 = tier3
		chainCfg.Context = storeInstance.ConversationContext()
		chain := routing.NewChain(chainCfg)

		auditWriter := trust.NewAuditWriter(storeInstance.TrustAudit(), 0)
		defer auditWriter.Close()
		gate := trust.NewGate(storeInstance.Allowlist(), auditWriter)

		validator := grounding.NewValidator(grounding.Config{
			Method:    instanceProfile.GroundingMethod,
			Threshold: float32(instanceProfile.GroundingThreshold),
			Service:   llmService,
			Sink:      storeInstance.Grounding(),
		})
		defer validator.Close()

		collector := metrics.NewCollector(metrics.CollectorConfig{
			Sink:     storeInstance.Metrics(),
			Exporter: exporter,
		})
		defer collector.Close()

		pl, err := pipeline.New(pipeline.Config{
			Registry:     registry,
			Chain:        chain,
			Gate:         gate,
			Executors:    pipeline.BuiltinExecutors(),
			Service:      llmService,
			Temperatures: generation.NewTemperatures(registry, nil),
			Formatter:    generation.NewFormatter(registry),
			Validator:    validator,
			Collector:    collector,
		})
		if err != nil {
			slog.Error("failed to assemble pipeline", "error", err)
			return err
		}

		var tgChannel *telegram.Channel
		if instanceProfile.TelegramBotToken != "" {
			tgChannel, err = telegram.NewChannel(&telegram.Config{BotToken: instanceProfile.TelegramBotToken})
			if err != nil {
				slog.Error("failed to create telegram channel", "error", err)
				return err
			}
		}

		srv, err := server.NewServer(instanceProfile, storeInstance, pl, collector, exporter, tgChannel)
		if err != nil {
			slog.Error("failed to create server", "error", err)
			return err
		}

		printGreetings(instanceProfile)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return srv.Start(gctx)
		})
		return g.Wait()
	},
}

// tokenCmd mints a first-party session token from the configured secret, for
// provisioning clients out of band.
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Generate a first-party session access token",
	RunE: func(cmd *cobra.Command, _ []string) error {
		instanceProfile := loadProfile()
		if instanceProfile.SessionSecret == "" {
			return fmt.Errorf("KESTREL_SESSION_SECRET is not set")
		}

		userID, _ := cmd.Flags().GetInt32("user")
		sessionID, _ := cmd.Flags().GetString("session")

		token, err := auth.GenerateAccessToken(userID, sessionID,
			time.Now().Add(auth.AccessTokenDuration), []byte(instanceProfile.SessionSecret))
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	},
}

func loadProfile() *profile.Profile {
	instanceProfile := &profile.Profile{
		Mode:    viper.GetString("mode"),
		Addr:    viper.GetString("addr"),
		Port:    viper.GetInt("port"),
		Data:    viper.GetString("data"),
		Driver:  viper.GetString("driver"),
		DSN:     viper.GetString("dsn"),
		Version: version.String(),
	}
	instanceProfile.FromEnv()
	if err := instanceProfile.Validate(); err != nil {
		panic(err)
	}
	return instanceProfile
}

func init() {
	viper.SetDefault("mode", "dev")
	viper.SetDefault("driver", "sqlite")
	viper.SetDefault("port", 28090)

	rootCmd.PersistentFlags().String("mode", "dev", `mode of server, can be "prod" or "dev" or "demo"`)
	rootCmd.PersistentFlags().String("addr", "", "address of server")
	rootCmd.PersistentFlags().Int("port", 28090, "port of server")
	rootCmd.PersistentFlags().String("data", "", "data directory")
	rootCmd.PersistentFlags().String("driver", "sqlite", "database driver (postgres, sqlite)")
	rootCmd.PersistentFlags().String("dsn", "", "database source name (aka. DSN)")

	for _, flag := range []string{"mode", "addr", "port", "data", "driver", "dsn"} {
		if err := viper.BindPFlag(flag, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			panic(err)
		}
	}

	tokenCmd.Flags().Int32("user", 1, "user id to issue the token for")
	tokenCmd.Flags().String("session", "cli", "session id to embed in the token")
	rootCmd.AddCommand(tokenCmd)

	viper.SetEnvPrefix("kestrel")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

func printGreetings(profile *profile.Profile) {
	fmt.Printf("Kestrel %s started successfully!\n", profile.Version)
	if profile.IsDev() {
		fmt.Fprint(os.Stderr, "Development mode is enabled\n")
		if profile.DSN != "" {
			fmt.Fprintf(os.Stderr, "Database: %s\n", profile.DSN)
		}
	}
	fmt.Printf("Data directory: %s\n", profile.Data)
	fmt.Printf("Database driver: %s\n", profile.Driver)
	fmt.Printf("Mode: %s\n", profile.Mode)
	if len(profile.Addr) == 0 {
		fmt.Printf("Server running on port %d\n", profile.Port)
	} else {
		fmt.Printf("Server running on %s:%d\n", profile.Addr, profile.Port)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
