package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"threadline/internal/client/gateway"
	"threadline/internal/config"
	"threadline/internal/session"
)

var rootCmd = &cobra.Command{
	Use:          "chat",
	Short:        "Interactive chat client for the threadline gateway",
	SilenceUsage: true,
	RunE:         runChat,
}

func init() {
	// Load .env file (silently ignore if it doesn't exist)
	_ = godotenv.Load()
	cfg := config.Load()

	flags := rootCmd.PersistentFlags()
	flags.String("gateway-url", cfg.GatewayURL, "chat gateway base URL")
	flags.String("user", cfg.UserID, "user id to sign in as (prompted when empty)")
	flags.String("token", cfg.APIToken, "bearer token for the gateway")
	flags.Duration("timeout", cfg.GatewayTimeout, "per-request gateway timeout")
	flags.String("select-mode", cfg.SelectMode, "thread loading on select: local or refetch")
	flags.String("log-dir", cfg.LogDir, "directory for client log files")
	flags.Bool("debug", cfg.Debug, "debug level logging")
}

func initConfig(cmd *cobra.Command) (*config.Config, error) {
	viper.SetEnvPrefix("chat")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	if err := viper.BindPFlags(cmd.PersistentFlags()); err != nil {
		return nil, err
	}

	cfg := config.Load()
	cfg.GatewayURL = viper.GetString("gateway-url")
	cfg.UserID = viper.GetString("user")
	cfg.APIToken = viper.GetString("token")
	cfg.GatewayTimeout = viper.GetDuration("timeout")
	cfg.SelectMode = viper.GetString("select-mode")
	cfg.LogDir = viper.GetString("log-dir")
	cfg.Debug = viper.GetBool("debug")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func runChat(cmd *cobra.Command, _ []string) error {
	cfg, err := initConfig(cmd)
	if err != nil {
		return err
	}

	logFile, err := config.SetupLogFile(cfg.LogDir, "chat", config.DefaultLogFiles)
	if err != nil {
		return err
	}
	defer logFile.Close()

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(logFile, &slog.HandlerOptions{Level: level}))

	gw, err := gateway.New(cfg.GatewayURL,
		gateway.WithTimeout(cfg.GatewayTimeout),
		gateway.WithBearerToken(cfg.APIToken),
		gateway.WithLogger(logger.With("component", "gateway")),
	)
	if err != nil {
		return err
	}

	client := session.NewClient(gw,
		session.WithLogger(logger),
		session.WithSelectPolicy(session.ParseSelectPolicy(cfg.SelectMode)),
	)

	logger.Info("chat client started",
		"gateway_url", cfg.GatewayURL,
		"select_mode", cfg.SelectMode,
		"log_file", logFile.Name(),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	r := newREPL(client, cmd.InOrStdin(), cmd.OutOrStdout(), logger)
	return r.run(ctx, cfg.UserID)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
