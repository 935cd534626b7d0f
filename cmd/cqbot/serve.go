package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/keepmind9/cqbot/internal/core"
	"github.com/keepmind9/cqbot/internal/logger"
	"github.com/keepmind9/cqbot/pkg/constants"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	configFile    string
	serveValidate bool

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the webhook and run the configured bots",
		Long: `Start cqbot: bind the webhook the gateway reports events to, create one robot
per configured bot and answer with the configured replies until SIGINT/SIGTERM.`,
		RunE: runServe,
	}
)

func runServe(cmd *cobra.Command, args []string) error {
	config, err := core.LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if serveValidate {
		fmt.Fprintf(cmd.OutOrStdout(), "Configuration is valid: %s\n", configFile)
		return nil
	}

	logConfig := logger.Config{
		Level:        config.Logging.Level,
		File:         config.Logging.File,
		MaxSize:      config.Logging.MaxSize,
		MaxBackups:   config.Logging.MaxBackups,
		MaxAge:       config.Logging.MaxAge,
		Compress:     config.Logging.Compress,
		EnableStdout: config.Logging.EnableStdout,
	}
	if err := logger.InitLogger(logConfig); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"config_file":  configFile,
		"log_level":    config.Logging.Level,
		"gateway":      config.Gateway.Host,
		"post_port":    config.Gateway.Port(),
		"post_path":    "/" + config.Gateway.PostPath,
		"access_token": maskSecret(config.Gateway.AccessToken),
		"bots":         len(config.Bots),
	}).Info("cqbot-starting")

	engine := core.NewEngine(config)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return engine.Run(gctx) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.WithField("error", err).Error("cqbot-stopped-with-error")
		return err
	}
	logger.Info("cqbot-stopped")
	return nil
}

// maskSecret keeps only the ends of a secret visible in logs
func maskSecret(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) < constants.MinSecretLengthForMasking {
		return strings.Repeat("*", len(secret))
	}
	prefix := secret[:constants.SecretMaskPrefixLength]
	suffix := secret[len(secret)-constants.SecretMaskSuffixLength:]
	return prefix + strings.Repeat("*", len(secret)-len(prefix)-len(suffix)) + suffix
}

func init() {
	serveCmd.Flags().StringVarP(&configFile, "config", "c", "config.yaml", "Configuration file path")
	serveCmd.Flags().BoolVar(&serveValidate, "validate", false, "Validate configuration and exit")
}
