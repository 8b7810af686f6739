package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/jessevdk/go-flags"
	"go.uber.org/zap"

	_ "github.com/ctfkit/ctfkit/builtin"
	"github.com/ctfkit/ctfkit/logging"
	"github.com/ctfkit/ctfkit/server"
)

// Binary version, passed during the build with '-ldflags "-X main.version="'.
var version = "unknown"

// run is the true entry point. This function is required since defers
// created in the top-level scope of main aren't executed if os.Exit() is
// called.
func run() error {
	// Start with defaults, pre-parse the command line to pick up an
	// alternative config file, load it, then parse the command line again
	// so CLI options take precedence.
	cfg := server.DefaultConfig()
	cfg, err := server.ParseFlags(cfg)
	if err != nil {
		return err
	}
	cfg, err = server.ReadConfigFile(cfg)
	if err != nil {
		return err
	}
	cfg, err = server.SetupConfig(cfg)
	if err != nil {
		return err
	}
	cfg, err = server.ParseFlags(cfg)
	if err != nil {
		return err
	}

	logLevel := zap.InfoLevel
	if cfg.DebugLog {
		logLevel = zap.DebugLevel
	}
	logger := logging.New(logLevel, filepath.Join(cfg.LogDir, "ctfkit.log"), cfg.JSONLog)
	ctx := logging.NewContext(context.Background(), logger)

	defer func() {
		logger.Info("shutdown complete")
	}()

	logger.Sugar().Infof("version: %s, dir: %v, database: %v", version, cfg.CtfDir, cfg.Database)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	srv, err := server.New(ctx, *cfg)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	defer srv.Close()

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("failure in server: %w", err)
	}
	return nil
}

func main() {
	if err := run(); err != nil {
		// The flags package already prints help errors.
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
			os.Exit(0)
		}
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
