package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/wolfman30/webchat-support-agent/cmd/mainconfig"
	"github.com/wolfman30/webchat-support-agent/internal/app/bootstrap"
	appconfig "github.com/wolfman30/webchat-support-agent/internal/config"
	"github.com/wolfman30/webchat-support-agent/internal/conversation"
	"github.com/wolfman30/webchat-support-agent/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	root := newRootCmd(runtimeFromEnv())
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runtimeFromEnv builds the agent from the same environment the API server reads.
// Logging defaults to error level so JSON lines do not interleave with the REPL.
func runtimeFromEnv() runtime {
	load := func(ctx context.Context) (*appconfig.Config, *logging.Logger, error) {
		cfg := appconfig.Load()
		if err := cfg.Validate(); err != nil {
			return nil, nil, err
		}
		level := cfg.LogLevel
		if os.Getenv("LOG_LEVEL") == "" {
			level = "error"
		}
		return cfg, logging.New(level), nil
	}

	return runtime{
		engine: func(ctx context.Context) (chatEngine, func(), error) {
			cfg, logger, err := load(ctx)
			if err != nil {
				return nil, nil, err
			}
			awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
			if err != nil {
				return nil, nil, err
			}
			app, err := bootstrap.BuildApp(ctx, cfg, awsCfg, logger)
			if err != nil {
				return nil, nil, err
			}
			return app.Engine, app.Close, nil
		},
		client: func(ctx context.Context) (conversation.LLMClient, string, func(), error) {
			cfg, logger, err := load(ctx)
			if err != nil {
				return nil, "", nil, err
			}
			awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
			if err != nil {
				return nil, "", nil, err
			}
			client, cleanup, err := bootstrap.BuildLLMClient(ctx, cfg, awsCfg, nil, logger)
			if err != nil {
				return nil, "", nil, err
			}
			return client, cfg.LLMProvider, cleanup, nil
		},
	}
}
