package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/pfrederiksen/mothership-events/internal/config"
	"github.com/pfrederiksen/mothership-events/internal/handler"
	"github.com/pfrederiksen/mothership-events/internal/logger"
	"github.com/pfrederiksen/mothership-events/internal/metrics"
)

// invoke runs the operation named by HANDLER with the invocation payload
func invoke(ctx context.Context, payload json.RawMessage) (interface{}, error) {
	cfg, err := config.Load(os.Getenv)
	if err != nil {
		return nil, err
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logger.LevelInfo
	}
	log := logger.New(level, os.Stdout)
	m := metrics.New()

	out, err := handler.Dispatch(ctx, cfg, handler.DefaultDeps(log, m, os.Stdout), payload)
	if err != nil {
		log.Error("Invocation failed", logger.Fields{"handler": cfg.Handler}, err)
		return nil, err
	}

	if err := m.WriteTextfile(cfg.MetricsTextfile); err != nil {
		log.Warn("Failed to write metrics", logger.Fields{"error": err.Error()})
	}
	return out, nil
}

func main() {
	lambda.Start(invoke)
}
