package main

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

type runner interface {
	Run(ctx context.Context) error
}

// runRelay blocks until the relay stops and logs any exit other than
// cancellation
func runRelay(ctx context.Context, relay runner, log *zap.Logger) {
	if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Outbox relay exited", zap.Error(err))
	}
}
