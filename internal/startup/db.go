// Package startup holds connection bootstrap shared by the services.
package startup

import (
	"context"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/helpchat/internal/logger"
)

// retryUntil keeps calling attempt with exponential backoff until it
// succeeds or maxWait elapses, then exits the process. Dependencies
// that are briefly unavailable at boot should not kill the service.
func retryUntil(what string, maxWait time.Duration, attempt func(ctx context.Context) error) {
	deadline := time.Now().Add(maxWait)
	backoff := 2 * time.Second
	for {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := attempt(ctx)
		cancel()
		if err == nil {
			return
		}
		if time.Now().After(deadline) {
			logger.Errorf("startup: %s (gave up after %v): %v", what, maxWait, err)
			os.Exit(1)
		}
		logger.Errorf("startup: %s failed, retry in %v: %v", what, backoff, err)
		time.Sleep(backoff)
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

// ConnectDBWithRetry connects to Postgres and verifies the connection
// with a ping, retrying for up to maxWait.
func ConnectDBWithRetry(poolCfg *pgxpool.Config, maxWait time.Duration) *pgxpool.Pool {
	var pool *pgxpool.Pool
	retryUntil("db connect", maxWait, func(ctx context.Context) error {
		p, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return err
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			return err
		}
		pool = p
		return nil
	})
	return pool
}
