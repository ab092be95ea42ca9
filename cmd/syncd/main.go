// Command syncd runs the cart sync agent: it keeps a local pending-line store
// for sessions without a credential, merges it with the server cart, and
// drains local lines to the server once a token becomes available. The token
// is read from a file on every use, so dropping a token into place while the
// agent runs triggers the drain.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"storefront-service/config"
	"storefront-service/internal/localstore"
	"storefront-service/internal/notify"
	"storefront-service/internal/reconciler"
	"storefront-service/internal/remote"
	"storefront-service/internal/util"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting cart sync agent")

	tokens := fileTokenSource(cfg.Sync.TokenFile)

	local := localstore.New(cfg.Sync.LocalStorePath, logger)
	defer local.Close()

	client := remote.NewClient(cfg.Sync.RemoteURL,
		time.Duration(cfg.Sync.HTTPTimeoutSeconds)*time.Second, tokens)

	rec := reconciler.New(client, local, tokens, notify.NewLogNotifier(logger), logger,
		reconciler.Config{
			PollInterval:  time.Duration(cfg.Sync.PollIntervalSeconds) * time.Second,
			DrainDebounce: time.Duration(cfg.Sync.DrainDebounceMS) * time.Millisecond,
		})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := rec.Run(ctx); err != nil && err != context.Canceled {
			log.Printf("Reconciler error: %v", err)
		}
	}()

	// Connectivity watcher: probes the remote endpoint and feeds the result
	// into the reconciler, which suspends refreshes and drains while offline.
	go func() {
		ticker := time.NewTicker(time.Duration(cfg.Sync.ProbeIntervalSeconds) * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rec.SetOnline(client.Ping(ctx))
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down sync agent...")
	cancel()

	if err := local.Flush(); err != nil {
		log.Printf("Failed to flush local cart: %v", err)
	}

	log.Println("Sync agent exited")
}

// fileTokenSource reads the bearer token from a file each time it is needed.
// A missing or empty file means the session is unauthenticated.
func fileTokenSource(path string) remote.TokenSource {
	return func() string {
		if path == "" {
			return os.Getenv("SYNC_TOKEN")
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return ""
		}
		return strings.TrimSpace(string(data))
	}
}
