package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"opsdash/config"
	"opsdash/docstore"
	"opsdash/docstore/memstore"
	"opsdash/docstore/mongostore"
	"opsdash/docstore/sqlitestore"
)

const (
	connectAttempts = 3
	connectBackoff  = 2 * time.Second
	connectTimeout  = 15 * time.Second
)

// Open connects the store selected by cfg.StoreDriver. Mongo connections
// are retried a few times before giving up.
func Open(ctx context.Context, cfg *config.Config) (docstore.Store, error) {
	switch cfg.StoreDriver {
	case "memory":
		log.Println("⚠️ Using in-memory store, data is lost on restart")
		return memstore.New(), nil

	case "sqlite":
		log.Printf("🔌 Opening SQLite store at %s...", cfg.SQLitePath)
		store, err := sqlitestore.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		log.Println("✅ SQLite store ready")
		return store, nil

	case "mongo":
		return connectMongo(ctx, cfg)
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}

func connectMongo(ctx context.Context, cfg *config.Config) (docstore.Store, error) {
	log.Println("🔌 Connecting to MongoDB...")

	var lastErr error
	for i := 1; i <= connectAttempts; i++ {
		attemptCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		store, err := mongostore.Connect(attemptCtx, cfg.MongoURI, cfg.MongoDB)
		cancel()
		if err == nil {
			log.Println("✅ MongoDB connected successfully")
			return store, nil
		}

		lastErr = err
		log.Printf("❌ MongoDB connection attempt %d failed: %v", i, err)
		if i == connectAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(connectBackoff):
		}
	}
	return nil, fmt.Errorf("connect mongo after %d attempts: %w", connectAttempts, lastErr)
}
