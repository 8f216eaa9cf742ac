package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
)

func main() {
	configDir := flag.String("config", ".", "Directory containing app.env")
	flag.Parse()

	cfg, err := LoadConfig(*configDir)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	if cfg.ClientDir == "" || !dirExists(cfg.ClientDir) {
		exe, _ := os.Executable()
		fallback := filepath.Join(filepath.Dir(exe), "..", "client")
		// Fallback for development
		if !dirExists(fallback) {
			fallback = "../client"
		}
		cfg.ClientDir = fallback
	}

	db, err := OpenDB(cfg.DBPath)
	if err != nil {
		log.Fatalf("open database %s: %v", cfg.DBPath, err)
	}
	defer db.Close()

	kv, closeKV, err := openKV(cfg, db)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}
	defer closeKV()

	analytics := NewAnalytics(db)
	registry := NewRegistry(kv, cfg.ProfileDefaults(), analytics)

	hub := NewHub(db, registry, analytics)
	go hub.Run()

	flavor := NewFlavor(cfg.GeminiAPIKey, cfg.GeminiModel)
	srv := NewServer(hub, analytics, flavor, cfg.ClientDir)

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	server := &http.Server{Addr: cfg.Addr, Handler: srv.Routes()}

	go func() {
		log.Printf("Server starting on %s", cfg.Addr)
		log.Printf("Serving client files from %s", cfg.ClientDir)
		log.Printf("Player storage: %s, flavor text online: %v", cfg.StorageBackend, flavor.Online())
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe: %v", err)
		}
	}()

	<-stop
	log.Println("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	server.Shutdown(ctx)
	if err := registry.FlushAll(ctx); err != nil {
		log.Printf("flush profiles: %v", err)
	}
	analytics.Stop()
}

// openKV selects where player records live. Accounts, codes and analytics stay in SQLite.
func openKV(cfg Config, db *DB) (KVStore, func(), error) {
	switch cfg.StorageBackend {
	case BackendSQLite, "":
		return db, func() {}, nil
	case BackendMemory:
		log.Printf("warning: player records are kept in memory and lost on restart")
		return NewMemoryStore(), func() {}, nil
	case BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("redis %s: %w", cfg.RedisAddr, err)
		}
		return NewRedisStore(client), func() { client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
