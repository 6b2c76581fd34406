package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/npezzotti/go-gameportal/internal/accounts"
	"github.com/npezzotti/go-gameportal/internal/api"
	"github.com/npezzotti/go-gameportal/internal/chat"
	"github.com/npezzotti/go-gameportal/internal/config"
	"github.com/npezzotti/go-gameportal/internal/database"
	"github.com/npezzotti/go-gameportal/internal/notify"
	"github.com/npezzotti/go-gameportal/internal/server"
	"github.com/npezzotti/go-gameportal/internal/servers"
	"github.com/npezzotti/go-gameportal/internal/simulation"
	"github.com/npezzotti/go-gameportal/internal/stats"
)

const defaultSigningKey = "wT0phFUusHZIrDhL9bUKPUhwaxKhpi/SaI6PtgB+MgU="

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, strings.Split(value, ",")...)
	return nil
}

var (
	addr           string
	configPath     string
	storage        string
	dsn            string
	redisAddr      string
	badgerDir      string
	signingKey     string
	ownerEmail     string
	rateLimitRPM   int
	keyPrefix      string
	allowedOrigins stringSliceFlag
)

func openStore(ctx context.Context, cfg *config.Config) (database.DocumentStore, error) {
	switch cfg.Storage {
	case config.StorageMemory:
		return database.NewMemoryStore(), nil
	case config.StoragePostgres:
		return database.NewPgDocumentStore(cfg.DatabaseDSN)
	case config.StorageRedis:
		return database.NewRedisDocumentStore(cfg.RedisAddr, cfg.RedisPassword)
	case config.StorageBadger:
		return database.NewBadgerDocumentStore(cfg.BadgerDir)
	case config.StorageMongo:
		return database.NewMongoDocumentStore(ctx, cfg.DatabaseDSN, cfg.MongoDatabase)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage)
	}
}

func main() {
	flag.StringVar(&addr, "addr", "localhost:8000", "server address")
	flag.StringVar(&configPath, "config", "", "optional YAML config file applied over the flags")
	flag.StringVar(&storage, "storage", config.StorageMemory, "storage backend: memory, postgres, redis, badger or mongo")
	flag.StringVar(&dsn, "dsn", "", "postgres connection string or mongo URI")
	flag.StringVar(&redisAddr, "redis-addr", config.DefaultRedisAddr, "redis address")
	flag.StringVar(&badgerDir, "badger-dir", config.DefaultBadgerDir, "badger data directory")
	flag.StringVar(&signingKey, "signing-key", defaultSigningKey, "base64 encoded signing key")
	flag.StringVar(&ownerEmail, "owner-email", config.DefaultOwnerEmail, "address contact messages are sent to")
	flag.IntVar(&rateLimitRPM, "rate-limit-rpm", config.DefaultRateLimitRPM, "auth requests allowed per minute per client")
	flag.StringVar(&keyPrefix, "key-prefix", config.DefaultKeyPrefix, "prefix of every storage key")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for CORS")
	flag.Parse()

	logger := log.New(os.Stderr, "[portal] ", log.LstdFlags)

	cfg, err := config.NewConfig(addr, storage, dsn, signingKey, allowedOrigins)
	if err != nil {
		logger.Fatal("config:", err)
	}
	cfg.RedisAddr = redisAddr
	cfg.BadgerDir = badgerDir
	cfg.OwnerEmail = ownerEmail
	cfg.RateLimitRPM = rateLimitRPM
	cfg.KeyPrefix = keyPrefix

	if configPath != "" {
		cfg, err = config.LoadFile(configPath, cfg)
	} else {
		err = cfg.Validate()
	}
	if err != nil {
		logger.Fatal("config:", err)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	backend, err := openStore(ctx, cfg)
	if err != nil {
		logger.Fatal("store open:", err)
	}
	defer func() {
		if err := backend.Close(); err != nil {
			logger.Println("store close:", err)
		}
	}()
	logger.Printf("using %s storage", cfg.Storage)

	store := database.Namespace(backend, cfg.KeyPrefix)

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)

	rnd := simulation.NewRandom()
	scheduler := simulation.NewTimerScheduler()
	defer scheduler.Stop()

	inbox := notify.NewInbox(logger, store)
	contact := notify.NewContactLog(logger, store, cfg.OwnerEmail, cfg.Brand)
	accountSvc := accounts.NewService(logger, store, inbox, statsUpdater, cfg.SigningKey, cfg.Brand)
	chatSvc := chat.NewService(logger, store, simulation.NewSimulatedPeer(rnd), accountSvc, inbox, scheduler, statsUpdater)
	directory := servers.NewDirectory(logger, store, simulation.NewServerSimulator(rnd), accountSvc, inbox, scheduler, statsUpdater)

	hub := server.NewHub(logger, chatSvc, statsUpdater)
	chatSvc.SetPublisher(hub)
	directory.SetPublisher(hub)
	inbox.SetPublisher(hub)

	if account, ok, err := accountSvc.RestoreSession(ctx); err != nil {
		logger.Println("restore session:", err)
	} else if ok {
		logger.Printf("restored session for %q", account.Username)
	}

	srv := api.NewPortalApp(mux, logger, api.Services{
		Accounts: accountSvc,
		Chat:     chatSvc,
		Servers:  directory,
		Inbox:    inbox,
		Contact:  contact,
		Store:    store,
	}, hub, cfg)

	statsUpdater.Run()
	defer statsUpdater.Stop()

	go hub.Run()
	go chatSvc.Run(ctx)
	go directory.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Printf("received signal: %s\n", sig)
	case err := <-errCh:
		logger.Println("server:", err)
	}

	stop()

	shutDownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutDownCtx); err != nil {
		logger.Println("HTTP server shutdown:", err)
	}

	if err := hub.Shutdown(shutDownCtx); err != nil {
		logger.Println("realtime hub shutdown:", err)
	}

	logger.Println("shutdown complete")
}
