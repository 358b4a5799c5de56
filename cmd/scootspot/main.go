package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"scootspot/cmd/scootspot/cmds"
	"scootspot/internal/api"
	"scootspot/internal/backends"
	"scootspot/internal/occupancy"
	"scootspot/internal/ports"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

const usage = `usage: scootspot [command] [flags]

commands:
  serve                      run the HTTP API (default)
  put-locations -f <file>    register locations from a YAML file
  get-location -id <id>      print one location
  list-locations             print every location
`

func main() {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		log.Info("The .env file not found.")
	}
	setupLogging()

	cmd := "serve"
	args := os.Args[1:]
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}

	ctx := context.Background()
	var err error
	switch cmd {
	case "serve":
		err = serve(ctx)
	case "put-locations":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		file := fs.String("f", "", "YAML file with locations")
		_ = fs.Parse(args)
		if *file == "" {
			log.Fatal("put-locations requires -f")
		}
		err = withService(ctx, func(svc *occupancy.Service, _ ports.LocationStore) error {
			return cmds.PutLocations(ctx, svc, *file)
		})
	case "get-location":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		id := fs.String("id", "", "location id")
		_ = fs.Parse(args)
		err = withService(ctx, func(_ *occupancy.Service, store ports.LocationStore) error {
			return cmds.GetLocation(ctx, store, *id, os.Stdout)
		})
	case "list-locations":
		err = withService(ctx, func(svc *occupancy.Service, _ ports.LocationStore) error {
			return cmds.ListLocations(ctx, svc, os.Stdout)
		})
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		log.WithError(err).Fatalf("%s failed", cmd)
	}
}

func setupLogging() {
	if lvl, err := log.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		log.SetLevel(lvl)
	}
	if os.Getenv("LOG_FORMAT") == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	}
}

// withService runs fn against the configured store. Admin commands never detect or archive.
func withService(ctx context.Context, fn func(*occupancy.Service, ports.LocationStore) error) error {
	store, err := backends.LocationBackendFromEnv(ctx)
	if err != nil {
		return err
	}
	return fn(occupancy.NewService(store, nil, nil), store)
}

func serve(ctx context.Context) error {
	store, err := backends.LocationBackendFromEnv(ctx)
	if err != nil {
		return fmt.Errorf("location store: %w", err)
	}
	archiver, err := backends.ArchiverFromEnv(ctx)
	if err != nil {
		return fmt.Errorf("archiver: %w", err)
	}
	det, err := backends.DetectorFromEnv()
	if err != nil {
		return fmt.Errorf("detector: %w", err)
	}
	hctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	if err := det.CheckHealth(hctx); err != nil {
		log.WithError(err).Warn("Detector is not reachable yet")
	}
	cancel()
	publisher, topicArn, err := backends.PublisherFromEnv(ctx)
	if err != nil {
		return fmt.Errorf("publisher: %w", err)
	}

	svc := occupancy.NewService(store, det, archiver, occupancy.WithPublisher(publisher, topicArn))

	port := envInt("PORT", 8000)
	h := api.NewHandler(svc, int64(envInt("MAX_UPLOAD_BYTES", 0)))

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	err = api.RunServer(sigCtx, port, h)
	if err == nil {
		log.Info("Server stopped")
	}
	return err
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("invalid %s %q", key, v)
	}
	return n
}
