package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"

	"github.com/scrollfeed/scrollfeed/internal/config"
	"github.com/scrollfeed/scrollfeed/internal/history"
	"github.com/scrollfeed/scrollfeed/internal/progress"
	"github.com/scrollfeed/scrollfeed/internal/sink"
	"github.com/scrollfeed/scrollfeed/pkg/cache"
	"github.com/scrollfeed/scrollfeed/pkg/feed"
	"github.com/scrollfeed/scrollfeed/pkg/fetcher"
	"github.com/scrollfeed/scrollfeed/pkg/logging"
	"github.com/scrollfeed/scrollfeed/pkg/quota"
	"github.com/scrollfeed/scrollfeed/pkg/source"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.Logging.Level),
		Pretty: cfg.Logging.Pretty,
		Output: os.Stderr,
	})
	logger := logging.NewLogger("feedd")

	ctx := context.Background()

	// Redis is optional. Without it the fetcher runs uncached and page
	// fetches are not quota-gated.
	var imageCache *cache.Manager
	var quotaTracker *quota.Tracker
	if cfg.Redis.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("Failed to connect to Redis")
		}
		logger.Info().Str("addr", cfg.Redis.Addr).Msg("Connected to Redis")
		imageCache = cache.NewManager(redisClient)
		quotaTracker = quota.NewTracker(redisClient, logging.NewLogger("quota"))
	}

	bucket, err := blob.OpenBucket(ctx, cfg.Storage.BucketURL)
	if err != nil {
		logger.Fatal().Err(err).Str("url", cfg.Storage.BucketURL).Msg("Failed to open item bucket")
	}
	defer bucket.Close()

	historyStore, err := history.Open(cfg.Storage.HistoryPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.Storage.HistoryPath).Msg("Failed to open history store")
	}
	defer historyStore.Close()

	urlSource, err := source.NewSheet(source.Config{
		BaseURL:       cfg.Sheet.BaseURL,
		SpreadsheetID: cfg.Sheet.SpreadsheetID,
		Sheet:         cfg.Sheet.Sheet,
		Column:        cfg.Sheet.Column,
		APIKey:        cfg.Sheet.APIKey,
		Timeout:       cfg.Sheet.Timeout,
		Quota:         quotaTracker,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create sheet source")
	}

	fetchCfg := fetcher.DefaultConfig()
	fetchCfg.Cache = imageCache
	imageFetcher := fetcher.New(fetchCfg)

	reporter := progress.NewReporter(logging.NewLogger("progress"), 10*time.Second)
	reporter.Start()
	defer reporter.Stop()

	session := uuid.New().String()
	feedSink := sink.NewBucket(bucket, historyStore, reporter, session)

	controller, err := feed.New(urlSource, imageFetcher, feedSink, feed.Config{
		BatchSize: cfg.Feed.BatchSize,
		PageSize:  cfg.Feed.PageSize,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create feed controller")
	}

	if err := controller.Initialize(ctx, cfg.Feed.InitialLoad); err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize feed")
	}

	router := mux.NewRouter()
	router.HandleFunc("/healthz", healthHandler).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/v1/scroll", scrollHandler(controller)).Methods(http.MethodPost)
	router.HandleFunc("/v1/items", itemsHandler(feedSink)).Methods(http.MethodGet)

	server := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	go func() {
		logger.Info().Str("addr", cfg.Server.Addr).Str("session", session).Msg("Starting feedd")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Shutdown failed")
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

// scrollRequest is the body of POST /v1/scroll.
type scrollRequest struct {
	Position  float64 `json:"position"`
	Direction string  `json:"direction"` // "forward" or "backward"
}

func scrollHandler(controller *feed.Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req scrollRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, fmt.Sprintf("invalid body: %v", err), http.StatusBadRequest)
			return
		}
		if req.Position < 0 || req.Position > 1 {
			http.Error(w, "position must be within [0, 1]", http.StatusBadRequest)
			return
		}

		dir := feed.DirectionForward
		if req.Direction == "backward" {
			dir = feed.DirectionBackward
		}

		controller.OnScrollPositionChanged(r.Context(), req.Position, dir)
		w.WriteHeader(http.StatusAccepted)
	}
}

func itemsHandler(s *sink.BucketSink) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		resp := struct {
			Ready bool        `json:"ready"`
			Items []sink.Item `json:"items"`
		}{
			Ready: s.Ready(),
			Items: s.Items(),
		}
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			log.Error().Err(err).Msg("Failed to write items response")
		}
	}
}
