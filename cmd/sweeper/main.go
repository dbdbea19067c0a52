package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"

	"github.com/example/medride/internal/config"
	"github.com/example/medride/internal/models"
)

var (
	eventsConsumed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sweeper_events_consumed_total",
		Help: "Total ride events consumed",
	})
	eventsInvalid = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sweeper_events_invalid_total",
		Help: "Total invalid events received",
	})
	indexErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sweeper_index_errors_total",
		Help: "Total expiry index update failures",
	})
	ridesExpired = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sweeper_rides_expired_total",
		Help: "Total unmatched rides auto-cancelled",
	})
	sweepErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sweeper_sweep_errors_total",
		Help: "Total sweep passes that hit an error",
	})
)

func init() {
	prometheus.MustRegister(eventsConsumed, eventsInvalid, indexErrors, ridesExpired, sweepErrors)
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadSweeperConfig()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	rc := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	idx := &redisIndex{c: rc, key: cfg.RedisExpiryKey}
	canceller := &apiCanceller{base: cfg.APIBaseURL, client: &http.Client{Timeout: 5 * time.Second}}

	// metrics and health server
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) })
		mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			if err := rc.Ping(r.Context()).Err(); err != nil {
				http.Error(w, "redis not ready", 503)
				return
			}
			w.WriteHeader(200)
			w.Write([]byte("ready"))
		})
		log.Printf("metrics/health listening on %s", cfg.MetricsAddr)
		if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
			log.Printf("metrics server stopped: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go runSweepLoop(ctx, idx, canceller, cfg.SweepInterval)

	r := kafka.NewReader(kafka.ReaderConfig{Brokers: cfg.KafkaBrokers, Topic: cfg.KafkaTopic, GroupID: cfg.KafkaGroup, MinBytes: 10e3, MaxBytes: 10e6})
	defer func() {
		_ = r.Close()
		_ = rc.Close()
	}()

	log.Printf("sweeper consuming topic=%s brokers=%v group=%s", cfg.KafkaTopic, cfg.KafkaBrokers, cfg.KafkaGroup)

	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		m, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Println("shutting down sweeper")
				return
			}
			log.Printf("kafka read error: %v; backing off %s", err, backoff)
			time.Sleep(backoff)
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = time.Second

		eventsConsumed.Inc()

		var ev models.RideEvent
		if err := json.Unmarshal(m.Value, &ev); err != nil {
			eventsInvalid.Inc()
			log.Printf("invalid event: %v", err)
			continue
		}

		if err := applyEventWithRetry(ctx, idx, ev, 3, 200*time.Millisecond); err != nil {
			indexErrors.Inc()
			log.Printf("index update failed for ride=%d: %v", ev.RideID, err)
		}
	}
}

func runSweepLoop(ctx context.Context, idx ExpiryIndex, c Canceller, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := sweep(ctx, idx, c, time.Now())
			if n > 0 {
				ridesExpired.Add(float64(n))
				log.Printf("expired %d unmatched rides", n)
			}
			if err != nil {
				sweepErrors.Inc()
				log.Printf("sweep error: %v", err)
			}
		}
	}
}
