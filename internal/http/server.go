package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/example/medride/internal/bids"
	"github.com/example/medride/internal/config"
	"github.com/example/medride/internal/dispatch"
	"github.com/example/medride/internal/ingest"
	"github.com/example/medride/internal/lifecycle"
	"github.com/example/medride/internal/logging"
	"github.com/example/medride/internal/payments"
	"github.com/example/medride/internal/promo"
	"github.com/example/medride/internal/routes"
	"github.com/example/medride/internal/storage"
)

type Server struct {
	Store    storage.Store
	Ledger   *bids.Ledger
	Machine  *lifecycle.Machine
	Routes   routes.Client      // optional route metrics fallback
	Promo    promo.Client       // optional promo service
	Payments payments.Processor // optional payment processor
	Kafka    *ingest.KafkaProducer
	WSReg    *dispatch.WSRegistry

	logger  *slog.Logger
	limiter *rate.Limiter
	mux     *mux.Router
}

// NewServer wires the marketplace from explicit dependencies.
func NewServer(cfg config.ServerConfig, logger *slog.Logger, store storage.Store) *Server {
	locks := storage.NewRideLocks()

	var kp *ingest.KafkaProducer
	if len(cfg.KafkaBrokers) > 0 {
		kp = ingest.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	}

	wsreg := dispatch.NewWSRegistry()
	push := dispatch.NewPushDispatcher(cfg.NotifyWebhook, wsreg)

	var events lifecycle.Publisher
	if kp != nil {
		events = kp
	}
	machine := lifecycle.NewMachine(store, locks, events)
	ledger := bids.NewLedger(store, locks, machine, events, push)

	// route metrics come from OSRM when configured, with a crow-flight
	// estimate behind it so quotes never lose their distance components
	var rc routes.Client = routes.Estimator{}
	if cfg.OSRMEndpoint != "" {
		rc = &routes.FallbackClient{
			Primary: &routes.CachedClient{
				Inner: routes.NewOSRMClient(cfg.OSRMEndpoint),
				Cache: routes.NewCache(cfg.RouteCacheTTL),
			},
			Fallback: routes.Estimator{},
		}
	}

	var pc promo.Client
	if cfg.PromoEndpoint != "" {
		pc = promo.NewHTTPClient(cfg.PromoEndpoint)
	}

	s := &Server{
		Store:    store,
		Ledger:   ledger,
		Machine:  machine,
		Routes:   rc,
		Promo:    pc,
		Payments: payments.NewStripeClient(),
		Kafka:    kp,
		WSReg:    wsreg,
		logger:   logger,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst),
		mux:      mux.NewRouter(),
	}
	s.registerMiddleware()
	s.routes()
	return s
}

// NewServerFromEnv is the env-driven wiring used by cmd/server, with a
// Postgres store when PG_DSN is set and an in-memory fallback otherwise.
func NewServerFromEnv() (*Server, error) {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		return nil, err
	}
	logger := logging.NewLogger(cfg.LogLevel)

	var store storage.Store
	if cfg.PGDSN != "" {
		ps, err := storage.NewPostgresStore(cfg.PGDSN)
		if err != nil {
			return nil, err
		}
		store = ps
	} else {
		store = storage.NewMemoryStore()
	}
	return NewServer(cfg, logger, store), nil
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/v1/quotes", s.handleQuote).Methods("POST")

	s.mux.HandleFunc("/api/v1/rides", s.handleCreateRide).Methods("POST")
	s.mux.HandleFunc("/api/v1/rides/{id}", s.handleGetRide).Methods("GET")
	s.mux.HandleFunc("/api/v1/rides/{id}", s.handleCancelRide).Methods("DELETE")
	s.mux.HandleFunc("/api/v1/rides/{id}/status", s.handleRideStatus).Methods("POST")
	s.mux.HandleFunc("/api/v1/rides/{id}/pay", s.handlePayRide).Methods("POST")
	s.mux.HandleFunc("/api/v1/payments/callback", s.handlePaymentCallback).Methods("POST")

	s.mux.HandleFunc("/api/v1/bids", s.handlePlaceBid).Methods("POST")
	s.mux.HandleFunc("/api/v1/bids/{id}/accept", s.handleAcceptBid).Methods("POST")
	s.mux.HandleFunc("/api/v1/bids/{id}/counter", s.handleCounterOffer).Methods("POST")
	s.mux.HandleFunc("/api/v1/bids/ride/{id}", s.handleListBids).Methods("GET")

	s.mux.HandleFunc("/api/v1/drivers/{id}/documents", s.handleDriverDocuments).Methods("POST")

	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) }).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.HandleFunc("/ws/{rider_id}", s.handleWS)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }
