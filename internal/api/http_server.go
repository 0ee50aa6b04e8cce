package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"foobar/internal/config"
	"foobar/internal/database"
	"foobar/internal/export"
	"foobar/internal/metrics"
	"foobar/internal/service"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// HTTPServer exposes the kiosk and admin JSON API.
type HTTPServer struct {
	cfg        config.APIConfig
	accounts   *service.AccountService
	purchases  *service.PurchaseService
	products   *service.ProductService
	deliveries *service.DeliveryService
	stocktakes *service.StocktakeService
	ordering   *service.OrderingService
	exporter   *export.Exporter
	tokens     *service.TokenIssuer
	server     *http.Server
	auth       *HTTPAuth
	logger     *zerolog.Logger
}

// Services bundles the dependencies handed to the HTTP server.
type Services struct {
	Accounts   *service.AccountService
	Purchases  *service.PurchaseService
	Products   *service.ProductService
	Deliveries *service.DeliveryService
	Stocktakes *service.StocktakeService
	Ordering   *service.OrderingService
	Exporter   *export.Exporter
	Tokens     *service.TokenIssuer
}

func NewHTTPServer(cfg config.APIConfig, svcs Services, logger *zerolog.Logger) *HTTPServer {
	srv := &HTTPServer{
		cfg:        cfg,
		accounts:   svcs.Accounts,
		purchases:  svcs.Purchases,
		products:   svcs.Products,
		deliveries: svcs.Deliveries,
		stocktakes: svcs.Stocktakes,
		ordering:   svcs.Ordering,
		exporter:   svcs.Exporter,
		tokens:     svcs.Tokens,
		logger:     logger,
	}
	srv.auth = NewHTTPAuth(cfg)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/accounts/", srv.handleAccounts)
	mux.HandleFunc("/api/v1/purchases", srv.handlePurchases)
	mux.HandleFunc("/api/v1/purchases/", srv.handlePurchaseByID)
	mux.HandleFunc("/api/v1/products", srv.handleProducts)
	mux.HandleFunc("/api/v1/products/", srv.handleProductByID)
	mux.HandleFunc("/api/v1/wallets/", srv.handleWallets)
	mux.HandleFunc("/api/v1/deliveries", srv.handleDeliveries)
	mux.HandleFunc("/api/v1/deliveries/", srv.handleDeliveryByID)
	mux.HandleFunc("/api/v1/stocktakes", srv.handleStocktakes)
	mux.HandleFunc("/api/v1/stocktakes/", srv.handleStocktakeByID)
	mux.HandleFunc("/api/v1/suppliers/", srv.handleSuppliers)
	mux.HandleFunc("/api/v1/reports/stock", srv.handleStockReport)
	mux.HandleFunc("/api/v1/reports/purchases", srv.handlePurchasesReport)

	authed := srv.auth.Wrap(mux)

	root := http.NewServeMux()
	root.HandleFunc("/healthz", srv.handleHealthz)
	root.Handle("/api/", authed)

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           srv.loggingMiddleware(root),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	return srv
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler returns the full middleware chain, used by tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		dur := time.Since(start)

		metrics.IncHTTP(endpointLabel(r.URL.Path))
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", dur).
			Msg("http request")
	})
}

// endpointLabel collapses paths to their resource to keep metric
// cardinality bounded.
func endpointLabel(path string) string {
	rest, ok := strings.CutPrefix(path, "/api/v1/")
	if !ok {
		return path
	}
	if i := strings.IndexByte(rest, '/'); i > 0 {
		rest = rest[:i]
	}
	return "/api/v1/" + rest
}

// writeServiceError maps sentinel errors from the lower layers onto
// HTTP status codes.
func (s *HTTPServer) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, database.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, service.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "too many card scans")
	case errors.Is(err, service.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, "invalid account token")
	case errors.Is(err, database.ErrInsufficientFunds):
		writeError(w, http.StatusPaymentRequired, err.Error())
	case errors.Is(err, database.ErrInvalidTransition),
		errors.Is(err, database.ErrVersionConflict),
		errors.Is(err, database.ErrStocktakeInProgress),
		errors.Is(err, database.ErrStocktakeLocked),
		errors.Is(err, database.ErrChunkLocked),
		errors.Is(err, database.ErrDeliveryLocked):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, database.ErrDeliveryInvalid),
		errors.Is(err, database.ErrUnfinishedChunks):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeBody(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// MetricsServer serves Prometheus metrics on its own port.
type MetricsServer struct {
	server *http.Server
	logger *zerolog.Logger
}

func NewMetricsServer(port int, logger *zerolog.Logger) *MetricsServer {
	metrics.Register()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return &MetricsServer{
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

func (m *MetricsServer) Start() error {
	m.logger.Info().Str("addr", m.server.Addr).Msg("Metrics server listening")
	if err := m.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (m *MetricsServer) Shutdown(ctx context.Context) error {
	return m.server.Shutdown(ctx)
}
