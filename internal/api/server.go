package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"didauday/internal/config"
	"didauday/internal/domain"
	"didauday/internal/export"
	"didauday/internal/metrics"
	"didauday/internal/service"

	"github.com/rs/zerolog"
)

// HTTPServer exposes the booking, coupon and reporting API plus the
// payment redirect endpoints the processor sends buyers back to.
type HTTPServer struct {
	cfg        config.APIConfig
	bookings   *service.BookingService
	settlement *service.SettlementService
	coupons    *service.CouponService
	exporter   *export.LedgerExporter
	successURL string
	failureURL string
	server     *http.Server
	auth       *HTTPAuth
	logger     *zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, settlementCfg config.SettlementConfig,
	bookings *service.BookingService, settlement *service.SettlementService,
	coupons *service.CouponService, exporter *export.LedgerExporter,
	checker domain.PolicyChecker, logger *zerolog.Logger) *HTTPServer {

	srv := &HTTPServer{
		cfg:        cfg,
		bookings:   bookings,
		settlement: settlement,
		coupons:    coupons,
		exporter:   exporter,
		successURL: settlementCfg.SuccessURL,
		failureURL: settlementCfg.FailureURL,
		auth:       NewHTTPAuth(cfg, checker),
		logger:     logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/bookings", srv.handleBookings)
	mux.HandleFunc("/api/v1/bookings/me", srv.handleMyBookings)
	mux.HandleFunc("/api/v1/coupon-codes", srv.handleCoupons)
	mux.HandleFunc("/api/v1/coupon-codes/", srv.handleCouponByCode)
	mux.HandleFunc("/api/v1/reports/ledger", srv.handleLedgerReport)
	mux.HandleFunc("/booking/success", srv.handleSuccess)
	mux.HandleFunc("/booking/cancel", srv.handleCancel)
	mux.HandleFunc("/healthz", srv.handleHealth)

	handler := srv.loggingMiddleware(srv.auth.Wrap(mux))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	return srv
}

// Handler exposes the routing stack for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
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

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		metrics.IncHTTP(r.URL.Path)
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}
