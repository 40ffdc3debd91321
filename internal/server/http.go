package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/wingside/loyalty-engine/pkg/common"
	"github.com/wingside/loyalty-engine/pkg/decay"
	"github.com/wingside/loyalty-engine/pkg/engineconf"
	"github.com/wingside/loyalty-engine/pkg/leadscore"
	"github.com/wingside/loyalty-engine/pkg/service"
)

// HTTPServer manages the API server lifecycle and its handlers.
type HTTPServer struct {
	server  *http.Server
	port    int
	scoring *service.LeadScoringService
	loyalty *service.LoyaltyService
	runner  *decay.Runner
	reports decay.ReportStore
	toggles engineconf.Toggles
}

// NewHTTPServer creates a new API server instance.
func NewHTTPServer(
	port int,
	scoring *service.LeadScoringService,
	loyalty *service.LoyaltyService,
	runner *decay.Runner,
	reports decay.ReportStore,
	toggles engineconf.Toggles,
) *HTTPServer {
	return &HTTPServer{
		port:    port,
		scoring: scoring,
		loyalty: loyalty,
		runner:  runner,
		reports: reports,
		toggles: toggles,
	}
}

// Setup registers routes and builds the underlying http.Server. All
// routes run inside the OpenTelemetry HTTP instrumentation so traces
// propagate from the storefront gateway.
func (s *HTTPServer) Setup() error {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /v1/leads/{id}/score", s.handleScoreLead)
	mux.HandleFunc("POST /v1/leads/score", s.handleScoreFactors)
	mux.HandleFunc("GET /v1/customers/{id}/loyalty", s.handleGetLoyalty)
	mux.HandleFunc("POST /v1/customers/{id}/points", s.handleAwardPoints)
	mux.HandleFunc("GET /v1/loyalty/decay/preview", s.handleDecayPreview)
	mux.HandleFunc("POST /v1/loyalty/decay/run", s.handleDecayRun)
	mux.HandleFunc("GET /v1/loyalty/decay/latest", s.handleDecayLatest)

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: otelhttp.NewHandler(mux, "loyalty-engine-api"),
	}

	return nil
}

// Start begins serving the API on the configured port.
func (s *HTTPServer) Start(ctx context.Context) error {
	go func() {
		logrus.Infof("API server listening on port %d", s.port)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("API server failed: %v", err)
		}
	}()
	return nil
}

// Shutdown gracefully stops the API server.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	logrus.Info("shutting down API server...")
	if err := s.server.Shutdown(ctx); err != nil {
		return err
	}
	logrus.Info("API server stopped")
	return nil
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "healthy",
		"service": "loyalty-engine",
	})
}

func (s *HTTPServer) handleScoreLead(w http.ResponseWriter, r *http.Request) {
	scope := common.GetScopeFromContext(r.Context(), "api.ScoreLead")
	defer scope.Finish()

	if !s.toggles.AcceptScoring {
		writeError(w, http.StatusServiceUnavailable, "scoring is disabled")
		return
	}

	leadID := r.PathValue("id")
	scored, err := s.scoring.ScoreLead(scope.Ctx, leadID)
	if err != nil {
		scope.TraceError(err)
		writeServiceError(w, scope, err)
		return
	}

	writeJSON(w, http.StatusOK, scored)
}

func (s *HTTPServer) handleScoreFactors(w http.ResponseWriter, r *http.Request) {
	scope := common.GetScopeFromContext(r.Context(), "api.ScoreFactors")
	defer scope.Finish()

	if !s.toggles.AcceptScoring {
		writeError(w, http.StatusServiceUnavailable, "scoring is disabled")
		return
	}

	var factors leadscore.Factors
	if err := json.NewDecoder(r.Body).Decode(&factors); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	writeJSON(w, http.StatusOK, s.scoring.ScoreFactors(factors))
}

func (s *HTTPServer) handleGetLoyalty(w http.ResponseWriter, r *http.Request) {
	scope := common.GetScopeFromContext(r.Context(), "api.GetLoyalty")
	defer scope.Finish()

	customer, err := s.loyalty.GetLoyalty(scope.Ctx, r.PathValue("id"))
	if err != nil {
		scope.TraceError(err)
		writeServiceError(w, scope, err)
		return
	}

	writeJSON(w, http.StatusOK, customer)
}

func (s *HTTPServer) handleAwardPoints(w http.ResponseWriter, r *http.Request) {
	scope := common.GetScopeFromContext(r.Context(), "api.AwardPoints")
	defer scope.Finish()

	var event service.PointsEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	customerID := r.PathValue("id")
	scope.AddBaggage("customer_id", customerID)
	scope.AddBaggage("event_type", event.Type)

	result, err := s.loyalty.AwardPoints(scope.Ctx, customerID, event)
	if err != nil {
		scope.TraceError(err)
		writeServiceError(w, scope, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleDecayPreview(w http.ResponseWriter, r *http.Request) {
	scope := common.GetScopeFromContext(r.Context(), "api.DecayPreview")
	defer scope.Finish()

	report, err := s.runner.Run(scope.Ctx, true)
	if err != nil {
		scope.TraceError(err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, report)
}

func (s *HTTPServer) handleDecayRun(w http.ResponseWriter, r *http.Request) {
	scope := common.GetScopeFromContext(r.Context(), "api.DecayRun")
	defer scope.Finish()

	report, err := s.runner.Run(scope.Ctx, false)
	if err != nil {
		scope.TraceError(err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, report)
}

func (s *HTTPServer) handleDecayLatest(w http.ResponseWriter, r *http.Request) {
	scope := common.GetScopeFromContext(r.Context(), "api.DecayLatest")
	defer scope.Finish()

	if s.reports == nil {
		writeError(w, http.StatusNotFound, "report storage is not configured")
		return
	}

	report, err := s.reports.LatestReport(scope.Ctx)
	if err != nil {
		scope.TraceError(err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if report == nil {
		writeError(w, http.StatusNotFound, "no decay run has completed yet")
		return
	}

	writeJSON(w, http.StatusOK, report)
}

func writeServiceError(w http.ResponseWriter, scope *common.Scope, err error) {
	if errors.Is(err, service.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if errors.Is(err, service.ErrInvalidEvent) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	scope.Log.Errorf("request failed: %v", err)
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logrus.Errorf("failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
