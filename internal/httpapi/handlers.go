package httpapi

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"fuelroute/pkg/apperror"
	"fuelroute/pkg/metrics"
	"fuelroute/pkg/swagger"
	"fuelroute/pkg/telemetry"
)

//go:embed openapi.json
var openAPISpec []byte

// Pinger is the readiness probe the server runs against its store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server holds the HTTP surface of the planner service.
type Server struct {
	service     *PlanService
	db          Pinger
	internalKey string
	log         *slog.Logger
}

// NewServer wires the HTTP shell. internalKey may be empty, which disables
// the API-key gate for requests that present no key.
func NewServer(service *PlanService, db Pinger, internalKey string, log *slog.Logger) *Server {
	return &Server{
		service:     service,
		db:          db,
		internalKey: internalKey,
		log:         log,
	}
}

// Handler builds the full routed handler with the middleware chain applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("POST /plan", Chain(
		http.HandlerFunc(s.handlePlan),
		APIKeyAuth(s.internalKey),
	))
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /readyz", s.handleReadyz)
	mux.Handle("GET /metrics", metrics.Handler())
	swagger.RegisterRoutes(mux, nil, openAPISpec)

	return Chain(mux,
		Recover(s.log),
		RequestID,
		Logging(s.log),
		Metrics,
		telemetry.HTTPMiddleware,
	)
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	var req PlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid request body: " + err.Error()})
		return
	}

	corridor, err := req.Validate()
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp, err := s.service.Plan(r.Context(), &req, corridor)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "not ready", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

// writeError translates the application error taxonomy onto the wire.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.Error
	if !errors.As(err, &appErr) {
		s.log.Error("unexpected error", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "Internal Server Error"})
		return
	}

	body := map[string]any{"error": appErr.Message}
	if appErr.Field != "" {
		body["field"] = appErr.Field
	}
	if appErr.Code == apperror.CodePlanningInfeasible {
		body["detail"] = "Try increasing corridor_miles or check route feasibility."
	}

	status := appErr.HTTPStatus()
	if status >= 500 {
		s.log.Error("request failed", "code", appErr.Code, "error", appErr.Message)
		// Internal failure detail stays server-side.
		body = map[string]any{"error": "Internal Server Error"}
	}

	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body) //nolint:errcheck // response already committed
}
