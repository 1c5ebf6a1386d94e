package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/travelsafe/security-barometer/internal/alerts"
	"github.com/travelsafe/security-barometer/internal/archive"
	"github.com/travelsafe/security-barometer/internal/model"
	"github.com/travelsafe/security-barometer/internal/monitor"
	"github.com/travelsafe/security-barometer/internal/storage"
)

// AlertSource provides the current raw alert picture for display
type AlertSource interface {
	Snapshot() []model.UniversalAlert
}

// AlertIngestor consumes manually submitted alert batches
type AlertIngestor interface {
	BatchProcessAlerts(ctx context.Context, rawAlerts []model.UniversalAlert) []string
}

// ArchiveRunner evaluates the archiving rules on demand
type ArchiveRunner interface {
	ExecuteRules(ctx context.Context, actorID string) ([]archive.RuleResult, error)
	GetCandidates(ctx context.Context) ([]archive.CandidateCount, error)
}

// Server is the admin HTTP surface
type Server struct {
	logger     *zap.Logger
	store      storage.IncidentStore
	alertFeed  AlertSource
	ingestor   AlertIngestor
	archiver   ArchiveRunner
	metrics    *monitor.Metrics
	confidence alerts.ConfidenceConfig
	tokens     map[string]Role

	httpServer *http.Server
}

// Options bundles the server dependencies
type Options struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Store        storage.IncidentStore
	AlertFeed    AlertSource
	Ingestor     AlertIngestor
	Archiver     ArchiveRunner
	Metrics      *monitor.Metrics
	Confidence   alerts.ConfidenceConfig
	Tokens       map[string]Role
}

// NewServer wires the router and handlers
func NewServer(logger *zap.Logger, opts Options) *Server {
	s := &Server{
		logger:     logger.Named("api"),
		store:      opts.Store,
		alertFeed:  opts.AlertFeed,
		ingestor:   opts.Ingestor,
		archiver:   opts.Archiver,
		metrics:    opts.Metrics,
		confidence: opts.Confidence,
		tokens:     opts.Tokens,
	}

	s.httpServer = &http.Server{
		Addr:         opts.Addr,
		Handler:      s.Router(),
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
	}
	return s
}

// Router builds the HTTP routes
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}

	apiRouter := r.PathPrefix("/api").Subrouter()
	apiRouter.HandleFunc("/alerts", s.requireRole(RoleOperator, s.handleListAlerts)).Methods(http.MethodGet)
	apiRouter.HandleFunc("/alerts/ingest", s.requireRole(RoleOperator, s.handleIngestAlerts)).Methods(http.MethodPost)
	apiRouter.HandleFunc("/incidents", s.requireRole(RoleOperator, s.handleListIncidents)).Methods(http.MethodGet)
	apiRouter.HandleFunc("/incidents/{id}", s.requireRole(RoleOperator, s.handleGetIncident)).Methods(http.MethodGet)
	apiRouter.HandleFunc("/incidents/{id}/verification", s.requireRole(RoleAdmin, s.handleUpdateVerification)).Methods(http.MethodPatch)
	apiRouter.HandleFunc("/archive/candidates", s.requireRole(RoleOperator, s.handleArchiveCandidates)).Methods(http.MethodGet)
	apiRouter.HandleFunc("/archive/run", s.requireRole(RoleAdmin, s.handleArchiveRun)).Methods(http.MethodPost)

	return r
}

// Start runs the HTTP server until it is shut down
func (s *Server) Start() error {
	s.logger.Info("HTTP server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// scoredAlert is an alert plus its display treatment
type scoredAlert struct {
	model.AlertWithConfidence
	Display alerts.DisplayConfig `json:"display"`
}

// handleListAlerts serves the current alert picture: normalized, scored,
// filtered by confidence, sorted by visual priority
func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	includeVeryLow := r.URL.Query().Get("include_very_low") == "true"

	raw := s.alertFeed.Snapshot()
	normalized := make([]model.NormalizedAlert, 0, len(raw))
	for _, alert := range raw {
		normalized = append(normalized, alerts.NormalizeAlert(alert, s.logger))
	}

	scored := alerts.EnhanceAlerts(normalized, s.confidence)
	visible := alerts.FilterByConfidence(scored, s.confidence, includeVeryLow)
	alerts.SortByPriority(visible)

	out := make([]scoredAlert, 0, len(visible))
	for _, alert := range visible {
		out = append(out, scoredAlert{
			AlertWithConfidence: alert,
			Display:             alerts.GetDisplayConfig(alert),
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"alerts": out,
		"total":  len(out),
	})
}

// ingestRequest tolerates both a bare array and a wrapped batch
type ingestRequest struct {
	Alerts []model.UniversalAlert `json:"alerts"`
}

func (s *Server) handleIngestAlerts(w http.ResponseWriter, r *http.Request) {
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	var batch []model.UniversalAlert
	if err := json.Unmarshal(raw, &batch); err != nil {
		var req ingestRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			writeError(w, http.StatusBadRequest, "expected an alert array or {\"alerts\": [...]}")
			return
		}
		batch = req.Alerts
	}

	if len(batch) == 0 {
		writeError(w, http.StatusBadRequest, "empty alert batch")
		return
	}

	if s.metrics != nil {
		s.metrics.BatchSize.Observe(float64(len(batch)))
	}

	ids := s.ingestor.BatchProcessAlerts(r.Context(), batch)
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"received":     len(batch),
		"incident_ids": ids,
	})
}

func (s *Server) handleListIncidents(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := storage.IncidentFilter{
		ProvinceCode:       query.Get("province"),
		Source:             model.IncidentSource(query.Get("source")),
		AlertLevel:         model.AlertLevel(query.Get("alert_level")),
		VerificationStatus: model.VerificationStatus(query.Get("verification_status")),
		IncludeArchived:    query.Get("include_archived") == "true",
	}
	if limit := query.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = n
	}

	incidents, err := s.store.ListIncidents(r.Context(), filter)
	if err != nil {
		s.logger.Error("Failed to list incidents", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list incidents")
		return
	}
	if incidents == nil {
		incidents = []*model.Incident{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"incidents": incidents,
		"total":     len(incidents),
	})
}

func (s *Server) handleGetIncident(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	incident, err := s.store.GetIncident(r.Context(), id)
	if err != nil {
		s.logger.Error("Failed to get incident", zap.String("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to get incident")
		return
	}
	if incident == nil {
		writeError(w, http.StatusNotFound, "incident not found")
		return
	}

	writeJSON(w, http.StatusOK, incident)
}

type verificationRequest struct {
	Status model.VerificationStatus `json:"status"`
}

func (s *Server) handleUpdateVerification(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req verificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Status != model.VerificationVerified && req.Status != model.VerificationUnverified {
		writeError(w, http.StatusBadRequest, "status must be verified or unverified")
		return
	}

	if err := s.store.UpdateVerification(r.Context(), id, req.Status); err != nil {
		s.logger.Error("Failed to update verification",
			zap.String("id", id),
			zap.Error(err))
		writeError(w, http.StatusNotFound, "incident not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":     id,
		"status": req.Status,
	})
}

func (s *Server) handleArchiveCandidates(w http.ResponseWriter, r *http.Request) {
	counts, err := s.archiver.GetCandidates(r.Context())
	if err != nil {
		s.logger.Error("Failed to preview archive candidates", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to preview candidates")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"candidates": counts})
}

type archiveRunRequest struct {
	ActorID string `json:"actor_id"`
}

func (s *Server) handleArchiveRun(w http.ResponseWriter, r *http.Request) {
	var req archiveRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	results, err := s.archiver.ExecuteRules(r.Context(), req.ActorID)
	if err != nil {
		if errors.Is(err, archive.ErrNoActor) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("Archive run failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "archive run failed")
		return
	}

	var total int64
	for _, result := range results {
		total += result.ArchivedCount
	}

	s.logger.Info("Manual archive run completed",
		zap.String("actor", req.ActorID),
		zap.Int64("archived", total))

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"results":        results,
		"total_archived": total,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"system": monitor.CollectSnapshot(s.logger),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
