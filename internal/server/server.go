package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/credo-protocol/credo-engine/internal/models"
	"github.com/credo-protocol/credo-engine/internal/oracle"
	"github.com/credo-protocol/credo-engine/internal/scoring"
)

const maxBatchAddresses = 50

// MetricsAggregator collects on-chain metrics for a wallet address.
type MetricsAggregator interface {
	Aggregate(ctx context.Context, address string) (*models.WalletMetrics, error)
}

// OracleSubmitter pushes signed score updates on chain.
type OracleSubmitter interface {
	Submit(ctx context.Context, user string, score, version int) models.SubmissionOutcome
	SubmitBatch(ctx context.Context, updates []models.ScoreUpdate, version int) models.BatchOutcome
}

// ScoreStore persists scoring results and submission outcomes.
type ScoreStore interface {
	SaveScore(ctx context.Context, address string, result models.ScoreResult, metrics models.WalletMetrics, version string) error
	GetScoreHistory(ctx context.Context, address string, limit int) ([]models.ScoreRecord, error)
	SaveSubmission(ctx context.Context, outcome models.SubmissionOutcome) error
}

// Server 评分服务的 HTTP 入口
type Server struct {
	aggregator   MetricsAggregator
	model        *scoring.Model
	submitter    OracleSubmitter // nil when no oracle key is configured
	store        ScoreStore      // nil when persistence is disabled
	scoreVersion int             // on-chain score algorithm version
	logger       *slog.Logger
}

func New(aggregator MetricsAggregator, model *scoring.Model, submitter OracleSubmitter, store ScoreStore, scoreVersion int, logger *slog.Logger) *Server {
	return &Server{
		aggregator:   aggregator,
		model:        model,
		submitter:    submitter,
		store:        store,
		scoreVersion: scoreVersion,
		logger:       logger,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Get("/score/{address}", s.handleGetScore)
	r.Post("/score/update", s.handleUpdateScore)
	r.Post("/score/batch", s.handleBatchScores)
	r.Get("/score/{address}/history", s.handleScoreHistory)

	return r
}

type scoreDocument struct {
	Success    bool                  `json:"success"`
	Address    string                `json:"address"`
	Score      int                   `json:"score"`
	Metrics    *models.WalletMetrics `json:"metrics"`
	MLAnalysis *mlAnalysis           `json:"ml_analysis,omitempty"`
	Timestamp  string                `json:"timestamp"`
	Version    string                `json:"version"`

	result models.ScoreResult
}

type mlAnalysis struct {
	MLScore          int                `json:"ml_score"`
	RuleBasedScore   int                `json:"rule_based_score"`
	Confidence       float64            `json:"confidence"`
	ModelType        string             `json:"model_type"`
	IndividualScores map[string]float64 `json:"individual_scores,omitempty"`
	AdvancedFeatures map[string]float64 `json:"advanced_features,omitempty"`
}

// calculateScore runs the full pipeline for one address. Aggregation failure
// degrades to a zero-score document carrying the error, it never propagates.
func (s *Server) calculateScore(ctx context.Context, address string) scoreDocument {
	now := time.Now().UTC().Format(time.RFC3339)

	metrics, err := s.aggregator.Aggregate(ctx, address)
	if err != nil {
		s.logger.Error("metric aggregation failed", "address", address, "err", err)
		return scoreDocument{
			Success: true,
			Address: address,
			Score:   0,
			Metrics: &models.WalletMetrics{
				BalanceStabilityScore: 0,
				AssetBreakdown:        map[string]models.AssetHolding{},
				TxDataSource:          models.TxSourceNone,
				Error:                 err.Error(),
			},
			Timestamp: now,
			Version:   "2.0",
			result:    models.ScoreResult{Score: 0, ModelType: models.ModelRuleBased, Confidence: 0},
		}
	}

	ruleScore, subScores := scoring.RuleBasedScore(metrics)
	features := scoring.ExtractFeatures(metrics)

	// The model answers even without a trained artifact: Predict substitutes
	// the enhanced rule-based fallback in the untrained state. Only a wholly
	// absent predictive component leaves the plain rule score standing.
	var pred *scoring.Prediction
	version := "2.0"
	if s.model != nil {
		pred = s.model.Predict(features)
		version = "2.1-ML"
	}

	result := scoring.Blend(ruleScore, subScores, pred)

	doc := scoreDocument{
		Success:   true,
		Address:   address,
		Score:     result.Score,
		Metrics:   metrics,
		Timestamp: now,
		Version:   version,
		result:    result,
	}
	if pred != nil {
		doc.MLAnalysis = &mlAnalysis{
			MLScore:          pred.EnsembleScore,
			RuleBasedScore:   ruleScore,
			Confidence:       pred.Confidence,
			ModelType:        result.ModelType,
			IndividualScores: pred.Individual,
			AdvancedFeatures: features,
		}
	}

	s.persistScore(ctx, address, doc)
	return doc
}

func (s *Server) persistScore(ctx context.Context, address string, doc scoreDocument) {
	if s.store == nil {
		return
	}
	if err := s.store.SaveScore(ctx, address, doc.result, *doc.Metrics, doc.Version); err != nil {
		s.logger.Error("failed to persist score", "address", address, "err", err)
	}
}

func (s *Server) persistSubmission(ctx context.Context, outcome models.SubmissionOutcome) {
	if s.store == nil {
		return
	}
	if err := s.store.SaveSubmission(ctx, outcome); err != nil {
		s.logger.Error("failed to persist submission", "user", outcome.User, "err", err)
	}
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Credo Reputation API",
		"version": "1.0.0",
		"endpoints": map[string]string{
			"score": "/score/{address} - Get reputation score for a wallet address",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	features := []string{"enhanced_scoring", "batch_processing"}
	if s.model != nil && s.model.Trained() {
		features = append(features, "ml_scoring")
	}
	if s.submitter != nil {
		features = append(features, "oracle_integration")
	}

	version := "2.0"
	if s.model != nil {
		version = "2.1-ML"
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "healthy",
		"service":  "credo-api",
		"version":  version,
		"features": features,
	})
}

func (s *Server) handleGetScore(w http.ResponseWriter, r *http.Request) {
	address := chi.URLParam(r, "address")
	if !validAddress(address) {
		writeError(w, http.StatusBadRequest, "Invalid Ethereum address format. Address must start with '0x' and be 42 characters long.")
		return
	}

	s.logger.Info("calculating reputation score", "address", address)
	doc := s.calculateScore(r.Context(), address)
	writeJSON(w, http.StatusOK, doc)
}

type updateRequest struct {
	Address        string `json:"address"`
	SubmitToOracle bool   `json:"submit_to_oracle"`
}

type updateResponse struct {
	scoreDocument
	OracleSubmission *models.SubmissionOutcome `json:"oracle_submission,omitempty"`
}

func (s *Server) handleUpdateScore(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !validAddress(req.Address) {
		writeError(w, http.StatusBadRequest, "Invalid Ethereum address format")
		return
	}

	doc := s.calculateScore(r.Context(), req.Address)
	resp := updateResponse{scoreDocument: doc}

	if req.SubmitToOracle {
		outcome := s.submitScore(r.Context(), req.Address, doc.Score)
		resp.OracleSubmission = &outcome
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) submitScore(ctx context.Context, address string, score int) models.SubmissionOutcome {
	if s.submitter == nil {
		return models.SubmissionOutcome{
			Success: false,
			Error:   oracle.ErrSignerUnconfigured.Error(),
			User:    address,
			Score:   score,
		}
	}
	outcome := s.submitter.Submit(ctx, address, score, s.scoreVersion)
	s.persistSubmission(ctx, outcome)
	return outcome
}

type batchRequest struct {
	Addresses      []string `json:"addresses"`
	SubmitToOracle bool     `json:"submit_to_oracle"`
}

type batchEntry struct {
	Address string `json:"address"`
	Success bool   `json:"success"`
	Score   int    `json:"score"`

	Metrics    *models.WalletMetrics `json:"metrics,omitempty"`
	MLAnalysis *mlAnalysis           `json:"ml_analysis,omitempty"`
	Timestamp  string                `json:"timestamp,omitempty"`
	Version    string                `json:"version,omitempty"`
}

func (s *Server) handleBatchScores(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Addresses) > maxBatchAddresses {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Batch size too large. Maximum %d addresses per request.", maxBatchAddresses))
		return
	}
	for _, addr := range req.Addresses {
		if !validAddress(addr) {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid address format: %s", addr))
			return
		}
	}

	s.logger.Info("batch scoring", "count", len(req.Addresses))

	results := make([]batchEntry, 0, len(req.Addresses))
	var updates []models.ScoreUpdate
	successful := 0

	for _, address := range req.Addresses {
		doc := s.calculateScore(r.Context(), address)
		results = append(results, batchEntry{
			Address:    address,
			Success:    true,
			Score:      doc.Score,
			Metrics:    doc.Metrics,
			MLAnalysis: doc.MLAnalysis,
			Timestamp:  doc.Timestamp,
			Version:    doc.Version,
		})
		successful++

		if req.SubmitToOracle {
			updates = append(updates, models.ScoreUpdate{User: address, Score: doc.Score})
		}
	}

	resp := map[string]any{
		"success":                 true,
		"total_addresses":         len(req.Addresses),
		"successful_calculations": successful,
		"results":                 results,
	}

	if req.SubmitToOracle && len(updates) > 0 {
		resp["oracle_submission"] = s.submitBatch(r.Context(), updates)
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) submitBatch(ctx context.Context, updates []models.ScoreUpdate) models.BatchOutcome {
	if s.submitter == nil {
		results := make([]models.SubmissionOutcome, 0, len(updates))
		for _, u := range updates {
			results = append(results, models.SubmissionOutcome{
				Success: false,
				Error:   oracle.ErrSignerUnconfigured.Error(),
				User:    u.User,
				Score:   u.Score,
			})
		}
		return models.BatchOutcome{
			Success:       false,
			TotalUpdates:  len(updates),
			FailedUpdates: len(updates),
			Results:       results,
		}
	}

	outcome := s.submitter.SubmitBatch(ctx, updates, s.scoreVersion)
	for _, result := range outcome.Results {
		s.persistSubmission(ctx, result)
	}
	return outcome
}

func (s *Server) handleScoreHistory(w http.ResponseWriter, r *http.Request) {
	address := chi.URLParam(r, "address")
	if !validAddress(address) {
		writeError(w, http.StatusBadRequest, "Invalid Ethereum address format")
		return
	}
	if s.store == nil {
		writeError(w, http.StatusNotFound, "score history is not enabled")
		return
	}

	records, err := s.store.GetScoreHistory(r.Context(), address, 50)
	if err != nil {
		s.logger.Error("failed to load score history", "address", address, "err", err)
		writeError(w, http.StatusInternalServerError, "failed to load score history")
		return
	}
	if records == nil {
		records = []models.ScoreRecord{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"address": address,
		"history": records,
	})
}

func validAddress(address string) bool {
	return strings.HasPrefix(address, "0x") && len(address) == 42
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]any{"detail": detail})
}
