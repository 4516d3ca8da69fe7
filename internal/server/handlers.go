package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/fundbuilder/saver/internal/domain"
	"github.com/fundbuilder/saver/internal/modules/allocation"
	"github.com/fundbuilder/saver/internal/modules/analysis"
	"github.com/fundbuilder/saver/internal/modules/distribution"
	"github.com/fundbuilder/saver/internal/modules/prices"
)

// analysisRequest is the wire form of an analysis run. Dates are YYYY-MM-DD;
// empty bounds mean the full stored history. The risk-free rate is a pointer
// so an explicit 0% is distinguishable from "use the configured default".
type analysisRequest struct {
	From               string   `json:"from,omitempty"`
	To                 string   `json:"to,omitempty"`
	HorizonMonths      int      `json:"horizon_months"`
	LossTolerance      float64  `json:"loss_tolerance"`
	Percentile         float64  `json:"percentile"`
	RiskFreeAnnualRate *float64 `json:"risk_free_annual_rate,omitempty"`
	Resolution         int      `json:"resolution,omitempty"`
}

func (s *Server) toServiceRequest(req analysisRequest) (analysis.Request, error) {
	out := analysis.Request{
		HorizonMonths: req.HorizonMonths,
		LossTolerance: req.LossTolerance,
		Percentile:    req.Percentile,
		Resolution:    req.Resolution,
	}

	if req.RiskFreeAnnualRate != nil {
		out.RiskFreeAnnualRate = *req.RiskFreeAnnualRate
	} else {
		out.RiskFreeAnnualRate = s.cfg.RiskFreeAnnualRate
	}

	var err error
	if out.From, err = parseDate(req.From); err != nil {
		return analysis.Request{}, &domain.InvalidParameterError{Name: "from", Reason: err.Error()}
	}
	if out.To, err = parseDate(req.To); err != nil {
		return analysis.Request{}, &domain.InvalidParameterError{Name: "to", Reason: err.Error()}
	}
	return out, nil
}

func parseDate(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return time.ParseInLocation("2006-01-02", v, time.UTC)
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok"})
}

// handleGetPrices handles GET /api/prices?from=YYYY-MM-DD&to=YYYY-MM-DD
func (s *Server) handleGetPrices(w http.ResponseWriter, r *http.Request) {
	from, to, err := dateRangeFromQuery(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	series, err := s.priceRepo.Series(from, to)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to get prices")
		s.writeError(w, err)
		return
	}

	s.writeData(w, map[string]interface{}{
		"prices": series,
		"count":  len(series),
	})
}

// handleGetPricesSummary handles GET /api/prices/summary
func (s *Server) handleGetPricesSummary(w http.ResponseWriter, r *http.Request) {
	from, to, err := dateRangeFromQuery(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	series, err := s.priceRepo.Series(from, to)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to get prices for summary")
		s.writeError(w, err)
		return
	}

	s.writeData(w, prices.Summarize(series))
}

// handleImportPrices handles POST /api/prices/import. The body may name a CSV
// path; when omitted the configured default is used.
func (s *Server) handleImportPrices(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path string `json:"path,omitempty"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.log.Error().Err(err).Msg("Failed to decode import request")
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}

	path := req.Path
	if path == "" {
		path = s.cfg.CSVPath
	}

	series, err := s.priceImporter.ImportFile(path)
	if err != nil {
		s.log.Error().Err(err).Str("path", path).Msg("Failed to import prices")
		s.writeError(w, err)
		return
	}
	if err := s.priceRepo.Save(series); err != nil {
		s.log.Error().Err(err).Msg("Failed to save imported prices")
		s.writeError(w, err)
		return
	}

	s.writeData(w, map[string]interface{}{
		"imported": len(series),
		"path":     path,
	})
}

// handleAnalysis handles POST /api/analysis - the full pipeline.
func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeAnalysisRequest(w, r)
	if !ok {
		return
	}

	result, err := s.analysisSvc.Run(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeData(w, result)
}

// handleAnalysisReturns handles POST /api/analysis/returns
func (s *Server) handleAnalysisReturns(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeAnalysisRequest(w, r)
	if !ok {
		return
	}

	dist, windowDays, err := s.analysisSvc.ComputeReturns(req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeData(w, map[string]interface{}{
		"window_days": windowDays,
		"returns":     dist,
		"count":       len(dist),
	})
}

// handleAnalysisDensity handles POST /api/analysis/density
func (s *Server) handleAnalysisDensity(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeAnalysisRequest(w, r)
	if !ok {
		return
	}

	dist, _, err := s.analysisSvc.ComputeReturns(req)
	if err != nil {
		s.writeError(w, err)
		return
	}

	resolution := req.Resolution
	if resolution == 0 {
		resolution = distribution.DefaultResolution
	}
	est, err := distribution.EstimateDensity(dist, resolution)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeData(w, est)
}

// handleAnalysisAllocation handles POST /api/analysis/allocation. The
// allocation leg runs on its own, without the density estimate: a degenerate
// constant-return history is a valid allocation input (fully risk-free) even
// though no density can be fitted to it.
func (s *Server) handleAnalysisAllocation(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeAnalysisRequest(w, r)
	if !ok {
		return
	}

	dist, _, err := s.analysisSvc.ComputeReturns(req)
	if err != nil {
		s.writeError(w, err)
		return
	}

	alloc, err := allocation.ComputeOptimalAllocation(
		dist, req.HorizonMonths, req.LossTolerance, req.Percentile, req.RiskFreeAnnualRate)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeData(w, alloc)
}

// handleDensityChart handles GET /api/charts/density.png
func (s *Server) handleDensityChart(w http.ResponseWriter, r *http.Request) {
	req, err := s.analysisRequestFromQuery(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	result, err := s.analysisSvc.Run(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}

	png, err := s.chartSvc.RenderDensity(result.Density, req.HorizonMonths, req.Percentile, result.DangerBoundary)
	if err != nil {
		s.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

// handlePricesChart handles GET /api/charts/prices.png
func (s *Server) handlePricesChart(w http.ResponseWriter, r *http.Request) {
	from, to, err := dateRangeFromQuery(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	series, err := s.priceRepo.Series(from, to)
	if err != nil {
		s.writeError(w, err)
		return
	}

	png, err := s.chartSvc.RenderPrices(series)
	if err != nil {
		s.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

func (s *Server) decodeAnalysisRequest(w http.ResponseWriter, r *http.Request) (analysis.Request, bool) {
	var wire analysisRequest
	if err := json.NewDecoder(r.Body).Decode(&wire); err != nil {
		s.log.Error().Err(err).Msg("Failed to decode request body")
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return analysis.Request{}, false
	}

	req, err := s.toServiceRequest(wire)
	if err != nil {
		s.writeError(w, err)
		return analysis.Request{}, false
	}
	return req, true
}

// analysisRequestFromQuery builds an analysis request from chart query
// parameters (charts are fetched with a plain GET so they can sit in an img
// tag).
func (s *Server) analysisRequestFromQuery(r *http.Request) (analysis.Request, error) {
	q := r.URL.Query()
	wire := analysisRequest{
		From: q.Get("from"),
		To:   q.Get("to"),
	}

	var err error
	if wire.HorizonMonths, err = intParam(q.Get("horizon_months"), 36); err != nil {
		return analysis.Request{}, &domain.InvalidParameterError{Name: "horizon_months", Reason: err.Error()}
	}
	if wire.LossTolerance, err = floatParam(q.Get("loss_tolerance"), -0.05); err != nil {
		return analysis.Request{}, &domain.InvalidParameterError{Name: "loss_tolerance", Reason: err.Error()}
	}
	if wire.Percentile, err = floatParam(q.Get("percentile"), 10); err != nil {
		return analysis.Request{}, &domain.InvalidParameterError{Name: "percentile", Reason: err.Error()}
	}
	if raw := q.Get("risk_free_annual_rate"); raw != "" {
		rate, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return analysis.Request{}, &domain.InvalidParameterError{Name: "risk_free_annual_rate", Reason: err.Error()}
		}
		wire.RiskFreeAnnualRate = &rate
	}
	if wire.Resolution, err = intParam(q.Get("resolution"), 0); err != nil {
		return analysis.Request{}, &domain.InvalidParameterError{Name: "resolution", Reason: err.Error()}
	}

	return s.toServiceRequest(wire)
}

func dateRangeFromQuery(r *http.Request) (from, to time.Time, err error) {
	if from, err = parseDate(r.URL.Query().Get("from")); err != nil {
		return time.Time{}, time.Time{}, &domain.InvalidParameterError{Name: "from", Reason: err.Error()}
	}
	if to, err = parseDate(r.URL.Query().Get("to")); err != nil {
		return time.Time{}, time.Time{}, &domain.InvalidParameterError{Name: "to", Reason: err.Error()}
	}
	return from, to, nil
}

func intParam(raw string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

func floatParam(raw string, fallback float64) (float64, error) {
	if raw == "" {
		return fallback, nil
	}
	return strconv.ParseFloat(raw, 64)
}

// writeData writes the standard success envelope.
func (s *Server) writeData(w http.ResponseWriter, data interface{}) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// writeError maps the domain error taxonomy onto HTTP statuses. Parameter
// errors are caller bugs (400); data-shape problems are unprocessable (422);
// anything else is a server fault. None of these crash the session.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var (
		paramErr        *domain.InvalidParameterError
		insufficientErr *domain.InsufficientDataError
		priceErr        *domain.InvalidPriceDataError
		emptyErr        *domain.EmptyDistributionError
	)

	status := http.StatusInternalServerError
	message := "internal error"

	switch {
	case errors.As(err, &paramErr):
		status = http.StatusBadRequest
		message = paramErr.Error()
	case errors.As(err, &insufficientErr):
		status = http.StatusUnprocessableEntity
		message = insufficientErr.Error() + " (widen the date range or shorten the window)"
	case errors.As(err, &priceErr):
		status = http.StatusUnprocessableEntity
		message = "price data quality issue: " + priceErr.Error()
	case errors.As(err, &emptyErr):
		status = http.StatusUnprocessableEntity
		message = emptyErr.Error()
	}

	if status == http.StatusInternalServerError {
		s.log.Error().Err(err).Msg("Request failed")
	}

	s.writeJSON(w, status, map[string]interface{}{
		"error": message,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
