package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gtfsdisrupt/gtfsdisrupt/internal/analyze"
	"github.com/gtfsdisrupt/gtfsdisrupt/internal/api/models"
	"github.com/gtfsdisrupt/gtfsdisrupt/internal/api/response"
)

// Analyzer runs one article through the analysis pipeline.
// *analyze.Service satisfies it.
type Analyzer interface {
	Analyze(ctx context.Context, operator string, article analyze.Article) analyze.Record
}

// DisruptionHandler handles disruption analysis requests.
type DisruptionHandler struct {
	analyzer  Analyzer
	operators func() []string
}

// NewDisruptionHandler creates a DisruptionHandler. operators lists
// the operators with loaded GTFS data.
func NewDisruptionHandler(analyzer Analyzer, operators func() []string) *DisruptionHandler {
	return &DisruptionHandler{analyzer: analyzer, operators: operators}
}

// AnalyzeDisruption handles POST /v1/disruptions:analyze.
func (h *DisruptionHandler) AnalyzeDisruption(w http.ResponseWriter, r *http.Request) {
	var req models.AnalyzeDisruptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	if errs := req.Validate(); len(errs) > 0 {
		response.BadRequest(w, r, "invalid request", errs)
		return
	}

	if !h.knownOperator(req.Operator) {
		response.NotFound(w, r, "unknown operator: "+req.Operator)
		return
	}

	record := h.analyzer.Analyze(r.Context(), req.Operator, analyze.Article{
		Title: req.Article.Title,
		URL:   req.Article.URL,
		Body:  req.Article.Body,
	})
	response.JSON(w, r, http.StatusOK, record)
}

func (h *DisruptionHandler) knownOperator(operator string) bool {
	for _, op := range h.operators() {
		if op == operator {
			return true
		}
	}
	return false
}
