package models_test

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gtfsdisrupt/gtfsdisrupt/internal/api/models"
)

func TestProblemWrite(t *testing.T) {
	p := models.NewBadRequest("req_abc", "invalid request", []models.FieldError{
		{Field: "operator", Message: "operator is required", Code: "required"},
	})
	p.Instance = "/v1/disruptions:analyze"

	rec := httptest.NewRecorder()
	p.Write(rec)

	assert.Equal(t, 400, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "req_abc", rec.Header().Get("X-Request-Id"))

	var decoded models.Problem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	assert.Equal(t, models.ProblemTypeValidation, decoded.Type)
	assert.Equal(t, "Validation error", decoded.Title)
	assert.Equal(t, 400, decoded.Status)
	assert.Equal(t, "invalid request", decoded.Detail)
	assert.Equal(t, "/v1/disruptions:analyze", decoded.Instance)
	require.Len(t, decoded.Errors, 1)
	assert.Equal(t, "operator", decoded.Errors[0].Field)
}

func TestProblemConstructors(t *testing.T) {
	tests := []struct {
		name    string
		problem *models.Problem
		status  int
		ptype   string
	}{
		{"not found", models.NewNotFound("id", "gone"), 404, models.ProblemTypeNotFound},
		{"too many requests", models.NewTooManyRequests("id", "slow down"), 429, models.ProblemTypeTooManyRequests},
		{"internal", models.NewInternalError("id", "boom"), 500, models.ProblemTypeInternal},
		{"unavailable", models.NewServiceUnavailable("id", "down"), 503, models.ProblemTypeUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, tt.problem.Status)
			assert.Equal(t, tt.ptype, tt.problem.Type)
			assert.Equal(t, "id", tt.problem.TraceID)
		})
	}
}

func TestProblemBuilders(t *testing.T) {
	p := models.NewProblem(models.ProblemTypeInternal, "Internal server error", 500, "req_1").
		WithDetail("something broke").
		WithInstance("/v1/ops/health").
		WithErrors([]models.FieldError{{Field: "x", Message: "bad"}})

	assert.Equal(t, "something broke", p.Detail)
	assert.Equal(t, "/v1/ops/health", p.Instance)
	assert.Len(t, p.Errors, 1)
}
