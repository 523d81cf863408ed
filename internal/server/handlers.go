package server

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/spigell/assessment-recommender/internal/engine"
	"github.com/spigell/assessment-recommender/internal/logger"
	"github.com/spigell/assessment-recommender/internal/output"
	"github.com/spigell/assessment-recommender/internal/query"
	"github.com/spigell/assessment-recommender/internal/utils"
	"github.com/spigell/assessment-recommender/internal/validation"
)

const noResults = "No assessments found matching the criteria"

type recommendRequest struct {
	Query string `json:"query" validate:"required,max=50000"`
}

type recommendResponse struct {
	RecommendedAssessments []output.Assessment `json:"recommended_assessments"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) recommend(w http.ResponseWriter, r *http.Request) {
	log := logger.WithFields(s.logger, zap.String(logger.FieldRequestID, RequestID(r.Context())))

	var req recommendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validation.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.engine.Recommend(r.Context(), req.Query, s.cfg.Limit)
	switch {
	case errors.Is(err, query.ErrEmptyQuery):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, engine.ErrNoCatalog):
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	case err != nil:
		log.Error("recommendation failed",
			zap.String("query", utils.TruncateForLog(req.Query, 120)),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if res.Len() == 0 {
		writeError(w, http.StatusNotFound, noResults)
		return
	}

	log.Info("recommendations served",
		zap.String("query", utils.TruncateForLog(req.Query, 120)),
		zap.Int("results", res.Len()),
		zap.String("top", res.Items[0].ID()),
	)
	writeJSON(w, http.StatusOK, recommendResponse{RecommendedAssessments: output.Assessments(res)})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // HTTP response write errors are not recoverable
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}
