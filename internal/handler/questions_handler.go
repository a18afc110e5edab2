package handler

import (
	"encoding/json"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/boddenberg/finops-assistant-go/internal/domain"
)

const maxQuestionBody = 64 << 10

// questionsHandler answers POST /v1/questions. The pipeline never fails, so
// every well-formed request gets 200 with the answer's own status.
func questionsHandler(svc QuestionAnswerer, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/questions")
		defer span.End()

		if svc == nil {
			writeError(w, http.StatusServiceUnavailable, "question pipeline not configured")
			return
		}

		var req domain.QuestionRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxQuestionBody)).Decode(&req); err != nil {
			logger.Debug("invalid question body", zap.Error(err))
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		answer := svc.AnswerQuestion(ctx, req.Question, req.History)
		span.SetAttributes(
			attribute.String("answer.id", answer.ID),
			attribute.String("answer.status", answer.Status),
		)
		writeJSON(w, http.StatusOK, answer)
	}
}
