package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/boddenberg/finops-assistant-go/internal/domain"
	"github.com/boddenberg/finops-assistant-go/internal/infra/observability"
	"github.com/boddenberg/finops-assistant-go/internal/narrative"
	"github.com/boddenberg/finops-assistant-go/internal/port"
	"github.com/boddenberg/finops-assistant-go/internal/query"
)

var tracer = otel.Tracer("service")

// MaxQuestionLength bounds accepted questions, in runes.
const MaxQuestionLength = 1000

// User-facing messages. Internal details never reach the caller.
const (
	MsgEmptyQuestion   = "Escribí una pregunta."
	MsgQuestionTooLong = "La pregunta es demasiado larga."
	MsgNoQuery         = "No pude generar una consulta para esa pregunta."
	MsgUnsafeQuery     = "Consulta no permitida."
	MsgExecutionFailed = "No se pudo ejecutar la consulta."
)

// Pipeline stage names, as reported in metrics.
const (
	stageValidateQuestion = "validate_question"
	stageGenerate         = "generate"
	stageExtract          = "extract"
	stageValidateSQL      = "validate_sql"
	stageExecute          = "execute"
	stageNarrative        = "narrative"
)

// stageOutcome is what every pipeline stage returns: a value or a failure
// carrying the stage name and the message shown to the user.
type stageOutcome[T any] struct {
	value   T
	failure *stageFailure
}

type stageFailure struct {
	stage   string
	message string
	err     error
}

func succeeded[T any](v T) stageOutcome[T] {
	return stageOutcome[T]{value: v}
}

func failed[T any](stage, message string, err error) stageOutcome[T] {
	return stageOutcome[T]{failure: &stageFailure{stage: stage, message: message, err: err}}
}

// QueryService answers free-text questions over the ledger.
type QueryService struct {
	generator port.SQLGenerator
	executor  port.SQLExecutor
	narrator  *narrative.Generator
	metrics   *observability.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

func NewQueryService(
	generator port.SQLGenerator,
	executor port.SQLExecutor,
	narrator *narrative.Generator,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *QueryService {
	return &QueryService{
		generator: generator,
		executor:  executor,
		narrator:  narrator,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

// AnswerQuestion runs the pipeline and always returns an answer. Failures
// become an error-status answer with a generic message; narrative failures
// fall back to a rendering of the rows and still count as success.
func (s *QueryService) AnswerQuestion(ctx context.Context, question string, history []domain.ConversationTurn) *domain.Answer {
	ctx, span := tracer.Start(ctx, "QueryService.AnswerQuestion")
	defer span.End()

	start := s.now()
	defer func() {
		s.metrics.RecordDuration("answer_question", time.Since(start))
	}()

	answer := &domain.Answer{
		ID:         uuid.NewString(),
		Question:   question,
		RawData:    []domain.Row{},
		AnsweredAt: start,
	}
	span.SetAttributes(attribute.String("answer.id", answer.ID))

	q := s.validateQuestion(question)
	if q.failure != nil {
		return s.fail(ctx, answer, q.failure)
	}

	raw := s.generate(ctx, q.value, history)
	if raw.failure != nil {
		return s.fail(ctx, answer, raw.failure)
	}

	sql := s.extract(ctx, raw.value)
	if sql.failure != nil {
		return s.fail(ctx, answer, sql.failure)
	}

	safe := s.validateSQL(ctx, answer.ID, sql.value)
	if safe.failure != nil {
		return s.fail(ctx, answer, safe.failure)
	}

	rw := query.RewriteCurrency(q.value, safe.value)
	answer.GeneratedSQL = rw.SQL
	answer.Currency = rw.Currency
	answer.Rewrites = rw.Changes

	rows := s.execute(ctx, answer.ID, rw.SQL)
	if rows.failure != nil {
		return s.fail(ctx, answer, rows.failure)
	}
	answer.RawData = rows.value

	res := s.narrator.Generate(ctx, narrative.Answer, narrative.Input{
		Question: q.value,
		SQL:      rw.SQL,
		Rows:     rows.value,
		Currency: rw.Currency,
	})
	if res.Fallback {
		s.metrics.IncrStageFailure(stageNarrative)
		s.metrics.IncrFallback(narrative.Answer.Name)
	}

	answer.Answer = res.Text
	answer.Fallback = res.Fallback
	answer.Status = domain.StatusSuccess
	s.metrics.IncrQuestion(domain.StatusSuccess)
	span.SetAttributes(
		attribute.Int("answer.rows", len(rows.value)),
		attribute.Bool("answer.fallback", res.Fallback),
	)
	return answer
}

func (s *QueryService) fail(ctx context.Context, answer *domain.Answer, f *stageFailure) *domain.Answer {
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(attribute.String("answer.failed_stage", f.stage))
	span.SetStatus(codes.Error, f.stage)
	s.logger.Info("question answered with error",
		zap.String("answer_id", answer.ID),
		zap.String("stage", f.stage),
		zap.Error(f.err),
	)

	s.metrics.IncrStageFailure(f.stage)
	s.metrics.IncrQuestion(domain.StatusError)

	answer.Status = domain.StatusError
	answer.Answer = f.message
	return answer
}

// ============================================================
// Stages
// ============================================================

func (s *QueryService) validateQuestion(question string) stageOutcome[string] {
	q := strings.TrimSpace(question)
	if q == "" {
		return failed[string](stageValidateQuestion, MsgEmptyQuestion,
			&domain.ErrValidation{Field: "question", Message: "question is required"})
	}
	if len([]rune(q)) > MaxQuestionLength {
		return failed[string](stageValidateQuestion, MsgQuestionTooLong,
			&domain.ErrValidation{Field: "question", Message: "question is too long"})
	}
	return succeeded(q)
}

func (s *QueryService) generate(ctx context.Context, question string, history []domain.ConversationTurn) stageOutcome[string] {
	ctx, span := tracer.Start(ctx, "QueryService.generate")
	defer span.End()

	start := s.now()
	raw, err := s.generator.Generate(ctx, question, history)
	s.metrics.RecordDuration("sql_generation", time.Since(start))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		s.metrics.IncrExternalError("llm")
		s.logger.Error("sql generation failed", zap.Error(err))
		return failed[string](stageGenerate, MsgNoQuery, err)
	}
	return succeeded(raw)
}

func (s *QueryService) extract(ctx context.Context, raw string) stageOutcome[string] {
	_, span := tracer.Start(ctx, "QueryService.extract")
	defer span.End()

	sql, ok := query.ExtractSQL(raw)
	if !ok {
		span.SetStatus(codes.Error, "no sql")
		s.logger.Warn("no sql in generator output", zap.Int("output_len", len(raw)))
		return failed[string](stageExtract, MsgNoQuery, &domain.ErrNoSQL{})
	}
	return succeeded(sql)
}

func (s *QueryService) validateSQL(ctx context.Context, answerID, sql string) stageOutcome[string] {
	_, span := tracer.Start(ctx, "QueryService.validateSQL")
	defer span.End()

	v := query.Validate(sql)
	if !v.Valid {
		span.SetStatus(codes.Error, v.Rule)
		s.logger.Warn("unsafe sql rejected",
			zap.String("answer_id", answerID),
			zap.String("rule", v.Rule),
			zap.String("keyword", v.Keyword),
			zap.String("sql", sql),
		)
		return failed[string](stageValidateSQL, MsgUnsafeQuery, v.Err())
	}
	return succeeded(sql)
}

func (s *QueryService) execute(ctx context.Context, answerID, sql string) stageOutcome[[]domain.Row] {
	ctx, span := tracer.Start(ctx, "QueryService.execute")
	defer span.End()

	start := s.now()
	rows, err := s.executor.Execute(ctx, sql)
	s.metrics.RecordDuration("sql_execution", time.Since(start))
	if err != nil {
		span.SetStatus(codes.Error, "execution failed")
		s.logger.Error("sql execution failed",
			zap.String("answer_id", answerID),
			zap.String("sql", sql),
			zap.Error(err),
		)
		return failed[[]domain.Row](stageExecute, MsgExecutionFailed, err)
	}
	if rows == nil {
		rows = []domain.Row{}
	}
	return succeeded(rows)
}
