// Package bot relays questions and monthly summaries over a Discord channel.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/boddenberg/finops-assistant-go/internal/domain"
	"github.com/boddenberg/finops-assistant-go/internal/metrics"
	"github.com/boddenberg/finops-assistant-go/internal/service"
)

var tracer = otel.Tracer("bot")

const (
	// maxMessageLen is Discord's limit for a single message.
	maxMessageLen = 2000

	defaultTimeout = 60 * time.Second
)

const usage = "Comandos:\n" +
	"`!pregunta <texto>` consulta el libro contable en lenguaje natural\n" +
	"`!resumen [YYYY-MM]` resume las métricas del mes (por defecto, el actual)"

// QuestionAnswerer is the question pipeline.
type QuestionAnswerer interface {
	AnswerQuestion(ctx context.Context, question string, history []domain.ConversationTurn) *domain.Answer
}

// MetricsComputer builds the metric bag for a period.
type MetricsComputer interface {
	Compute(ctx context.Context, req service.MetricsRequest) (metrics.Bag, error)
}

// Bot listens on one channel and answers prefixed commands.
type Bot struct {
	session   *discordgo.Session
	questions QuestionAnswerer
	reports   MetricsComputer
	channelID string
	timeout   time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

// New creates the session and registers the message handler. Nothing is
// opened until Start.
func New(token, channelID string, questions QuestionAnswerer, reports MetricsComputer, logger *zap.Logger) (*Bot, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}

	b := &Bot{
		session:   session,
		questions: questions,
		reports:   reports,
		channelID: channelID,
		timeout:   defaultTimeout,
		now:       time.Now,
		logger:    logger,
	}

	session.AddHandler(b.handleMessage)
	session.Identify.Intents = discordgo.IntentGuildMessages | discordgo.IntentMessageContent

	return b, nil
}

// Start opens the gateway connection.
func (b *Bot) Start() error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}
	b.logger.Info("discord bot connected", zap.String("channel_id", b.channelID))
	return nil
}

// Stop closes the gateway connection.
func (b *Bot) Stop() error {
	return b.session.Close()
}

func (b *Bot) handleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || (s.State != nil && s.State.User != nil && m.Author.ID == s.State.User.ID) {
		return
	}
	if b.channelID != "" && m.ChannelID != b.channelID {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	reply, ok := b.Reply(ctx, m.Content)
	if !ok {
		return
	}
	if _, err := s.ChannelMessageSend(m.ChannelID, reply); err != nil {
		b.logger.Error("discord send failed", zap.String("channel_id", m.ChannelID), zap.Error(err))
	}
}

// Reply computes the response to a message. ok is false when the message
// is not a command.
func (b *Bot) Reply(ctx context.Context, content string) (reply string, ok bool) {
	cmd, ok := ParseCommand(content)
	if !ok {
		return "", false
	}

	ctx, span := tracer.Start(ctx, "Bot."+cmd.Name)
	defer span.End()

	switch cmd.Name {
	case "pregunta":
		reply = b.answer(ctx, cmd.Args)
	case "resumen":
		reply = b.summary(ctx, cmd.Args)
	default:
		reply = usage
	}
	return truncate(reply, maxMessageLen), true
}

func (b *Bot) answer(ctx context.Context, question string) string {
	if b.questions == nil {
		return "Las consultas no están habilitadas."
	}
	if strings.TrimSpace(question) == "" {
		return "Uso: `!pregunta <texto>`"
	}
	a := b.questions.AnswerQuestion(ctx, question, nil)
	b.logger.Info("discord question answered",
		zap.String("answer_id", a.ID),
		zap.String("status", a.Status),
		zap.Bool("fallback", a.Fallback),
	)
	return a.Answer
}

func (b *Bot) summary(ctx context.Context, arg string) string {
	if b.reports == nil {
		return "Los resúmenes no están habilitados."
	}
	start, end, err := MonthPeriod(arg, b.now())
	if err != nil {
		return "Mes inválido, usá el formato YYYY-MM."
	}

	bag, err := b.reports.Compute(ctx, service.MetricsRequest{Start: start, End: end, ComparePrevious: true})
	var insufficient *domain.ErrInsufficientData
	switch {
	case errors.As(err, &insufficient):
		return fmt.Sprintf("No hay datos suficientes para el resumen (%d de %d transacciones).",
			insufficient.Found, insufficient.Required)
	case err != nil:
		b.logger.Error("discord summary failed", zap.Error(err))
		return "No se pudo calcular el resumen."
	}
	return FormatSummary(bag)
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}
