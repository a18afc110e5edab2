package domain

import "time"

// ============================================================
// Consultas em linguagem natural
// ============================================================

// Row is one result row keyed by column name.
type Row map[string]any

// QueryResult is the transient outcome of executing a statement.
type QueryResult struct {
	Success bool   `json:"success"`
	Rows    []Row  `json:"rows"`
	Error   string `json:"error,omitempty"`
}

// ConversationTurn is a prior exchange passed through to the SQL generator.
type ConversationTurn struct {
	Role    string `json:"role"` // user, assistant
	Content string `json:"content"`
}

// Answer statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// QuestionRequest is the body of POST /v1/questions.
type QuestionRequest struct {
	Question string             `json:"question"`
	History  []ConversationTurn `json:"history,omitempty"`
}

// Answer is the structured result of the question pipeline. It is always
// returned, even when every stage failed.
type Answer struct {
	ID           string    `json:"id"`
	Question     string    `json:"question"`
	Answer       string    `json:"answer"`
	RawData      []Row     `json:"raw_data"`
	GeneratedSQL string    `json:"generated_sql"`
	Status       string    `json:"status"`
	Fallback     bool      `json:"fallback"`
	Currency     Currency  `json:"currency,omitempty"`
	Rewrites     []string  `json:"rewrites,omitempty"`
	AnsweredAt   time.Time `json:"answered_at"`
}
