package domain

import "fmt"

// Error types for consistent error handling across the service.

// ErrNotFound indicates a resource was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrExternalService indicates a failure in an external service call.
type ErrExternalService struct {
	Service string
	Err     error
}

func (e *ErrExternalService) Error() string {
	return fmt.Sprintf("external service error [%s]: %v", e.Service, e.Err)
}

func (e *ErrExternalService) Unwrap() error {
	return e.Err
}

// ErrTimeout indicates an operation exceeded its deadline.
type ErrTimeout struct {
	Operation string
}

func (e *ErrTimeout) Error() string {
	return fmt.Sprintf("operation timed out: %s", e.Operation)
}

// ErrCircuitOpen indicates the circuit breaker is open.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for service: %s", e.Service)
}

// ErrValidation indicates a validation error (bad input).
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrUnauthorized indicates an invalid or missing bearer token.
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}

// ============================================================
// Motor de métricas
// ============================================================

// ErrInsufficientData means the period does not hold enough transactions
// to produce a meaningful report.
type ErrInsufficientData struct {
	Required int
	Found    int
}

func (e *ErrInsufficientData) Error() string {
	return fmt.Sprintf("insufficient data: %d transactions found, %d required", e.Found, e.Required)
}

// ErrInvalidTransaction marks a malformed record in the snapshot.
type ErrInvalidTransaction struct {
	ID     string
	Reason string
}

func (e *ErrInvalidTransaction) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("invalid transaction: %s", e.Reason)
	}
	return fmt.Sprintf("invalid transaction %s: %s", e.ID, e.Reason)
}

// ============================================================
// Pipeline de consultas
// ============================================================

// ErrNoSQL means no statement could be extracted from the generator output.
type ErrNoSQL struct{}

func (e *ErrNoSQL) Error() string {
	return "no SQL statement found in generator output"
}

// ErrUnsafeSQL means the statement was refused by the safety validator.
type ErrUnsafeSQL struct {
	Rule    string
	Keyword string
}

func (e *ErrUnsafeSQL) Error() string {
	if e.Keyword != "" {
		return fmt.Sprintf("unsafe sql [%s]: %s", e.Rule, e.Keyword)
	}
	return fmt.Sprintf("unsafe sql [%s]", e.Rule)
}

// ErrQueryExecution wraps a driver failure. Err is for logs only.
type ErrQueryExecution struct {
	Err error
}

func (e *ErrQueryExecution) Error() string {
	return fmt.Sprintf("query execution failed: %v", e.Err)
}

func (e *ErrQueryExecution) Unwrap() error {
	return e.Err
}
