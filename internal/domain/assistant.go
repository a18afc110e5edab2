package domain

// ============================================================
// Agente LLM (completions)
// ============================================================

// CompletionRequest é o payload enviado para o agente de completions.
type CompletionRequest struct {
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float32 `json:"temperature"`
}

// CompletionResponse contém o texto gerado pelo agente.
type CompletionResponse struct {
	Text       string     `json:"text"`
	TokensUsed TokenUsage `json:"tokens_used"`
}

// TokenUsage rastreia o consumo de tokens do LLM para monitoramento de custos.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
