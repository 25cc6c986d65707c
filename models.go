package main

import "time"

// ModelResponse is one council model's answer from Stage 1. A failed call
// keeps its slot with Err set so callers can see which providers failed.
type ModelResponse struct {
	Model string     `json:"model"`
	Text  string     `json:"text,omitempty"`
	Err   *ErrorInfo `json:"error,omitempty"`
}

// OK reports whether the response is usable downstream.
func (r ModelResponse) OK() bool {
	return r.Err == nil
}

// RankingSubmission is one model's Stage 2 verdict over the anonymized
// responses. ParsedLabels is the ordered label list extracted from the raw
// ranking text; Err marks either a failed call or an invalid ranking.
type RankingSubmission struct {
	Model        string     `json:"model"`
	RankingText  string     `json:"ranking,omitempty"`
	ParsedLabels []string   `json:"parsed_ranking,omitempty"`
	Err          *ErrorInfo `json:"error,omitempty"`
}

// Valid reports whether the submission may participate in aggregation.
func (s RankingSubmission) Valid() bool {
	return s.Err == nil
}

// AggregateRanking is one model's combined standing across all valid
// submissions. Score is the positional-point total, Rank is 1-based.
type AggregateRanking struct {
	Model string `json:"model"`
	Score int    `json:"score"`
	Rank  int    `json:"rank"`
}

// SynthesisResult is the chairman's final answer from Stage 3.
type SynthesisResult struct {
	Model string     `json:"model"`
	Text  string     `json:"text,omitempty"`
	Err   *ErrorInfo `json:"error,omitempty"`
}

// CouncilResult is the immutable snapshot of one full pipeline run.
type CouncilResult struct {
	Question          string              `json:"question"`
	Responses         []ModelResponse     `json:"responses"`
	Rankings          []RankingSubmission `json:"rankings,omitempty"`
	LabelToModel      map[string]string   `json:"label_to_model,omitempty"`
	AggregateRankings []AggregateRanking  `json:"aggregate_rankings,omitempty"`
	Synthesis         *SynthesisResult    `json:"synthesis,omitempty"`
	Incomplete        bool                `json:"incomplete,omitempty"`
}

// Message is a single entry in a conversation: either the user's question or
// the council's packaged result.
type Message struct {
	Role    string         `json:"role"`
	Content string         `json:"content,omitempty"`
	Council *CouncilResult `json:"council,omitempty"`
}

// Conversation is a persisted deliberation thread.
type Conversation struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
}

// ConversationMetadata is the listing view of a conversation.
type ConversationMetadata struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	Title        string    `json:"title"`
	MessageCount int       `json:"message_count"`
}

// OpenRouterMessage is a chat message on the OpenRouter wire.
type OpenRouterMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// OpenRouterRequest is the chat-completions request payload.
type OpenRouterRequest struct {
	Model    string              `json:"model"`
	Messages []OpenRouterMessage `json:"messages"`
}

// OpenRouterChoiceMessage is the assistant message inside a choice.
type OpenRouterChoiceMessage struct {
	Content string `json:"content"`
}

// OpenRouterChoice is one completion choice.
type OpenRouterChoice struct {
	Message OpenRouterChoiceMessage `json:"message"`
}

// OpenRouterAPIResponse is the full chat-completions response.
type OpenRouterAPIResponse struct {
	Choices []OpenRouterChoice `json:"choices"`
}

// SendMessageRequest is the body for posting a message to a conversation.
// ContextURLs, when present, are fetched and prepended to the question.
type SendMessageRequest struct {
	Content     string   `json:"content" binding:"required"`
	ContextURLs []string `json:"context_urls,omitempty"`
}

// CouncilRequest is the body for the one-shot council endpoints. Model
// selections are optional and fall back to the configured defaults; they are
// scoped to the single run and never touch shared state.
type CouncilRequest struct {
	Question      string   `json:"question" binding:"required"`
	CouncilModels []string `json:"council_models,omitempty"`
	ChairmanModel string   `json:"chairman_model,omitempty"`
	Persist       bool     `json:"persist,omitempty"`
}

// CouncilResponse wraps a run's result for the one-shot endpoint.
type CouncilResponse struct {
	*CouncilResult
	ConversationID   string `json:"conversation_id,omitempty"`
	PersistenceError string `json:"persistence_error,omitempty"`
}

// Stage1Response is the payload of the stage1-only endpoint.
type Stage1Response struct {
	Question          string          `json:"question"`
	Responses         []ModelResponse `json:"responses"`
	ModelsQueried     int             `json:"models_queried"`
	ResponsesReceived int             `json:"responses_received"`
}
