package main

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"testing"
	"time"
)

// invokerFunc adapts a function to the ModelInvoker interface, the in-tests
// replacement for the OpenRouter client.
type invokerFunc func(ctx context.Context, model string, prompt string, timeout time.Duration) (string, error)

func (f invokerFunc) Invoke(ctx context.Context, model string, prompt string, timeout time.Duration) (string, error) {
	return f(ctx, model, prompt, timeout)
}

// promptStage classifies which pipeline stage a prompt belongs to, so one
// fake invoker can serve a whole run.
func promptStage(prompt string) string {
	switch {
	case strings.Contains(prompt, "You are the Chairman"):
		return "synthesis"
	case strings.Contains(prompt, "FINAL RANKING"):
		return "ranking"
	case strings.Contains(prompt, "Generate a very short title"):
		return "title"
	default:
		return "answer"
	}
}

var promptLabelPattern = regexp.MustCompile(`Response [A-Z]`)

// labelsInPrompt extracts the anonymized labels a ranking prompt presents,
// in presentation order, skipping the format-example labels in the
// instruction boilerplate by reading only the responses block.
func labelsInPrompt(prompt string) []string {
	// The responses block sits between the anonymized-responses header and
	// the task instructions.
	start := strings.Index(prompt, "(anonymized):")
	end := strings.Index(prompt, "Your task:")
	if start < 0 || end < 0 || end < start {
		return nil
	}
	seen := make(map[string]bool)
	var labels []string
	for _, label := range promptLabelPattern.FindAllString(prompt[start:end], -1) {
		if !seen[label] {
			seen[label] = true
			labels = append(labels, label)
		}
	}
	return labels
}

// rankingInPromptOrder builds a well-formed FINAL RANKING section covering
// every label the prompt presented, in presentation order.
func rankingInPromptOrder(prompt string) string {
	labels := labelsInPrompt(prompt)
	var b strings.Builder
	b.WriteString("Evaluated all responses.\n\nFINAL RANKING:\n")
	for i, label := range labels {
		b.WriteString(fmt.Sprintf("%d. %s\n", i+1, label))
	}
	return b.String()
}

// wellBehavedInvoker answers every stage plausibly: distinct stage 1
// answers, complete rankings, a synthesis and a title.
func wellBehavedInvoker() invokerFunc {
	return func(ctx context.Context, model string, prompt string, timeout time.Duration) (string, error) {
		switch promptStage(prompt) {
		case "synthesis":
			return "The council's synthesized answer.", nil
		case "ranking":
			return rankingInPromptOrder(prompt), nil
		case "title":
			return "Test Conversation Title", nil
		default:
			return "Answer from " + model, nil
		}
	}
}

// testConfig returns a config suitable for unit tests: fake models, short
// timeouts, temp-friendly defaults. DataDir must be overridden by tests
// that persist.
func testConfig(t *testing.T) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.OpenRouterAPIKey = "test-key"
	cfg.CouncilModels = []string{"model/a", "model/b", "model/c"}
	cfg.ChairmanModel = "model/chairman"
	cfg.TitleModel = "model/title"
	cfg.ModelQueryTimeout = 5 * time.Second
	cfg.TitleGenTimeout = 5 * time.Second
	cfg.MaxConcurrentQueries = 4
	cfg.DataDir = t.TempDir()
	return cfg
}

// fixedAnonymizer builds an Anonymizer with a known label assignment, for
// tests that need deterministic mappings. Pairs alternate label, model,
// text triplets collapse to label->model with empty text.
func fixedAnonymizer(labelToModel map[string]string) *Anonymizer {
	a := &Anonymizer{
		labelToModel: make(map[string]string, len(labelToModel)),
		modelToLabel: make(map[string]string, len(labelToModel)),
	}
	// Keep entry order stable by label for reproducible tests.
	labels := make([]string, 0, len(labelToModel))
	for label := range labelToModel {
		labels = append(labels, label)
	}
	for i := 0; i < len(labels); i++ {
		for j := i + 1; j < len(labels); j++ {
			if labels[j] < labels[i] {
				labels[i], labels[j] = labels[j], labels[i]
			}
		}
	}
	for _, label := range labels {
		model := labelToModel[label]
		a.entries = append(a.entries, AnonymousResponse{Label: label, Text: "text for " + label})
		a.labelToModel[label] = model
		a.modelToLabel[model] = label
	}
	return a
}

// sampleCouncilResult builds a small complete result for storage tests.
func sampleCouncilResult(question string) *CouncilResult {
	return &CouncilResult{
		Question: question,
		Responses: []ModelResponse{
			{Model: "model/a", Text: "Answer from model/a"},
			{Model: "model/b", Text: "Answer from model/b"},
		},
		Rankings: []RankingSubmission{
			{
				Model:        "model/a",
				RankingText:  "FINAL RANKING:\n1. Response B\n2. Response A",
				ParsedLabels: []string{"Response B", "Response A"},
			},
		},
		LabelToModel: map[string]string{
			"Response A": "model/a",
			"Response B": "model/b",
		},
		AggregateRankings: []AggregateRanking{
			{Model: "model/b", Score: 1, Rank: 1},
			{Model: "model/a", Score: 0, Rank: 2},
		},
		Synthesis: &SynthesisResult{Model: "model/chairman", Text: "Final answer."},
	}
}
