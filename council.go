package main

import (
	"context"
	"fmt"
	"strings"
)

// NotifyFunc receives best-effort progress messages during a run. It is a
// fire-and-forget sink: a panicking or slow sink must never affect the
// pipeline outcome, so calls are recover-guarded.
type NotifyFunc func(event string)

// RunOptions selects the models for a single run. The zero value uses the
// configured defaults. Options are read once at the start of the run and
// never written back anywhere shared, so concurrent runs with different
// selections cannot observe each other.
type RunOptions struct {
	CouncilModels []string
	ChairmanModel string
	Notify        NotifyFunc
}

// Council orchestrates the 3-stage deliberation. It holds only immutable
// collaborators and defaults; all per-run state lives on the stack of Run.
type Council struct {
	invoker ModelInvoker
	cfg     Config
}

// NewCouncil builds an orchestrator from the invoker and defaults.
func NewCouncil(invoker ModelInvoker, cfg Config) *Council {
	return &Council{invoker: invoker, cfg: cfg}
}

// councilModels resolves the council set for one run, copying so the
// caller's slice cannot alias anything retained.
func (c *Council) councilModels(opts RunOptions) []string {
	src := opts.CouncilModels
	if len(src) == 0 {
		src = c.cfg.CouncilModels
	}
	models := make([]string, len(src))
	copy(models, src)
	return models
}

func (c *Council) chairmanModel(opts RunOptions) string {
	if opts.ChairmanModel != "" {
		return opts.ChairmanModel
	}
	return c.cfg.ChairmanModel
}

// notify delivers a progress event if a sink is set, absorbing panics.
func notify(fn NotifyFunc, event string) {
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			// A broken sink is the sink's problem, not the pipeline's.
		}
	}()
	fn(event)
}

// CollectStage1 runs only Stage 1: one concurrent round of independent
// answers. This is the reduced run_stage1_only operation.
func (c *Council) CollectStage1(ctx context.Context, question string, councilModels []string) []ModelResponse {
	models := c.councilModels(RunOptions{CouncilModels: councilModels})
	return CollectResponses(ctx, c.invoker, models, question, c.cfg.ModelQueryTimeout, c.cfg.MaxConcurrentQueries)
}

// Run executes the full pipeline: independent generation, anonymized peer
// ranking, aggregation, chairman synthesis. It fails only when Stage 1
// produces zero successes or the chairman call fails; every other sub-failure
// is absorbed into the result's diagnostic fields. A cancelled context stops
// new calls and returns what completed, marked Incomplete.
func (c *Council) Run(ctx context.Context, question string, opts RunOptions) (*CouncilResult, error) {
	models := c.councilModels(opts)
	chairman := c.chairmanModel(opts)

	notify(opts.Notify, fmt.Sprintf("Stage 1: collecting responses from %d council models", len(models)))
	responses := CollectResponses(ctx, c.invoker, models, question, c.cfg.ModelQueryTimeout, c.cfg.MaxConcurrentQueries)

	successes := SuccessfulResponses(responses)
	if len(successes) == 0 {
		return nil, newCouncilError(ErrKindAllProviders, "all council models failed to respond", nil)
	}

	result := &CouncilResult{
		Question:  question,
		Responses: responses,
	}
	if ctx.Err() != nil {
		result.Incomplete = true
		return result, nil
	}
	notify(opts.Notify, fmt.Sprintf("Stage 1 complete: %d of %d responses collected", len(successes), len(models)))

	anon := NewAnonymizer(successes)
	result.LabelToModel = anon.Mapping()

	notify(opts.Notify, "Stage 2: collecting anonymized peer rankings")
	rankings := CollectRankings(ctx, c.invoker, models, question, anon, c.cfg.ModelQueryTimeout, c.cfg.MaxConcurrentQueries)
	result.Rankings = rankings

	if valid := ValidSubmissions(rankings); len(valid) > 0 {
		result.AggregateRankings = AggregateRankings(valid, anon)
	}
	if ctx.Err() != nil {
		result.Incomplete = true
		return result, nil
	}
	notify(opts.Notify, "Stage 2 complete: peer rankings collected")

	notify(opts.Notify, "Stage 3: chairman synthesizing final answer")
	synthesis, err := c.Synthesize(ctx, question, successes, rankings, result.AggregateRankings, chairman)
	if err != nil {
		return nil, err
	}
	result.Synthesis = &synthesis
	notify(opts.Notify, "Stage 3 complete: final synthesis ready")

	return result, nil
}

// Synthesize runs Stage 3: a single chairman call over the question, the
// attributed Stage 1 responses and the Stage 2 rankings. Anonymity ends
// here; the chairman adjudicates with full information. Failure of this one
// call is fatal to the run and reported as its own kind.
func (c *Council) Synthesize(ctx context.Context, question string, responses []ModelResponse, rankings []RankingSubmission, aggregate []AggregateRanking, chairman string) (SynthesisResult, error) {
	var stage1Text strings.Builder
	for _, r := range responses {
		stage1Text.WriteString(fmt.Sprintf("Model: %s\nResponse: %s\n\n", r.Model, r.Text))
	}

	var stage2Text strings.Builder
	for _, sub := range rankings {
		if sub.RankingText == "" {
			continue
		}
		stage2Text.WriteString(fmt.Sprintf("Model: %s\nRanking: %s\n\n", sub.Model, sub.RankingText))
	}

	var aggregateText strings.Builder
	for _, entry := range aggregate {
		aggregateText.WriteString(fmt.Sprintf("%d. %s (%d points)\n", entry.Rank, entry.Model, entry.Score))
	}
	if aggregateText.Len() == 0 {
		aggregateText.WriteString("No aggregate ranking available.\n")
	}

	prompt := fmt.Sprintf(`You are the Chairman of an LLM Council. Multiple AI models have provided responses to a user's question, and then ranked each other's responses.

Original Question: %s

STAGE 1 - Individual Responses:
%s
STAGE 2 - Peer Rankings:
%s
Aggregate ranking from the peer review:
%s
Your task as Chairman is to synthesize all of this information into a single, comprehensive, accurate answer to the user's original question. Consider:
- The individual responses and their insights
- The peer rankings and what they reveal about response quality
- Any patterns of agreement or disagreement

Provide a clear, well-reasoned final answer that represents the council's collective wisdom:`,
		question, stage1Text.String(), stage2Text.String(), aggregateText.String())

	text, err := c.invoker.Invoke(ctx, chairman, prompt, c.cfg.ModelQueryTimeout)
	if err != nil {
		return SynthesisResult{}, newCouncilError(ErrKindSynthesis,
			fmt.Sprintf("chairman model %s failed", chairman), err)
	}

	return SynthesisResult{Model: chairman, Text: text}, nil
}

// GenerateTitle asks the title model for a 3-5 word conversation title.
// Same failure semantics as any single Stage 1 call.
func (c *Council) GenerateTitle(ctx context.Context, question string) (string, error) {
	prompt := fmt.Sprintf(`Generate a very short title (3-5 words maximum) that summarizes the following question.
The title should be concise and descriptive. Do not use quotes or punctuation in the title.

Question: %s

Title:`, question)

	text, err := c.invoker.Invoke(ctx, c.cfg.TitleModel, prompt, c.cfg.TitleGenTimeout)
	if err != nil {
		return "", fmt.Errorf("title generation failed: %w", err)
	}

	title := strings.TrimSpace(text)
	title = strings.Trim(title, "\"'")
	if len(title) > 50 {
		title = title[:47] + "..."
	}
	return title, nil
}
