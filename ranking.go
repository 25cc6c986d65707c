package main

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

var (
	numberedRankPattern  = regexp.MustCompile(`\d+\.\s*Response [A-Z]`)
	responseLabelPattern = regexp.MustCompile(`Response [A-Z]`)
)

// buildRankingPrompt composes the Stage 2 prompt: the question plus every
// anonymized response, with strict formatting instructions for the final
// ranking section.
func buildRankingPrompt(question string, entries []AnonymousResponse) string {
	var responsesText strings.Builder
	for _, entry := range entries {
		responsesText.WriteString(fmt.Sprintf("%s:\n%s\n\n", entry.Label, entry.Text))
	}

	return fmt.Sprintf(`You are evaluating different responses to the following question:

Question: %s

Here are the responses from different models (anonymized):

%s

Your task:
1. First, evaluate each response individually. For each response, explain what it does well and what it does poorly.
2. Then, at the very end of your response, provide a final ranking.

IMPORTANT: Your final ranking MUST be formatted EXACTLY as follows:
- Start with the line "FINAL RANKING:" (all caps, with colon)
- Then list the responses from best to worst as a numbered list
- Each line should be: number, period, space, then ONLY the response label (e.g., "1. Response A")
- Include every response exactly once
- Do not add any other text or explanations in the ranking section

Example of the correct format for your ENTIRE response:

Response A provides good detail on X but misses Y...
Response B is accurate but lacks depth on Z...
Response C offers the most comprehensive answer...

FINAL RANKING:
1. Response C
2. Response A
3. Response B

Now provide your evaluation and ranking:`, question, responsesText.String())
}

// ParseRankingLabels extracts the ordered label list from a model's ranking
// text. It prefers a numbered list under a "FINAL RANKING:" header and falls
// back to any "Response X" mentions in order.
func ParseRankingLabels(rankingText string) []string {
	if strings.Contains(rankingText, "FINAL RANKING:") {
		parts := strings.SplitN(rankingText, "FINAL RANKING:", 2)
		rankingSection := parts[1]

		numberedMatches := numberedRankPattern.FindAllString(rankingSection, -1)
		if len(numberedMatches) > 0 {
			results := make([]string, 0, len(numberedMatches))
			for _, match := range numberedMatches {
				if label := responseLabelPattern.FindString(match); label != "" {
					results = append(results, label)
				}
			}
			return results
		}

		if matches := responseLabelPattern.FindAllString(rankingSection, -1); len(matches) > 0 {
			return matches
		}
	}

	return responseLabelPattern.FindAllString(rankingText, -1)
}

// validateRanking checks a parsed label list against the round's anonymized
// set: every label must exist, appear at most once, and all labels must be
// covered. A violation downgrades the submission to invalid rather than
// failing the round.
func validateRanking(labels []string, anon *Anonymizer) error {
	seen := make(map[string]bool, len(labels))
	for _, label := range labels {
		if _, ok := anon.Reveal(label); !ok {
			return newCouncilError(ErrKindInvalidRanking, fmt.Sprintf("unknown label %q", label), nil)
		}
		if seen[label] {
			return newCouncilError(ErrKindInvalidRanking, fmt.Sprintf("duplicate label %q", label), nil)
		}
		seen[label] = true
	}
	if len(seen) < anon.Len() {
		return newCouncilError(ErrKindInvalidRanking,
			fmt.Sprintf("ranking covers %d of %d responses", len(seen), anon.Len()), nil)
	}
	return nil
}

// CollectRankings runs Stage 2: every model receives the same anonymized
// ranking prompt concurrently and independently, exactly like Stage 1.
// Submissions with unparseable or inconsistent rankings come back flagged
// invalid, never as a round failure.
func CollectRankings(ctx context.Context, invoker ModelInvoker, models []string, question string, anon *Anonymizer, timeout time.Duration, maxConcurrent int) []RankingSubmission {
	prompt := buildRankingPrompt(question, anon.Entries())
	responses := CollectResponses(ctx, invoker, models, prompt, timeout, maxConcurrent)

	submissions := make([]RankingSubmission, 0, len(responses))
	for _, r := range responses {
		if !r.OK() {
			submissions = append(submissions, RankingSubmission{Model: r.Model, Err: r.Err})
			continue
		}
		parsed := ParseRankingLabels(r.Text)
		sub := RankingSubmission{
			Model:        r.Model,
			RankingText:  r.Text,
			ParsedLabels: parsed,
		}
		if err := validateRanking(parsed, anon); err != nil {
			sub.Err = errorInfo(ErrKindInvalidRanking, err)
		}
		submissions = append(submissions, sub)
	}
	return submissions
}

// ValidSubmissions filters to the submissions eligible for aggregation.
func ValidSubmissions(submissions []RankingSubmission) []RankingSubmission {
	valid := make([]RankingSubmission, 0, len(submissions))
	for _, s := range submissions {
		if s.Valid() {
			valid = append(valid, s)
		}
	}
	return valid
}

// AggregateRankings combines valid submissions into one ordering of the
// de-anonymized models. Each submission awards positional points: first
// place gets N-1 for N labeled responses, last place 0, and labels a
// submission omits score 0 for that submission. Totals sort descending with
// lexical model-id tie-break, so identical inputs always produce the
// identical order. Every model that was labeled this round appears, even at
// zero points; models with no Stage 1 response cannot appear because the
// anonymizer never labeled them.
func AggregateRankings(submissions []RankingSubmission, anon *Anonymizer) []AggregateRanking {
	scores := make(map[string]int, anon.Len())
	for _, entry := range anon.Entries() {
		if model, ok := anon.Reveal(entry.Label); ok {
			scores[model] = 0
		}
	}

	n := anon.Len()
	for _, sub := range submissions {
		if !sub.Valid() {
			continue
		}
		for pos, label := range sub.ParsedLabels {
			model, ok := anon.Reveal(label)
			if !ok {
				continue
			}
			if points := n - 1 - pos; points > 0 {
				scores[model] += points
			}
		}
	}

	aggregate := make([]AggregateRanking, 0, len(scores))
	for model, score := range scores {
		aggregate = append(aggregate, AggregateRanking{Model: model, Score: score})
	}
	sort.Slice(aggregate, func(i, j int) bool {
		if aggregate[i].Score != aggregate[j].Score {
			return aggregate[i].Score > aggregate[j].Score
		}
		return aggregate[i].Model < aggregate[j].Model
	})
	for i := range aggregate {
		aggregate[i].Rank = i + 1
	}
	return aggregate
}
