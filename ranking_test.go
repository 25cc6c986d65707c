package main

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"
)

// TestParseRankingLabels tests the ranking parser with various formats.
func TestParseRankingLabels(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name: "standard format with FINAL RANKING",
			input: `Response A is good but lacks detail.
Response B provides comprehensive coverage.
Response C is accurate but brief.

FINAL RANKING:
1. Response B
2. Response A
3. Response C`,
			expected: []string{"Response B", "Response A", "Response C"},
		},
		{
			name: "format without numbered list",
			input: `FINAL RANKING:
Response C
Response A
Response B`,
			expected: []string{"Response C", "Response A", "Response B"},
		},
		{
			name: "format with extra whitespace",
			input: `FINAL RANKING:
1.  Response A
2.  Response B
3.  Response C`,
			expected: []string{"Response A", "Response B", "Response C"},
		},
		{
			name: "format with text after ranking section",
			input: `FINAL RANKING:
1. Response B
2. Response A
3. Response C

These are my rankings based on quality.`,
			expected: []string{"Response B", "Response A", "Response C"},
		},
		{
			name:     "no FINAL RANKING header - fallback",
			input:    `I think Response A is best, then Response C, then Response B.`,
			expected: []string{"Response A", "Response C", "Response B"},
		},
		{
			name:     "empty string",
			input:    "",
			expected: []string{},
		},
		{
			name: "FINAL RANKING with no responses",
			input: `FINAL RANKING:
No responses to rank.`,
			expected: []string{},
		},
		{
			name: "multiple occurrences - only from FINAL RANKING section",
			input: `Response A is mentioned here first.
Response B is also mentioned.

FINAL RANKING:
1. Response C
2. Response A`,
			expected: []string{"Response C", "Response A"},
		},
		{
			name: "responses with letters beyond C",
			input: `FINAL RANKING:
1. Response D
2. Response A
3. Response B
4. Response C`,
			expected: []string{"Response D", "Response A", "Response B", "Response C"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ParseRankingLabels(tt.input)

			if len(result) != len(tt.expected) {
				t.Fatalf("Length mismatch: got %d (%v), want %d (%v)",
					len(result), result, len(tt.expected), tt.expected)
			}
			for i := range result {
				if result[i] != tt.expected[i] {
					t.Errorf("At index %d: got %q, want %q", i, result[i], tt.expected[i])
				}
			}
		})
	}
}

func TestValidateRanking(t *testing.T) {
	anon := fixedAnonymizer(map[string]string{
		"Response A": "model/a",
		"Response B": "model/b",
		"Response C": "model/c",
	})

	tests := []struct {
		name    string
		labels  []string
		wantErr bool
	}{
		{"full permutation", []string{"Response B", "Response C", "Response A"}, false},
		{"unknown label", []string{"Response A", "Response B", "Response Z"}, true},
		{"duplicate label", []string{"Response A", "Response A", "Response B"}, true},
		{"incomplete", []string{"Response A", "Response B"}, true},
		{"empty", []string{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateRanking(tt.labels, anon)
			if (err != nil) != tt.wantErr {
				t.Fatalf("validateRanking(%v) error = %v, wantErr %v", tt.labels, err, tt.wantErr)
			}
			if err != nil && KindOf(err) != ErrKindInvalidRanking {
				t.Errorf("error kind = %v, want %v", KindOf(err), ErrKindInvalidRanking)
			}
		})
	}
}

// TestAggregateRankingsScenario verifies the positional-point scheme on the
// canonical three-model scenario: rankings a=[B,C,A], b=[A,B,C], c=[A,C,B]
// with points 2,1,0 give totals a=4, b=3, c=2.
func TestAggregateRankingsScenario(t *testing.T) {
	anon := fixedAnonymizer(map[string]string{
		"Response A": "model/a",
		"Response B": "model/b",
		"Response C": "model/c",
	})

	submissions := []RankingSubmission{
		{Model: "model/a", ParsedLabels: []string{"Response B", "Response C", "Response A"}},
		{Model: "model/b", ParsedLabels: []string{"Response A", "Response B", "Response C"}},
		{Model: "model/c", ParsedLabels: []string{"Response A", "Response C", "Response B"}},
	}

	result := AggregateRankings(submissions, anon)

	want := []AggregateRanking{
		{Model: "model/a", Score: 4, Rank: 1},
		{Model: "model/b", Score: 3, Rank: 2},
		{Model: "model/c", Score: 2, Rank: 3},
	}
	if !reflect.DeepEqual(result, want) {
		t.Errorf("AggregateRankings = %+v, want %+v", result, want)
	}
}

// TestAggregateRankingsDeterministic verifies purity: identical inputs give
// identical output, including tie-break order.
func TestAggregateRankingsDeterministic(t *testing.T) {
	anon := fixedAnonymizer(map[string]string{
		"Response A": "model/zeta",
		"Response B": "model/alpha",
		"Response C": "model/mid",
	})

	// Symmetric rankings: every model ends up with the same total.
	submissions := []RankingSubmission{
		{Model: "r1", ParsedLabels: []string{"Response A", "Response B", "Response C"}},
		{Model: "r2", ParsedLabels: []string{"Response B", "Response C", "Response A"}},
		{Model: "r3", ParsedLabels: []string{"Response C", "Response A", "Response B"}},
	}

	first := AggregateRankings(submissions, anon)
	second := AggregateRankings(submissions, anon)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("repeated aggregation differs:\n%+v\n%+v", first, second)
	}

	// All tied at 3 points, so order must be lexical by model id.
	wantOrder := []string{"model/alpha", "model/mid", "model/zeta"}
	for i, entry := range first {
		if entry.Model != wantOrder[i] {
			t.Errorf("tie-break position %d = %s, want %s", i, entry.Model, wantOrder[i])
		}
		if entry.Score != 3 {
			t.Errorf("%s score = %d, want 3", entry.Model, entry.Score)
		}
		if entry.Rank != i+1 {
			t.Errorf("%s rank = %d, want %d", entry.Model, entry.Rank, i+1)
		}
	}
}

// TestAggregateRankingsOmittedLabels verifies the aggregator is total over
// partial label lists: omitted labels score zero for that submission, and
// every labeled model still appears in the output.
func TestAggregateRankingsOmittedLabels(t *testing.T) {
	anon := fixedAnonymizer(map[string]string{
		"Response A": "model/a",
		"Response B": "model/b",
		"Response C": "model/c",
	})

	submissions := []RankingSubmission{
		{Model: "r1", ParsedLabels: []string{"Response B"}},
	}

	result := AggregateRankings(submissions, anon)
	if len(result) != 3 {
		t.Fatalf("got %d entries, want 3", len(result))
	}
	if result[0].Model != "model/b" || result[0].Score != 2 {
		t.Errorf("first = %+v, want model/b with score 2", result[0])
	}
	for _, entry := range result[1:] {
		if entry.Score != 0 {
			t.Errorf("%s score = %d, want 0", entry.Model, entry.Score)
		}
	}
}

// TestAggregateRankingsSkipsInvalid verifies invalid submissions contribute
// nothing even when handed to the aggregator.
func TestAggregateRankingsSkipsInvalid(t *testing.T) {
	anon := fixedAnonymizer(map[string]string{
		"Response A": "model/a",
		"Response B": "model/b",
	})

	submissions := []RankingSubmission{
		{Model: "r1", ParsedLabels: []string{"Response A", "Response B"}},
		{
			Model:        "r2",
			ParsedLabels: []string{"Response B", "Response B"},
			Err:          &ErrorInfo{Kind: ErrKindInvalidRanking, Message: "duplicate label"},
		},
	}

	result := AggregateRankings(submissions, anon)
	if result[0].Model != "model/a" || result[0].Score != 1 {
		t.Errorf("first = %+v, want model/a with score 1", result[0])
	}
	if result[1].Model != "model/b" || result[1].Score != 0 {
		t.Errorf("second = %+v, want model/b with score 0", result[1])
	}
}

// TestCollectRankings verifies Stage 2 collection: valid rankings parse and
// pass, malformed ones are kept but flagged, failed calls keep their slot.
func TestCollectRankings(t *testing.T) {
	responses := []ModelResponse{
		{Model: "model/a", Text: "Answer A"},
		{Model: "model/b", Text: "Answer B"},
	}
	anon := NewAnonymizer(responses)
	models := []string{"model/a", "model/b", "model/c"}

	fake := invokerFunc(func(ctx context.Context, model string, prompt string, timeout time.Duration) (string, error) {
		if !strings.Contains(prompt, "FINAL RANKING") {
			t.Errorf("model %s received a non-ranking prompt", model)
		}
		switch model {
		case "model/a":
			return rankingInPromptOrder(prompt), nil
		case "model/b":
			return "I decline to rank anything.", nil
		default:
			return "", errors.New("upstream 500")
		}
	})

	subs := CollectRankings(context.Background(), fake, models, "What is Go?", anon, time.Second, 2)

	if len(subs) != 3 {
		t.Fatalf("got %d submissions, want 3", len(subs))
	}
	for i, sub := range subs {
		if sub.Model != models[i] {
			t.Errorf("submission %d model = %s, want %s (input order)", i, sub.Model, models[i])
		}
	}

	if !subs[0].Valid() {
		t.Errorf("model/a submission should be valid, got error %+v", subs[0].Err)
	}
	if len(subs[0].ParsedLabels) != anon.Len() {
		t.Errorf("model/a parsed %d labels, want %d", len(subs[0].ParsedLabels), anon.Len())
	}

	if subs[1].Valid() {
		t.Error("model/b submission should be invalid")
	}
	if subs[1].Err.Kind != ErrKindInvalidRanking {
		t.Errorf("model/b error kind = %v, want %v", subs[1].Err.Kind, ErrKindInvalidRanking)
	}
	if subs[1].RankingText == "" {
		t.Error("invalid submission should keep its raw text for diagnostics")
	}

	if subs[2].Valid() {
		t.Error("model/c submission should be a failed call")
	}
	if subs[2].Err.Kind != ErrKindProviderCall {
		t.Errorf("model/c error kind = %v, want %v", subs[2].Err.Kind, ErrKindProviderCall)
	}

	valid := ValidSubmissions(subs)
	if len(valid) != 1 || valid[0].Model != "model/a" {
		t.Errorf("ValidSubmissions = %+v, want only model/a", valid)
	}
}
