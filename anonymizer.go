package main

import (
	"fmt"
	"math/rand"
)

// AnonymousResponse is one Stage 1 answer stripped of its author, as shown
// to ranking models.
type AnonymousResponse struct {
	Label string
	Text  string
}

// Anonymizer holds one round's label-to-model mapping. Labels use the
// "Response A".."Response Z" surface form, but the assignment is shuffled
// per round: a label's letter says nothing about which model produced the
// answer or where it sat in the input, and the mapping never repeats across
// rounds in a correlatable way.
type Anonymizer struct {
	entries      []AnonymousResponse
	labelToModel map[string]string
	modelToLabel map[string]string
}

// NewAnonymizer assigns labels to the given successful responses. Failed
// responses must be filtered out beforehand; passing one is a programming
// error and panics, since a label for a failed response would poison the
// aggregation downstream.
func NewAnonymizer(responses []ModelResponse) *Anonymizer {
	shuffled := make([]ModelResponse, len(responses))
	copy(shuffled, responses)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	a := &Anonymizer{
		entries:      make([]AnonymousResponse, 0, len(shuffled)),
		labelToModel: make(map[string]string, len(shuffled)),
		modelToLabel: make(map[string]string, len(shuffled)),
	}
	for i, r := range shuffled {
		if !r.OK() {
			panic(fmt.Sprintf("anonymizer: response from %s has an error", r.Model))
		}
		label := fmt.Sprintf("Response %c", 'A'+i)
		a.entries = append(a.entries, AnonymousResponse{Label: label, Text: r.Text})
		a.labelToModel[label] = r.Model
		a.modelToLabel[r.Model] = label
	}
	return a
}

// Entries returns the anonymized responses in presentation order.
func (a *Anonymizer) Entries() []AnonymousResponse {
	return a.entries
}

// Len returns the number of labeled responses in the round.
func (a *Anonymizer) Len() int {
	return len(a.entries)
}

// Reveal maps a label back to its model.
func (a *Anonymizer) Reveal(label string) (string, bool) {
	model, ok := a.labelToModel[label]
	return model, ok
}

// LabelFor maps a model to the label it was assigned this round.
func (a *Anonymizer) LabelFor(model string) (string, bool) {
	label, ok := a.modelToLabel[model]
	return label, ok
}

// Mapping returns a copy of the full label-to-model mapping for the
// result's diagnostic fields.
func (a *Anonymizer) Mapping() map[string]string {
	m := make(map[string]string, len(a.labelToModel))
	for label, model := range a.labelToModel {
		m[label] = model
	}
	return m
}
