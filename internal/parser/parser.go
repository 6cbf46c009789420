// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package parser

import "strings"

const (
	// minPairsForDetection is the floor on raw extracted pairs AND on
	// vocabulary-matched fields. Both floors must hold: two separator-bearing
	// lines where only one label is recognised is not enough, and neither is
	// one recognised label among many unmatched ones.
	minPairsForDetection = 2

	// minConfidence is the classification threshold.
	minConfidence = 0.3

	// Confidence boosts for the required fields.
	bothRequiredBoost = 0.3
	oneRequiredBoost  = 0.15
)

// Result is the parser's verdict on one message.
type Result struct {
	// IsForm reports whether the message was classified as an intake form.
	IsForm bool `json:"is_form"`

	// Confidence is a heuristic score in [0,1]. Zero implies not a form.
	Confidence float64 `json:"confidence"`

	// Fields holds normalised values per canonical field. Populated only
	// when IsForm is true; fields the message did not carry are absent.
	Fields map[Field]string `json:"fields,omitempty"`

	// Missing lists absent required fields in fixed order [name, project].
	// Non-empty iff IsForm && !Valid.
	Missing []Field `json:"missing,omitempty"`

	// Valid reports whether every required field is present after
	// normalisation.
	Valid bool `json:"valid"`
}

// Field returns the normalised value for f, or "" when absent.
func (r Result) Field(f Field) string {
	return r.Fields[f]
}

// Parser classifies messages and extracts intake form fields. It holds only
// the immutable vocabulary, so a single instance is shared across all
// workers. Construct with New and inject where needed; there is no package
// singleton.
type Parser struct {
	vocab *Vocabulary
}

// New creates a parser over the given vocabulary.
func New(vocab *Vocabulary) *Parser {
	return &Parser{vocab: vocab}
}

// Parse classifies one message and, when it is a form, extracts, normalises
// and validates its fields. senderPhone is the sender's channel identifier,
// used as the phone fallback. Pure: the same inputs always yield the same
// Result.
func (p *Parser) Parse(message, senderPhone string) Result {
	var result Result

	if strings.TrimSpace(message) == "" {
		return result
	}

	// Fast path: discard obvious chat before extraction.
	if isLikelyChat(message) {
		return result
	}

	pairs := extractPairs(message)
	if len(pairs) < minPairsForDetection {
		return result
	}

	// Match pairs against the vocabulary. Last value wins per field when a
	// label repeats.
	matched := make(map[Field]string)
	for _, pr := range pairs {
		if field, ok := p.vocab.Match(pr.label); ok {
			matched[field] = pr.value
		}
	}

	result.Confidence = p.score(matched)
	if result.Confidence < minConfidence || len(matched) < minPairsForDetection {
		return result
	}

	result.IsForm = true
	result.Fields = normalizeFields(matched, senderPhone)

	for _, f := range RequiredFields {
		if result.Fields[f] == "" {
			result.Missing = append(result.Missing, f)
		}
	}
	result.Valid = len(result.Missing) == 0

	return result
}

// score computes the confidence for a set of matched fields: the fraction
// of the vocabulary covered, boosted when the required fields are present,
// clamped to 1.
func (p *Parser) score(matched map[Field]string) float64 {
	confidence := float64(len(matched)) / float64(p.vocab.Total())

	_, hasName := matched[FieldName]
	_, hasProject := matched[FieldProject]
	switch {
	case hasName && hasProject:
		confidence += bothRequiredBoost
	case hasName || hasProject:
		confidence += oneRequiredBoost
	}

	if confidence > 1 {
		confidence = 1
	}
	return confidence
}

// normalizeFields applies per-field canonicalisation to the matched values.
func normalizeFields(matched map[Field]string, senderPhone string) map[Field]string {
	fields := make(map[Field]string, len(matched))

	for field, value := range matched {
		switch field {
		case FieldName, FieldSchool, FieldTeacher:
			fields[field] = normalizeName(value)
		case FieldPhone:
			fields[field] = normalizePhone(value, senderPhone)
		case FieldEmail:
			fields[field] = normalizeEmail(value)
		default:
			fields[field] = strings.TrimSpace(value)
		}
	}

	// The phone column always carries a value: fall back to the sender's
	// number when the form did not include one.
	if _, ok := fields[FieldPhone]; !ok {
		if phone := normalizePhone("", senderPhone); phone != "" {
			fields[FieldPhone] = phone
		}
	}

	return fields
}
