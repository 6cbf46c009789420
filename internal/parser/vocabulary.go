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

// Package parser turns free-form WhatsApp text into structured intake form
// data. It decides whether a message is an intake form at all (vs ordinary
// chat), extracts labelled fields, normalises them, and reports a confidence
// score. Everything in this package is a pure function over its inputs:
// no I/O, no shared mutable state. That makes it safe to call from any number
// of concurrent webhook workers.
package parser

import "strings"

// Field identifies one canonical intake form attribute.
type Field string

// The closed set of canonical fields a submission may carry.
const (
	FieldName             Field = "name"
	FieldPhone            Field = "phone"
	FieldEmail            Field = "email"
	FieldProject          Field = "project"
	FieldNotes            Field = "notes"
	FieldSchool           Field = "school"
	FieldTeacher          Field = "teacher"
	FieldGrade            Field = "grade"
	FieldSubject          Field = "subject"
	FieldLessonTitles     Field = "lesson_titles"
	FieldLessonReferences Field = "lesson_references"
)

// RequiredFields are the fields a submission must carry to be valid,
// in the order they are reported when missing.
var RequiredFields = []Field{FieldName, FieldProject}

// Vocabulary maps human-written field labels (in multiple languages) to
// canonical fields. It is the single source of truth for what counts as a
// form field: supporting a new language or synonym means adding entries
// here and nowhere else. Read-only after construction.
type Vocabulary struct {
	lookup map[string]Field
	total  int
}

// NewVocabulary builds a vocabulary from per-field label variants.
// Labels are case-folded; matching is exact (no fuzzy or typo tolerance).
func NewVocabulary(variants map[Field][]string) *Vocabulary {
	lookup := make(map[string]Field)
	for field, labels := range variants {
		for _, label := range labels {
			lookup[strings.ToLower(strings.TrimSpace(label))] = field
		}
	}
	return &Vocabulary{
		lookup: lookup,
		total:  len(variants),
	}
}

// Match resolves a raw label to its canonical field. The second return is
// false when the label is not in the vocabulary.
func (v *Vocabulary) Match(label string) (Field, bool) {
	field, ok := v.lookup[strings.ToLower(strings.TrimSpace(label))]
	return field, ok
}

// Total returns the number of canonical fields the vocabulary covers.
// Used as the denominator of the base confidence score.
func (v *Vocabulary) Total() int {
	return v.total
}

// DefaultVocabulary returns the built-in English/French label table.
func DefaultVocabulary() *Vocabulary {
	return NewVocabulary(map[Field][]string{
		FieldName: {
			"name", "nom", "full name", "fullname", "customer name",
			"student name", "client name", "contact name",
		},
		FieldPhone: {
			"phone", "telephone", "tel", "mobile", "cell", "number",
			"phone number", "téléphone", "contact", "whatsapp",
		},
		FieldEmail: {
			"email", "e-mail", "mail", "email address", "courriel",
		},
		FieldProject: {
			"project", "projet", "project name", "project type",
			"request", "demande", "service",
		},
		FieldNotes: {
			"notes", "note", "comments", "comment", "remarques",
			"additional info", "details", "description", "message",
		},
		FieldSchool: {
			"school", "école", "ecole", "institution", "school name",
			"establishment", "établissement",
		},
		FieldTeacher: {
			"teacher", "enseignant", "professeur", "instructor",
			"teacher name", "prof", "facilitator",
		},
		FieldGrade: {
			"grade", "class", "classe", "level", "year", "form",
			"niveau", "grade level",
		},
		FieldSubject: {
			"subject", "matière", "matiere", "course", "subject area",
			"discipline", "topic",
		},
		FieldLessonTitles: {
			"lesson titles", "lesson title", "lessons", "lesson",
			"titres de leçon", "titres", "titre de leçon", "lesson name",
		},
		FieldLessonReferences: {
			"lesson references", "lesson reference", "references",
			"reference", "références", "ref", "source", "textbook",
		},
	})
}
