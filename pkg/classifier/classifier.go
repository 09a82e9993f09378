// Package classifier derives a query type and mentioned domain terms from raw
// conversation text using keyword matching against a closed vocabulary.
package classifier

import (
	"strings"
	"unicode"
)

// QueryType is the intent of a user query.
type QueryType string

const (
	QueryBreeding       QueryType = "breeding"
	QueryRecommendation QueryType = "recommendation"
	QueryEducation      QueryType = "education"
	QueryGeneral        QueryType = "general"
)

// Valid reports whether q is one of the known query types.
func (q QueryType) Valid() bool {
	switch q {
	case QueryBreeding, QueryRecommendation, QueryEducation, QueryGeneral:
		return true
	}
	return false
}

// Classifier is stateless apart from its vocabulary and is safe for concurrent use.
type Classifier struct {
	vocab *Vocabulary
}

// New creates a classifier. A nil vocabulary selects DefaultVocabulary.
func New(vocab *Vocabulary) *Classifier {
	if vocab == nil {
		vocab = DefaultVocabulary()
	}
	return &Classifier{vocab: vocab}
}

// Vocabulary returns the vocabulary in use.
func (c *Classifier) Vocabulary() *Vocabulary {
	return c.vocab
}

// Classify returns the query type. Breeding cues win over recommendation cues,
// which win over education cues.
func (c *Classifier) Classify(query string) QueryType {
	text := strings.ToLower(query)
	switch {
	case containsAny(text, c.vocab.BreedingCues):
		return QueryBreeding
	case containsAny(text, c.vocab.RecommendationCues):
		return QueryRecommendation
	case containsAny(text, c.vocab.EducationCues):
		return QueryEducation
	default:
		return QueryGeneral
	}
}

// ExtractEntities returns the entity names found in text, in vocabulary order.
func (c *Classifier) ExtractEntities(text string) []string {
	return matchTerms(strings.ToLower(text), c.vocab.Entities)
}

// ExtractAttributes returns the attribute keywords found in text, in vocabulary order.
func (c *Classifier) ExtractAttributes(text string) []string {
	return matchTerms(strings.ToLower(text), c.vocab.Attributes)
}

// ExtractAvoided returns entities and attributes named after a negation cue
// within the same sentence, e.g. "I don't like Sour Diesel".
func (c *Classifier) ExtractAvoided(query string) (entities, attributes []string) {
	var negated strings.Builder
	for _, sentence := range splitSentences(strings.ToLower(query)) {
		cut := -1
		for _, cue := range c.vocab.NegationCues {
			if idx := indexTerm(sentence, cue); idx >= 0 && (cut < 0 || idx < cut) {
				cut = idx
			}
		}
		if cut < 0 {
			continue
		}
		negated.WriteString(sentence[cut:])
		negated.WriteString(". ")
	}
	if negated.Len() == 0 {
		return nil, nil
	}
	text := negated.String()
	return matchTerms(text, c.vocab.Entities), matchTerms(text, c.vocab.Attributes)
}

// HasTechnicalTerm reports whether text contains technical vocabulary.
func (c *Classifier) HasTechnicalTerm(text string) bool {
	return containsAny(strings.ToLower(text), c.vocab.TechnicalTerms)
}

// HasNoviceTerm reports whether text contains a self-identification as new.
func (c *Classifier) HasNoviceTerm(text string) bool {
	return containsAny(strings.ToLower(text), c.vocab.NoviceTerms)
}

// UseCases maps attributes to use-case labels, deduplicated, first-seen order.
func (c *Classifier) UseCases(attributes []string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, attr := range attributes {
		label, ok := c.vocab.UseCases[attr]
		if !ok {
			continue
		}
		if _, dup := seen[label]; dup {
			continue
		}
		seen[label] = struct{}{}
		out = append(out, label)
	}
	return out
}

// matchTerms returns the terms found in lowerText. A term contained in a
// longer matched term, such as "pain" in "pain relief", is dropped.
func matchTerms(lowerText string, terms []string) []string {
	var matched []string
	for _, term := range terms {
		if indexTerm(lowerText, strings.ToLower(term)) >= 0 {
			matched = append(matched, term)
		}
	}

	var out []string
	for _, term := range matched {
		if !subsumed(term, matched) {
			out = append(out, term)
		}
	}
	return out
}

func subsumed(term string, matched []string) bool {
	lower := strings.ToLower(term)
	for _, other := range matched {
		if len(other) > len(term) && indexTerm(strings.ToLower(other), lower) >= 0 {
			return true
		}
	}
	return false
}

func containsAny(lowerText string, terms []string) bool {
	for _, term := range terms {
		if indexTerm(lowerText, term) >= 0 {
			return true
		}
	}
	return false
}

// indexTerm finds term in text at word boundaries, so "focus" does not
// match inside "refocused". Both arguments must already be lower case.
func indexTerm(text, term string) int {
	if term == "" {
		return -1
	}
	offset := 0
	for {
		idx := strings.Index(text[offset:], term)
		if idx < 0 {
			return -1
		}
		start := offset + idx
		end := start + len(term)
		if isBoundary(text, start-1) && isBoundary(text, end) {
			return start
		}
		offset = start + 1
	}
}

func isBoundary(text string, i int) bool {
	if i < 0 || i >= len(text) {
		return true
	}
	r := rune(text[i])
	return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r >= 0x80)
}

func splitSentences(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?' || r == ';' || r == '\n'
	})
}
