// Package tokenizer normalises and splits text into position-tagged terms.
//
// A Tokenizer is a pure function of its input and configured pipeline:
// normalisers run left-to-right over the raw text, the result is split on
// whitespace, stopwords are optionally removed, and analysers may emit
// additional derived tokens. Positions are token indexes within the
// post-normalisation, post-stopword stream.
package tokenizer

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Token is one distinct term with its frequency and occurrence positions.
// len(Positions) == Count always holds.
type Token struct {
	Term      string
	Count     int
	Positions []int
}

// Config selects the pipeline stages by name.
type Config struct {
	Normalizers     []string
	Analyzers       []string
	RemoveStopwords bool
}

// DefaultContentConfig is the pipeline used for document bodies.
func DefaultContentConfig() Config {
	return Config{
		Normalizers:     []string{"comments", "placeholders", "lowercase", "diacritics", "special"},
		Analyzers:       []string{"word-delimiter"},
		RemoveStopwords: true,
	}
}

// DefaultFilenameConfig is the coarser pipeline used for file names.
func DefaultFilenameConfig() Config {
	return Config{
		Normalizers: []string{"lowercase", "diacritics", "special"},
	}
}

type normalizerFunc func(string) string
type analyzerFunc func(map[string]*Token)

var (
	commentRe     = regexp.MustCompile(`(?s)<!--.*?-->`)
	placeholderRe = regexp.MustCompile(`%%[^%]*%%`)
	// Characters kept by the "special" normaliser besides letters and digits.
	keptSymbols = "'#_-"
	// Two or more consecutive symbol characters collapse to a space so that
	// symbol-only runs never survive as tokens.
	symbolRunRe = regexp.MustCompile(`['#_-]{2,}`)

	diacriticsStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
)

var normalizers = map[string]normalizerFunc{
	"comments": func(s string) string {
		return commentRe.ReplaceAllString(s, " ")
	},
	"placeholders": func(s string) string {
		return placeholderRe.ReplaceAllString(s, " ")
	},
	"lowercase": strings.ToLower,
	"diacritics": func(s string) string {
		out, _, err := transform.String(diacriticsStripper, s)
		if err != nil {
			return s
		}
		return out
	},
	"special": stripSpecial,
}

var analyzers = map[string]analyzerFunc{
	"word-delimiter": wordDelimiter,
}

// Tokenizer applies a configured normalise/split/filter/analyse pipeline.
type Tokenizer struct {
	normalizers     []normalizerFunc
	analyzers       []analyzerFunc
	removeStopwords bool
}

// New builds a Tokenizer from cfg. Referencing an unregistered normaliser
// or analyser name is a configuration error and fails immediately.
func New(cfg Config) (*Tokenizer, error) {
	t := &Tokenizer{removeStopwords: cfg.RemoveStopwords}
	for _, name := range cfg.Normalizers {
		fn, ok := normalizers[name]
		if !ok {
			return nil, fmt.Errorf("tokenizer: unknown normalizer %q", name)
		}
		t.normalizers = append(t.normalizers, fn)
	}
	for _, name := range cfg.Analyzers {
		fn, ok := analyzers[name]
		if !ok {
			return nil, fmt.Errorf("tokenizer: unknown analyzer %q", name)
		}
		t.analyzers = append(t.analyzers, fn)
	}
	return t, nil
}

// Tokenize splits text into distinct terms sorted by term, with frequencies
// and zero-based positions. The returned total is the length of the token
// stream positions refer to.
func (t *Tokenizer) Tokenize(text string) ([]Token, int) {
	for _, fn := range t.normalizers {
		text = fn(text)
	}

	fields := strings.Fields(text)
	stream := fields[:0]
	for _, f := range fields {
		if t.removeStopwords && stopwords[f] {
			continue
		}
		stream = append(stream, f)
	}

	byTerm := make(map[string]*Token, len(stream))
	for pos, term := range stream {
		tok, ok := byTerm[term]
		if !ok {
			tok = &Token{Term: term}
			byTerm[term] = tok
		}
		tok.Count++
		tok.Positions = append(tok.Positions, pos)
	}

	for _, fn := range t.analyzers {
		fn(byTerm)
	}

	out := make([]Token, 0, len(byTerm))
	for _, tok := range byTerm {
		out = append(out, *tok)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Term < out[j].Term })
	return out, len(stream)
}

// stripSpecial removes everything except letters, digits, whitespace, and
// the kept symbol set, after collapsing symbol runs.
func stripSpecial(s string) string {
	s = symbolRunRe.ReplaceAllString(s, " ")
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r):
			b.WriteRune(r)
		case strings.ContainsRune(keptSymbols, r):
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return b.String()
}

// wordDelimiter emits each hyphen-delimited part of a hyphenated token as a
// token of its own, keeping the original. When the part already exists as a
// token elsewhere in the text its positions are unioned with the original's.
func wordDelimiter(byTerm map[string]*Token) {
	for term, tok := range byTerm {
		if !strings.Contains(term, "-") {
			continue
		}
		for _, part := range strings.Split(term, "-") {
			if part == "" || part == term {
				continue
			}
			existing, ok := byTerm[part]
			if !ok {
				byTerm[part] = &Token{
					Term:      part,
					Count:     tok.Count,
					Positions: append([]int(nil), tok.Positions...),
				}
				continue
			}
			existing.Positions = unionPositions(existing.Positions, tok.Positions)
			existing.Count = len(existing.Positions)
		}
	}
}

func unionPositions(a, b []int) []int {
	seen := make(map[int]struct{}, len(a)+len(b))
	out := make([]int, 0, len(a)+len(b))
	for _, p := range a {
		if _, ok := seen[p]; !ok {
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	for _, p := range b {
		if _, ok := seen[p]; !ok {
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	sort.Ints(out)
	return out
}
