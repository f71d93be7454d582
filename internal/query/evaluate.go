package query

import (
	"fmt"
	"log/slog"
	"math"
	"path"
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/starford/laguz/internal/models"
	"github.com/starford/laguz/internal/scoring"
	"github.com/starford/laguz/internal/store"
	"github.com/starford/laguz/internal/tokenizer"
)

// Config tunes the evaluator's leaf-condition semantics.
type Config struct {
	// SimilarityThreshold gates exact-mode filename matches.
	SimilarityThreshold float64
	// TermMatchThreshold is the fraction of a keyword's tokens a document
	// must contain to qualify as a match.
	TermMatchThreshold float64
	// PhraseScore is the fixed score for exact-phrase matches; it is chosen
	// high enough to outrank term-frequency scores.
	PhraseScore float64
}

// DefaultConfig returns the standard evaluator tuning.
func DefaultConfig() Config {
	return Config{
		SimilarityThreshold: 0.7,
		TermMatchThreshold:  0.7,
		PhraseScore:         100,
	}
}

// Match is one document in a condition's result set, with accumulated
// score contribution and the keywords that matched it.
type Match struct {
	Document        models.Document
	Score           float64
	KeywordsMatched []string
}

// Evaluator resolves Condition trees against the document store. It only
// reads; all mutation goes through the indexer.
type Evaluator struct {
	store             *store.Store
	scorer            *scoring.Scorer
	contentTokenizer  *tokenizer.Tokenizer
	filenameTokenizer *tokenizer.Tokenizer
	cfg               Config
	logger            *slog.Logger
}

// NewEvaluator creates an Evaluator.
func NewEvaluator(st *store.Store, sc *scoring.Scorer, content, filename *tokenizer.Tokenizer, cfg Config, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{
		store:             st,
		scorer:            sc,
		contentTokenizer:  content,
		filenameTokenizer: filename,
		cfg:               cfg,
		logger:            logger,
	}
}

// Evaluate resolves a condition tree to its matching documents. Data-level
// misses (unknown terms, folders, properties) produce empty results, never
// errors.
func (e *Evaluator) Evaluate(cond Condition) (map[int64]*Match, error) {
	return e.evaluate(cond, nil)
}

// stageRank orders And children so cheap narrowing filters run before
// keyword scoring: property, folder, filename, then keyword.
func stageRank(c Condition) int {
	switch c.Kind {
	case KindProperty:
		return 0
	case KindFolder:
		return 1
	case KindFilename:
		return 2
	case KindKeyword:
		return 3
	default:
		return 4
	}
}

// scope restricts evaluation to a document-ID set; nil means unrestricted.
type scope map[int64]struct{}

func (s scope) allows(id int64) bool {
	if s == nil {
		return true
	}
	_, ok := s[id]
	return ok
}

func (e *Evaluator) evaluate(cond Condition, sc scope) (map[int64]*Match, error) {
	switch cond.Kind {
	case KindAnd:
		return e.evaluateAnd(cond.Children, sc)
	case KindOr:
		return e.evaluateOr(cond.Children, sc)
	case KindFilename:
		return e.evaluateFilename(cond.Filenames, sc)
	case KindFolder:
		return e.evaluateFolder(cond.Folders, sc)
	case KindKeyword:
		return e.evaluateKeywords(cond.Keywords, sc)
	case KindProperty:
		return e.evaluateProperties(cond.Properties, sc)
	default:
		return nil, fmt.Errorf("query: unknown condition kind %d", cond.Kind)
	}
}

// evaluateAnd intersects child results. Children are evaluated in stage
// order and each later child is scoped to the IDs that survived so far; an
// empty intersection short-circuits with a logged warning.
func (e *Evaluator) evaluateAnd(children []Condition, sc scope) (map[int64]*Match, error) {
	if len(children) == 0 {
		return map[int64]*Match{}, nil
	}
	ordered := make([]Condition, len(children))
	copy(ordered, children)
	sort.SliceStable(ordered, func(i, j int) bool { return stageRank(ordered[i]) < stageRank(ordered[j]) })

	var acc map[int64]*Match
	for _, child := range ordered {
		result, err := e.evaluate(child, sc)
		if err != nil {
			return nil, err
		}
		if len(result) == 0 {
			e.logger.Warn("query: AND branch matched nothing, short-circuiting",
				slog.Int("kind", int(child.Kind)))
			return map[int64]*Match{}, nil
		}
		if acc == nil {
			acc = result
		} else {
			acc = mergeIntersect(acc, result)
			if len(acc) == 0 {
				e.logger.Warn("query: empty intersection, short-circuiting")
				return map[int64]*Match{}, nil
			}
		}
		sc = scope(lo.SliceToMap(lo.Keys(acc), func(id int64) (int64, struct{}) {
			return id, struct{}{}
		}))
	}
	return acc, nil
}

// evaluateOr unions child results, summing score contributions for
// documents matched by multiple branches.
func (e *Evaluator) evaluateOr(children []Condition, sc scope) (map[int64]*Match, error) {
	acc := map[int64]*Match{}
	for _, child := range children {
		result, err := e.evaluate(child, sc)
		if err != nil {
			return nil, err
		}
		for id, m := range result {
			if existing, ok := acc[id]; ok {
				existing.Score += m.Score
				existing.KeywordsMatched = append(existing.KeywordsMatched, m.KeywordsMatched...)
			} else {
				acc[id] = m
			}
		}
	}
	return acc, nil
}

func mergeIntersect(a, b map[int64]*Match) map[int64]*Match {
	out := make(map[int64]*Match, len(a))
	for id, m := range a {
		other, ok := b[id]
		if !ok {
			continue
		}
		m.Score += other.Score
		m.KeywordsMatched = append(m.KeywordsMatched, other.KeywordsMatched...)
		out[id] = m
	}
	return out
}

// evaluateFilename resolves filename patterns with a three-mode syntax:
// "^name$" exact (similarity-gated), "^name" starts-with, bare substring.
// Matches are unscored candidates for the AND/OR layer.
func (e *Evaluator) evaluateFilename(patterns []string, sc scope) (map[int64]*Match, error) {
	if len(patterns) == 0 {
		return map[int64]*Match{}, nil
	}
	docs, err := e.store.AllDocuments()
	if err != nil {
		return nil, err
	}

	type ranked struct {
		doc models.Document
		sim float64
	}
	var hits []ranked

	for _, pattern := range patterns {
		exact := strings.HasPrefix(pattern, "^") && strings.HasSuffix(pattern, "$") && len(pattern) > 1
		prefix := !exact && strings.HasPrefix(pattern, "^")
		name := strings.ToLower(strings.Trim(pattern, "^$"))
		if name == "" {
			continue
		}

		for _, doc := range docs {
			if !sc.allows(doc.ID) {
				continue
			}
			docName := strings.ToLower(strings.TrimSuffix(doc.Name, path.Ext(doc.Name)))
			switch {
			case exact:
				if sim := similarity(name, docName); sim >= e.cfg.SimilarityThreshold {
					hits = append(hits, ranked{doc: doc, sim: sim})
				}
			case prefix:
				if strings.HasPrefix(docName, name) {
					hits = append(hits, ranked{doc: doc, sim: 0})
				}
			default:
				if strings.Contains(docName, name) {
					hits = append(hits, ranked{doc: doc, sim: 0})
				}
			}
		}
	}

	// Rank by similarity before handing back unscored candidates.
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].sim > hits[j].sim })

	out := make(map[int64]*Match, len(hits))
	for _, h := range hits {
		if _, ok := out[h.doc.ID]; !ok {
			out[h.doc.ID] = &Match{Document: h.doc}
		}
	}
	return out, nil
}

// evaluateFolder resolves folder patterns to folder IDs, then to the
// documents those folders own.
func (e *Evaluator) evaluateFolder(patterns []string, sc scope) (map[int64]*Match, error) {
	if len(patterns) == 0 {
		return map[int64]*Match{}, nil
	}
	folders, err := e.store.FoldersMatching(patterns)
	if err != nil {
		return nil, err
	}
	if len(folders) == 0 {
		return map[int64]*Match{}, nil
	}
	folderIDs := lo.Map(folders, func(f models.Folder, _ int) int64 { return f.ID })
	ids, err := e.store.DocumentIDsInFolders(folderIDs)
	if err != nil {
		return nil, err
	}
	ids = lo.Filter(ids, func(id int64, _ int) bool { return sc.allows(id) })
	docs, err := e.store.GetDocumentsByIDs(ids)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]*Match, len(docs))
	for _, doc := range docs {
		out[doc.ID] = &Match{Document: doc}
	}
	return out, nil
}

// evaluateProperties intersects the document sets of every property filter:
// a document must satisfy all given constraints.
func (e *Evaluator) evaluateProperties(filters []PropertyFilter, sc scope) (map[int64]*Match, error) {
	if len(filters) == 0 {
		return map[int64]*Match{}, nil
	}
	var ids []int64
	for i, f := range filters {
		matched, err := e.store.DocumentIDsWithProperty(f.Name, f.Value, f.Operator)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			ids = matched
		} else {
			ids = lo.Intersect(ids, matched)
		}
		if len(ids) == 0 {
			return map[int64]*Match{}, nil
		}
	}
	ids = lo.Filter(ids, func(id int64, _ int) bool { return sc.allows(id) })
	docs, err := e.store.GetDocumentsByIDs(ids)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]*Match, len(docs))
	for _, doc := range docs {
		out[doc.ID] = &Match{Document: doc}
	}
	return out, nil
}

// evaluateKeywords accumulates results across keywords: scores sum and
// matched-keyword lists append, rather than replacing.
func (e *Evaluator) evaluateKeywords(keywords []string, sc scope) (map[int64]*Match, error) {
	acc := map[int64]*Match{}
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		var result map[int64]*Match
		var err error
		if isQuoted(kw) {
			result, err = e.evaluatePhrase(kw, strings.Trim(kw, `"`), sc)
		} else {
			result, err = e.evaluateKeyword(kw, sc)
		}
		if err != nil {
			return nil, err
		}
		for id, m := range result {
			if existing, ok := acc[id]; ok {
				existing.Score += m.Score
				existing.KeywordsMatched = append(existing.KeywordsMatched, m.KeywordsMatched...)
			} else {
				acc[id] = m
			}
		}
	}
	return acc, nil
}

func isQuoted(s string) bool {
	return len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`)
}

// evaluateKeyword handles one unquoted keyword: a document qualifies when
// it contains at least the configured fraction of the keyword's distinct
// tokens; qualifying documents are ranked by the scorer.
func (e *Evaluator) evaluateKeyword(keyword string, sc scope) (map[int64]*Match, error) {
	tokens, _ := e.contentTokenizer.Tokenize(keyword)
	if len(tokens) == 0 {
		return map[int64]*Match{}, nil
	}
	terms := lo.Map(tokens, func(t tokenizer.Token, _ int) string { return t.Term })

	postings, err := e.store.PostingsForTerms(terms)
	if err != nil {
		return nil, err
	}

	termsByDoc := map[int64]map[string]struct{}{}
	for _, p := range postings {
		if !sc.allows(p.DocumentID) {
			continue
		}
		if termsByDoc[p.DocumentID] == nil {
			termsByDoc[p.DocumentID] = map[string]struct{}{}
		}
		termsByDoc[p.DocumentID][p.Term] = struct{}{}
	}

	required := int(math.Ceil(e.cfg.TermMatchThreshold * float64(len(terms))))
	if required < 1 {
		required = 1
	}
	var qualifying []int64
	for id, matched := range termsByDoc {
		if len(matched) >= required {
			qualifying = append(qualifying, id)
		}
	}
	if len(qualifying) == 0 {
		return map[int64]*Match{}, nil
	}

	docs, err := e.store.GetDocumentsByIDs(qualifying)
	if err != nil {
		return nil, err
	}
	scores, err := e.scorer.DocumentScores(docs, terms)
	if err != nil {
		return nil, err
	}

	out := make(map[int64]*Match, len(docs))
	for _, doc := range docs {
		out[doc.ID] = &Match{
			Document:        doc,
			Score:           scores[doc.ID].Value,
			KeywordsMatched: []string{keyword},
		}
	}
	return out, nil
}

// evaluatePhrase handles a quote-wrapped keyword: the phrase's tokens must
// appear at strictly consecutive positions in a document's content terms.
// Phrase matches carry a fixed score that outranks term-frequency matches.
func (e *Evaluator) evaluatePhrase(keyword, phrase string, sc scope) (map[int64]*Match, error) {
	sequence := e.phraseSequence(phrase)
	if len(sequence) == 0 {
		return map[int64]*Match{}, nil
	}

	postings, err := e.store.PostingsForTerms(lo.Uniq(sequence))
	if err != nil {
		return nil, err
	}

	// term → positions, per document, content source only.
	byDoc := map[int64]map[string][]int{}
	for _, p := range postings {
		if p.Source != models.SourceContent || !sc.allows(p.DocumentID) {
			continue
		}
		if byDoc[p.DocumentID] == nil {
			byDoc[p.DocumentID] = map[string][]int{}
		}
		byDoc[p.DocumentID][p.Term] = append(byDoc[p.DocumentID][p.Term], p.Positions...)
	}

	var matched []int64
	for id, positions := range byDoc {
		if containsPhrase(sequence, positions) {
			matched = append(matched, id)
		}
	}
	if len(matched) == 0 {
		return map[int64]*Match{}, nil
	}

	docs, err := e.store.GetDocumentsByIDs(matched)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]*Match, len(docs))
	for _, doc := range docs {
		out[doc.ID] = &Match{
			Document:        doc,
			Score:           e.cfg.PhraseScore,
			KeywordsMatched: []string{keyword},
		}
	}
	return out, nil
}

// phraseSequence reconstructs the phrase's ordered token stream from the
// tokenizer's position-tagged output.
func (e *Evaluator) phraseSequence(phrase string) []string {
	tokens, total := e.contentTokenizer.Tokenize(phrase)
	sequence := make([]string, total)
	for _, tok := range tokens {
		for _, pos := range tok.Positions {
			if pos < total && sequence[pos] == "" {
				sequence[pos] = tok.Term
			}
		}
	}
	// Derived analyzer tokens share positions with their originals; the
	// original (set first via lower position ordering) may be overwritten —
	// rebuild conservatively by dropping empties.
	out := sequence[:0]
	for _, term := range sequence {
		if term != "" {
			out = append(out, term)
		}
	}
	return out
}

// containsPhrase scans candidate start positions of the first phrase token
// and verifies each subsequent token appears at start+offset.
func containsPhrase(sequence []string, positions map[string][]int) bool {
	for _, term := range sequence {
		if len(positions[term]) == 0 {
			return false
		}
	}
	for _, start := range positions[sequence[0]] {
		ok := true
		for offset := 1; offset < len(sequence); offset++ {
			if !containsInt(positions[sequence[offset]], start+offset) {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

func containsInt(values []int, target int) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
