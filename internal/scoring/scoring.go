// Package scoring ranks candidate documents against query terms using a
// BM25 variant with coverage, proximity, and filename bonuses.
package scoring

import (
	"log/slog"
	"math"

	"github.com/starford/laguz/internal/models"
	"github.com/starford/laguz/internal/store"
)

// Config holds the ranking tuning knobs.
type Config struct {
	K1                 float64 // term-frequency saturation
	B                  float64 // document-length normalisation
	FilenameBoost      float64 // multiplier for filename-sourced term scores
	CoverageMaxBonus   float64
	ProximityMaxBonus  float64
	ProximityThreshold int // max token distance for two terms to count as close
	FilenameMatchBonus float64
}

// DefaultConfig returns the standard tuning.
func DefaultConfig() Config {
	return Config{
		K1:                 1.5,
		B:                  0.75,
		FilenameBoost:      2.0,
		CoverageMaxBonus:   0.5,
		ProximityMaxBonus:  0.5,
		ProximityThreshold: 10,
		FilenameMatchBonus: 0.3,
	}
}

// Score is the ranking outcome for one document.
type Score struct {
	Value        float64
	MatchedTerms []string
}

// Scorer computes relevance scores from store postings.
type Scorer struct {
	store  *store.Store
	cfg    Config
	logger *slog.Logger
}

// New creates a Scorer.
func New(st *store.Store, cfg Config, logger *slog.Logger) *Scorer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scorer{store: st, cfg: cfg, logger: logger}
}

// DocumentScores ranks the given documents against the query terms and
// returns a score per document ID. Every input document gets an entry; an
// empty document or term set yields zero scores, never an error.
func (sc *Scorer) DocumentScores(docs []models.Document, terms []string) (map[int64]Score, error) {
	scores := make(map[int64]Score, len(docs))
	for _, d := range docs {
		scores[d.ID] = Score{}
	}
	if len(docs) == 0 || len(terms) == 0 {
		return scores, nil
	}

	total, err := sc.store.DocumentCount()
	if err != nil {
		return nil, err
	}
	avgLen, err := sc.store.AvgTokenCount()
	if err != nil {
		return nil, err
	}
	if avgLen <= 0 {
		avgLen = 1
	}

	ids := make([]int64, len(docs))
	lengths := make(map[int64]int, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
		lengths[d.ID] = d.TokenCount
	}

	postings, err := sc.store.PostingsForTermsInDocuments(terms, ids)
	if err != nil {
		return nil, err
	}

	// Document frequency per term needs the whole corpus, not just the
	// candidate set.
	allPostings, err := sc.store.PostingsForTerms(terms)
	if err != nil {
		return nil, err
	}
	docFreq := make(map[string]map[int64]struct{}, len(terms))
	for _, p := range allPostings {
		if docFreq[p.Term] == nil {
			docFreq[p.Term] = make(map[int64]struct{})
		}
		docFreq[p.Term][p.DocumentID] = struct{}{}
	}

	type termHit struct {
		positions []int
		filename  bool
	}
	base := make(map[int64]float64, len(docs))
	hits := make(map[int64]map[string]*termHit, len(docs))

	for _, p := range postings {
		n := len(docFreq[p.Term])
		if n == 0 {
			continue
		}
		idf := math.Log((float64(total)-float64(n)+0.5)/(float64(n)+0.5) + 1)

		docLen := float64(lengths[p.DocumentID])
		tf := float64(p.Frequency)
		term := idf * (tf * (sc.cfg.K1 + 1)) / (tf + sc.cfg.K1*(1-sc.cfg.B+sc.cfg.B*docLen/avgLen))
		if p.Source == models.SourceFilename {
			term *= sc.cfg.FilenameBoost
		}
		base[p.DocumentID] += term

		if hits[p.DocumentID] == nil {
			hits[p.DocumentID] = make(map[string]*termHit)
		}
		h := hits[p.DocumentID][p.Term]
		if h == nil {
			h = &termHit{}
			hits[p.DocumentID][p.Term] = h
		}
		if p.Source == models.SourceFilename {
			h.filename = true
		} else {
			h.positions = append(h.positions, p.Positions...)
		}
	}

	for id, termHits := range hits {
		matched := make([]string, 0, len(termHits))
		positions := make(map[string][]int, len(termHits))
		filenameMatch := false
		for term, h := range termHits {
			matched = append(matched, term)
			if len(h.positions) > 0 {
				positions[term] = h.positions
			}
			if h.filename {
				filenameMatch = true
			}
		}

		coverage := sc.coverageBonus(len(matched), len(terms))
		proximity := sc.proximityBonus(positions)
		filename := 0.0
		if filenameMatch {
			filename = sc.cfg.FilenameMatchBonus
		}

		scores[id] = Score{
			Value:        base[id] * (1 + coverage + proximity + filename),
			MatchedTerms: matched,
		}
	}

	return scores, nil
}

// coverageBonus rewards documents matching a higher fraction of the query's
// distinct terms, superlinearly.
func (sc *Scorer) coverageBonus(matched, total int) float64 {
	if total == 0 || matched == 0 {
		return 0
	}
	frac := float64(matched) / float64(total)
	return sc.cfg.CoverageMaxBonus * math.Pow(frac, 1.5)
}

// proximityBonus rewards documents whose matched terms cluster within the
// distance threshold. Terms form a graph with edges between any pair whose
// closest positions are within the threshold; the bonus applies only when
// every matched term is reachable from the others, and scales with the
// average minimum pairwise distance. Single-term matches are treated as
// optimally proximate.
func (sc *Scorer) proximityBonus(positions map[string][]int) float64 {
	terms := make([]string, 0, len(positions))
	for t := range positions {
		terms = append(terms, t)
	}
	if len(terms) == 0 {
		return 0
	}
	if len(terms) == 1 {
		return sc.cfg.ProximityMaxBonus
	}

	threshold := float64(sc.cfg.ProximityThreshold)
	adj := make([][]int, len(terms))
	var distSum float64
	var distCount int

	for i := 0; i < len(terms); i++ {
		for j := i + 1; j < len(terms); j++ {
			d := minDistance(positions[terms[i]], positions[terms[j]])
			if d <= threshold {
				adj[i] = append(adj[i], j)
				adj[j] = append(adj[j], i)
				distSum += d
				distCount++
			}
		}
	}

	// BFS reachability: every matched term must connect within threshold.
	visited := make([]bool, len(terms))
	queue := []int{0}
	visited[0] = true
	reached := 1
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range adj[cur] {
			if !visited[next] {
				visited[next] = true
				reached++
				queue = append(queue, next)
			}
		}
	}
	if reached < len(terms) || distCount == 0 {
		return 0
	}

	avg := distSum / float64(distCount)
	return sc.cfg.ProximityMaxBonus * math.Max(0, 1-avg/threshold)
}

// minDistance returns the smallest absolute gap between any position pair.
// Both slices are sorted, so a linear merge suffices.
func minDistance(a, b []int) float64 {
	best := math.MaxFloat64
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		d := math.Abs(float64(a[i] - b[j]))
		if d < best {
			best = d
		}
		if a[i] < b[j] {
			i++
		} else {
			j++
		}
	}
	return best
}
