package symptom

import (
	"errors"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	// DefaultCutoff is the similarity floor for accepting a fuzzy match.
	// Looser matching raises false positives, tighter raises false negatives.
	DefaultCutoff = 0.6
	// DefaultSuggestionCutoff is the looser floor used when proposing
	// corrections for unmatched tokens.
	DefaultSuggestionCutoff = 0.4
	// DefaultCacheSize bounds the per-matcher token result cache.
	DefaultCacheSize = 1024

	maxSuggestions = 3
)

// MatcherConfig tunes fuzzy matching.
type MatcherConfig struct {
	Cutoff           float64 `yaml:"cutoff"`
	SuggestionCutoff float64 `yaml:"suggestion_cutoff"`
	CacheSize        int     `yaml:"cache_size"`
}

// DefaultMatcherConfig returns the stock cutoffs.
func DefaultMatcherConfig() MatcherConfig {
	return MatcherConfig{
		Cutoff:           DefaultCutoff,
		SuggestionCutoff: DefaultSuggestionCutoff,
		CacheSize:        DefaultCacheSize,
	}
}

type matchResult struct {
	canonical string
	ok        bool
}

// Matcher maps raw user tokens to canonical vocabulary entries, first by
// exact membership and then by edit-distance similarity. A matcher is bound
// to one vocabulary; matching is a pure function of (token, vocabulary),
// the LRU cache only memoizes it.
type Matcher struct {
	vocab *Vocabulary
	cfg   MatcherConfig
	cache *lru.Cache[string, matchResult]
}

// NewMatcher builds a matcher over the given vocabulary.
func NewMatcher(vocab *Vocabulary, cfg MatcherConfig) (*Matcher, error) {
	if vocab == nil || vocab.Len() == 0 {
		return nil, errors.New("matcher requires a non-empty vocabulary")
	}
	if cfg.Cutoff <= 0 || cfg.Cutoff > 1 {
		cfg.Cutoff = DefaultCutoff
	}
	if cfg.SuggestionCutoff <= 0 || cfg.SuggestionCutoff > 1 {
		cfg.SuggestionCutoff = DefaultSuggestionCutoff
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultCacheSize
	}
	cache, err := lru.New[string, matchResult](cfg.CacheSize)
	if err != nil {
		return nil, err
	}
	return &Matcher{vocab: vocab, cfg: cfg, cache: cache}, nil
}

// MatchAll maps raw tokens onto the vocabulary. valid holds the matched
// canonical forms, de-duplicated with insertion order preserved; invalid
// holds the normalized tokens that matched nothing above the cutoff. The two
// lists are disjoint. An input with no usable tokens is a validation error.
func (m *Matcher) MatchAll(tokens []string) (valid, invalid []string, err error) {
	normalized := NormalizeAll(tokens)
	if len(normalized) == 0 {
		return nil, nil, errors.New("no symptoms provided")
	}

	seen := make(map[string]bool, len(normalized))
	for _, token := range normalized {
		canonical, ok := m.Match(token)
		if !ok {
			invalid = append(invalid, token)
			continue
		}
		if seen[canonical] {
			continue
		}
		seen[canonical] = true
		valid = append(valid, canonical)
	}
	return valid, invalid, nil
}

// Match resolves one normalized token to its canonical form.
func (m *Matcher) Match(token string) (string, bool) {
	if r, ok := m.cache.Get(token); ok {
		return r.canonical, r.ok
	}
	canonical, ok := m.lookup(token)
	m.cache.Add(token, matchResult{canonical: canonical, ok: ok})
	return canonical, ok
}

func (m *Matcher) lookup(token string) (string, bool) {
	if m.vocab.Contains(token) {
		return token, true
	}
	best := ""
	bestScore := 0.0
	for i := 0; i < m.vocab.Len(); i++ {
		candidate := m.vocab.At(i)
		score := Similarity(token, candidate)
		if score > bestScore {
			best, bestScore = candidate, score
		}
	}
	if bestScore >= m.cfg.Cutoff {
		return best, true
	}
	return "", false
}

// Suggestions returns up to three vocabulary entries closest to the token at
// the looser suggestion cutoff, best first. Ties keep vocabulary order.
func (m *Matcher) Suggestions(token string) []string {
	token = Normalize(token)
	if token == "" {
		return nil
	}
	type scored struct {
		name  string
		score float64
		pos   int
	}
	var candidates []scored
	for i := 0; i < m.vocab.Len(); i++ {
		name := m.vocab.At(i)
		if score := Similarity(token, name); score >= m.cfg.SuggestionCutoff {
			candidates = append(candidates, scored{name: name, score: score, pos: i})
		}
	}
	sort.SliceStable(candidates, func(a, b int) bool {
		if candidates[a].score != candidates[b].score {
			return candidates[a].score > candidates[b].score
		}
		return candidates[a].pos < candidates[b].pos
	})
	if len(candidates) > maxSuggestions {
		candidates = candidates[:maxSuggestions]
	}
	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.name
	}
	return out
}

// Similarity is an edit-distance ratio in [0,1]: 1 minus the Levenshtein
// distance over the longer length. Identical strings score 1.
func Similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = minInt(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	longer := len(ra)
	if len(rb) > longer {
		longer = len(rb)
	}
	return 1 - float64(prev[len(rb)])/float64(longer)
}

func minInt(values ...int) int {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
