package match

import (
	"fmt"

	"github.com/hbollon/go-edlib"

	"github.com/franz/music-librarian/internal/catalog"
	"github.com/franz/music-librarian/internal/meta"
	"github.com/franz/music-librarian/internal/util"
)

// Status classifies an incoming file against the library
type Status int

const (
	StatusNew Status = iota
	StatusDuplicate
	StatusUncertain
)

// String returns the status as a lowercase word
func (s Status) String() string {
	switch s {
	case StatusNew:
		return "new"
	case StatusDuplicate:
		return "duplicate"
	case StatusUncertain:
		return "uncertain"
	default:
		return "unknown"
	}
}

// Match types, in tier order
const (
	MatchExactMetadata = "exact_metadata"
	MatchExactContent  = "exact_content"
	MatchFuzzy         = "fuzzy"
	MatchNone          = "none"
)

// Verdict is the outcome of classifying one file. Match is the library
// row it matched, nil for StatusNew.
type Verdict struct {
	Status     Status
	MatchType  string
	Confidence float64
	Match      *catalog.File
}

// Default thresholds for fuzzy classification
const (
	DefaultThreshold      = 0.8
	DefaultUncertainFloor = 0.7
)

// JaroWinkler is the default similarity function
func JaroWinkler(a, b string) float64 {
	sim, err := edlib.StringsSimilarity(a, b, edlib.JaroWinkler)
	if err != nil {
		return 0
	}
	return float64(sim)
}

// Config holds matcher configuration. Zero values take the defaults.
type Config struct {
	Catalog        *catalog.Catalog
	Threshold      float64
	UncertainFloor float64
	Similarity     func(a, b string) float64
}

// Matcher classifies incoming files against the catalog. It only reads
// the catalog; persisting verdicts is the caller's business.
type Matcher struct {
	catalog    *catalog.Catalog
	threshold  float64
	floor      float64
	similarity func(a, b string) float64
}

// New creates a Matcher, validating the config
func New(cfg *Config) (*Matcher, error) {
	if cfg == nil || cfg.Catalog == nil {
		return nil, fmt.Errorf("%w: matcher requires a catalog", util.ErrInvalidConfig)
	}

	threshold := cfg.Threshold
	if threshold == 0 {
		threshold = DefaultThreshold
	}
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("%w: threshold %.2f outside [0, 1]", util.ErrInvalidConfig, threshold)
	}

	floor := cfg.UncertainFloor
	if floor == 0 {
		floor = DefaultUncertainFloor
	}
	if floor < 0 || floor > threshold {
		return nil, fmt.Errorf("%w: uncertain floor %.2f outside [0, threshold %.2f]", util.ErrInvalidConfig, floor, threshold)
	}

	similarity := cfg.Similarity
	if similarity == nil {
		similarity = JaroWinkler
	}

	return &Matcher{
		catalog:    cfg.Catalog,
		threshold:  threshold,
		floor:      floor,
		similarity: similarity,
	}, nil
}

// Classify runs the match tiers in strict order against active library
// rows: exact metadata hash, exact content hash, then fuzzy title
// similarity among same-artist rows. The first tier that hits decides.
// Sentinel metadata hashes never match anything, so two untagged files
// can only be duplicates through their content hash.
func (m *Matcher) Classify(f *catalog.File) (*Verdict, error) {
	rows, err := m.catalog.FindByMetadataHash(f.MetadataHash, true)
	if err != nil {
		return nil, fmt.Errorf("failed to match metadata hash: %w", err)
	}
	if len(rows) > 0 {
		return &Verdict{Status: StatusDuplicate, MatchType: MatchExactMetadata, Confidence: 1.0, Match: rows[0]}, nil
	}

	rows, err = m.catalog.FindByContentHash(f.ContentHash, true)
	if err != nil {
		return nil, fmt.Errorf("failed to match content hash: %w", err)
	}
	if len(rows) > 0 {
		return &Verdict{Status: StatusDuplicate, MatchType: MatchExactContent, Confidence: 1.0, Match: rows[0]}, nil
	}

	return m.classifyFuzzy(f)
}

// classifyFuzzy compares normalized "artist - title" keys against
// same-artist rows. Files with no artist after normalization are New
// by definition; there is nothing safe to compare them to.
func (m *Matcher) classifyFuzzy(f *catalog.File) (*Verdict, error) {
	key := meta.CompareKey(f.Artist, f.Title)
	if key == "" {
		return &Verdict{Status: StatusNew, MatchType: MatchNone}, nil
	}

	candidates, err := m.catalog.FindCandidatesByArtist(f.Artist, true)
	if err != nil {
		return nil, fmt.Errorf("failed to load artist candidates: %w", err)
	}

	// Candidates arrive most recently verified first, then by path, so
	// keeping the first best score applies the tie-break order for free
	var best *catalog.File
	bestScore := 0.0
	for _, cand := range candidates {
		candKey := meta.CompareKey(cand.Artist, cand.Title)
		if candKey == "" {
			continue
		}
		if score := m.similarity(key, candKey); score > bestScore {
			bestScore = score
			best = cand
		}
	}

	switch {
	case best != nil && bestScore >= m.threshold:
		return &Verdict{Status: StatusDuplicate, MatchType: MatchFuzzy, Confidence: bestScore, Match: best}, nil
	case best != nil && bestScore >= m.floor:
		return &Verdict{Status: StatusUncertain, MatchType: MatchFuzzy, Confidence: bestScore, Match: best}, nil
	}
	return &Verdict{Status: StatusNew, MatchType: MatchNone, Confidence: bestScore}, nil
}
