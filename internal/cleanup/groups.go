package cleanup

import (
	"fmt"

	"github.com/franz/music-librarian/internal/catalog"
	"github.com/franz/music-librarian/internal/hashing"
	"github.com/franz/music-librarian/internal/match"
	"github.com/franz/music-librarian/internal/meta"
	"github.com/franz/music-librarian/internal/util"
)

// scanGroups partitions active library rows into duplicate groups.
// Fast mode groups by metadata hash only; thorough mode additionally
// groups leftover rows by content hash and then by fuzzy title
// similarity within artist buckets. A row joins at most one group,
// highest tier first, and only groups with at least two members
// survive. Rows arrive path-ordered, so group order is deterministic.
func (w *Workflow) scanGroups() ([]*Group, error) {
	rows, err := w.catalog.ActiveFiles()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrCatalog, err)
	}

	grouped := make(map[int64]bool)
	var groups []*Group

	groups = append(groups, w.hashGroups(rows, grouped, match.MatchExactMetadata)...)

	if w.mode == ModeThorough {
		groups = append(groups, w.hashGroups(rows, grouped, match.MatchExactContent)...)
		groups = append(groups, w.fuzzyGroups(rows, grouped)...)
	}

	return groups, nil
}

// hashGroups groups ungrouped rows by one of the two hash columns.
// The untagged metadata sentinel never groups; two files may only pair
// on the absence of tags through identical content.
func (w *Workflow) hashGroups(rows []*catalog.File, grouped map[int64]bool, matchType string) []*Group {
	byHash := make(map[string][]*catalog.File)
	var order []string

	for _, f := range rows {
		if grouped[f.ID] {
			continue
		}
		hash := f.MetadataHash
		if matchType == match.MatchExactContent {
			hash = f.ContentHash
		}
		if hash == "" || hash == hashing.NoMetadata {
			continue
		}
		if _, seen := byHash[hash]; !seen {
			order = append(order, hash)
		}
		byHash[hash] = append(byHash[hash], f)
	}

	var groups []*Group
	for _, hash := range order {
		files := byHash[hash]
		if len(files) < 2 {
			continue
		}

		members := make([]*Member, len(files))
		for i, f := range files {
			members[i] = &Member{File: f, Confidence: 1.0}
			grouped[f.ID] = true
		}
		groups = append(groups, &Group{
			Key:       displayKey(files[0]),
			MatchType: matchType,
			Members:   members,
			keeper:    -1,
		})
	}
	return groups
}

// fuzzyGroups pairs leftover rows whose noise-stripped titles are
// similar, comparing only within same-artist buckets
func (w *Workflow) fuzzyGroups(rows []*catalog.File, grouped map[int64]bool) []*Group {
	byArtist := make(map[string][]*catalog.File)
	var order []string

	for _, f := range rows {
		if grouped[f.ID] || f.ArtistNorm == "" {
			continue
		}
		if _, seen := byArtist[f.ArtistNorm]; !seen {
			order = append(order, f.ArtistNorm)
		}
		byArtist[f.ArtistNorm] = append(byArtist[f.ArtistNorm], f)
	}

	var groups []*Group
	for _, artist := range order {
		bucket := byArtist[artist]

		for i, seed := range bucket {
			if grouped[seed.ID] {
				continue
			}
			seedTitle := meta.NormalizeTitle(seed.Title)
			if seedTitle == "" {
				continue
			}

			members := []*Member{{File: seed, Confidence: 1.0}}
			for _, other := range bucket[i+1:] {
				if grouped[other.ID] {
					continue
				}
				otherTitle := meta.NormalizeTitle(other.Title)
				if otherTitle == "" {
					continue
				}
				if sim := w.similarity(seedTitle, otherTitle); sim >= w.fuzzyThreshold {
					members = append(members, &Member{File: other, Confidence: sim})
					grouped[other.ID] = true
				}
			}

			if len(members) < 2 {
				continue
			}
			grouped[seed.ID] = true
			groups = append(groups, &Group{
				Key:       displayKey(seed),
				MatchType: match.MatchFuzzy,
				Members:   members,
				keeper:    -1,
			})
		}
	}
	return groups
}

// displayKey names a group after its first member
func displayKey(f *catalog.File) string {
	switch {
	case f.Artist != "" && f.Title != "":
		return f.Artist + " - " + f.Title
	case f.Title != "":
		return f.Title
	default:
		return f.Filename
	}
}
