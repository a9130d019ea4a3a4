package cleanup

import (
	"fmt"
	"time"

	"github.com/franz/music-librarian/internal/catalog"
	"github.com/franz/music-librarian/internal/score"
)

// Member is one file inside a duplicate group. Confidence is 1.0 for
// hash-grouped members and fuzzy seeds; fuzzy joiners carry the
// similarity that pulled them in.
type Member struct {
	File       *catalog.File
	Confidence float64
	Score      score.Breakdown
}

// Group is a set of files believed to be the same recording. After
// review one member is the keeper and the rest are delete-candidates.
type Group struct {
	Key       string
	MatchType string
	Members   []*Member

	keeper     int // index into Members, -1 before review
	overridden bool
	excluded   bool
}

// Keeper returns the member picked to survive, nil before review
func (g *Group) Keeper() *Member {
	if g.keeper < 0 || g.keeper >= len(g.Members) {
		return nil
	}
	return g.Members[g.keeper]
}

// Deletions returns every member except the keeper
func (g *Group) Deletions() []*Member {
	if g.keeper < 0 {
		return nil
	}
	out := make([]*Member, 0, len(g.Members)-1)
	for i, m := range g.Members {
		if i != g.keeper {
			out = append(out, m)
		}
	}
	return out
}

// SetKeeper overrides the automatic keeper choice with the member at
// the given path
func (g *Group) SetKeeper(path string) error {
	for i, m := range g.Members {
		if m.File.Path == path {
			g.keeper = i
			g.overridden = true
			return nil
		}
	}
	return fmt.Errorf("no member %s in group %s", path, g.Key)
}

// Exclude drops the whole group from the deletion batch ("keep all")
func (g *Group) Exclude() {
	g.excluded = true
}

// Excluded reports whether the group was dropped, by review or by a
// failed validation check
func (g *Group) Excluded() bool {
	return g.excluded
}

// DeletionBytes returns the combined size of the delete-candidates
func (g *Group) DeletionBytes() int64 {
	var total int64
	for _, m := range g.Deletions() {
		total += m.File.SizeBytes
	}
	return total
}

// Review is what the confirm hook sees: every group with scores and
// keeper choices filled in, open for overrides before anything is
// backed up or deleted.
type Review struct {
	Mode   string
	Groups []*Group
}

// ActiveGroups returns the groups still in the deletion batch
func (r *Review) ActiveGroups() []*Group {
	out := make([]*Group, 0, len(r.Groups))
	for _, g := range r.Groups {
		if !g.excluded {
			out = append(out, g)
		}
	}
	return out
}

// DeletionCount returns how many files the batch would delete
func (r *Review) DeletionCount() int {
	n := 0
	for _, g := range r.ActiveGroups() {
		n += len(g.Deletions())
	}
	return n
}

// DeletionBytes returns how many bytes the batch would reclaim
func (r *Review) DeletionBytes() int64 {
	var total int64
	for _, g := range r.ActiveGroups() {
		total += g.DeletionBytes()
	}
	return total
}

// reviewGroups scores every member and designates keepers
func (w *Workflow) reviewGroups(groups []*Group) *Review {
	now := time.Now()

	for _, g := range groups {
		scored := make([]score.Scored, len(g.Members))
		for i, m := range g.Members {
			m.Score = w.weights.Score(m.File, now)
			scored[i] = score.Scored{File: m.File, Breakdown: m.Score}
		}
		g.keeper = score.SelectKeeper(scored)
	}

	return &Review{Mode: w.mode, Groups: groups}
}
