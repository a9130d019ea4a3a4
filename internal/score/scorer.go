package score

import (
	"time"

	"github.com/franz/music-librarian/internal/catalog"
	"github.com/franz/music-librarian/internal/meta"
)

// Weights holds the per-component point caps. The built-in tables are
// calibrated to the default caps; changing a cap rescales that
// component linearly.
type Weights struct {
	FormatMax     float64
	BitrateMax    float64
	VbrBonus      float64
	SampleRateMax float64
	RecencyMax    float64
}

// DefaultWeights returns the standard point model: 40 format, 30
// bitrate (+2 VBR), 20 sample rate, 10 recency
func DefaultWeights() Weights {
	return Weights{
		FormatMax:     40,
		BitrateMax:    30,
		VbrBonus:      2,
		SampleRateMax: 20,
		RecencyMax:    10,
	}
}

// Breakdown is one file's score split by component. Total is the plain
// sum; a lossless VBR-flagged file can exceed 100 and that is fine,
// scores only rank files against each other.
type Breakdown struct {
	Format     float64
	Bitrate    float64
	VbrBonus   float64
	SampleRate float64
	Recency    float64
	Total      float64
}

// Score rates a catalog row. It reads only the row plus the given
// clock, so identical inputs always produce identical scores.
func (w Weights) Score(f *catalog.File, now time.Time) Breakdown {
	b := Breakdown{
		Format:     formatPoints(f.Format) * w.FormatMax / 40,
		Bitrate:    bitratePoints(f) * w.BitrateMax / 30,
		SampleRate: sampleRatePoints(f.SampleRate) * w.SampleRateMax / 20,
		Recency:    recencyPoints(f.MtimeUnix, now) * w.RecencyMax / 10,
	}
	if f.Vbr {
		b.VbrBonus = w.VbrBonus
	}
	b.Total = b.Format + b.Bitrate + b.VbrBonus + b.SampleRate + b.Recency
	return b
}

// formatPoints returns the codec tier score
func formatPoints(format string) float64 {
	switch format {
	case "flac":
		return 40.0
	case "alac":
		return 39.0
	case "wav", "aiff":
		return 38.0
	case "ape", "wavpack":
		return 36.0
	case "aac":
		return 23.0
	case "opus":
		return 22.0
	case "mp3":
		return 21.0
	case "ogg":
		return 18.0
	case "wma":
		return 15.0
	default:
		return 15.0
	}
}

// bitratePoints scales lossy bitrates linearly against a 320 kbps
// reference. Lossless formats take the full cap; their container
// bitrate says nothing about quality.
func bitratePoints(f *catalog.File) float64 {
	if meta.IsLossless(f.Format) {
		return 30.0
	}
	if f.BitrateKbps <= 0 {
		return 0.0
	}
	pts := float64(f.BitrateKbps) / 320.0 * 30.0
	if pts > 30.0 {
		pts = 30.0
	}
	return pts
}

// sampleRatePoints returns the sample rate tier score
func sampleRatePoints(rate int) float64 {
	switch {
	case rate >= 96000:
		return 20.0
	case rate >= 88200:
		return 18.0
	case rate >= 48000:
		return 15.0
	case rate >= 44100:
		return 10.0
	case rate >= 32000:
		return 6.0
	case rate >= 22050:
		return 3.0
	case rate > 0:
		return 1.0
	default:
		return 0.0
	}
}

// recencyPoints favors recently modified files
func recencyPoints(mtimeUnix int64, now time.Time) float64 {
	if mtimeUnix <= 0 {
		return 0.0
	}
	age := now.Sub(time.Unix(mtimeUnix, 0))
	switch {
	case age < 365*24*time.Hour:
		return 10.0
	case age < 5*365*24*time.Hour:
		return 5.0
	default:
		return 0.0
	}
}

// Scored pairs a catalog row with its breakdown for keeper selection
type Scored struct {
	File      *catalog.File
	Breakdown Breakdown
}

// SelectKeeper chooses the member to keep from a duplicate group and
// returns its index, or -1 for an empty group.
// Tie-breakers: highest total → largest file size → oldest mtime →
// lexical path order.
func SelectKeeper(members []Scored) int {
	if len(members) == 0 {
		return -1
	}

	keeper := 0
	for i := 1; i < len(members); i++ {
		if better(members[i], members[keeper]) {
			keeper = i
		}
	}
	return keeper
}

func better(candidate, keeper Scored) bool {
	if candidate.Breakdown.Total != keeper.Breakdown.Total {
		return candidate.Breakdown.Total > keeper.Breakdown.Total
	}
	if candidate.File.SizeBytes != keeper.File.SizeBytes {
		return candidate.File.SizeBytes > keeper.File.SizeBytes
	}
	if candidate.File.MtimeUnix != keeper.File.MtimeUnix {
		return candidate.File.MtimeUnix < keeper.File.MtimeUnix
	}
	return candidate.File.Path < keeper.File.Path
}
