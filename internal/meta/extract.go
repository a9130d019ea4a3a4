package meta

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"

	"github.com/franz/music-librarian/internal/util"
)

// AudioExtensions are the supported audio file extensions
var AudioExtensions = []string{
	".mp3",
	".flac",
	".m4a",
	".aac",
	".ogg",
	".opus",
	".wav",
	".aiff",
	".aif",
	".wma",
	".ape",
	".wv", // WavPack
}

var audioExtSet = func() map[string]bool {
	m := make(map[string]bool, len(AudioExtensions))
	for _, ext := range AudioExtensions {
		m[ext] = true
	}
	return m
}()

// IsAudioFile checks if a path has a supported audio extension
func IsAudioFile(path string) bool {
	return audioExtSet[strings.ToLower(filepath.Ext(path))]
}

// FormatForPath maps a file extension to its canonical format name.
// The m4a container is refined to "alac" or "aac" by the prober; this
// returns the extension-level default.
func FormatForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		return "mp3"
	case ".flac":
		return "flac"
	case ".m4a", ".aac":
		return "aac"
	case ".ogg":
		return "ogg"
	case ".opus":
		return "opus"
	case ".wav":
		return "wav"
	case ".aiff", ".aif":
		return "aiff"
	case ".wma":
		return "wma"
	case ".ape":
		return "ape"
	case ".wv":
		return "wavpack"
	}
	return "unknown"
}

// IsLossless reports whether a canonical format name is a lossless codec
func IsLossless(format string) bool {
	switch format {
	case "flac", "alac", "wav", "aiff", "ape", "wavpack":
		return true
	}
	return false
}

// Tags holds the identifying tag fields of one audio file
type Tags struct {
	Artist string
	Title  string
	Album  string
	Year   int
}

// Empty reports whether no identifying field is set
func (t *Tags) Empty() bool {
	return t.Artist == "" && t.Title == "" && t.Album == "" && t.Year == 0
}

// ExtractTags reads the embedded tags of an audio file. A file with no
// tags at all is not an error; it returns empty Tags and the caller
// falls back to filename inference. An unreadable file maps to ErrIO,
// unparseable tags to ErrMetadata, so callers can count the two
// classes separately.
func ExtractTags(path string) (*Tags, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open %s: %v", util.ErrIO, path, err)
	}
	defer f.Close()

	// ReadFrom reports a missing tag block through either sentinel,
	// depending on which reader the sniffed format dispatched to
	m, err := tag.ReadFrom(f)
	if errors.Is(err, tag.ErrNoTagsFound) || errors.Is(err, tag.ErrNotID3v1) {
		return &Tags{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read tags from %s: %v", util.ErrMetadata, path, err)
	}

	t := &Tags{
		Artist: strings.TrimSpace(m.Artist()),
		Title:  strings.TrimSpace(m.Title()),
		Album:  strings.TrimSpace(m.Album()),
	}
	if m.Year() > 0 {
		t.Year = m.Year()
	}

	return t, nil
}
