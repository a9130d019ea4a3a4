package meta

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// FilenameInfo holds metadata parsed from a filename and its path
type FilenameInfo struct {
	Artist     string
	Album      string
	Title      string
	Track      int
	Year       int
	Confidence float64 // 0.0-1.0 how confident we are in the parse
}

var filenamePatterns = []struct {
	re         *regexp.Regexp
	parse      func(*FilenameInfo, []string)
	confidence float64
}{
	{
		// Pattern: "01 - Artist - Title.mp3"
		re: regexp.MustCompile(`^(\d+)\s*[-_.]\s*(.+?)\s*-\s*(.+)$`),
		parse: func(m *FilenameInfo, matches []string) {
			m.Track, _ = strconv.Atoi(matches[1])
			m.Artist = strings.TrimSpace(matches[2])
			m.Title = strings.TrimSpace(matches[3])
		},
		confidence: 0.8,
	},
	{
		// Pattern: "01 - Title.mp3", "01.Title.mp3", "01_Title.mp3"
		re: regexp.MustCompile(`^(\d+)\s*[-_.]\s*(.+)$`),
		parse: func(m *FilenameInfo, matches []string) {
			m.Track, _ = strconv.Atoi(matches[1])
			m.Title = strings.ReplaceAll(strings.TrimSpace(matches[2]), "_", " ")
		},
		confidence: 0.7,
	},
	{
		// Pattern: "Artist - Title.mp3"
		re: regexp.MustCompile(`^(.+?)\s+-\s+(.+)$`),
		parse: func(m *FilenameInfo, matches []string) {
			m.Artist = strings.TrimSpace(matches[1])
			m.Title = strings.TrimSpace(matches[2])
		},
		confidence: 0.5,
	},
}

// ParseFilename attempts to extract metadata from a filename, falling
// back to the directory structure for artist and album hints
func ParseFilename(path string) *FilenameInfo {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)
	dir := filepath.Dir(path)

	info := &FilenameInfo{
		Confidence: 0.3, // Default low confidence
	}

	for _, p := range filenamePatterns {
		if matches := p.re.FindStringSubmatch(name); matches != nil {
			p.parse(info, matches)
			info.Confidence = p.confidence
			break
		}
	}

	// If no pattern matched, use filename as title
	if info.Title == "" {
		info.Title = name
		info.Confidence = 0.2
	}

	// Track number presence indicates well-organized files
	if info.Track > 0 {
		info.Confidence += 0.15
		if info.Confidence > 1.0 {
			info.Confidence = 1.0
		}
	}

	info.inferFromPath(dir)

	return info
}

// inferFromPath tries to extract album/artist from the directory path,
// assuming the common /Artist/Album/tracks layout
func (m *FilenameInfo) inferFromPath(dir string) {
	parts := strings.Split(filepath.Clean(dir), string(filepath.Separator))
	if len(parts) < 2 {
		return
	}

	parentDir := parts[len(parts)-1]    // Album
	grandParent := parts[len(parts)-2]  // Artist

	if m.Album == "" {
		m.Album = parentDir

		// Skip disc folders: /Artist/Album/CD1/track
		discPattern := regexp.MustCompile(`^(?i)(disc|cd|disk)\s*\d+$`)
		if discPattern.MatchString(m.Album) && len(parts) >= 3 {
			m.Album = parts[len(parts)-2]
			grandParent = parts[len(parts)-3]
		}
	}

	if m.Artist == "" {
		m.Artist = grandParent
	}

	// Year from album folder: "2023 - Album Name" or "Album Name (2023)"
	if yearMatch := regexp.MustCompile(`^(\d{4})\s*[-_.]\s*(.+)$`).FindStringSubmatch(m.Album); yearMatch != nil {
		m.Year, _ = strconv.Atoi(yearMatch[1])
		m.Album = strings.TrimSpace(yearMatch[2])
	} else if yearMatch := regexp.MustCompile(`^(.+?)\s*\((\d{4})\)$`).FindStringSubmatch(m.Album); yearMatch != nil {
		m.Album = strings.TrimSpace(yearMatch[1])
		m.Year, _ = strconv.Atoi(yearMatch[2])
	}
}

// EnrichTags fills missing tag fields from filename and path hints.
// Artist needs a confident parse to avoid false matches; a missing
// title takes anything over losing the track entirely.
func EnrichTags(t *Tags, path string) {
	info := ParseFilename(path)

	if t.Artist == "" && info.Artist != "" && info.Confidence >= 0.5 {
		t.Artist = info.Artist
	}

	titleThreshold := 0.5
	if t.Title == "" {
		titleThreshold = 0.2
	}
	if t.Title == "" && info.Title != "" && info.Confidence >= titleThreshold {
		t.Title = info.Title
	}

	// Album from path is usually reliable
	if t.Album == "" && info.Album != "" {
		t.Album = info.Album
	}

	if t.Year == 0 && info.Year > 0 {
		t.Year = info.Year
	}
}
