package meta

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizeArtist normalizes an artist name for comparison and for the
// catalog's artist_norm column. Matching must ignore case and
// diacritics, so "Björk" and "bjork" normalize identically.
func NormalizeArtist(artist string) string {
	if artist == "" {
		return ""
	}

	// Unicode NFC normalization, then strip diacritics
	artist = foldDiacritics(norm.NFC.String(artist))

	// Lowercase
	artist = strings.ToLower(artist)

	// Trim whitespace
	artist = strings.TrimSpace(artist)

	// Handle "Artist, The" -> "the artist"
	if strings.HasSuffix(artist, ", the") {
		artist = "the " + strings.TrimSuffix(artist, ", the")
	}

	// Remove common punctuation
	artist = removePunctuation(artist)

	// Collapse multiple spaces
	artist = collapseWhitespace(artist)

	return artist
}

// NormalizeTitle normalizes a song title for comparison. Version noise
// (remasters, radio edits, bracketed suffixes) is stripped first so
// "Song (2011 Remaster)" and "Song" compare equal.
func NormalizeTitle(title string) string {
	if title == "" {
		return ""
	}

	// Unicode NFC normalization, then strip diacritics
	title = foldDiacritics(norm.NFC.String(title))

	// Lowercase
	title = strings.ToLower(title)

	// Trim whitespace
	title = strings.TrimSpace(title)

	// Remove version suffixes
	title = StripVersionNoise(title)

	// Remove common punctuation
	title = removePunctuation(title)

	// Collapse whitespace
	title = collapseWhitespace(title)

	return title
}

// CompareKey builds the "artist - title" string the fuzzy matcher
// compares. Both halves are fully normalized; an empty artist yields an
// empty key so untitled or untagged files never fuzzy-match.
func CompareKey(artist, title string) string {
	a := NormalizeArtist(artist)
	if a == "" {
		return ""
	}
	return a + " - " + NormalizeTitle(title)
}

// foldDiacritics removes combining marks after NFD decomposition, so
// accented characters compare equal to their base form
func foldDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// removePunctuation removes common punctuation characters
func removePunctuation(s string) string {
	// Remove: . , ! ? ' " : ; - /
	replacer := strings.NewReplacer(
		".", "",
		",", "",
		"!", "",
		"?", "",
		"'", "",
		"\"", "",
		":", "",
		";", "",
		"-", " ",
		"_", " ",
		"&", "and",
		"/", "",
	)
	return replacer.Replace(s)
}

// collapseWhitespace replaces multiple spaces with a single space
func collapseWhitespace(s string) string {
	re := regexp.MustCompile(`\s+`)
	return strings.TrimSpace(re.ReplaceAllString(s, " "))
}

var noisePatterns = []*regexp.Regexp{
	// Parentheses: (Remix), (Live), (Remaster), (Radio Edit), etc.
	regexp.MustCompile(`(?i)\s*\([^)]*?(remix|live|acoustic|demo|instrumental|radio|edit|extended|version|mix|remaster|deluxe|bonus|anniversary|edition|unplugged|session|single|album|explicit|clean|mono|stereo|cover).*?\)`),

	// Brackets: [Remaster], [Deluxe Edition], [Live], etc.
	regexp.MustCompile(`(?i)\s*\[[^\]]*?(remix|live|acoustic|demo|instrumental|radio|edit|extended|version|mix|remaster|deluxe|bonus|anniversary|edition|unplugged|session|single|album|explicit|clean|mono|stereo|cover).*?\]`),

	// Trailing patterns without punctuation: "Song Title Remastered"
	regexp.MustCompile(`(?i)\s+[-–]?\s*(remastered|remaster|remix|live|acoustic|demo|instrumental|unplugged|radio edit)$`),
}

// StripVersionNoise removes version suffixes from a title so that
// re-releases of the same recording compare equal. The stripped form is
// used only for matching, never stored.
func StripVersionNoise(s string) string {
	for _, re := range noisePatterns {
		s = re.ReplaceAllString(s, "")
	}
	return strings.TrimSpace(s)
}
