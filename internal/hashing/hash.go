package hashing

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/franz/music-librarian/internal/util"
)

// NoMetadata is the sentinel metadata hash for files with neither
// artist nor title. It is not valid hex, so it can never collide with
// a real digest, and hash lookups treat it as matching nothing: two
// untagged files must not count as duplicates of each other.
const NoMetadata = "untagged"

// MetadataHash returns the identity hash of a file's tags. Both fields
// are lowercased and trimmed first so tag-editor whitespace and casing
// differences do not break matching.
func MetadataHash(artist, title string) string {
	artist = strings.ToLower(strings.TrimSpace(artist))
	title = strings.ToLower(strings.TrimSpace(title))
	if artist == "" && title == "" {
		return NoMetadata
	}
	sum := sha1.Sum([]byte(artist + "|" + title))
	return hex.EncodeToString(sum[:])
}

// contentChunk is how much of the payload head and tail gets hashed.
// Large libraries make whole-file hashing too slow, and the ends of
// the audio stream are enough to tell encodings apart.
const contentChunk = 128 * 1024

// ContentHash hashes a fixed-size prefix and suffix of the audio
// payload plus the payload length. Tag blocks (ID3v2, ID3v1, APE, FLAC
// metadata) are excluded from the payload, so re-tagging a file leaves
// its content hash unchanged.
func ContentHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: failed to open %s: %v", util.ErrIO, path, err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("%w: failed to stat %s: %v", util.ErrIO, path, err)
	}

	start, end := payloadBounds(f, st.Size())
	length := end - start

	h := sha1.New()

	n := length
	if n > contentChunk {
		n = contentChunk
	}
	if _, err := f.Seek(start, io.SeekStart); err != nil {
		return "", fmt.Errorf("%w: failed to seek in %s: %v", util.ErrIO, path, err)
	}
	if _, err := io.CopyN(h, f, n); err != nil {
		return "", fmt.Errorf("%w: failed to read %s: %v", util.ErrIO, path, err)
	}

	if length > contentChunk {
		tail := length - contentChunk
		if tail > contentChunk {
			tail = contentChunk
		}
		if _, err := f.Seek(end-tail, io.SeekStart); err != nil {
			return "", fmt.Errorf("%w: failed to seek in %s: %v", util.ErrIO, path, err)
		}
		if _, err := io.CopyN(h, f, tail); err != nil {
			return "", fmt.Errorf("%w: failed to read %s: %v", util.ErrIO, path, err)
		}
	}

	fmt.Fprintf(h, "|%d", length)

	return hex.EncodeToString(h.Sum(nil)), nil
}

// payloadBounds locates the audio payload inside the file, skipping
// leading ID3v2 tags or FLAC metadata blocks and trailing ID3v1 or APE
// tags. Anything that does not parse falls back to whole-file bounds,
// which keeps the hash deterministic for exotic containers.
func payloadBounds(f *os.File, size int64) (int64, int64) {
	start := leadingTagEnd(f, size)
	end := trailingTagStart(f, size)
	if start >= end {
		return 0, size
	}
	return start, end
}

// leadingTagEnd returns the offset of the first payload byte
func leadingTagEnd(f *os.File, size int64) int64 {
	var start int64

	// One or more stacked ID3v2 tags
	for {
		var head [10]byte
		if _, err := f.ReadAt(head[:], start); err != nil {
			return start
		}
		if string(head[0:3]) != "ID3" {
			break
		}
		tagSize := int64(syncsafe(head[6:10])) + 10
		if head[5]&0x10 != 0 {
			tagSize += 10 // footer present
		}
		if start+tagSize > size {
			return start
		}
		start += tagSize
	}

	// FLAC metadata blocks after the stream marker
	var marker [4]byte
	if _, err := f.ReadAt(marker[:], start); err == nil && string(marker[:]) == "fLaC" {
		pos := start + 4
		for {
			var blockHead [4]byte
			if _, err := f.ReadAt(blockHead[:], pos); err != nil {
				return start
			}
			blockLen := int64(blockHead[1])<<16 | int64(blockHead[2])<<8 | int64(blockHead[3])
			pos += 4 + blockLen
			if pos > size {
				return start
			}
			if blockHead[0]&0x80 != 0 {
				// Last metadata block, frames follow
				return pos
			}
		}
	}

	return start
}

// trailingTagStart returns the offset just past the last payload byte
func trailingTagStart(f *os.File, size int64) int64 {
	end := size

	// ID3v1 is a fixed 128 byte block at the very end
	if end >= 128 {
		var tag [3]byte
		if _, err := f.ReadAt(tag[:], end-128); err == nil && string(tag[:]) == "TAG" {
			end -= 128
		}
	}

	// APE tag footer, possibly in front of the ID3v1 block
	if end >= 32 {
		var footer [32]byte
		if _, err := f.ReadAt(footer[:], end-32); err == nil && string(footer[0:8]) == "APETAGEX" {
			tagSize := int64(footer[12]) | int64(footer[13])<<8 | int64(footer[14])<<16 | int64(footer[15])<<24
			flags := uint32(footer[20]) | uint32(footer[21])<<8 | uint32(footer[22])<<16 | uint32(footer[23])<<24
			total := tagSize
			if flags&(1<<31) != 0 {
				total += 32 // header block present
			}
			if total > 0 && total <= end {
				end -= total
			}
		}
	}

	return end
}

// syncsafe decodes a 4 byte ID3v2 syncsafe integer (7 bits per byte)
func syncsafe(b []byte) uint32 {
	return uint32(b[0]&0x7f)<<21 | uint32(b[1]&0x7f)<<14 | uint32(b[2]&0x7f)<<7 | uint32(b[3]&0x7f)
}
