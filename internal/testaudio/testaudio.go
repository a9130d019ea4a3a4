// Package testaudio builds small but structurally valid audio files
// for tests: real ID3v2.4 tags that tag readers parse, real MPEG-1
// Layer III frame sequences that frame walkers decode, and canonical
// RIFF/WAVE headers.
package testaudio

import (
	"encoding/binary"
	"os"
	"testing"
)

// BuildID3v2 returns a complete ID3v2.4 tag with UTF-8 text frames for
// artist, title and album. Empty fields are omitted.
func BuildID3v2(artist, title, album string) []byte {
	var frames []byte
	frames = append(frames, textFrame("TPE1", artist)...)
	frames = append(frames, textFrame("TIT2", title)...)
	frames = append(frames, textFrame("TALB", album)...)

	tag := make([]byte, 10, 10+len(frames))
	copy(tag, "ID3")
	tag[3] = 4 // v2.4.0
	putSyncsafe(tag[6:10], uint32(len(frames)))
	return append(tag, frames...)
}

func textFrame(id, text string) []byte {
	if text == "" {
		return nil
	}
	body := append([]byte{0x03}, []byte(text)...) // 0x03 = UTF-8
	frame := make([]byte, 10, 10+len(body))
	copy(frame, id)
	putSyncsafe(frame[4:8], uint32(len(body)))
	return append(frame, body...)
}

func putSyncsafe(b []byte, v uint32) {
	b[0] = byte(v >> 21 & 0x7f)
	b[1] = byte(v >> 14 & 0x7f)
	b[2] = byte(v >> 7 & 0x7f)
	b[3] = byte(v & 0x7f)
}

// BuildID3v1 returns the fixed 128 byte ID3v1 trailer
func BuildID3v1(artist, title string) []byte {
	tag := make([]byte, 128)
	copy(tag, "TAG")
	copy(tag[3:33], title)
	copy(tag[33:63], artist)
	tag[127] = 0xff // no genre
	return tag
}

// BuildFLAC returns a FLAC stream with a valid STREAMINFO block, an
// optional zeroed PADDING block and the given audio payload. The
// payload bytes need not be real frames; metadata parsers stop at the
// last metadata block.
func BuildFLAC(sampleRate int, nsamples uint64, padding int, payload []byte) []byte {
	info := make([]byte, 34)
	binary.BigEndian.PutUint16(info[0:2], 4096) // min block size
	binary.BigEndian.PutUint16(info[2:4], 4096) // max block size
	// sample rate (20 bits), channels-1 (3), bits-1 (5), samples (36)
	packed := uint64(sampleRate)<<44 | 1<<41 | 15<<36 | nsamples&0xfffffffff
	binary.BigEndian.PutUint64(info[10:18], packed)

	out := []byte("fLaC")
	out = append(out, blockHeader(0, len(info), padding == 0)...)
	out = append(out, info...)
	if padding > 0 {
		out = append(out, blockHeader(1, padding, true)...)
		out = append(out, make([]byte, padding)...)
	}
	return append(out, payload...)
}

func blockHeader(typ byte, length int, last bool) []byte {
	head := []byte{typ, byte(length >> 16), byte(length >> 8), byte(length)}
	if last {
		head[0] |= 0x80
	}
	return head
}

// WriteFLAC writes a FLAC with two seconds of 44.1 kHz stream info and
// the given payload bytes
func WriteFLAC(t *testing.T, path string, payload []byte) {
	t.Helper()
	WriteFile(t, path, BuildFLAC(44100, 88200, 0, payload))
}

// mp3BitrateIndex maps kbps to the MPEG-1 Layer III bitrate index
var mp3BitrateIndex = map[int]byte{
	32: 1, 40: 2, 48: 3, 56: 4, 64: 5, 80: 6, 96: 7,
	112: 8, 128: 9, 160: 10, 192: 11, 224: 12, 256: 13, 320: 14,
}

// BuildMP3Frames returns one 44.1 kHz MPEG-1 Layer III frame per rate.
// Frame bodies are zeroed; only the headers matter to frame walkers.
func BuildMP3Frames(t *testing.T, rates ...int) []byte {
	t.Helper()

	var out []byte
	for _, kbps := range rates {
		idx, ok := mp3BitrateIndex[kbps]
		if !ok {
			t.Fatalf("no MPEG-1 Layer III bitrate index for %d kbps", kbps)
		}
		frameLen := 144 * kbps * 1000 / 44100
		frame := make([]byte, frameLen)
		frame[0] = 0xff
		frame[1] = 0xfb     // MPEG-1, Layer III, no CRC
		frame[2] = idx << 4 // bitrate index, 44.1 kHz, no padding
		out = append(out, frame...)
	}
	return out
}

// WriteMP3 writes an MP3 with an ID3v2 tag followed by one frame per
// rate. With no rates given it writes sixteen 128 kbps frames.
func WriteMP3(t *testing.T, path, artist, title string, rates ...int) {
	t.Helper()

	if len(rates) == 0 {
		for i := 0; i < 16; i++ {
			rates = append(rates, 128)
		}
	}
	data := append(BuildID3v2(artist, title, ""), BuildMP3Frames(t, rates...)...)
	WriteFile(t, path, data)
}

// WriteWAV writes a canonical 16-bit stereo 44.1 kHz RIFF/WAVE file
// with roughly the requested duration of silence
func WriteWAV(t *testing.T, path string, seconds float64) {
	t.Helper()

	dataSize := int(seconds * 44100 * 4)
	buf := make([]byte, 44+dataSize)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], 2)
	binary.LittleEndian.PutUint32(buf[24:28], 44100)
	binary.LittleEndian.PutUint32(buf[28:32], 44100*4)
	binary.LittleEndian.PutUint16(buf[32:34], 4)
	binary.LittleEndian.PutUint16(buf[34:36], 16)
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	WriteFile(t, path, buf)
}

// WriteFile writes data to path, failing the test on error
func WriteFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}
