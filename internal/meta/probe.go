package meta

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-audio/wav"
	"github.com/mewkiz/flac"
	"github.com/tcolgate/mp3"

	"github.com/franz/music-librarian/internal/util"
)

// Properties holds the audio properties of one file
type Properties struct {
	Format      string
	DurationSec float64
	BitrateKbps int
	Vbr         bool
	SampleRate  int
	Lossless    bool
}

// Probe inspects an audio file and returns its properties. FLAC, MP3,
// WAV and M4A have native probers; other formats fall back to the
// extension-derived format with zeroed properties. An unreadable file
// maps to ErrIO, a malformed one to ErrMetadata.
func Probe(path string) (*Properties, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		return probeMP3(path)
	case ".flac":
		return probeFLAC(path)
	case ".wav":
		return probeWAV(path)
	case ".m4a":
		return probeM4A(path)
	}

	p := &Properties{Format: FormatForPath(path)}
	p.Lossless = IsLossless(p.Format)
	return p, nil
}

// probeMP3 walks every MPEG frame. Non-frame bytes (ID3 blocks, junk)
// are skipped by the decoder, so the averaged bitrate reflects the
// audio payload only. Seeing more than one distinct frame bitrate
// marks the file as VBR.
func probeMP3(path string) (*Properties, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open %s: %v", util.ErrIO, path, err)
	}
	defer f.Close()

	dec := mp3.NewDecoder(f)

	var (
		total      time.Duration
		payload    int64
		frames     int
		sampleRate int
		skipped    int
	)
	rates := make(map[int]struct{})

	for {
		var fr mp3.Frame
		if err := dec.Decode(&fr, &skipped); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if frames == 0 {
				return nil, fmt.Errorf("%w: no decodable frames in %s: %v", util.ErrMetadata, path, err)
			}
			break // partial decode, use what we have
		}

		hdr := fr.Header()
		if sr := int(hdr.SampleRate()); sr > 0 && sampleRate == 0 {
			sampleRate = sr
		}
		if br := int(hdr.BitRate()); br > 0 {
			rates[br/1000] = struct{}{}
		}
		if d := fr.Duration(); d > 0 {
			total += d
		}
		payload += int64(fr.Size())
		frames++
	}

	if frames == 0 {
		return nil, fmt.Errorf("%w: no decodable frames in %s", util.ErrMetadata, path)
	}

	p := &Properties{
		Format:      "mp3",
		DurationSec: total.Seconds(),
		SampleRate:  sampleRate,
		Vbr:         len(rates) > 1,
	}

	if p.DurationSec > 0 {
		p.BitrateKbps = int(float64(payload*8)/p.DurationSec) / 1000
	} else if len(rates) == 1 {
		for r := range rates {
			p.BitrateKbps = r
		}
	}

	return p, nil
}

// probeFLAC reads the STREAMINFO metadata block
func probeFLAC(path string) (*Properties, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open %s: %v", util.ErrIO, path, err)
	}
	defer f.Close()

	stream, err := flac.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse flac %s: %v", util.ErrMetadata, path, err)
	}

	si := stream.Info
	p := &Properties{
		Format:     "flac",
		SampleRate: int(si.SampleRate),
		Lossless:   true,
	}
	if si.NSamples > 0 && si.SampleRate > 0 {
		p.DurationSec = float64(si.NSamples) / float64(si.SampleRate)
	}

	// Average bitrate from file size; informational only, scoring
	// treats lossless as full quality regardless
	if p.DurationSec > 0 {
		if st, err := f.Stat(); err == nil {
			p.BitrateKbps = int(float64(st.Size()*8)/p.DurationSec) / 1000
		}
	}

	return p, nil
}

// probeWAV reads the RIFF header and estimates duration from the file
// size, which avoids decoding the full sample data
func probeWAV(path string) (*Properties, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open %s: %v", util.ErrIO, path, err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: invalid wav file: %s", util.ErrMetadata, path)
	}
	if dec.SampleRate == 0 || dec.BitDepth == 0 || dec.NumChans == 0 {
		return nil, fmt.Errorf("%w: invalid wav header: %s", util.ErrMetadata, path)
	}

	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to stat %s: %v", util.ErrIO, path, err)
	}

	p := &Properties{
		Format:      "wav",
		SampleRate:  int(dec.SampleRate),
		BitrateKbps: int(dec.SampleRate) * int(dec.BitDepth) * int(dec.NumChans) / 1000,
		Lossless:    true,
	}

	pcmBytes := st.Size() - 44 // canonical RIFF header
	if pcmBytes < 0 {
		pcmBytes = 0
	}
	bytesPerFrame := int64(dec.BitDepth/8) * int64(dec.NumChans)
	if bytesPerFrame > 0 {
		p.DurationSec = float64(pcmBytes/bytesPerFrame) / float64(dec.SampleRate)
	}

	return p, nil
}

// probeM4A scans the MP4 box tree for the movie header and the sample
// description, distinguishing ALAC from AAC in the same container
func probeM4A(path string) (*Properties, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open %s: %v", util.ErrIO, path, err)
	}
	defer f.Close()

	moov, err := readTopLevelBox(f, "moov")
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse m4a %s: %v", util.ErrMetadata, path, err)
	}

	p := &Properties{Format: "aac"}

	// Movie duration from mvhd (timescale + duration)
	if body := findBox(moov, "mvhd"); len(body) >= 20 {
		if body[0] == 0 {
			timescale := binary.BigEndian.Uint32(body[12:16])
			dur := binary.BigEndian.Uint32(body[16:20])
			if timescale > 0 {
				p.DurationSec = float64(dur) / float64(timescale)
			}
		} else if len(body) >= 32 {
			// Version 1 uses 64-bit times
			timescale := binary.BigEndian.Uint32(body[20:24])
			dur := binary.BigEndian.Uint64(body[24:32])
			if timescale > 0 {
				p.DurationSec = float64(dur) / float64(timescale)
			}
		}
	}

	// Codec and sample rate from the first sample description entry
	if body := findBox(moov, "trak", "mdia", "minf", "stbl", "stsd"); len(body) >= 16 {
		entry := body[8:]
		codec := string(entry[4:8])
		if codec == "alac" {
			p.Format = "alac"
			p.Lossless = true
		}
		// AudioSampleEntry sample rate is 16.16 fixed point
		if len(entry) >= 36 {
			if sr := binary.BigEndian.Uint32(entry[32:36]) >> 16; sr > 0 {
				p.SampleRate = int(sr)
			}
		}
	}

	// Media timescale doubles as the sample rate for audio tracks
	if p.SampleRate == 0 {
		if body := findBox(moov, "trak", "mdia", "mdhd"); len(body) >= 16 {
			if body[0] == 0 {
				p.SampleRate = int(binary.BigEndian.Uint32(body[12:16]))
			} else if len(body) >= 24 {
				p.SampleRate = int(binary.BigEndian.Uint32(body[20:24]))
			}
		}
	}

	if p.DurationSec > 0 {
		if st, err := f.Stat(); err == nil {
			p.BitrateKbps = int(float64(st.Size()*8)/p.DurationSec) / 1000
		}
	}

	return p, nil
}

// maxBoxSize caps how much of a single box gets buffered. The moov box
// of an audio file is small; anything larger is not worth parsing.
const maxBoxSize = 64 << 20

// readTopLevelBox scans the top-level boxes of an MP4 file and returns
// the body of the first box with the wanted type
func readTopLevelBox(f *os.File, want string) ([]byte, error) {
	for {
		var head [8]byte
		if _, err := io.ReadFull(f, head[:]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil, fmt.Errorf("%s box not found", want)
			}
			return nil, err
		}

		size := int64(binary.BigEndian.Uint32(head[0:4]))
		name := string(head[4:8])
		headerLen := int64(8)

		if size == 1 {
			// 64-bit extended size
			var ext [8]byte
			if _, err := io.ReadFull(f, ext[:]); err != nil {
				return nil, err
			}
			size = int64(binary.BigEndian.Uint64(ext[:]))
			headerLen = 16
		}
		if size < headerLen {
			return nil, fmt.Errorf("invalid box size %d", size)
		}

		if name == want {
			if size-headerLen > maxBoxSize {
				return nil, fmt.Errorf("%s box too large", want)
			}
			body := make([]byte, size-headerLen)
			if _, err := io.ReadFull(f, body); err != nil {
				return nil, err
			}
			return body, nil
		}

		if _, err := f.Seek(size-headerLen, io.SeekCurrent); err != nil {
			return nil, err
		}
	}
}

// childBox returns the body of the first direct child box of the given
// type, or nil
func childBox(buf []byte, typ string) []byte {
	for len(buf) >= 8 {
		size := binary.BigEndian.Uint32(buf[0:4])
		name := string(buf[4:8])
		if size < 8 || int64(size) > int64(len(buf)) {
			return nil
		}
		if name == typ {
			return buf[8:size]
		}
		buf = buf[size:]
	}
	return nil
}

// findBox descends a chain of nested box types and returns the body of
// the innermost one, or nil
func findBox(buf []byte, path ...string) []byte {
	for _, typ := range path {
		buf = childBox(buf, typ)
		if buf == nil {
			return nil
		}
	}
	return buf
}
