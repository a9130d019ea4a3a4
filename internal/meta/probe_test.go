package meta

import (
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/franz/music-librarian/internal/testaudio"
	"github.com/franz/music-librarian/internal/util"
)

func TestProbeMP3ConstantBitrate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cbr.mp3")
	testaudio.WriteMP3(t, path, "Queen", "Bohemian Rhapsody")

	p, err := Probe(path)
	if err != nil {
		t.Fatalf("Probe failed: %v", err)
	}
	if p.Format != "mp3" {
		t.Errorf("expected format mp3, got %q", p.Format)
	}
	if p.Vbr {
		t.Error("expected constant bitrate file to not be VBR")
	}
	if p.SampleRate != 44100 {
		t.Errorf("expected sample rate 44100, got %d", p.SampleRate)
	}
	// Sixteen 128 kbps frames; the payload average lands just under 128
	if p.BitrateKbps < 120 || p.BitrateKbps > 135 {
		t.Errorf("expected bitrate near 128, got %d", p.BitrateKbps)
	}
	if p.DurationSec < 0.3 || p.DurationSec > 0.6 {
		t.Errorf("expected duration near 0.42s, got %f", p.DurationSec)
	}
	if p.Lossless {
		t.Error("mp3 must not be lossless")
	}
}

func TestProbeMP3VariableBitrate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vbr.mp3")
	testaudio.WriteMP3(t, path, "Queen", "Bohemian Rhapsody", 128, 192, 128, 192, 128, 192)

	p, err := Probe(path)
	if err != nil {
		t.Fatalf("Probe failed: %v", err)
	}
	if !p.Vbr {
		t.Error("expected mixed frame bitrates to be detected as VBR")
	}
	if p.BitrateKbps < 140 || p.BitrateKbps > 180 {
		t.Errorf("expected averaged bitrate between 128 and 192, got %d", p.BitrateKbps)
	}
}

func TestProbeMP3NoFrames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "noise.mp3")
	testaudio.WriteFile(t, path, []byte("this is not an mpeg stream at all"))

	_, err := Probe(path)
	if err == nil {
		t.Fatal("expected error for file with no frames")
	}
	if !errors.Is(err, util.ErrMetadata) {
		t.Errorf("expected ErrMetadata, got %v", err)
	}
}

func TestProbeMissingFile(t *testing.T) {
	_, err := Probe(filepath.Join(t.TempDir(), "gone.mp3"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !errors.Is(err, util.ErrIO) {
		t.Errorf("expected ErrIO, got %v", err)
	}
}

func TestProbeWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	testaudio.WriteWAV(t, path, 2.0)

	p, err := Probe(path)
	if err != nil {
		t.Fatalf("Probe failed: %v", err)
	}
	if p.Format != "wav" {
		t.Errorf("expected format wav, got %q", p.Format)
	}
	if !p.Lossless {
		t.Error("expected wav to be lossless")
	}
	if p.SampleRate != 44100 {
		t.Errorf("expected sample rate 44100, got %d", p.SampleRate)
	}
	if math.Abs(p.DurationSec-2.0) > 0.01 {
		t.Errorf("expected duration 2.0s, got %f", p.DurationSec)
	}
	// 44100 Hz * 16 bit * 2 channels
	if p.BitrateKbps != 1411 {
		t.Errorf("expected bitrate 1411, got %d", p.BitrateKbps)
	}
}

func TestProbeWAVInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fake.wav")
	testaudio.WriteFile(t, path, []byte("RIFFxxxx not really a wave"))

	_, err := Probe(path)
	if err == nil {
		t.Fatal("expected error for invalid wav")
	}
	if !errors.Is(err, util.ErrMetadata) {
		t.Errorf("expected ErrMetadata, got %v", err)
	}
}

func TestProbeFLAC(t *testing.T) {
	path := filepath.Join(t.TempDir(), "song.flac")
	testaudio.WriteFLAC(t, path, []byte("payload"))

	p, err := Probe(path)
	if err != nil {
		t.Fatalf("Probe failed: %v", err)
	}
	if p.Format != "flac" {
		t.Errorf("expected format flac, got %q", p.Format)
	}
	if !p.Lossless {
		t.Error("expected flac to be lossless")
	}
	if p.SampleRate != 44100 {
		t.Errorf("expected sample rate 44100, got %d", p.SampleRate)
	}
	// 88200 samples at 44.1 kHz
	if math.Abs(p.DurationSec-2.0) > 0.01 {
		t.Errorf("expected duration 2.0s, got %f", p.DurationSec)
	}
}

func TestProbeFLACInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fake.flac")
	testaudio.WriteFile(t, path, []byte("fLaC but then garbage"))

	_, err := Probe(path)
	if err == nil {
		t.Fatal("expected error for invalid flac")
	}
	if !errors.Is(err, util.ErrMetadata) {
		t.Errorf("expected ErrMetadata, got %v", err)
	}
}

func TestProbeFallbackFormats(t *testing.T) {
	// Formats without a native prober report only what the extension
	// says; the file is never opened.
	tests := []struct {
		path     string
		format   string
		lossless bool
	}{
		{"a.ogg", "ogg", false},
		{"a.opus", "opus", false},
		{"a.ape", "ape", true},
		{"a.wma", "wma", false},
	}

	for _, tt := range tests {
		p, err := Probe(tt.path)
		if err != nil {
			t.Fatalf("Probe(%q) failed: %v", tt.path, err)
		}
		if p.Format != tt.format {
			t.Errorf("Probe(%q) format = %q, expected %q", tt.path, p.Format, tt.format)
		}
		if p.Lossless != tt.lossless {
			t.Errorf("Probe(%q) lossless = %v, expected %v", tt.path, p.Lossless, tt.lossless)
		}
		if p.BitrateKbps != 0 || p.DurationSec != 0 {
			t.Errorf("Probe(%q) expected zeroed properties, got %+v", tt.path, p)
		}
	}
}
