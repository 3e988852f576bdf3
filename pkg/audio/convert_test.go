package audio_test

import (
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/MrWong99/opuscodec/pkg/audio"
)

// samplesToBytes converts a slice of int16 samples to little-endian byte representation.
func samplesToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

// bytesToSamples converts a little-endian byte slice to int16 samples.
func bytesToSamples(b []byte) []int16 {
	samples := make([]int16, len(b)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return samples
}

func assertSamples(t *testing.T, got, want []int16) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: got %d, want %d", i, got[i], want[i])
		}
	}
}

func TestInt16sRoundTrip(t *testing.T) {
	want := []int16{0, 1, -1, 32767, -32768, 1234}
	b := audio.Int16sToBytes(want)
	if len(b) != len(want)*2 {
		t.Fatalf("byte length: got %d, want %d", len(b), len(want)*2)
	}
	assertSamples(t, bytesToSamples(b), want)
	assertSamples(t, audio.BytesToInt16s(b), want)
}

func TestBytesToInt16s_OddTrailingByte(t *testing.T) {
	b := append(samplesToBytes([]int16{7, -7}), 0xff)
	assertSamples(t, audio.BytesToInt16s(b), []int16{7, -7})
}

func TestMonoToStereo(t *testing.T) {
	stereo := audio.MonoToStereo(samplesToBytes([]int16{100, 200, 300}))
	assertSamples(t, bytesToSamples(stereo), []int16{100, 100, 200, 200, 300, 300})
}

func TestStereoToMono(t *testing.T) {
	// Two stereo frames: L=100,R=200 and L=-100,R=-200
	mono := audio.StereoToMono(samplesToBytes([]int16{100, 200, -100, -200}))
	assertSamples(t, bytesToSamples(mono), []int16{150, -150})
}

func TestStereoToMono_Extremes(t *testing.T) {
	mono := audio.StereoToMono(samplesToBytes([]int16{32767, 32767, -32768, -32768}))
	assertSamples(t, bytesToSamples(mono), []int16{32767, -32768})
}

func TestResample16(t *testing.T) {
	tests := []struct {
		name     string
		in       []int16
		channels int
		src, dst int
		wantLen  int
	}{
		{"same rate", []int16{1, 2, 3}, 1, 48000, 48000, 3},
		{"mono upsample 3x", []int16{1000, 2000}, 1, 16000, 48000, 6},
		{"mono downsample 3x", []int16{100, 200, 300, 400, 500, 600}, 1, 48000, 16000, 2},
		{"stereo upsample 3x", []int16{100, 200, 300, 400}, 2, 16000, 48000, 12},
		{"invalid rate", []int16{1, 2}, 1, 0, 48000, 2},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := bytesToSamples(audio.Resample16(samplesToBytes(tc.in), tc.channels, tc.src, tc.dst))
			if len(got) != tc.wantLen {
				t.Fatalf("got %d samples, want %d", len(got), tc.wantLen)
			}
		})
	}
}

func TestResample16_InterpolatesPerChannel(t *testing.T) {
	// L ramps up, R stays constant; channels must not bleed into each other.
	in := samplesToBytes([]int16{0, 500, 3000, 500})
	got := bytesToSamples(audio.Resample16(in, 2, 8000, 16000))
	if len(got) != 8 {
		t.Fatalf("got %d samples, want 8", len(got))
	}
	if got[0] != 0 || got[2] != 1500 {
		t.Errorf("left channel: got %d, %d; want 0, 1500", got[0], got[2])
	}
	for i := 1; i < len(got); i += 2 {
		if got[i] != 500 {
			t.Errorf("right sample %d: got %d, want 500", i, got[i])
		}
	}
}

func TestConverter_NoOp(t *testing.T) {
	f := audio.Format{SampleRate: 48000, Channels: 2}
	conv := audio.Converter{From: f, To: f}
	in := samplesToBytes([]int16{100, 200})
	out, err := conv.Convert(in)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if &out[0] != &in[0] {
		t.Error("expected same slice for matching format")
	}
}

func TestConverter_FullConversion(t *testing.T) {
	// 16 kHz mono → 48 kHz stereo
	conv := audio.Converter{
		From: audio.Format{SampleRate: 16000, Channels: 1},
		To:   audio.Format{SampleRate: 48000, Channels: 2},
	}
	out, err := conv.Convert(samplesToBytes([]int16{1000, 2000}))
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	got := bytesToSamples(out)
	if len(got) != 12 {
		t.Fatalf("got %d samples, want 12", len(got))
	}
	if got[0] != 1000 || got[1] != 1000 {
		t.Errorf("first frame: got %d/%d, want 1000/1000", got[0], got[1])
	}
}

func TestConverter_Misaligned(t *testing.T) {
	conv := audio.Converter{
		From: audio.Format{SampleRate: 48000, Channels: 2},
		To:   audio.Format{SampleRate: 48000, Channels: 1},
	}
	_, err := conv.Convert([]byte{1, 2, 3, 4, 5, 6})
	if !errors.Is(err, audio.ErrMisaligned) {
		t.Fatalf("got %v, want ErrMisaligned", err)
	}
}

func TestConverter_UnsupportedChannels(t *testing.T) {
	conv := audio.Converter{
		From: audio.Format{SampleRate: 48000, Channels: 6},
		To:   audio.Format{SampleRate: 48000, Channels: 2},
	}
	if _, err := conv.Convert(make([]byte, 24)); err == nil {
		t.Fatal("expected error for 6ch → stereo")
	}
}

func TestFormat(t *testing.T) {
	f := audio.Format{SampleRate: 48000, Channels: 2}
	if got := f.FrameBytes(20 * time.Millisecond); got != 3840 {
		t.Errorf("FrameBytes(20ms) = %d, want 3840", got)
	}
	if got := f.Duration(3840); got != 20*time.Millisecond {
		t.Errorf("Duration(3840) = %v, want 20ms", got)
	}
	if got := f.String(); got != "48000Hz stereo" {
		t.Errorf("String() = %q", got)
	}
	if got := (audio.Format{}).Duration(100); got != 0 {
		t.Errorf("zero format Duration = %v, want 0", got)
	}
}

func TestSilence(t *testing.T) {
	pcm := audio.Silence(audio.Format{SampleRate: 16000, Channels: 1}, 10*time.Millisecond)
	if len(pcm) != 320 {
		t.Fatalf("len = %d, want 320", len(pcm))
	}
	for i, b := range pcm {
		if b != 0 {
			t.Fatalf("byte %d = %d, want 0", i, b)
		}
	}
}

func TestChunk(t *testing.T) {
	pcm := []byte{1, 2, 3, 4, 5, 6, 7}

	frames := audio.Chunk(pcm, 3, false)
	if len(frames) != 2 {
		t.Fatalf("unpadded: got %d frames, want 2", len(frames))
	}

	frames = audio.Chunk(pcm, 3, true)
	if len(frames) != 3 {
		t.Fatalf("padded: got %d frames, want 3", len(frames))
	}
	last := frames[2]
	if len(last) != 3 || last[0] != 7 || last[1] != 0 || last[2] != 0 {
		t.Errorf("padded tail = %v, want [7 0 0]", last)
	}

	if got := audio.Chunk(pcm, 0, true); got != nil {
		t.Errorf("frameBytes 0: got %v, want nil", got)
	}
}
