package audio

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrMisaligned is returned when a PCM buffer does not hold a whole number
// of interleaved frames.
var ErrMisaligned = errors.New("audio: pcm length is not a multiple of the frame size")

// Converter converts PCM between two formats. It logs once, on first use,
// when the formats differ. Create one per stream; it is not designed for
// shared use across goroutines.
type Converter struct {
	From Format
	To   Format

	warnOnce sync.Once
}

// Convert converts pcm from c.From to c.To. When the formats match, pcm is
// returned unchanged. Conversion resamples first, then converts channels.
// Only mono↔stereo channel conversion is supported.
func (c *Converter) Convert(pcm []byte) ([]byte, error) {
	if c.From.Channels <= 0 || len(pcm)%(c.From.Channels*bytesPerSample) != 0 {
		return nil, fmt.Errorf("%w: %d bytes, %s", ErrMisaligned, len(pcm), c.From)
	}
	if c.From == c.To {
		return pcm, nil
	}
	if c.From.Channels != c.To.Channels && (c.From.Channels > 2 || c.To.Channels > 2 || c.To.Channels <= 0) {
		return nil, fmt.Errorf("audio: cannot convert %s to %s", c.From, c.To)
	}

	c.warnOnce.Do(func() {
		slog.Warn("audio format mismatch: converting",
			"from", c.From.String(),
			"to", c.To.String(),
		)
	})

	out := pcm
	if c.From.SampleRate != c.To.SampleRate {
		out = Resample16(out, c.From.Channels, c.From.SampleRate, c.To.SampleRate)
	}
	switch {
	case c.From.Channels == 1 && c.To.Channels == 2:
		out = MonoToStereo(out)
	case c.From.Channels == 2 && c.To.Channels == 1:
		out = StereoToMono(out)
	}
	return out, nil
}

// MonoToStereo duplicates each mono sample into an L+R pair.
func MonoToStereo(pcm []byte) []byte {
	out := make([]byte, (len(pcm)/2)*4)
	for i := 0; i+1 < len(pcm); i += 2 {
		j := i * 2
		out[j], out[j+1] = pcm[i], pcm[i+1]
		out[j+2], out[j+3] = pcm[i], pcm[i+1]
	}
	return out
}

// StereoToMono averages each L+R pair. The average of two int16 values
// always fits in int16, so no clamping is needed.
func StereoToMono(pcm []byte) []byte {
	frames := len(pcm) / 4
	out := make([]byte, frames*2)
	for i := range frames {
		l := int32(sampleAt(pcm, i*2))
		r := int32(sampleAt(pcm, i*2+1))
		putSample(out, i, int16((l+r)/2))
	}
	return out
}

// Resample16 resamples interleaved 16-bit PCM with the given channel count
// from srcRate to dstRate using linear interpolation. Input is returned
// unchanged when the rates match or either rate is not positive.
func Resample16(pcm []byte, channels, srcRate, dstRate int) []byte {
	if srcRate <= 0 || dstRate <= 0 || channels <= 0 || srcRate == dstRate {
		return pcm
	}
	srcFrames := len(pcm) / (channels * bytesPerSample)
	if srcFrames == 0 {
		return pcm
	}
	dstFrames := int(int64(srcFrames) * int64(dstRate) / int64(srcRate))
	if dstFrames == 0 {
		return nil
	}

	out := make([]byte, dstFrames*channels*bytesPerSample)
	ratio := float64(srcRate) / float64(dstRate)

	for i := range dstFrames {
		pos := float64(i) * ratio
		idx := int(pos)
		frac := pos - float64(idx)
		next := min(idx+1, srcFrames-1)

		for ch := range channels {
			s0 := float64(sampleAt(pcm, idx*channels+ch))
			s1 := float64(sampleAt(pcm, next*channels+ch))
			putSample(out, i*channels+ch, int16(s0*(1-frac)+s1*frac))
		}
	}
	return out
}

// sampleAt returns the i-th little-endian sample of pcm.
func sampleAt(pcm []byte, i int) int16 {
	return int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
}

func putSample(pcm []byte, i int, s int16) {
	pcm[i*2] = byte(s)
	pcm[i*2+1] = byte(s >> 8)
}
