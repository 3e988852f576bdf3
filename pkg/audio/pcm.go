package audio

import "time"

// Int16sToBytes converts interleaved samples to little-endian bytes.
func Int16sToBytes(pcm []int16) []byte {
	b := make([]byte, len(pcm)*bytesPerSample)
	for i, s := range pcm {
		b[i*2] = byte(s)
		b[i*2+1] = byte(s >> 8)
	}
	return b
}

// BytesToInt16s converts little-endian bytes to samples. A trailing odd byte
// is ignored.
func BytesToInt16s(b []byte) []int16 {
	pcm := make([]int16, len(b)/bytesPerSample)
	for i := range pcm {
		pcm[i] = int16(b[i*2]) | int16(b[i*2+1])<<8
	}
	return pcm
}

// Silence returns d worth of zeroed PCM in f.
func Silence(f Format, d time.Duration) []byte {
	return make([]byte, f.FrameBytes(d))
}

// Chunk splits pcm into consecutive frames of frameBytes bytes. The returned
// frames alias pcm except for a zero-padded copy of the final partial frame,
// which is only produced when pad is true and dropped otherwise.
func Chunk(pcm []byte, frameBytes int, pad bool) [][]byte {
	if frameBytes <= 0 {
		return nil
	}
	frames := make([][]byte, 0, len(pcm)/frameBytes+1)
	for len(pcm) >= frameBytes {
		frames = append(frames, pcm[:frameBytes:frameBytes])
		pcm = pcm[frameBytes:]
	}
	if len(pcm) > 0 && pad {
		last := make([]byte, frameBytes)
		copy(last, pcm)
		frames = append(frames, last)
	}
	return frames
}
