package opus

// Backend creates native codec states. It is the only way a [Session]
// reaches the codec; implementations report failures with the codec's own
// [Status] values and never validate parameters themselves.
type Backend interface {
	// NewEncoder creates an encoder state. On failure the returned encoder
	// is nil and the status is non-OK.
	NewEncoder(sampleRate, channels int, app Application) (NativeEncoder, Status)

	// NewDecoder creates a decoder state. On failure the returned decoder
	// is nil and the status is non-OK.
	NewDecoder(sampleRate, channels int) (NativeDecoder, Status)
}

// NativeEncoder is an exclusively owned encoder state.
type NativeEncoder interface {
	// Encode compresses frameSize samples per channel from pcm into out and
	// returns the number of bytes written, or a negative [Status].
	Encode(pcm []int16, frameSize int, out []byte) int

	// Ctl applies a setter request.
	Ctl(request, value int) Status

	// CtlGet reads the value of a getter request.
	CtlGet(request int) (int, Status)

	// Destroy releases the state. Calling it more than once is a no-op.
	Destroy()
}

// NativeDecoder is an exclusively owned decoder state.
type NativeDecoder interface {
	// Decode decompresses data into pcm, which holds room for frameSize
	// samples per channel, and returns the number of samples per channel
	// decoded, or a negative [Status].
	Decode(data []byte, pcm []int16, frameSize int, fec bool) int

	// Ctl applies a setter request.
	Ctl(request, value int) Status

	// CtlGet reads the value of a getter request.
	CtlGet(request int) (int, Status)

	// Destroy releases the state. Calling it more than once is a no-op.
	Destroy()
}
