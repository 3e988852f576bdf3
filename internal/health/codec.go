package health

import (
	"context"
	"fmt"
	"time"

	"github.com/MrWong99/opuscodec/pkg/audio"
	"github.com/MrWong99/opuscodec/pkg/opus"
)

// probeFrame is the duration of the silent frame round-tripped by the codec
// probe.
const probeFrame = 20 * time.Millisecond

// CodecChecker reports ready when a fresh session from newSession can create
// both an encoder and a decoder and round-trip one frame of silence. The
// session is closed afterwards.
func CodecChecker(newSession func() *opus.Session) Checker {
	return Checker{
		Name: "codec",
		Check: func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			s := newSession()
			defer s.Close()
			if err := s.EnsureEncoder(); err != nil {
				return fmt.Errorf("encoder (%d Hz, %d ch): %w", s.SampleRate(), s.Channels(), err)
			}
			if err := s.EnsureDecoder(); err != nil {
				return fmt.Errorf("decoder (%d Hz, %d ch): %w", s.SampleRate(), s.Channels(), err)
			}
			pkt, err := s.Encode(audio.Silence(audio.Format{SampleRate: s.SampleRate(), Channels: s.Channels()}, probeFrame))
			if err != nil {
				return fmt.Errorf("encode probe: %w", err)
			}
			if _, err := s.Decode(pkt); err != nil {
				return fmt.Errorf("decode probe: %w", err)
			}
			return nil
		},
	}
}
