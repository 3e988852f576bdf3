package transcode

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/MrWong99/opuscodec/internal/config"
	"github.com/MrWong99/opuscodec/internal/observe"
	"github.com/MrWong99/opuscodec/pkg/audio"
	"github.com/MrWong99/opuscodec/pkg/opus"
	"github.com/MrWong99/opuscodec/pkg/opus/mock"
)

// newTestTranscoder returns a Transcoder on a mock backend with metrics
// collected by a ManualReader.
func newTestTranscoder(t *testing.T, b *mock.Backend, codec config.CodecConfig, opts ...Option) (*Transcoder, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return New(b, codec, append([]Option{WithMetrics(m)}, opts...)...), reader
}

// counter returns the value of the int64 sum data point of name whose
// attributes contain every pair in match, or 0 if there is none.
func counter(t *testing.T, reader *sdkmetric.ManualReader, name string, match map[string]string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("metric %q is not an int64 sum", name)
			}
			for _, dp := range sum.DataPoints {
				hits := 0
				for _, kv := range dp.Attributes.ToSlice() {
					if v, ok := match[string(kv.Key)]; ok && kv.Value.AsString() == v {
						hits++
					}
				}
				if hits == len(match) {
					return dp.Value
				}
			}
		}
	}
	return 0
}

func readPackets(t *testing.T, dump []byte) [][]byte {
	t.Helper()
	var out [][]byte
	pr := NewPacketReader(bytes.NewReader(dump))
	for {
		p, err := pr.ReadPacket()
		if err == io.EOF {
			return out
		}
		if err != nil {
			t.Fatalf("ReadPacket: %v", err)
		}
		out = append(out, p)
	}
}

func writePackets(t *testing.T, packets ...[]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	pw := NewPacketWriter(&buf)
	for _, p := range packets {
		if err := pw.WritePacket(p); err != nil {
			t.Fatal(err)
		}
	}
	if err := pw.Flush(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestEncode_ChunksAndPadsFinalFrame(t *testing.T) {
	b := &mock.Backend{}
	tr, reader := newTestTranscoder(t, b, config.Default().Codec)

	pcm := make([]byte, 3*1920+100)
	for i := range pcm {
		pcm[i] = byte(i)
	}
	var out bytes.Buffer
	stats, err := tr.Encode(context.Background(), bytes.NewReader(pcm), &out)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	if stats.Frames != 4 || stats.PCMBytes != int64(len(pcm)) {
		t.Errorf("stats = %+v, want 4 frames and %d pcm bytes", stats, len(pcm))
	}
	packets := readPackets(t, out.Bytes())
	if len(packets) != 4 {
		t.Fatalf("got %d packets, want 4", len(packets))
	}
	enc := b.Encoders[0]
	for i, fs := range enc.FrameSizes {
		if fs != 960 {
			t.Errorf("frame %d size = %d, want 960", i, fs)
		}
	}
	if enc.OutCaps[0] != 4000 {
		t.Errorf("max data bytes = %d, want 4000", enc.OutCaps[0])
	}
	if got := counter(t, reader, "opus.frames", map[string]string{"op": "encode"}); got != 4 {
		t.Errorf("frames metric = %d, want 4", got)
	}
	if got := counter(t, reader, "opus.active_sessions", nil); got != 0 {
		t.Errorf("active sessions = %d after Encode, want 0", got)
	}
	if enc.Destroyed != 1 {
		t.Errorf("encoder destroyed %d times, want 1", enc.Destroyed)
	}
}

func TestEncode_PaddedFrameIsZeroFilled(t *testing.T) {
	var last []int16
	b := &mock.Backend{EncodeFunc: func(pcm []int16, _ int, out []byte) int {
		last = append(last[:0], pcm...)
		out[0] = 1
		return 1
	}}
	tr, _ := newTestTranscoder(t, b, config.Default().Codec)

	pcm := bytes.Repeat([]byte{0x01, 0x00}, 10)
	if _, err := tr.Encode(context.Background(), bytes.NewReader(pcm), io.Discard); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(last) != 960 {
		t.Fatalf("padded frame has %d samples, want 960", len(last))
	}
	if last[9] != 1 || last[10] != 0 || last[959] != 0 {
		t.Errorf("padded frame = %v..., want 10 ones then zeros", last[:12])
	}
}

func TestEncode_EmptyInput(t *testing.T) {
	b := &mock.Backend{}
	tr, _ := newTestTranscoder(t, b, config.Default().Codec)

	var out bytes.Buffer
	stats, err := tr.Encode(context.Background(), strings.NewReader(""), &out)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if stats.Frames != 0 || out.Len() != 0 {
		t.Errorf("stats = %+v, output %d bytes; want nothing", stats, out.Len())
	}
	if b.EncoderCreates != 0 {
		t.Error("encoder created for empty input without controls")
	}
}

func TestEncode_AppliesBitrateAndCTLs(t *testing.T) {
	b := &mock.Backend{}
	codec := config.Default().Codec
	codec.Bitrate = 64000
	codec.EncoderCTLs = []config.CTLSetting{{Name: "complexity", Value: 5}, {Request: opus.CtlSetDTX, Value: 1}}
	codec.DecoderCTLs = []config.CTLSetting{{Name: "gain", Value: 100}}
	tr, _ := newTestTranscoder(t, b, codec)

	if _, err := tr.Encode(context.Background(), bytes.NewReader(make([]byte, 1920)), io.Discard); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	want := [][2]int{{opus.CtlSetBitrate, 64000}, {opus.CtlSetComplexity, 5}, {opus.CtlSetDTX, 1}}
	got := b.Encoders[0].Ctls
	if len(got) != len(want) {
		t.Fatalf("ctls = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ctl %d = %v, want %v", i, got[i], want[i])
		}
	}
	if b.DecoderCreates != 0 {
		t.Error("encode job created a decoder")
	}
}

func TestEncode_RejectedBitrate(t *testing.T) {
	b := &mock.Backend{CtlStatus: opus.StatusBadArg}
	codec := config.Default().Codec
	codec.Bitrate = 64000
	tr, reader := newTestTranscoder(t, b, codec)

	_, err := tr.Encode(context.Background(), bytes.NewReader(make([]byte, 1920)), io.Discard)
	if !errors.Is(err, opus.ErrInvalidBitrate) {
		t.Fatalf("got %v, want ErrInvalidBitrate", err)
	}
	if got := counter(t, reader, "opus.errors", map[string]string{"op": "encode", "kind": "ctl"}); got != 1 {
		t.Errorf("ctl errors = %d, want 1", got)
	}
	if got := counter(t, reader, "opus.active_sessions", nil); got != 0 {
		t.Errorf("active sessions = %d, want 0", got)
	}
}

func TestEncode_EncoderUnavailable(t *testing.T) {
	b := &mock.Backend{EncoderStatus: opus.StatusBadArg}
	codec := config.Default().Codec
	codec.SampleRate = 44100
	tr, reader := newTestTranscoder(t, b, codec)

	_, err := tr.Encode(context.Background(), bytes.NewReader(make([]byte, 1764)), io.Discard)
	if !errors.Is(err, opus.ErrEncoderUnavailable) {
		t.Fatalf("got %v, want ErrEncoderUnavailable", err)
	}
	if got := counter(t, reader, "opus.errors", map[string]string{"op": "encode", "kind": "unavailable"}); got != 1 {
		t.Errorf("unavailable errors = %d, want 1", got)
	}
}

func TestEncode_ConvertsPCMFormat(t *testing.T) {
	b := &mock.Backend{}
	tr, _ := newTestTranscoder(t, b, config.Default().Codec,
		WithPCMFormat(audio.Format{SampleRate: 24000, Channels: 2}))

	// 20 ms of 24 kHz stereo becomes 20 ms of 48 kHz mono.
	stats, err := tr.Encode(context.Background(), bytes.NewReader(make([]byte, 480*2*2)), io.Discard)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if stats.Frames != 1 {
		t.Errorf("frames = %d, want 1", stats.Frames)
	}
	if fs := b.Encoders[0].FrameSizes; len(fs) != 1 || fs[0] != 960 {
		t.Errorf("frame sizes = %v, want [960]", fs)
	}
}

func TestEncode_Cancelled(t *testing.T) {
	tr, _ := newTestTranscoder(t, &mock.Backend{}, config.Default().Codec)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := tr.Encode(ctx, bytes.NewReader(make([]byte, 1920)), io.Discard)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
}

func TestDecode(t *testing.T) {
	b := &mock.Backend{}
	codec := config.Default().Codec
	codec.DecoderCTLs = []config.CTLSetting{{Name: "gain", Value: -256}}
	tr, reader := newTestTranscoder(t, b, codec)

	var out bytes.Buffer
	dump := writePackets(t, []byte{0x08, 1}, []byte{0x08, 2}, []byte{0x08, 3})
	stats, err := tr.Decode(context.Background(), bytes.NewReader(dump), &out)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if stats.Frames != 3 || out.Len() != 3*1920 || stats.PCMBytes != 3*1920 || stats.PacketBytes != 6 {
		t.Errorf("stats = %+v, output %d bytes", stats, out.Len())
	}
	dec := b.Decoders[0]
	if len(dec.Ctls) != 1 || dec.Ctls[0] != [2]int{opus.CtlSetGain, -256} {
		t.Errorf("decoder ctls = %v", dec.Ctls)
	}
	for i, fec := range dec.FEC {
		if fec {
			t.Errorf("packet %d decoded with FEC", i)
		}
	}
	if dec.PCMCaps[0] != 4000 {
		t.Errorf("pcm capacity = %d, want 4000", dec.PCMCaps[0])
	}
	if b.EncoderCreates != 0 {
		t.Error("decode job created an encoder")
	}
	if got := counter(t, reader, "opus.packet.bytes", map[string]string{"op": "decode"}); got != 6 {
		t.Errorf("packet bytes metric = %d, want 6", got)
	}
}

func TestDecode_ConvertsToPCMFormat(t *testing.T) {
	tr, _ := newTestTranscoder(t, &mock.Backend{}, config.Default().Codec,
		WithPCMFormat(audio.Format{Channels: 2}))

	var out bytes.Buffer
	if _, err := tr.Decode(context.Background(), bytes.NewReader(writePackets(t, []byte{0x08})), &out); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out.Len() != 960*2*2 {
		t.Errorf("output = %d bytes, want 3840 (48 kHz stereo)", out.Len())
	}
}

func TestDecode_InvalidPacket(t *testing.T) {
	tr, reader := newTestTranscoder(t, &mock.Backend{}, config.Default().Codec)

	dump := writePackets(t, []byte{0x08}, []byte{0xff, 0x00})
	stats, err := tr.Decode(context.Background(), bytes.NewReader(dump), io.Discard)
	if !errors.Is(err, opus.ErrInvalidPacket) {
		t.Fatalf("got %v, want ErrInvalidPacket", err)
	}
	if !strings.Contains(err.Error(), "packet 1") {
		t.Errorf("error should name the packet index: %v", err)
	}
	if stats.Frames != 1 {
		t.Errorf("frames = %d, want 1", stats.Frames)
	}
	if got := counter(t, reader, "opus.errors", map[string]string{"op": "decode", "kind": "invalid_packet"}); got != 1 {
		t.Errorf("invalid_packet errors = %d, want 1", got)
	}
}

func TestDecode_TruncatedDump(t *testing.T) {
	tr, _ := newTestTranscoder(t, &mock.Backend{}, config.Default().Codec)

	dump := append(writePackets(t, []byte{0x08}), 0x00, 0x05, 0x01)
	_, err := tr.Decode(context.Background(), bytes.NewReader(dump), io.Discard)
	if !errors.Is(err, ErrTruncatedPacket) {
		t.Fatalf("got %v, want ErrTruncatedPacket", err)
	}
}

func TestUpdate_AppliesToNextJob(t *testing.T) {
	b := &mock.Backend{}
	tr, _ := newTestTranscoder(t, b, config.Default().Codec)

	codec := config.Default().Codec
	codec.Channels = 2
	codec.Application = "audio"
	tr.Update(codec, audio.Format{})

	if _, err := tr.Encode(context.Background(), bytes.NewReader(make([]byte, 3840)), io.Discard); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	enc := b.Encoders[0]
	if enc.Channels != 2 || enc.Application != opus.ApplicationAudio {
		t.Errorf("encoder created with %d channels, %v", enc.Channels, enc.Application)
	}
	if s := tr.NewSession(); s.Channels() != 2 {
		t.Errorf("NewSession channels = %d, want 2", s.Channels())
	}
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{opus.ErrEncoderUnavailable, "unavailable"},
		{opus.ErrDecoderUnavailable, "unavailable"},
		{opus.ErrSessionClosed, "closed"},
		{&opus.ControlError{Request: opus.CtlSetBitrate, Status: opus.StatusBadArg}, "ctl"},
		{&opus.EncodeError{Status: opus.StatusOK}, "empty"},
		{&opus.EncodeError{Status: opus.StatusBufferTooSmall}, "buffer_too_small"},
		{&opus.DecodeError{Status: opus.StatusInvalidPacket}, "invalid_packet"},
		{&opus.DecodeError{Status: opus.Status(-99)}, "unknown"},
		{errors.New("disk full"), "other"},
	}
	for _, tc := range tests {
		if got := errorKind(tc.err); got != tc.want {
			t.Errorf("errorKind(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
