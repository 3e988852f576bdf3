package transcode

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// MaxPacketSize is the largest packet the dump format can frame.
const MaxPacketSize = 1<<16 - 1

// ErrTruncatedPacket is returned by [PacketReader.ReadPacket] when the input
// ends inside a length prefix or a packet body.
var ErrTruncatedPacket = errors.New("transcode: truncated packet")

// PacketWriter writes packets as a sequence of 2-byte big-endian lengths
// each followed by the packet bytes. Call Flush when done.
type PacketWriter struct {
	w   *bufio.Writer
	hdr [2]byte
}

// NewPacketWriter returns a PacketWriter that buffers writes to w.
func NewPacketWriter(w io.Writer) *PacketWriter {
	return &PacketWriter{w: bufio.NewWriter(w)}
}

// WritePacket frames and writes p. Empty packets and packets larger than
// [MaxPacketSize] are rejected.
func (pw *PacketWriter) WritePacket(p []byte) error {
	if len(p) == 0 || len(p) > MaxPacketSize {
		return fmt.Errorf("transcode: cannot frame packet of %d bytes", len(p))
	}
	binary.BigEndian.PutUint16(pw.hdr[:], uint16(len(p)))
	if _, err := pw.w.Write(pw.hdr[:]); err != nil {
		return err
	}
	_, err := pw.w.Write(p)
	return err
}

// Flush writes any buffered data to the underlying writer.
func (pw *PacketWriter) Flush() error {
	return pw.w.Flush()
}

// PacketReader reads packets written by [PacketWriter].
type PacketReader struct {
	r   *bufio.Reader
	hdr [2]byte
}

// NewPacketReader returns a PacketReader that buffers reads from r.
func NewPacketReader(r io.Reader) *PacketReader {
	return &PacketReader{r: bufio.NewReader(r)}
}

// ReadPacket returns the next packet. It returns [io.EOF] only at a clean
// packet boundary and [ErrTruncatedPacket] when the input stops mid-packet.
func (pr *PacketReader) ReadPacket() ([]byte, error) {
	if _, err := io.ReadFull(pr.r, pr.hdr[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrTruncatedPacket
		}
		return nil, err
	}
	p := make([]byte, binary.BigEndian.Uint16(pr.hdr[:]))
	if _, err := io.ReadFull(pr.r, p); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: want %d bytes", ErrTruncatedPacket, len(p))
		}
		return nil, err
	}
	return p, nil
}
