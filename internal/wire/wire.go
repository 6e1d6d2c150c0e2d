// Package wire implements the byte-level framing cmd/dqlite-gw uses to
// carry gwproto.Request and gwproto.Response values over a TCP
// connection: a big-endian uint32 length prefix followed by a
// gob-encoded payload, optionally zstd-compressed.
//
// This is deliberately NOT the real dqlite wire protocol described by
// github.com/canonical/dqlite (that protocol's header/tuple encoding
// is a fixed binary layout the spec places outside this repository's
// scope — see SPEC_FULL.md §11.4). It exists so cmd/dqlite-gw has a
// runnable transport to drive package gateway over a real socket.
package wire

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"

	"github.com/zcourts/dqlite/internal/msgcodec"
)

// maxFrameSize bounds a single frame so a corrupt or hostile length
// prefix can't cause an unbounded allocation.
const maxFrameSize = 64 << 20 // 64 MiB

// Conn frames gob-encoded values over an underlying stream connection.
type Conn struct {
	r *bufio.Reader
	w io.Writer

	compress msgcodec.Compression
}

// NewConn wraps rw for framed read/write. When compress is
// msgcodec.CompressionZstd, every outgoing frame is compressed and
// every incoming frame is assumed to be compressed the same way.
func NewConn(rw io.ReadWriter, compress msgcodec.Compression) *Conn {
	return &Conn{r: bufio.NewReader(rw), w: rw, compress: compress}
}

// WriteValue gob-encodes v and writes it as one length-prefixed frame.
func (c *Conn) WriteValue(v any) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return fmt.Errorf("wire: encode: %w", err)
	}

	payload := buf.Bytes()
	if c.compress == msgcodec.CompressionZstd {
		payload, _ = msgcodec.Compress(payload)
	}

	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := c.w.Write(header[:]); err != nil {
		return fmt.Errorf("wire: write header: %w", err)
	}
	if _, err := c.w.Write(payload); err != nil {
		return fmt.Errorf("wire: write payload: %w", err)
	}
	return nil
}

// ReadValue reads one length-prefixed frame and gob-decodes it into v.
func (c *Conn) ReadValue(v any) error {
	var header [4]byte
	if _, err := io.ReadFull(c.r, header[:]); err != nil {
		return err
	}
	n := binary.BigEndian.Uint32(header[:])
	if n > maxFrameSize {
		return fmt.Errorf("wire: frame of %d bytes exceeds limit", n)
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(c.r, payload); err != nil {
		return fmt.Errorf("wire: read payload: %w", err)
	}

	if c.compress == msgcodec.CompressionZstd {
		decompressed, err := msgcodec.Decompress(payload, msgcodec.CompressionZstd)
		if err != nil {
			return fmt.Errorf("wire: decompress: %w", err)
		}
		payload = decompressed
	}

	return gob.NewDecoder(bytes.NewReader(payload)).Decode(v)
}
