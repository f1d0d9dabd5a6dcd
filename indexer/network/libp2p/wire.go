package libp2p

import (
	"encoding/binary"
	"io"

	streamhelpers "github.com/libp2p/go-libp2p-core/helpers"
	corenet "github.com/libp2p/go-libp2p-core/network"
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
)

// maxMessageSize bounds a single frame; generous enough for a 32-block
// range response encoded as MessagePack.
const maxMessageSize = 10 << 20

// writeMsg encodes v as MessagePack and writes it to s as a
// length-prefixed frame (4-byte big-endian length, then payload).
func writeMsg(s corenet.Stream, v interface{}) error {
	payload, err := msgpack.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "could not encode message")
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := s.Write(lenBuf[:]); err != nil {
		return errors.Wrap(err, "could not write frame length")
	}
	if _, err := s.Write(payload); err != nil {
		return errors.Wrap(err, "could not write frame payload")
	}
	return nil
}

// readMsg reads one length-prefixed MessagePack frame from s into dst.
func readMsg(s corenet.Stream, dst interface{}) error {
	var lenBuf [4]byte
	if _, err := io.ReadFull(s, lenBuf[:]); err != nil {
		return errors.Wrap(err, "could not read frame length")
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > maxMessageSize {
		return errors.Errorf("frame of %d bytes exceeds maximum %d", n, maxMessageSize)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(s, buf); err != nil {
		return errors.Wrap(err, "could not read frame payload")
	}
	if err := msgpack.Unmarshal(buf, dst); err != nil {
		return errors.Wrap(err, "could not decode frame")
	}
	return nil
}

// closeWriteAndDrain half-closes the write side then drains and closes,
// the same stream-hygiene helper the teacher's sync package uses via
// go-libp2p-core/helpers.
func closeWriteAndDrain(s corenet.Stream) {
	_ = s.CloseWrite()
	_ = streamhelpers.FullClose(s)
}
