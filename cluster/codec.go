package cluster

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// maxFrameSize bounds inbound frames so a corrupt length prefix cannot make
// a receiver allocate unbounded memory.
const maxFrameSize = 4 << 20

// writeFrame encodes a batch of messages as a length-prefixed msgpack frame.
func writeFrame(w io.Writer, msgs []Message) error {
	body, err := msgpack.Marshal(msgs)
	if err != nil {
		return fmt.Errorf("cluster: encode frame: %w", err)
	}
	if len(body) > maxFrameSize {
		return fmt.Errorf("cluster: frame too large: %d bytes", len(body))
	}

	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(body)))

	if _, err := w.Write(prefix[:]); err != nil {
		return err
	}
	_, err = w.Write(body)
	return err
}

// readFrame decodes one length-prefixed msgpack frame. It returns io.EOF
// when the peer closed the connection cleanly between frames.
func readFrame(r io.Reader) ([]Message, error) {
	var prefix [4]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return nil, err
	}

	size := binary.BigEndian.Uint32(prefix[:])
	if size > maxFrameSize {
		return nil, fmt.Errorf("cluster: frame too large: %d bytes", size)
	}

	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}

	var msgs []Message
	if err := msgpack.Unmarshal(body, &msgs); err != nil {
		return nil, fmt.Errorf("cluster: decode frame: %w", err)
	}
	return msgs, nil
}
