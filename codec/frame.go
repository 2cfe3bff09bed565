package codec

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"reflect"

	"github.com/fxamacker/cbor/v2"
	"github.com/multiformats/go-varint"
)

// DefaultFrameLimit bounds the payload of a single frame.
const DefaultFrameLimit = 16 << 20

var (
	// ErrFrameTooLarge is returned when a length prefix exceeds the limit.
	ErrFrameTooLarge = errors.New("frame exceeds size limit")
	// ErrNoMessage is returned when a stream ends without a non-empty frame.
	ErrNoMessage = errors.New("no message in stream")
)

var (
	encMode     cbor.EncMode
	decMode     cbor.DecMode
	genericMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("BUG: cbor encoder: %v", err))
	}
	decMode, err = cbor.DecOptions{
		DupMapKey: cbor.DupMapKeyEnforcedAPF,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("BUG: cbor decoder: %v", err))
	}
	// generic values are shaped like decoded JSON so that they can be checked
	// against a JSON schema before being trusted
	genericMode, err = cbor.DecOptions{
		DupMapKey:      cbor.DupMapKeyEnforcedAPF,
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("BUG: cbor generic decoder: %v", err))
	}
}

// Marshal encodes v as deterministic CBOR.
func Marshal(v any) ([]byte, error) {
	buf, err := encMode.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal cbor: %w", err)
	}
	return buf, nil
}

// Unmarshal decodes CBOR data into v.
func Unmarshal(data []byte, v any) error {
	if err := decMode.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal cbor: %w", err)
	}
	return nil
}

// UnmarshalGeneric decodes CBOR data into maps with string keys, slices and
// scalars.
func UnmarshalGeneric(data []byte) (any, error) {
	var v any
	if err := genericMode.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("unmarshal cbor: %w", err)
	}
	return v, nil
}

// Reader is what ReadFrame needs from a stream. bufio.Reader satisfies it.
type Reader interface {
	io.Reader
	io.ByteReader
}

// WriteFrame writes the unsigned varint length of payload followed by payload.
func WriteFrame(w io.Writer, payload []byte) error {
	prefix := varint.ToUvarint(uint64(len(payload)))
	if _, err := w.Write(append(prefix, payload...)); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// ReadFrame reads a single frame. io.EOF is returned as is when the stream ends
// before a length prefix; a stream that ends inside a frame is
// io.ErrUnexpectedEOF.
func ReadFrame(r Reader, limit int) ([]byte, error) {
	size, err := varint.ReadUvarint(r)
	switch {
	case errors.Is(err, io.EOF):
		return nil, io.EOF
	case err != nil:
		return nil, fmt.Errorf("read frame length: %w", err)
	}
	if size > uint64(limit) {
		return nil, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, size, limit)
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(r, buf); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("read frame payload (%d bytes): %w", size, err)
	}
	return buf, nil
}

// ReadMessage returns the payload of the first non-empty frame.
func ReadMessage(r Reader, limit int) ([]byte, error) {
	for {
		buf, err := ReadFrame(r, limit)
		switch {
		case errors.Is(err, io.EOF):
			return nil, ErrNoMessage
		case err != nil:
			return nil, err
		case len(buf) > 0:
			return buf, nil
		}
	}
}

// ReadFrames reads frames until the stream ends and returns the non-empty
// payloads in order.
func ReadFrames(r io.Reader, limit int) ([][]byte, error) {
	rd, ok := r.(Reader)
	if !ok {
		rd = bufio.NewReader(r)
	}
	var payloads [][]byte
	for {
		buf, err := ReadFrame(rd, limit)
		switch {
		case errors.Is(err, io.EOF):
			return payloads, nil
		case err != nil:
			return nil, err
		case len(buf) > 0:
			payloads = append(payloads, buf)
		}
	}
}
