// Package ipc implements the framed block export stream.
//
// A stream is a sequence of frames, each a 4-byte big-endian payload length
// followed by a msgpack payload. Every payload is a map carrying a "type"
// field: "block" for each decoded block, then one "scan_result" frame once
// the scan is over.
package ipc

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/justapithecus/sphere2bin/types"
)

// Frame size constants.
const (
	// MaxPayloadSize is the maximum payload size (1 MiB). A block frame is at
	// most 64 KiB of data plus metadata.
	MaxPayloadSize = 1024 * 1024
	// LengthPrefixSize is the size of the length prefix in bytes.
	LengthPrefixSize = 4
	// MaxFrameSize is the maximum frame size, including length prefix.
	MaxFrameSize = MaxPayloadSize + LengthPrefixSize
)

// FrameErrorKind classifies frame errors.
type FrameErrorKind int

const (
	// FrameErrorPartial indicates a truncated or incomplete frame.
	FrameErrorPartial FrameErrorKind = iota
	// FrameErrorTooLarge indicates a frame exceeding MaxPayloadSize.
	FrameErrorTooLarge
	// FrameErrorDecode indicates a msgpack decoding error.
	FrameErrorDecode
)

func (k FrameErrorKind) String() string {
	switch k {
	case FrameErrorPartial:
		return "partial"
	case FrameErrorTooLarge:
		return "too_large"
	case FrameErrorDecode:
		return "decode"
	default:
		return fmt.Sprintf("FrameErrorKind(%d)", int(k))
	}
}

// FrameError represents a frame encoding or decoding error.
type FrameError struct {
	Kind FrameErrorKind
	Msg  string
	Err  error
}

func (e *FrameError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// IsFatal returns true if the stream cannot be read past this error.
// Partial and oversized frames lose framing; a decode error does not.
func (e *FrameError) IsFatal() bool {
	return e.Kind == FrameErrorPartial || e.Kind == FrameErrorTooLarge
}

// IsFatalFrameError returns true if the error is a fatal frame error.
func IsFatalFrameError(err error) bool {
	var frameErr *FrameError
	if errors.As(err, &frameErr) {
		return frameErr.IsFatal()
	}
	return false
}

// FrameEncoder writes length-prefixed msgpack frames to a stream.
// It is not safe for concurrent use.
type FrameEncoder struct {
	writer io.Writer
	frames int
}

// NewFrameEncoder creates a new frame encoder.
func NewFrameEncoder(w io.Writer) *FrameEncoder {
	return &FrameEncoder{writer: w}
}

// Frames returns the number of frames written so far.
func (e *FrameEncoder) Frames() int {
	return e.frames
}

// WriteBlock writes a block frame for rec.
func (e *FrameEncoder) WriteBlock(scanID string, rec *types.BlockRecord) error {
	return e.writeValue(&types.BlockFrame{
		Type:            types.BlockFrameType,
		ContractVersion: types.ContractVersion,
		ScanID:          scanID,
		Block:           *rec,
	})
}

// WriteScanResult writes the terminal scan result frame.
func (e *FrameEncoder) WriteScanResult(frame *types.ScanResultFrame) error {
	out := *frame
	out.Type = types.ScanResultType
	return e.writeValue(&out)
}

func (e *FrameEncoder) writeValue(v any) error {
	payload, err := msgpack.Marshal(v)
	if err != nil {
		return &FrameError{
			Kind: FrameErrorDecode,
			Msg:  "failed to encode frame",
			Err:  err,
		}
	}
	if len(payload) > MaxPayloadSize {
		return &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("payload size %d exceeds maximum %d", len(payload), MaxPayloadSize),
		}
	}

	frame := make([]byte, LengthPrefixSize+len(payload))
	binary.BigEndian.PutUint32(frame[:LengthPrefixSize], uint32(len(payload)))
	copy(frame[LengthPrefixSize:], payload)

	if _, err := e.writer.Write(frame); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	e.frames++
	return nil
}

// FrameDecoder decodes length-prefixed msgpack frames from a stream.
type FrameDecoder struct {
	reader io.Reader
}

// NewFrameDecoder creates a new frame decoder.
func NewFrameDecoder(r io.Reader) *FrameDecoder {
	return &FrameDecoder{reader: r}
}

// ReadFrame reads a single frame from the stream.
// Returns the raw payload bytes (msgpack-encoded).
//
// Errors:
//   - io.EOF: stream ended cleanly (no more frames)
//   - *FrameError with Kind=FrameErrorPartial: incomplete frame (fatal)
//   - *FrameError with Kind=FrameErrorTooLarge: frame exceeds limit (fatal)
func (d *FrameDecoder) ReadFrame() ([]byte, error) {
	var lengthBuf [LengthPrefixSize]byte
	_, err := io.ReadFull(d.reader, lengthBuf[:])
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, &FrameError{
			Kind: FrameErrorPartial,
			Msg:  "failed to read length prefix",
			Err:  err,
		}
	}

	payloadSize := binary.BigEndian.Uint32(lengthBuf[:])
	if payloadSize > MaxPayloadSize {
		return nil, &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("payload size %d exceeds maximum %d", payloadSize, MaxPayloadSize),
		}
	}

	payload := make([]byte, payloadSize)
	_, err = io.ReadFull(d.reader, payload)
	if err != nil {
		return nil, &FrameError{
			Kind: FrameErrorPartial,
			Msg:  "failed to read payload",
			Err:  err,
		}
	}

	return payload, nil
}

// probeFrameType reads the "type" field of a msgpack map without decoding
// the other values.
func probeFrameType(payload []byte) (string, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(payload))
	n, err := dec.DecodeMapLen()
	if err != nil {
		return "", err
	}
	for range n {
		key, err := dec.DecodeString()
		if err != nil {
			return "", err
		}
		if key == "type" {
			return dec.DecodeString()
		}
		if err := dec.Skip(); err != nil {
			return "", err
		}
	}
	return "", errors.New("frame has no type field")
}

// DecodeFrame decodes a payload and returns either a *types.BlockFrame or a
// *types.ScanResultFrame, based on its type field.
func DecodeFrame(payload []byte) (any, error) {
	typ, err := probeFrameType(payload)
	if err != nil {
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  "failed to decode frame type",
			Err:  err,
		}
	}

	switch typ {
	case types.BlockFrameType:
		return DecodeBlock(payload)
	case types.ScanResultType:
		return DecodeScanResult(payload)
	default:
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  fmt.Sprintf("unknown frame type %q", typ),
		}
	}
}

// DecodeBlock decodes a payload as a BlockFrame.
func DecodeBlock(payload []byte) (*types.BlockFrame, error) {
	var frame types.BlockFrame
	if err := msgpack.Unmarshal(payload, &frame); err != nil {
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  "failed to decode block frame",
			Err:  err,
		}
	}
	return &frame, nil
}

// DecodeScanResult decodes a payload as a ScanResultFrame.
func DecodeScanResult(payload []byte) (*types.ScanResultFrame, error) {
	var result types.ScanResultFrame
	if err := msgpack.Unmarshal(payload, &result); err != nil {
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  "failed to decode scan result",
			Err:  err,
		}
	}
	return &result, nil
}
