// Package cassette decodes the logical block format of Sphere 1 cassette
// recordings.
//
// The input is the raw byte stream recovered from the 300bps Kansas City
// audio signal. A recording carries one or more named blocks laid out as:
//
//	16 16 16          sync run (any length >= 1 is accepted)
//	1B                escape marker
//	LL LL             declared length, big endian; payload is length+1 bytes
//	NN NN             two-byte block name
//	...               payload
//	17                end of transmission marker
//	CC                checksum: 8-bit wrapping sum of the payload bytes
//	XX XX XX          trailer padding, skipped as noise
//
// The Decoder is a byte-at-a-time state machine. It never fails: framing
// and integrity problems are reported as the ErrorKind of the emitted Block,
// and bytes between blocks are discarded until the next sync run. A block
// cut short by the end of input is dropped without an event.
//
// A Decoder is not safe for concurrent use. Use one per input stream.
package cassette

import (
	"fmt"
	"math"
	"slices"
)

// Marker bytes of the block format.
const (
	SyncByte   byte = 0x16
	EscapeByte byte = 0x1B
	EndByte    byte = 0x17
)

// MaxPayloadSize is the largest payload the 16-bit length field can declare.
// A stored 0xFFFE declares 0xFFFF bytes; a stored 0xFFFF wraps to zero.
const MaxPayloadSize = math.MaxUint16

// Phase is a state of the block state machine.
type Phase int

const (
	// PhaseSeekSync discards bytes until a sync byte is seen.
	PhaseSeekSync Phase = iota
	// PhaseSyncConfirm absorbs further sync bytes until the escape marker.
	PhaseSyncConfirm
	// PhaseLengthHigh expects the high byte of the declared length.
	PhaseLengthHigh
	// PhaseLengthLow expects the low byte of the declared length.
	PhaseLengthLow
	// PhaseName1 expects the first name byte.
	PhaseName1
	// PhaseName2 expects the second name byte.
	PhaseName2
	// PhaseData accumulates payload bytes.
	PhaseData
	// PhaseTrailer expects the end of transmission marker.
	PhaseTrailer
	// PhaseChecksum expects the checksum byte.
	PhaseChecksum
)

var phaseNames = [...]string{
	PhaseSeekSync:    "seek_sync",
	PhaseSyncConfirm: "sync_confirm",
	PhaseLengthHigh:  "length_high",
	PhaseLengthLow:   "length_low",
	PhaseName1:       "name_1",
	PhaseName2:       "name_2",
	PhaseData:        "data",
	PhaseTrailer:     "trailer",
	PhaseChecksum:    "checksum",
}

func (p Phase) String() string {
	if p >= 0 && int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Stats are running counters over everything a Decoder has been fed.
// They survive Begin and are only informational.
type Stats struct {
	// BytesFed is the total number of bytes consumed.
	BytesFed int64
	// NoiseBytes counts bytes discarded while seeking sync.
	NoiseBytes int64
	// Headers counts escape markers accepted after a sync run.
	Headers int64
	// Desyncs counts sync runs abandoned because of an unexpected byte.
	Desyncs int64
	// Blocks counts emitted blocks, including errored ones.
	Blocks int64
	// TrailerErrors counts blocks emitted with ErrTrailer.
	TrailerErrors int64
	// ChecksumErrors counts blocks emitted with ErrChecksum.
	ChecksumErrors int64
}

// Decoder recovers blocks from a cassette byte stream.
type Decoder struct {
	sink func(Block)

	phase    Phase
	expected uint16
	consumed int
	name     [2]byte
	buf      []byte
	checksum byte
	kind     Kind

	stats Stats
}

// NewDecoder returns a Decoder in its initial state that reports each
// delimited block to sink. A nil sink discards blocks.
//
// The Block passed to sink aliases the decoder buffer; sink must copy the
// data (see Block.Clone) if it keeps it past the call.
func NewDecoder(sink func(Block)) *Decoder {
	d := &Decoder{sink: sink}
	d.Begin()
	return d
}

// Begin resets the per-block state and returns to seeking sync.
// The payload buffer is kept for reuse.
func (d *Decoder) Begin() {
	d.phase = PhaseSeekSync
	d.expected = 0
	d.consumed = 0
	d.name = [2]byte{}
	d.buf = d.buf[:0]
	d.checksum = 0
	d.kind = KindText
}

// Phase returns the current state.
func (d *Decoder) Phase() Phase {
	return d.phase
}

// Pending reports whether a block header has been accepted and the block
// has not been emitted yet. At end of input such a block is discarded.
func (d *Decoder) Pending() bool {
	return d.phase >= PhaseLengthHigh
}

// Stats returns a copy of the running counters.
func (d *Decoder) Stats() Stats {
	return d.stats
}

// Feed consumes one byte, advancing the state machine by at most one
// transition. At most one block is emitted per call.
func (d *Decoder) Feed(b byte) {
	d.stats.BytesFed++

	switch d.phase {
	case PhaseSeekSync:
		if b == SyncByte {
			d.phase = PhaseSyncConfirm
		} else {
			d.stats.NoiseBytes++
		}

	case PhaseSyncConfirm:
		switch b {
		case EscapeByte:
			d.stats.Headers++
			d.phase = PhaseLengthHigh
		case SyncByte:
			// Sync runs of any length are accepted.
		default:
			d.stats.Desyncs++
			d.phase = PhaseSeekSync
		}

	case PhaseLengthHigh:
		d.expected = uint16(b) << 8
		d.phase = PhaseLengthLow

	case PhaseLengthLow:
		// The tape stores length-1. A stored 0xFFFF wraps to an empty payload.
		d.expected |= uint16(b)
		d.expected++
		d.buf = slices.Grow(d.buf[:0], int(d.expected))
		d.phase = PhaseName1

	case PhaseName1:
		d.name[0] = b
		d.phase = PhaseName2

	case PhaseName2:
		d.name[1] = b
		if d.expected == 0 {
			d.phase = PhaseTrailer
		} else {
			d.phase = PhaseData
		}

	case PhaseData:
		// expected is a uint16, so the buffer never outgrows MaxPayloadSize.
		d.buf = append(d.buf, b)
		d.consumed++
		d.checksum += b
		if b&0x80 != 0 {
			d.kind = KindObject
		}
		if d.consumed == int(d.expected) {
			d.phase = PhaseTrailer
		}

	case PhaseTrailer:
		if b == EndByte {
			d.phase = PhaseChecksum
			return
		}
		// The offending byte is dropped, not rescanned for sync.
		d.emit(ErrTrailer)

	case PhaseChecksum:
		if b == d.checksum {
			d.emit(ErrNone)
		} else {
			d.emit(ErrChecksum)
		}
	}
}

// FeedAll feeds each byte of p in order.
func (d *Decoder) FeedAll(p []byte) {
	for _, b := range p {
		d.Feed(b)
	}
}

// Write implements io.Writer by feeding p. It never returns an error.
func (d *Decoder) Write(p []byte) (int, error) {
	d.FeedAll(p)
	return len(p), nil
}

// emit reports the current block and returns to seeking sync.
func (d *Decoder) emit(kind ErrorKind) {
	d.stats.Blocks++
	switch kind {
	case ErrTrailer:
		d.stats.TrailerErrors++
	case ErrChecksum:
		d.stats.ChecksumErrors++
	}

	if d.sink != nil {
		d.sink(Block{
			Name:     d.name,
			Data:     d.buf,
			Kind:     d.kind,
			Err:      kind,
			Checksum: d.checksum,
		})
	}
	d.Begin()
}
