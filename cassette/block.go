package cassette

// Kind classifies block content.
//
// The classification is the heuristic used by Programma's Tape Directory:
// a block containing any byte with the high bit set is assumed to hold
// object code, otherwise it is treated as text or source.
type Kind int

const (
	// KindText indicates every payload byte was 7-bit clean.
	KindText Kind = iota
	// KindObject indicates at least one payload byte had its high bit set.
	KindObject
)

func (k Kind) String() string {
	if k == KindObject {
		return "Object"
	}
	return "Text"
}

// ErrorKind classifies how a block ended.
// None of these are fatal; decoding always continues with the next block.
type ErrorKind int

const (
	// ErrNone indicates both the end marker and the checksum matched.
	ErrNone ErrorKind = iota
	// ErrTrailer indicates the byte after the payload was not the end marker.
	ErrTrailer
	// ErrChecksum indicates the end marker matched but the checksum did not.
	ErrChecksum
)

func (e ErrorKind) String() string {
	switch e {
	case ErrTrailer:
		return "Trailer"
	case ErrChecksum:
		return "Checksum"
	default:
		return ""
	}
}

// Block is a delimited block as reported by the Decoder.
//
// Data aliases the decoder's internal buffer and is only valid for the
// duration of the sink callback. Use Clone to retain it.
type Block struct {
	// Name is the two-byte block name. Typically ASCII, but opaque.
	Name [2]byte
	// Data is the payload accumulated for this block.
	Data []byte
	// Kind is the content classification.
	Kind Kind
	// Err is the error classification.
	Err ErrorKind
	// Checksum is the rolling sum computed over Data.
	Checksum byte
}

// Length returns the payload length in bytes.
func (b Block) Length() int {
	return len(b.Data)
}

// NameString returns the block name as a string of its two raw bytes.
func (b Block) NameString() string {
	return string(b.Name[:])
}

// Clone returns a copy of b whose Data no longer aliases the decoder buffer.
func (b Block) Clone() Block {
	data := make([]byte, len(b.Data))
	copy(data, b.Data)
	b.Data = data
	return b
}
