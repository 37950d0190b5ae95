// Package types defines core domain types shared by the sphere2bin runtime,
// its storage layer and its export stream.
//
//nolint:revive // types is a common Go package naming convention
package types

// Block kind labels.
const (
	KindText   = "Text"
	KindObject = "Object"
)

// Block error labels. An empty label means the block decoded cleanly.
const (
	BlockErrorNone     = ""
	BlockErrorTrailer  = "Trailer"
	BlockErrorChecksum = "Checksum"
)

// BlockRecord is a decoded block as handed to sinks, renderers and the
// export stream. It owns its payload.
type BlockRecord struct {
	// Ordinal is the 1-based position of the block within its scan.
	Ordinal int `msgpack:"ordinal" json:"ordinal" yaml:"ordinal"`
	// Name is the block name as a string of its two raw bytes.
	Name string `msgpack:"name" json:"name" yaml:"name"`
	// NameBytes is the raw two-byte name.
	NameBytes [2]byte `msgpack:"name_bytes" json:"-" yaml:"-"`
	// Length is the payload length in bytes.
	Length int `msgpack:"length" json:"length" yaml:"length"`
	// Kind is KindText or KindObject.
	Kind string `msgpack:"kind" json:"kind" yaml:"kind"`
	// Error is one of the BlockError labels.
	Error string `msgpack:"error,omitempty" json:"error,omitempty" yaml:"error,omitempty"`
	// Checksum is the sum computed over the payload.
	Checksum uint8 `msgpack:"checksum" json:"checksum" yaml:"checksum"`
	// Data is the payload.
	Data []byte `msgpack:"data" json:"-" yaml:"-"`
	// Location is the storage path once persisted.
	Location string `msgpack:"location,omitempty" json:"location,omitempty" yaml:"location,omitempty"`
}

// HasError reports whether the block carries a trailer or checksum error.
func (r *BlockRecord) HasError() bool {
	return r.Error != BlockErrorNone
}

// PrintableName returns Name with bytes outside printable ASCII shown as '.'.
func (r *BlockRecord) PrintableName() string {
	out := make([]byte, 2)
	for i, b := range r.NameBytes {
		if b < 0x20 || b > 0x7E {
			b = '.'
		}
		out[i] = b
	}
	return string(out)
}
