package render

import (
	"encoding/hex"
	"fmt"
	"io"

	"github.com/justapithecus/sphere2bin/types"
)

// Listing writes the classic sphere2bin block listing:
//
//	BLOCK     NAME      LENGTH    TYPE      ERROR
//	-----     ----      ------    ----      -----
//	1         PR        5         Text
//		--> Block written to file tape-PR_1.bin
//
// Calls must follow emission order: Header, then Block followed by
// Written or Failed for each block, then Footer.
type Listing struct {
	out    io.Writer
	blocks int
}

// NewListing creates a listing writing to w.
func NewListing(w io.Writer) *Listing {
	return &Listing{out: w}
}

// Header writes the column header and rule.
func (l *Listing) Header() {
	fmt.Fprintf(l.out, "\n%-10s%-10s%-10s%-10s%-10s\n", "BLOCK", "NAME", "LENGTH", "TYPE", "ERROR")
	fmt.Fprintln(l.out, "-----     ----      ------    ----      -----")
}

// Block writes one block row.
func (l *Listing) Block(rec *types.BlockRecord) {
	l.blocks++
	// Name bytes are written raw, not as runes.
	fmt.Fprintf(l.out, "%-10d%s        %-10d%-10s%-10s\n",
		rec.Ordinal, string(rec.NameBytes[:]), rec.Length, rec.Kind, rec.Error)
}

// Written notes a persisted block.
func (l *Listing) Written(location string) {
	fmt.Fprintf(l.out, "\t--> Block written to file %s\n\n", location)
}

// Failed notes a block that could not be persisted.
func (l *Listing) Failed(location string, err error) {
	fmt.Fprintf(l.out, "\tFailed to write %s: %v\n\n", location, err)
}

// Footer writes the closing block count.
func (l *Listing) Footer() {
	fmt.Fprintf(l.out, "\nDone. %d block(s) found.\n", l.blocks)
}

// Blocks returns the number of rows written.
func (l *Listing) Blocks() int {
	return l.blocks
}

// HexDump writes a block header line followed by a canonical hex dump of
// its payload.
func HexDump(w io.Writer, rec *types.BlockRecord) error {
	errLabel := rec.Error
	if errLabel == "" {
		errLabel = "none"
	}
	if _, err := fmt.Fprintf(w, "block %d %q length=%d kind=%s error=%s checksum=0x%02X\n",
		rec.Ordinal, rec.PrintableName(), rec.Length, rec.Kind, errLabel, rec.Checksum); err != nil {
		return err
	}
	dumper := hex.Dumper(w)
	if _, err := dumper.Write(rec.Data); err != nil {
		return err
	}
	return dumper.Close()
}
