package lode

import (
	"fmt"
	"strings"
)

// ArtifactName returns the file name for a persisted block:
// <source>-<NN>_<ordinal>.bin, where NN is the two-byte block name.
// Name bytes outside printable ASCII, and path separators, become '_'.
func ArtifactName(source string, name [2]byte, ordinal int) string {
	return fmt.Sprintf("%s-%c%c_%d.bin", sanitizeStem(source), safeNameByte(name[0]), safeNameByte(name[1]), ordinal)
}

func safeNameByte(b byte) byte {
	if b < 0x20 || b > 0x7E || b == '/' || b == '\\' {
		return '_'
	}
	return b
}

// sanitizeStem strips directory components from a stem override.
func sanitizeStem(source string) string {
	source = strings.NewReplacer("/", "_", "\\", "_").Replace(source)
	if source == "" || source == "." || source == ".." {
		return "stdin"
	}
	return source
}
