package config

import (
	"fmt"
	"strings"
)

// expandEnv substitutes environment references in a config document
// before it is decoded.
//
// A reference is ${NAME} or ${NAME:-default}. An unset or empty NAME takes
// the default, or "" when none is given, so a missing secret surfaces as a
// validation error further on (for example an empty adapter URL). Text
// after "${" that is not a valid name passes through untouched. A reference
// left open at the end of its line is an error.
//
// Deployments usually parameterise sphere2bin.yaml with:
//
//	output.dir          ${SPHERE2BIN_OUTPUT_DIR:-.}
//	storage.path        ${SPHERE2BIN_S3_PATH}
//	adapter.url         ${SPHERE2BIN_WEBHOOK_URL}
//	adapter.headers     Bearer ${SPHERE2BIN_WEBHOOK_TOKEN}
//	log.level           ${SPHERE2BIN_LOG_LEVEL:-info}
func expandEnv(doc string, lookup func(string) (string, bool)) (string, error) {
	var out strings.Builder
	out.Grow(len(doc))
	line := 1

	for {
		start := strings.Index(doc, "${")
		if start < 0 {
			out.WriteString(doc)
			return out.String(), nil
		}
		line += strings.Count(doc[:start], "\n")
		out.WriteString(doc[:start])
		doc = doc[start:]

		end := strings.IndexAny(doc, "}\n")
		if end < 0 || doc[end] == '\n' {
			return "", fmt.Errorf("line %d: unterminated ${ reference", line)
		}

		name, def, _ := strings.Cut(doc[2:end], ":-")
		if !isEnvName(name) {
			out.WriteString("${")
			doc = doc[2:]
			continue
		}

		if v, ok := lookup(name); ok && v != "" {
			out.WriteString(v)
		} else {
			out.WriteString(def)
		}
		doc = doc[end+1:]
	}
}

// isEnvName reports whether s is a shell-style variable name.
func isEnvName(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
