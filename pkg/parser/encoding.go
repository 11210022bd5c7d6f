package parser

import (
	"bytes"
	"fmt"
	"io"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// decodeText converts uploaded text to UTF-8. Files saved by Windows editors
// arrive as UTF-16 with a BOM or as Windows-1252; everything else is read
// as UTF-8 with an optional BOM.
func decodeText(raw []byte) (string, error) {
	enc := detectEncoding(raw)
	if enc == nil {
		return string(raw), nil
	}

	out, err := io.ReadAll(transform.NewReader(bytes.NewReader(raw), enc.NewDecoder()))
	if err != nil {
		return "", fmt.Errorf("encoding conversion failed: %w", err)
	}
	return string(out), nil
}

// detectEncoding returns nil when raw is plain UTF-8 without a BOM.
func detectEncoding(raw []byte) encoding.Encoding {
	switch {
	case bytes.HasPrefix(raw, bomUTF8):
		return unicode.UTF8BOM
	case bytes.HasPrefix(raw, bomUTF16LE):
		return unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM)
	case bytes.HasPrefix(raw, bomUTF16BE):
		return unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM)
	}

	if looksLikeUTF16(raw) {
		if raw[0] == 0 {
			return unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)
		}
		return unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)
	}

	if utf8.Valid(raw) {
		return nil
	}
	return charmap.Windows1252
}

// looksLikeUTF16 spots BOM-less UTF-16 holding ASCII text: every other byte
// is zero.
func looksLikeUTF16(raw []byte) bool {
	if len(raw) < 4 || len(raw)%2 != 0 {
		return false
	}
	sample := raw
	if len(sample) > 512 {
		sample = sample[:512]
	}

	var evenZero, oddZero int
	for i, b := range sample {
		if b != 0 {
			continue
		}
		if i%2 == 0 {
			evenZero++
		} else {
			oddZero++
		}
	}
	half := len(sample) / 2
	return evenZero == half || oddZero == half
}
