package items

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

// Encoding names the character set of delimited text sources.
type Encoding string

// Supported text encodings.
const (
	EncodingUTF8     Encoding = "utf-8"
	EncodingShiftJIS Encoding = "shift_jis"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ParseEncoding normalizes an encoding name. Empty input selects UTF-8.
func ParseEncoding(s string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "utf-8", "utf8":
		return EncodingUTF8, nil
	case "shift_jis", "shift-jis", "sjis", "cp932", "windows-31j":
		return EncodingShiftJIS, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedEncoding, s)
}

// Decode converts data in the given encoding to UTF-8, dropping a leading BOM.
func Decode(data []byte, enc Encoding) ([]byte, error) {
	switch enc {
	case EncodingShiftJIS:
		out, _, err := transform.Bytes(japanese.ShiftJIS.NewDecoder(), data)
		if err != nil {
			return nil, fmt.Errorf("decode shift_jis: %w", err)
		}
		return out, nil
	default:
		return bytes.TrimPrefix(data, utf8BOM), nil
	}
}
