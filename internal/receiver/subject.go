package receiver

import (
	"fmt"
	"io"
	"mime"

	"github.com/emersion/go-message/charset"
	"golang.org/x/text/encoding/htmlindex"
)

var wordDecoder = &mime.WordDecoder{CharsetReader: charsetReader}

// charsetReader resolves the charsets go-message knows first and falls back
// to the WHATWG encoding index.
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	if r, err := charset.Reader(label, input); err == nil {
		return r, nil
	}
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("unhandled charset %q", label)
	}
	return enc.NewDecoder().Reader(input), nil
}

// DecodeSubject decodes RFC 2047 encoded-words in a header value. Plain text
// is returned unchanged.
func DecodeSubject(raw string) (string, error) {
	return wordDecoder.DecodeHeader(raw)
}
