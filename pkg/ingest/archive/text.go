package archive

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Encoding names how a text file was decoded.
type Encoding string

const (
	EncodingUTF8        Encoding = "utf-8"
	EncodingWindows1251 Encoding = "windows-1251"
	// EncodingSanitized means invalid bytes were replaced with U+FFFD.
	EncodingSanitized Encoding = "sanitized"
)

// sniffBytes is how much of a stream is inspected to choose a decoder.
const sniffBytes = 64 << 10

// minCyrillicShare is the share of letters that must be Cyrillic for a
// non-UTF-8 file to be read as Windows-1251.
const minCyrillicShare = 0.5

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DecodeText converts raw file content to NFC-normalized UTF-8. Content that
// is not valid UTF-8 is decoded as Windows-1251 when that yields mostly
// Cyrillic text, and sanitized otherwise.
func DecodeText(data []byte) (string, Encoding) {
	data = bytes.TrimPrefix(data, utf8BOM)

	if utf8.Valid(data) {
		return norm.NFC.String(string(data)), EncodingUTF8
	}

	if decoded, err := charmap.Windows1251.NewDecoder().Bytes(data); err == nil && mostlyCyrillic(decoded) {
		return norm.NFC.String(string(decoded)), EncodingWindows1251
	}

	return norm.NFC.String(strings.ToValidUTF8(string(data), "\uFFFD")), EncodingSanitized
}

// ReadText reads and decodes a text file.
func ReadText(path string) (string, Encoding, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("read %s: %w", path, err)
	}
	text, enc := DecodeText(data)
	return text, enc, nil
}

// TextFile is an opened text file whose reader yields decoded UTF-8.
type TextFile struct {
	io.Reader
	Size     int64
	Encoding Encoding

	file *os.File
}

// Close closes the underlying file.
func (t *TextFile) Close() error {
	return t.file.Close()
}

// OpenText opens a text file for streaming. The encoding is chosen from the
// first bytes of the file.
func OpenText(path string) (*TextFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	br := bufio.NewReaderSize(f, sniffBytes)
	head, err := br.Peek(sniffBytes)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		f.Close()
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if bytes.HasPrefix(head, utf8BOM) {
		br.Discard(len(utf8BOM))
		head = head[len(utf8BOM):]
	}

	tf := &TextFile{Size: info.Size(), file: f}
	tf.Encoding = sniffEncoding(head, len(head) < sniffBytes)
	if tf.Encoding == EncodingWindows1251 {
		tf.Reader = norm.NFC.Reader(transform.NewReader(br, charmap.Windows1251.NewDecoder()))
	} else {
		tf.Reader = norm.NFC.Reader(transform.NewReader(br, sanitizer{}))
	}
	return tf, nil
}

// sniffEncoding picks an encoding from a prefix of the content. complete is
// false when head may end in the middle of a rune.
func sniffEncoding(head []byte, complete bool) Encoding {
	if !complete {
		// Drop a rune cut off at the end of the window.
		for i := 0; i < utf8.UTFMax && len(head) > 0; i++ {
			if r, _ := utf8.DecodeLastRune(head); r != utf8.RuneError {
				break
			}
			head = head[:len(head)-1]
		}
	}
	if utf8.Valid(head) {
		return EncodingUTF8
	}
	if decoded, err := charmap.Windows1251.NewDecoder().Bytes(head); err == nil && mostlyCyrillic(decoded) {
		return EncodingWindows1251
	}
	return EncodingSanitized
}

func mostlyCyrillic(text []byte) bool {
	letters, cyrillic := 0, 0
	for _, r := range string(text) {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		if unicode.Is(unicode.Cyrillic, r) {
			cyrillic++
		}
	}
	return letters > 0 && float64(cyrillic)/float64(letters) >= minCyrillicShare
}

// sanitizer replaces invalid UTF-8 sequences with U+FFFD and passes valid
// input through unchanged.
type sanitizer struct{ transform.NopResetter }

func (sanitizer) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	for nSrc < len(src) {
		r, size := utf8.DecodeRune(src[nSrc:])
		if r == utf8.RuneError && size <= 1 {
			if !atEOF && !utf8.FullRune(src[nSrc:]) {
				return nDst, nSrc, transform.ErrShortSrc
			}
			if nDst+3 > len(dst) {
				return nDst, nSrc, transform.ErrShortDst
			}
			nDst += utf8.EncodeRune(dst[nDst:], utf8.RuneError)
			nSrc++
			continue
		}
		if nDst+size > len(dst) {
			return nDst, nSrc, transform.ErrShortDst
		}
		copy(dst[nDst:], src[nSrc:nSrc+size])
		nDst += size
		nSrc += size
	}
	return nDst, nSrc, nil
}
