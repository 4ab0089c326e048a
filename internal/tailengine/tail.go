// Package tailengine implements the bounded-byte, bounded-line tail read
// used by the tail and run (snapshot) commands: byte truncation is
// applied before line truncation, and the result is always valid UTF-8
// even when the cut falls mid-rune.
package tailengine

import (
	"os"
	"strings"
)

// Result is the outcome of tailing one log file.
type Result struct {
	Text          string
	Truncated     bool
	ObservedBytes int64
	IncludedBytes int64
}

// Tail reads path and returns up to the last maxBytes bytes, then (if
// tailLines > 0) the last tailLines lines of that slice. A missing file
// is not an error: it reports an empty, non-truncated result.
func Tail(path string, tailLines, maxBytes int) (Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{}, nil
		}
		return Result{}, err
	}

	f, err := os.Open(path)
	if err != nil {
		return Result{}, err
	}
	defer f.Close()

	size := info.Size()
	observed := size

	var raw []byte
	byteTruncated := false

	if size > int64(maxBytes) {
		byteTruncated = true
		raw = make([]byte, maxBytes)
		if _, err := f.Seek(size-int64(maxBytes), 0); err != nil {
			return Result{}, err
		}
		if _, err := readFull(f, raw); err != nil {
			return Result{}, err
		}
	} else {
		raw = make([]byte, size)
		if _, err := readFull(f, raw); err != nil {
			return Result{}, err
		}
	}

	text := lossyUTF8(raw)

	lineTruncated := false
	if tailLines > 0 {
		// A trailing newline ends the last line; it does not start another.
		body := strings.TrimSuffix(text, "\n")
		trailingNewline := len(body) != len(text)
		lines := strings.Split(body, "\n")
		if len(lines) > tailLines {
			lineTruncated = true
			lines = lines[len(lines)-tailLines:]
		}
		text = strings.Join(lines, "\n")
		if trailingNewline {
			text += "\n"
		}
	}

	return Result{
		Text:          text,
		Truncated:     byteTruncated || lineTruncated,
		ObservedBytes: observed,
		IncludedBytes: int64(len(text)),
	}, nil
}

func readFull(f *os.File, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := f.Read(buf[total:])
		total += n
		if err != nil {
			if total == len(buf) {
				return total, nil
			}
			return total, err
		}
		if n == 0 {
			break
		}
	}
	return total, nil
}

// lossyUTF8 decodes raw as UTF-8, replacing invalid sequences with the
// Unicode replacement character - equivalent to Rust's String::from_utf8_lossy.
func lossyUTF8(raw []byte) string {
	return strings.ToValidUTF8(string(raw), "�")
}
