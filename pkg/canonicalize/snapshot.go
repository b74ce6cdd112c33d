package canonicalize

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

const maxPreviewLen = 64

// ErrNotCanonical is returned when a structured artifact has no JSON form,
// for example because it holds a NaN.
var ErrNotCanonical = errors.New("canonicalize: artifact has no canonical JSON form")

// Snapshot is the immutable, content-addressed form of one artifact.
type Snapshot struct {
	ContentType string `json:"content_type"`
	Bytes       []byte `json:"-"`
	Digest      string `json:"digest"`
	Preview     string `json:"preview"`
}

// Canonicalize snapshots raw phase output. Strings and byte slices are kept
// as-is (generator output that failed to decode is still worth keeping);
// anything else is canonicalized as JSON. A string that is not valid UTF-8
// is kept as octet-stream bytes.
func Canonicalize(raw any) (*Snapshot, error) {
	var (
		data        []byte
		contentType string
	)
	switch v := raw.(type) {
	case string:
		contentType = "text/plain"
		if !utf8.ValidString(v) {
			contentType = "application/octet-stream"
		}
		data = []byte(v)
	case []byte:
		contentType = "application/octet-stream"
		data = v
	default:
		b, err := JCS(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNotCanonical, err)
		}
		contentType = "application/json"
		data = b
	}
	return &Snapshot{
		ContentType: contentType,
		Bytes:       data,
		Digest:      Digest(data),
		Preview:     preview(data),
	}, nil
}

func preview(data []byte) string {
	if len(data) <= maxPreviewLen {
		return string(data)
	}
	cut := maxPreviewLen
	for cut > 0 && !utf8.RuneStart(data[cut]) {
		cut--
	}
	return string(data[:cut]) + "..."
}
