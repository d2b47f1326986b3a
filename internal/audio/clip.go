// Package audio handles recorded pronunciation attempts uploaded by clients.
package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
)

// Format is a detected audio container format
type Format string

const (
	FormatWAV     Format = "wav"
	FormatWebM    Format = "webm"
	FormatOgg     Format = "ogg"
	FormatMP3     Format = "mp3"
	FormatUnknown Format = "unknown"
)

var (
	// ErrTooLarge is returned when an upload exceeds the configured size cap
	ErrTooLarge = errors.New("audio exceeds maximum size")

	// ErrUnsupportedFormat is returned for data that is not a recognized container
	ErrUnsupportedFormat = errors.New("unsupported audio format")
)

// Clip is one recorded attempt
type Clip struct {
	Data     []byte
	Format   Format
	Filename string
}

// Read loads at most maxBytes of audio from r and detects its format. An
// empty reader yields a nil clip and no error.
func Read(r io.Reader, maxBytes int64, filename string) (*Clip, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read audio: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, ErrTooLarge
	}
	if len(data) == 0 {
		return nil, nil
	}

	format := Detect(data)
	if format == FormatUnknown {
		return nil, ErrUnsupportedFormat
	}

	if filename == "" {
		filename = "attempt." + string(format)
	}
	return &Clip{Data: data, Format: format, Filename: filepath.Base(filename)}, nil
}

// Detect sniffs the container format from the leading bytes
func Detect(data []byte) Format {
	switch {
	case len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE")):
		return FormatWAV
	case len(data) >= 4 && bytes.Equal(data[0:4], []byte{0x1A, 0x45, 0xDF, 0xA3}):
		return FormatWebM
	case len(data) >= 4 && bytes.Equal(data[0:4], []byte("OggS")):
		return FormatOgg
	case len(data) >= 3 && bytes.Equal(data[0:3], []byte("ID3")):
		return FormatMP3
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		// MPEG audio frame sync
		return FormatMP3
	}
	return FormatUnknown
}

// Empty reports whether the clip carries no audio
func (c *Clip) Empty() bool {
	return c == nil || len(c.Data) == 0
}

// ContentType returns the MIME type for the clip's format
func (c *Clip) ContentType() string {
	switch c.Format {
	case FormatWAV:
		return "audio/wav"
	case FormatWebM:
		return "audio/webm"
	case FormatOgg:
		return "audio/ogg"
	case FormatMP3:
		return "audio/mpeg"
	}
	return "application/octet-stream"
}
