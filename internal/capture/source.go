package capture

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/KelvinMNH/FaceEventos/internal/checkin"
)

// frame is one line of a JSON-lines capture feed. An empty object is a frame
// without a face.
type frame struct {
	Vector []float32 `json:"vector,omitempty"`
	Marker string    `json:"marker,omitempty"`
}

// LineSource reads samples from a JSON-lines stream, one frame per line.
// It reports io.EOF once the stream is exhausted.
type LineSource struct {
	scanner *bufio.Scanner
	closer  io.Closer
	line    int
}

// NewLineSource wraps r. When r is an io.Closer it is closed with the source.
func NewLineSource(r io.Reader) *LineSource {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	src := &LineSource{scanner: scanner}
	if c, ok := r.(io.Closer); ok {
		src.closer = c
	}
	return src
}

func (s *LineSource) Next(ctx context.Context) (checkin.Sample, bool, error) {
	if err := ctx.Err(); err != nil {
		return checkin.Sample{}, false, err
	}
	for s.scanner.Scan() {
		s.line++
		text := strings.TrimSpace(s.scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		var f frame
		if err := json.Unmarshal([]byte(text), &f); err != nil {
			return checkin.Sample{}, false, fmt.Errorf("line %d: %w", s.line, err)
		}
		if len(f.Vector) == 0 && f.Marker == "" {
			return checkin.Sample{}, false, nil
		}
		return checkin.Sample{Vector: f.Vector, Marker: f.Marker}, true, nil
	}
	if err := s.scanner.Err(); err != nil {
		return checkin.Sample{}, false, err
	}
	return checkin.Sample{}, false, io.EOF
}

func (s *LineSource) Close() error {
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}
