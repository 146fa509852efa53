// Package modelio reads and writes colour mixture models.
//
// Model pairs are written as versioned JSON documents, or as msgpack when the
// file name ends in .msgpack. A single model's flat parameter buffer can also
// be written raw, as little-endian float64 values, for interop with other
// implementations of the same layout. Store keeps named pairs in a bbolt file.
package modelio

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"colormix/internal/gmm"
)

// FormatVersion is the current JSON document version.
const FormatVersion = 1

// Document is the JSON form of a single model.
type Document struct {
	Version    int       `json:"version" msgpack:"version"`
	Components int       `json:"components" msgpack:"components"`
	Saved      time.Time `json:"saved" msgpack:"saved"`
	Params     []float64 `json:"params" msgpack:"params"`
}

// Pair is the JSON form of the foreground and background models kept by
// the segmentation loop.
type Pair struct {
	Version    int       `json:"version" msgpack:"version"`
	Saved      time.Time `json:"saved" msgpack:"saved"`
	Foreground Document  `json:"foreground" msgpack:"foreground"`
	Background Document  `json:"background" msgpack:"background"`
}

// NewPair captures the parameters of both models.
func NewPair(fg, bg *gmm.Model) Pair {
	return Pair{
		Version:    FormatVersion,
		Saved:      time.Now().UTC(),
		Foreground: NewDocument(fg),
		Background: NewDocument(bg),
	}
}

// NewDocument captures the parameters of m.
func NewDocument(m *gmm.Model) Document {
	return Document{
		Version:    FormatVersion,
		Components: m.Components(),
		Saved:      time.Now().UTC(),
		Params:     m.Params(),
	}
}

// Model rebuilds the model described by the document. The document must
// carry the full parameter buffer for its component count.
func (d Document) Model() (*gmm.Model, error) {
	if d.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported model version %d", d.Version)
	}
	if d.Components <= 0 || d.Components > gmm.MaxComponents {
		return nil, fmt.Errorf("failed to load model: %w: component count %d not in [1, %d]",
			gmm.ErrShapeMismatch, d.Components, gmm.MaxComponents)
	}
	if len(d.Params) != gmm.ParamsLen(d.Components) {
		return nil, fmt.Errorf("failed to load model: %w: got %d values for %d components",
			gmm.ErrShapeMismatch, len(d.Params), d.Components)
	}
	m, err := gmm.NewWithComponents(d.Components, d.Params)
	if err != nil {
		return nil, fmt.Errorf("failed to load model: %w", err)
	}
	return m, nil
}

// Models rebuilds both models of the pair.
func (p Pair) Models() (fg, bg *gmm.Model, err error) {
	if p.Version != FormatVersion {
		return nil, nil, fmt.Errorf("unsupported model version %d", p.Version)
	}
	if fg, err = p.Foreground.Model(); err != nil {
		return nil, nil, fmt.Errorf("foreground: %w", err)
	}
	if bg, err = p.Background.Model(); err != nil {
		return nil, nil, fmt.Errorf("background: %w", err)
	}
	return fg, bg, nil
}

// SaveJSON writes m to path, creating parent directories as needed.
func SaveJSON(path string, m *gmm.Model) error {
	return writeJSON(path, NewDocument(m))
}

// LoadJSON reads a model written by SaveJSON.
func LoadJSON(path string) (*gmm.Model, error) {
	var doc Document
	if err := readJSON(path, &doc); err != nil {
		return nil, err
	}
	return doc.Model()
}

// SavePair writes the foreground and background models to path, as msgpack
// if IsMsgpack(path) and as JSON otherwise.
func SavePair(path string, fg, bg *gmm.Model) error {
	p := NewPair(fg, bg)
	if IsMsgpack(path) {
		data, err := MarshalPair(p)
		if err != nil {
			return err
		}
		return writeFile(path, data)
	}
	return writeJSON(path, p)
}

// LoadPair reads models written by SavePair.
func LoadPair(path string) (fg, bg *gmm.Model, err error) {
	var p Pair
	if IsMsgpack(path) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read model: %w", err)
		}
		if p, err = UnmarshalPair(data); err != nil {
			return nil, nil, err
		}
	} else if err := readJSON(path, &p); err != nil {
		return nil, nil, err
	}
	return p.Models()
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize model: %w", err)
	}
	return writeFile(path, data)
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write model: %w", err)
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read model: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse model: %w", err)
	}
	return nil
}

// WriteBinary writes the flat parameter buffer of m as little-endian float64.
func WriteBinary(w io.Writer, m *gmm.Model) error {
	params := m.Params()
	buf := make([]byte, 8*len(params))
	for i, v := range params {
		binary.LittleEndian.PutUint64(buf[8*i:], math.Float64bits(v))
	}
	_, err := w.Write(buf)
	return err
}

// ReadBinary reads exactly gmm.ParamsLen(k) little-endian float64 values
// from r and builds a k-component model. Short or trailing input is a
// gmm.ErrShapeMismatch.
func ReadBinary(r io.Reader, k int) (*gmm.Model, error) {
	if k <= 0 || k > gmm.MaxComponents {
		return nil, fmt.Errorf("%w: component count %d not in [1, %d]", gmm.ErrShapeMismatch, k, gmm.MaxComponents)
	}
	buf := make([]byte, 8*gmm.ParamsLen(k))
	n, err := io.ReadFull(r, buf)
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", gmm.ErrShapeMismatch, n, len(buf))
	}
	if err != nil {
		return nil, err
	}

	var extra [1]byte
	if n, _ := r.Read(extra[:]); n > 0 {
		return nil, fmt.Errorf("%w: trailing data after %d bytes", gmm.ErrShapeMismatch, len(buf))
	}

	params := make([]float64, gmm.ParamsLen(k))
	for i := range params {
		params[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[8*i:]))
	}
	return gmm.NewWithComponents(k, params)
}
