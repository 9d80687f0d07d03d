// Package storage persists captured images to disk.
package storage

import (
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"screen-grab/src/logutil"
)

// ErrUnsupportedFormat is returned for file extensions without an encoder.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// Saver writes an image to path.
type Saver interface {
	Save(img image.Image, path string) error
}

// Format names an image encoding.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
	FormatBMP  Format = "bmp"
	FormatTIFF Format = "tiff"
)

// ParseFormat resolves a format name or file extension, with or without the
// leading dot.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), ".")) {
	case "png":
		return FormatPNG, nil
	case "jpg", "jpeg":
		return FormatJPEG, nil
	case "bmp":
		return FormatBMP, nil
	case "tif", "tiff":
		return FormatTIFF, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
	}
}

// Ext returns the canonical file extension including the dot.
func (f Format) Ext() string {
	switch f {
	case FormatJPEG:
		return ".jpg"
	case FormatBMP:
		return ".bmp"
	case FormatTIFF:
		return ".tiff"
	default:
		return ".png"
	}
}

// Encode writes img to w in format f.
func Encode(w io.Writer, img image.Image, f Format) error {
	switch f {
	case FormatPNG:
		return png.Encode(w, img)
	case FormatJPEG:
		return jpeg.Encode(w, img, &jpeg.Options{Quality: 92})
	case FormatBMP:
		return bmp.Encode(w, img)
	case FormatTIFF:
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, string(f))
	}
}

// FileSaver encodes by the file extension of the target path. Paths without
// an extension get DefaultFormat (PNG when empty) appended.
type FileSaver struct {
	DefaultFormat Format
}

func (s FileSaver) Save(img image.Image, path string) error {
	if img == nil {
		return errors.New("nil image")
	}
	if strings.TrimSpace(path) == "" {
		return errors.New("empty path")
	}

	format := s.DefaultFormat
	if format == "" {
		format = FormatPNG
	}
	if ext := filepath.Ext(path); ext != "" {
		f, err := ParseFormat(ext)
		if err != nil {
			return err
		}
		format = f
	} else {
		path += format.Ext()
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	// Encode into a sibling temp file, then rename into place.
	tmp, err := os.CreateTemp(filepath.Dir(path), ".grab-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if err := Encode(tmp, img, format); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to encode %s: %w", format, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	b := img.Bounds()
	logutil.WithComponent("storage").Info().
		Str("path", path).
		Str("format", string(format)).
		Int("width", b.Dx()).
		Int("height", b.Dy()).
		Msg("capture saved")
	return nil
}
