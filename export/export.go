// Package export writes a field as an 8-bit grayscale raster.
//
// Values are normalised against the field maximum: byte = round(255*v/max),
// clamped to [0, 255]. A field whose maximum is not positive exports as all
// zeros rather than dividing by zero.
package export

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/pthm-cable/stencil/field"
)

// ErrOutputOpen is returned when the output file cannot be created.
var ErrOutputOpen = errors.New("could not open output")

// Format is an output raster encoding.
type Format string

const (
	FormatPGM  Format = "pgm"
	FormatPNG  Format = "png"
	FormatTIFF Format = "tiff"
	FormatBMP  Format = "bmp"
)

// FormatFromPath picks a format from the file extension, defaulting to PGM.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return FormatPNG
	case ".tif", ".tiff":
		return FormatTIFF
	case ".bmp":
		return FormatBMP
	default:
		return FormatPGM
	}
}

// Max returns the largest cell value, or 0 for a field with no positive cells.
func Max(f *field.Field) float32 {
	var maximum float32
	for _, v := range f.Data {
		if v > maximum {
			maximum = v
		}
	}
	return maximum
}

// Normalize maps every cell to a byte in row-major order.
func Normalize(f *field.Field) []byte {
	out := make([]byte, len(f.Data))
	maximum := Max(f)
	if maximum <= 0 {
		return out
	}
	for i, v := range f.Data {
		out[i] = toByte(255 * v / maximum)
	}
	return out
}

func toByte(v float32) byte {
	// NaN fails both comparisons and lands on 0.
	if !(v > 0) {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return byte(math.Round(float64(v)))
}

// Gray returns the normalised field as an image.Gray.
func Gray(f *field.Field) *image.Gray {
	return &image.Gray{
		Pix:    Normalize(f),
		Stride: f.Width,
		Rect:   image.Rect(0, 0, f.Width, f.Height),
	}
}

// EncodePGM writes a binary Netpbm graymap: "P5 <w> <h> 255\n" then one byte
// per cell.
func EncodePGM(w io.Writer, f *field.Field) error {
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintf(bw, "P5 %d %d 255\n", f.Width, f.Height); err != nil {
		return fmt.Errorf("writing pgm header: %w", err)
	}
	if _, err := bw.Write(Normalize(f)); err != nil {
		return fmt.Errorf("writing pgm pixels: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flushing pgm: %w", err)
	}
	return nil
}

// Encode writes f to w in the given format.
func Encode(w io.Writer, f *field.Field, format Format) error {
	switch format {
	case FormatPGM, "":
		return EncodePGM(w, f)
	case FormatPNG:
		return png.Encode(w, Gray(f))
	case FormatTIFF:
		return tiff.Encode(w, Gray(f), &tiff.Options{Compression: tiff.Deflate})
	case FormatBMP:
		return bmp.Encode(w, Gray(f))
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

// WriteFile encodes f to path, choosing the format from the extension.
func WriteFile(path string, f *field.Field) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w %s: %w", ErrOutputOpen, path, err)
	}

	format := FormatFromPath(path)
	if err := Encode(out, f, format); err != nil {
		out.Close()
		return fmt.Errorf("encoding %s: %w", format, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	return nil
}
