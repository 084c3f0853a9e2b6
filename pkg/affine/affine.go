// Package affine loads and applies 4x4 affine transforms.
//
// Two on-disk formats are supported: FSL-style plain-matrix files (.mat)
// and FreeSurfer linear-transform-array files (.lta). Matrices are held as
// mgl64.Mat4 values; file contents are row-major text and are converted to
// mathgl's column-major layout on parse.
package affine

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
)

// Transform errors.
var (
	ErrMalformedTransform   = errors.New("malformed transform file")
	ErrUnsupportedTransform = errors.New("unknown transform type: pass FSL (.mat) or LTA (.lta)")
	ErrSingularMatrix       = errors.New("matrix is singular")
)

// Format identifies a supported transform file format.
type Format int

// Supported formats.
const (
	FormatUnknown Format = iota
	FormatMAT            // FSL plain-matrix text
	FormatLTA            // FreeSurfer linear transform array
)

// String returns a human-readable format name.
func (f Format) String() string {
	switch f {
	case FormatMAT:
		return "MAT"
	case FormatLTA:
		return "LTA"
	default:
		return "Unknown"
	}
}

// DetectFormat returns the transform format implied by the file extension.
func DetectFormat(path string) Format {
	switch {
	case strings.HasSuffix(path, ".mat"):
		return FormatMAT
	case strings.HasSuffix(path, ".lta"):
		return FormatLTA
	default:
		return FormatUnknown
	}
}

// Load reads an affine transform from path.
// An empty path yields the identity transform.
func Load(path string) (mgl64.Mat4, error) {
	if path == "" {
		return mgl64.Ident4(), nil
	}

	switch DetectFormat(path) {
	case FormatMAT:
		return LoadMAT(path)
	case FormatLTA:
		return LoadLTA(path)
	default:
		return mgl64.Mat4{}, fmt.Errorf("%w: %s", ErrUnsupportedTransform, path)
	}
}

// LoadMAT reads an FSL-style plain-matrix transform file.
func LoadMAT(path string) (mgl64.Mat4, error) {
	f, err := os.Open(path)
	if err != nil {
		return mgl64.Mat4{}, fmt.Errorf("reading MAT file: %w", err)
	}
	defer f.Close()
	return ParseMAT(f)
}

// ParseMAT parses a plain-matrix transform: 4 rows of 4 whitespace-separated
// numbers, row-major. Blank lines and '#' comment lines are skipped.
func ParseMAT(r io.Reader) (mgl64.Mat4, error) {
	var rows [][4]float64

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		row, err := parseRow(line)
		if err != nil {
			return mgl64.Mat4{}, fmt.Errorf("%w: %v", ErrMalformedTransform, err)
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return mgl64.Mat4{}, fmt.Errorf("reading MAT data: %w", err)
	}

	if len(rows) != 4 {
		return mgl64.Mat4{}, fmt.Errorf("%w: expected 4 matrix rows, found %d", ErrMalformedTransform, len(rows))
	}

	return fromRows(rows), nil
}

// LoadLTA reads a FreeSurfer linear-transform-array file.
func LoadLTA(path string) (mgl64.Mat4, error) {
	f, err := os.Open(path)
	if err != nil {
		return mgl64.Mat4{}, fmt.Errorf("reading LTA file: %w", err)
	}
	defer f.Close()
	return ParseLTA(f)
}

// ParseLTA parses an LTA transform. The free-form header is skipped until a
// line beginning with the dimension marker "1 4 4"; the four lines that
// follow are the matrix rows.
func ParseLTA(r io.Reader) (mgl64.Mat4, error) {
	scanner := bufio.NewScanner(r)

	found := false
	for scanner.Scan() {
		if strings.HasPrefix(scanner.Text(), "1 4 4") {
			found = true
			break
		}
	}
	if !found {
		if err := scanner.Err(); err != nil {
			return mgl64.Mat4{}, fmt.Errorf("reading LTA data: %w", err)
		}
		return mgl64.Mat4{}, fmt.Errorf("%w: missing '1 4 4' dimension marker", ErrMalformedTransform)
	}

	var rows [][4]float64
	for len(rows) < 4 && scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		row, err := parseRow(line)
		if err != nil {
			return mgl64.Mat4{}, fmt.Errorf("%w: %v", ErrMalformedTransform, err)
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return mgl64.Mat4{}, fmt.Errorf("reading LTA data: %w", err)
	}

	if len(rows) < 4 {
		return mgl64.Mat4{}, fmt.Errorf("%w: expected 4 matrix rows after marker, found %d", ErrMalformedTransform, len(rows))
	}

	return fromRows(rows), nil
}

// parseRow parses one matrix row of 4 whitespace-separated numbers.
func parseRow(line string) ([4]float64, error) {
	fields := strings.Fields(line)
	if len(fields) != 4 {
		return [4]float64{}, fmt.Errorf("expected 4 values per row, found %d in %q", len(fields), line)
	}

	var row [4]float64
	for i, field := range fields {
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return [4]float64{}, fmt.Errorf("parsing %q: not a number", field)
		}
		row[i] = v
	}
	return row, nil
}

// fromRows builds a column-major Mat4 from row-major rows.
func fromRows(rows [][4]float64) mgl64.Mat4 {
	var m mgl64.Mat4
	for i, row := range rows {
		for j, v := range row {
			m.Set(i, j, v)
		}
	}
	return m
}

// Rows returns the matrix as row-major rows, the layout used by both
// transform file formats.
func Rows(m mgl64.Mat4) [4][4]float64 {
	var rows [4][4]float64
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			rows[i][j] = m.At(i, j)
		}
	}
	return rows
}

// Invert returns the inverse of m, or ErrSingularMatrix if m is not
// invertible.
func Invert(m mgl64.Mat4) (mgl64.Mat4, error) {
	if mgl64.FloatEqual(m.Det(), 0) {
		return mgl64.Mat4{}, ErrSingularMatrix
	}
	return m.Inv(), nil
}

// Compose returns the matrix product a * b. When concatenating a recentring
// translation with a file-supplied transform, the translation goes on the
// right so it reaches the original coordinates first.
func Compose(a, b mgl64.Mat4) mgl64.Mat4 {
	return a.Mul4(b)
}

// Apply transforms every 3D point in coords by m. coords is a flat slice of
// length 3N (x, y, z per point); each point is promoted to homogeneous
// coordinates with w=1 and the first three components of the product are
// kept. The returned slice is newly allocated.
func Apply(coords []float64, m mgl64.Mat4) []float64 {
	out := make([]float64, len(coords))
	for i := 0; i+2 < len(coords); i += 3 {
		v := m.Mul4x1(mgl64.Vec4{coords[i], coords[i+1], coords[i+2], 1})
		out[i] = v[0]
		out[i+1] = v[1]
		out[i+2] = v[2]
	}
	return out
}

// Translation returns a pure translation matrix.
func Translation(x, y, z float64) mgl64.Mat4 {
	return mgl64.Translate3D(x, y, z)
}
