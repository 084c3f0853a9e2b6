package affine

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

const identityMAT = `1 0 0 0
0 1 0 0
0 0 1 0
0 0 0 1
`

const translationMAT = `1 0 0 5
0 1 0 0
0 0 1 0
0 0 0 1
`

const identityLTA = `# LTA file
type      = 1
nxforms   = 1
mean      = 0.0 0.0 0.0
sigma     = 1.0
1 4 4
1 0 0 0
0 1 0 0
0 0 1 0
0 0 0 1
src volume info
dst volume info
`

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		path     string
		expected Format
	}{
		{"anat2std.mat", FormatMAT},
		{"anat2std.lta", FormatLTA},
		{"anat2std.txt", FormatUnknown},
		{"anat2std", FormatUnknown},
	}

	for _, tc := range tests {
		if got := DetectFormat(tc.path); got != tc.expected {
			t.Errorf("DetectFormat(%q) = %v, expected %v", tc.path, got, tc.expected)
		}
	}
}

func TestLoad_EmptyPathIsIdentity(t *testing.T) {
	m, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if m != mgl64.Ident4() {
		t.Errorf("expected identity, got %v", m)
	}
}

func TestLoad_UnsupportedExtension(t *testing.T) {
	_, err := Load("transform.txt")
	if !errors.Is(err, ErrUnsupportedTransform) {
		t.Errorf("expected ErrUnsupportedTransform, got %v", err)
	}
}

func TestLoadMAT_Translation(t *testing.T) {
	path := writeTemp(t, "trans.mat", translationMAT)

	m, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	out := Apply([]float64{0, 0, 0}, m)
	expected := []float64{5, 0, 0}
	for i := range expected {
		if out[i] != expected[i] {
			t.Errorf("coordinate %d: got %g, expected %g", i, out[i], expected[i])
		}
	}
}

func TestParseMAT_CommentsAndBlankLines(t *testing.T) {
	content := "# FLIRT matrix\n\n" + identityMAT
	m, err := ParseMAT(strings.NewReader(content))
	if err != nil {
		t.Fatalf("ParseMAT failed: %v", err)
	}
	if m != mgl64.Ident4() {
		t.Errorf("expected identity, got %v", m)
	}
}

func TestParseMAT_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"too few rows", "1 0 0 0\n0 1 0 0\n0 0 1 0\n"},
		{"too many rows", identityMAT + "0 0 0 1\n"},
		{"short row", "1 0 0\n0 1 0 0\n0 0 1 0\n0 0 0 1\n"},
		{"non-numeric", "1 0 0 x\n0 1 0 0\n0 0 1 0\n0 0 0 1\n"},
		{"empty", ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseMAT(strings.NewReader(tc.content))
			if !errors.Is(err, ErrMalformedTransform) {
				t.Errorf("expected ErrMalformedTransform, got %v", err)
			}
		})
	}
}

func TestLoadLTA_IdentityInverted(t *testing.T) {
	path := writeTemp(t, "ident.lta", identityLTA)

	m, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	inv, err := Invert(m)
	if err != nil {
		t.Fatalf("Invert failed: %v", err)
	}

	out := Apply([]float64{1, 2, 3}, inv)
	expected := []float64{1, 2, 3}
	for i := range expected {
		if out[i] != expected[i] {
			t.Errorf("coordinate %d: got %g, expected %g", i, out[i], expected[i])
		}
	}
}

func TestParseLTA_MissingMarker(t *testing.T) {
	content := "type = 1\n1 0 0 0\n0 1 0 0\n0 0 1 0\n0 0 0 1\n"
	_, err := ParseLTA(strings.NewReader(content))
	if !errors.Is(err, ErrMalformedTransform) {
		t.Errorf("expected ErrMalformedTransform, got %v", err)
	}
}

func TestParseLTA_TruncatedMatrix(t *testing.T) {
	content := "type = 1\n1 4 4\n1 0 0 0\n0 1 0 0\n"
	_, err := ParseLTA(strings.NewReader(content))
	if !errors.Is(err, ErrMalformedTransform) {
		t.Errorf("expected ErrMalformedTransform, got %v", err)
	}
}

func TestParseLTA_RowMajorOrder(t *testing.T) {
	content := "1 4 4\n1 0 0 10\n0 1 0 20\n0 0 1 30\n0 0 0 1\n"
	m, err := ParseLTA(strings.NewReader(content))
	if err != nil {
		t.Fatalf("ParseLTA failed: %v", err)
	}

	rows := Rows(m)
	if rows[0][3] != 10 || rows[1][3] != 20 || rows[2][3] != 30 {
		t.Errorf("translation column mismatch: %v", rows)
	}

	out := Apply([]float64{1, 1, 1}, m)
	expected := []float64{11, 21, 31}
	for i := range expected {
		if out[i] != expected[i] {
			t.Errorf("coordinate %d: got %g, expected %g", i, out[i], expected[i])
		}
	}
}

func TestInvert_Singular(t *testing.T) {
	_, err := Invert(mgl64.Mat4{})
	if !errors.Is(err, ErrSingularMatrix) {
		t.Errorf("expected ErrSingularMatrix, got %v", err)
	}
}

func TestInvert_Translation(t *testing.T) {
	inv, err := Invert(Translation(5, -3, 2))
	if err != nil {
		t.Fatalf("Invert failed: %v", err)
	}

	out := Apply([]float64{5, -3, 2}, inv)
	for i, v := range out {
		if v != 0 {
			t.Errorf("coordinate %d: got %g, expected 0", i, v)
		}
	}
}

func TestCompose_TranslationThenScale(t *testing.T) {
	scale := mgl64.Scale3D(2, 2, 2)
	shift := Translation(5, 0, 0)

	// Compose(scale, shift) applies the shift to the original coordinates
	// first: scale * (p + 5).
	m := Compose(scale, shift)
	out := Apply([]float64{1, 0, 0}, m)
	if out[0] != 12 {
		t.Errorf("got x=%g, expected 12", out[0])
	}

	// Reversed order scales first: (2 * p) + 5.
	m = Compose(shift, scale)
	out = Apply([]float64{1, 0, 0}, m)
	if out[0] != 7 {
		t.Errorf("got x=%g, expected 7", out[0])
	}
}

func TestApply_MultiplePoints(t *testing.T) {
	m := Translation(1, 2, 3)
	coords := []float64{0, 0, 0, 10, 10, 10, -1, -2, -3}

	out := Apply(coords, m)
	expected := []float64{1, 2, 3, 11, 12, 13, 0, 0, 0}
	if len(out) != len(expected) {
		t.Fatalf("expected %d values, got %d", len(expected), len(out))
	}
	for i := range expected {
		if out[i] != expected[i] {
			t.Errorf("value %d: got %g, expected %g", i, out[i], expected[i])
		}
	}
}
