// Package gifti reads and writes GIFTI surface files.
//
// A GIFTI file is an XML container holding typed data arrays. Surface meshes
// carry two: a pointset array of vertex coordinates and a triangle array of
// face index triples. The pointset additionally carries a free-form metadata
// list and a coordinate-system record. The codec round-trips every field it
// does not explicitly rewrite, including array order, data encoding and
// untouched metadata entries.
package gifti

import (
	"errors"
	"fmt"
	"strconv"
)

// Structure errors.
var (
	ErrInvalidGIFTI        = errors.New("invalid GIFTI file")
	ErrMissingPointset     = errors.New("GIFTI file has no pointset array")
	ErrMissingTriangles    = errors.New("GIFTI file has no triangle array")
	ErrUnsupportedEncoding = errors.New("unsupported GIFTI data encoding")
	ErrUnsupportedDataType = errors.New("unsupported GIFTI data type")
)

// Array intents relevant to surface meshes.
const (
	IntentPointset = "NIFTI_INTENT_POINTSET"
	IntentTriangle = "NIFTI_INTENT_TRIANGLE"
)

// DataType names a NIfTI element type as stored in the DataType attribute.
type DataType string

// Supported element types.
const (
	TypeUInt8   DataType = "NIFTI_TYPE_UINT8"
	TypeInt32   DataType = "NIFTI_TYPE_INT32"
	TypeFloat32 DataType = "NIFTI_TYPE_FLOAT32"
	TypeFloat64 DataType = "NIFTI_TYPE_FLOAT64"
)

// Size returns the element size in bytes, or 0 for unknown types.
func (t DataType) Size() int {
	switch t {
	case TypeUInt8:
		return 1
	case TypeInt32, TypeFloat32:
		return 4
	case TypeFloat64:
		return 8
	default:
		return 0
	}
}

// IsFloat returns true for floating-point element types.
func (t DataType) IsFloat() bool {
	return t == TypeFloat32 || t == TypeFloat64
}

// Data encodings.
const (
	EncodingASCII      = "ASCII"
	EncodingBase64     = "Base64Binary"
	EncodingGZipBase64 = "GZipBase64Binary"
	EncodingExternal   = "ExternalFileBinary"
)

// Byte orders for binary encodings.
const (
	LittleEndian = "LittleEndian"
	BigEndian    = "BigEndian"
)

// Array indexing orders.
const (
	RowMajorOrder    = "RowMajorOrder"
	ColumnMajorOrder = "ColumnMajorOrder"
)

// XformCode identifies the coordinate space of a coordinate-system record.
type XformCode int32

// NIfTI xform space codes.
const (
	XformUnknown     XformCode = 0
	XformScannerAnat XformCode = 1
	XformAlignedAnat XformCode = 2
	XformTalairach   XformCode = 3
	XformMNI152      XformCode = 4
)

// String returns the NIfTI space name for the code.
func (c XformCode) String() string {
	switch c {
	case XformUnknown:
		return "NIFTI_XFORM_UNKNOWN"
	case XformScannerAnat:
		return "NIFTI_XFORM_SCANNER_ANAT"
	case XformAlignedAnat:
		return "NIFTI_XFORM_ALIGNED_ANAT"
	case XformTalairach:
		return "NIFTI_XFORM_TALAIRACH"
	case XformMNI152:
		return "NIFTI_XFORM_MNI_152"
	default:
		return fmt.Sprintf("NIFTI_XFORM_UNKNOWN(%d)", int32(c))
	}
}

// ParseXformCode converts a space name or bare integer to an XformCode.
func ParseXformCode(s string) XformCode {
	switch s {
	case "NIFTI_XFORM_UNKNOWN":
		return XformUnknown
	case "NIFTI_XFORM_SCANNER_ANAT":
		return XformScannerAnat
	case "NIFTI_XFORM_ALIGNED_ANAT":
		return XformAlignedAnat
	case "NIFTI_XFORM_TALAIRACH":
		return XformTalairach
	case "NIFTI_XFORM_MNI_152":
		return XformMNI152
	}
	if n, err := strconv.Atoi(s); err == nil {
		return XformCode(n)
	}
	return XformUnknown
}

// NVPair is a single name/value metadata entry.
type NVPair struct {
	Name  string
	Value string
}

// MetaData is an ordered metadata list. Order is significant: some consumers
// expect specific entries at specific list positions, so mutation never
// reorders existing entries.
type MetaData []NVPair

// Get returns the value for name and whether the entry exists.
func (m MetaData) Get(name string) (string, bool) {
	for _, p := range m {
		if p.Name == name {
			return p.Value, true
		}
	}
	return "", false
}

// Has reports whether an entry with the given name exists.
func (m MetaData) Has(name string) bool {
	_, ok := m.Get(name)
	return ok
}

// Set updates the first entry with the given name in place, or appends a new
// entry if none exists.
func (m *MetaData) Set(name, value string) {
	for i := range *m {
		if (*m)[i].Name == name {
			(*m)[i].Value = value
			return
		}
	}
	*m = append(*m, NVPair{Name: name, Value: value})
}

// Insert places a new entry at list index i, shifting later entries down.
// Indices past the end append.
func (m *MetaData) Insert(i int, p NVPair) {
	if i < 0 {
		i = 0
	}
	if i >= len(*m) {
		*m = append(*m, p)
		return
	}
	*m = append(*m, NVPair{})
	copy((*m)[i+1:], (*m)[i:])
	(*m)[i] = p
}

// CoordSystem records the source and target coordinate spaces of an array
// together with the 4x4 transform between them, row-major.
type CoordSystem struct {
	DataSpace        XformCode
	TransformedSpace XformCode
	Transform        [16]float64
}

// IdentityTransform returns a row-major 4x4 identity matrix.
func IdentityTransform() [16]float64 {
	return [16]float64{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// DataArray is one typed array of a GIFTI file. Floating-point payloads are
// decoded into Floats, integer payloads into Ints; the writer re-encodes from
// whichever matches DataType.
type DataArray struct {
	Intent        string
	DataType      DataType
	Dims          []int
	Encoding      string
	Endian        string
	ExtFileName   string
	ExtFileOffset string
	Meta          MetaData
	CoordSys      *CoordSystem

	Floats []float64
	Ints   []int32
}

// Len returns the number of elements implied by the array dimensions.
func (da *DataArray) Len() int {
	if len(da.Dims) == 0 {
		return 0
	}
	n := 1
	for _, d := range da.Dims {
		n *= d
	}
	return n
}

// Rows returns Dim0, the number of rows of a 2-D array.
func (da *DataArray) Rows() int {
	if len(da.Dims) == 0 {
		return 0
	}
	return da.Dims[0]
}

// Image is a parsed GIFTI file.
type Image struct {
	Version string
	Meta    MetaData
	// LabelTable holds the raw inner XML of the LabelTable element so
	// unrelated label data survives a rewrite untouched.
	LabelTable string
	Arrays     []*DataArray
}

// ArraysByIntent returns all arrays with the given intent, in file order.
func (img *Image) ArraysByIntent(intent string) []*DataArray {
	var out []*DataArray
	for _, da := range img.Arrays {
		if da.Intent == intent {
			out = append(out, da)
		}
	}
	return out
}

// Pointset returns the first vertex-coordinate array.
func (img *Image) Pointset() (*DataArray, error) {
	if das := img.ArraysByIntent(IntentPointset); len(das) > 0 {
		return das[0], nil
	}
	return nil, ErrMissingPointset
}

// Triangles returns the first face-index array.
func (img *Image) Triangles() (*DataArray, error) {
	if das := img.ArraysByIntent(IntentTriangle); len(das) > 0 {
		return das[0], nil
	}
	return nil, ErrMissingTriangles
}
