package gifti

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"encoding/binary"
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

type xmlGIFTI struct {
	XMLName xml.Name       `xml:"GIFTI"`
	Version string         `xml:"Version,attr"`
	Meta    *xmlMetaData   `xml:"MetaData"`
	Labels  *xmlLabelTable `xml:"LabelTable"`
	Arrays  []xmlDataArray `xml:"DataArray"`
}

type xmlMetaData struct {
	MD []xmlMD `xml:"MD"`
}

type xmlMD struct {
	Name  string `xml:"Name"`
	Value string `xml:"Value"`
}

type xmlLabelTable struct {
	Inner string `xml:",innerxml"`
}

type xmlCoordSys struct {
	DataSpace        string `xml:"DataSpace"`
	TransformedSpace string `xml:"TransformedSpace"`
	MatrixData       string `xml:"MatrixData"`
}

type xmlDataArray struct {
	Intent         string       `xml:"Intent,attr"`
	DataType       string       `xml:"DataType,attr"`
	Order          string       `xml:"ArrayIndexingOrder,attr"`
	Dimensionality int          `xml:"Dimensionality,attr"`
	Dim0           int          `xml:"Dim0,attr"`
	Dim1           int          `xml:"Dim1,attr"`
	Dim2           int          `xml:"Dim2,attr"`
	Dim3           int          `xml:"Dim3,attr"`
	Dim4           int          `xml:"Dim4,attr"`
	Dim5           int          `xml:"Dim5,attr"`
	Encoding       string       `xml:"Encoding,attr"`
	Endian         string       `xml:"Endian,attr"`
	ExtFileName    string       `xml:"ExternalFileName,attr"`
	ExtFileOffset  string       `xml:"ExternalFileOffset,attr"`
	Meta           *xmlMetaData `xml:"MetaData"`
	CoordSys       *xmlCoordSys `xml:"CoordinateSystemTransformMatrix"`
	Data           string       `xml:"Data"`
}

// ParseFile parses a GIFTI file from disk.
func ParseFile(path string) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading GIFTI file: %w", err)
	}
	img, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// Parse parses a GIFTI file from raw bytes.
func Parse(data []byte) (*Image, error) {
	var doc xmlGIFTI
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGIFTI, err)
	}

	img := &Image{Version: doc.Version}
	if img.Version == "" {
		img.Version = "1.0"
	}
	img.Meta = convertMeta(doc.Meta)
	if doc.Labels != nil {
		img.LabelTable = strings.TrimSpace(doc.Labels.Inner)
	}

	for i := range doc.Arrays {
		da, err := convertArray(&doc.Arrays[i])
		if err != nil {
			return nil, fmt.Errorf("data array %d: %w", i, err)
		}
		img.Arrays = append(img.Arrays, da)
	}

	return img, nil
}

func convertMeta(xm *xmlMetaData) MetaData {
	if xm == nil {
		return nil
	}
	meta := make(MetaData, 0, len(xm.MD))
	for _, md := range xm.MD {
		meta = append(meta, NVPair{Name: md.Name, Value: md.Value})
	}
	return meta
}

func convertArray(xa *xmlDataArray) (*DataArray, error) {
	da := &DataArray{
		Intent:        xa.Intent,
		DataType:      DataType(xa.DataType),
		Encoding:      xa.Encoding,
		Endian:        xa.Endian,
		ExtFileName:   xa.ExtFileName,
		ExtFileOffset: xa.ExtFileOffset,
		Meta:          convertMeta(xa.Meta),
	}

	if da.DataType.Size() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDataType, xa.DataType)
	}

	da.Dims = collectDims(xa)
	if len(da.Dims) == 0 {
		return nil, fmt.Errorf("%w: array has no dimensions", ErrInvalidGIFTI)
	}

	if xa.CoordSys != nil {
		cs, err := convertCoordSys(xa.CoordSys)
		if err != nil {
			return nil, err
		}
		da.CoordSys = cs
	}

	if err := decodeData(da, xa); err != nil {
		return nil, err
	}

	// Normalize column-major 2-D payloads to row-major in memory.
	if xa.Order == ColumnMajorOrder && len(da.Dims) == 2 {
		transpose(da)
	}

	return da, nil
}

func collectDims(xa *xmlDataArray) []int {
	all := []int{xa.Dim0, xa.Dim1, xa.Dim2, xa.Dim3, xa.Dim4, xa.Dim5}
	n := xa.Dimensionality
	if n <= 0 || n > len(all) {
		// Infer from the leading non-zero dims.
		n = 0
		for _, d := range all {
			if d == 0 {
				break
			}
			n++
		}
	}
	return all[:n]
}

func convertCoordSys(xc *xmlCoordSys) (*CoordSystem, error) {
	cs := &CoordSystem{
		DataSpace:        ParseXformCode(strings.TrimSpace(xc.DataSpace)),
		TransformedSpace: ParseXformCode(strings.TrimSpace(xc.TransformedSpace)),
	}

	fields := strings.Fields(xc.MatrixData)
	if len(fields) != 16 {
		return nil, fmt.Errorf("%w: coordinate system matrix has %d values, expected 16", ErrInvalidGIFTI, len(fields))
	}
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: parsing matrix value %q", ErrInvalidGIFTI, f)
		}
		cs.Transform[i] = v
	}
	return cs, nil
}

func decodeData(da *DataArray, xa *xmlDataArray) error {
	want := da.Len()

	switch xa.Encoding {
	case EncodingASCII:
		return decodeASCII(da, xa.Data, want)
	case EncodingBase64, EncodingGZipBase64:
		raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(xa.Data))
		if err != nil {
			return fmt.Errorf("%w: base64: %v", ErrInvalidGIFTI, err)
		}
		if xa.Encoding == EncodingGZipBase64 {
			zr, err := gzip.NewReader(bytes.NewReader(raw))
			if err != nil {
				return fmt.Errorf("%w: gzip: %v", ErrInvalidGIFTI, err)
			}
			raw, err = io.ReadAll(zr)
			if err != nil {
				return fmt.Errorf("%w: gzip: %v", ErrInvalidGIFTI, err)
			}
			if err := zr.Close(); err != nil {
				return fmt.Errorf("%w: gzip: %v", ErrInvalidGIFTI, err)
			}
		}
		return decodeBinary(da, raw, want)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedEncoding, xa.Encoding)
	}
}

func decodeASCII(da *DataArray, text string, want int) error {
	fields := strings.Fields(text)
	if len(fields) != want {
		return fmt.Errorf("%w: array has %d values, dimensions require %d", ErrInvalidGIFTI, len(fields), want)
	}

	if da.DataType.IsFloat() {
		da.Floats = make([]float64, want)
		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return fmt.Errorf("%w: parsing value %q", ErrInvalidGIFTI, f)
			}
			da.Floats[i] = v
		}
		return nil
	}

	da.Ints = make([]int32, want)
	for i, f := range fields {
		v, err := strconv.ParseInt(f, 10, 32)
		if err != nil {
			return fmt.Errorf("%w: parsing value %q", ErrInvalidGIFTI, f)
		}
		da.Ints[i] = int32(v)
	}
	return nil
}

func decodeBinary(da *DataArray, raw []byte, want int) error {
	size := da.DataType.Size()
	if len(raw) != want*size {
		return fmt.Errorf("%w: array payload is %d bytes, dimensions require %d", ErrInvalidGIFTI, len(raw), want*size)
	}

	order := byteOrder(da.Endian)

	switch da.DataType {
	case TypeFloat32:
		da.Floats = make([]float64, want)
		for i := 0; i < want; i++ {
			bits := order.Uint32(raw[i*4:])
			da.Floats[i] = float64(math.Float32frombits(bits))
		}
	case TypeFloat64:
		da.Floats = make([]float64, want)
		for i := 0; i < want; i++ {
			da.Floats[i] = math.Float64frombits(order.Uint64(raw[i*8:]))
		}
	case TypeInt32:
		da.Ints = make([]int32, want)
		for i := 0; i < want; i++ {
			da.Ints[i] = int32(order.Uint32(raw[i*4:]))
		}
	case TypeUInt8:
		da.Ints = make([]int32, want)
		for i := 0; i < want; i++ {
			da.Ints[i] = int32(raw[i])
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedDataType, da.DataType)
	}

	return nil
}

func byteOrder(endian string) binary.ByteOrder {
	if endian == BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// transpose converts a column-major 2-D payload to row-major.
func transpose(da *DataArray) {
	rows, cols := da.Dims[0], da.Dims[1]
	if da.Floats != nil {
		out := make([]float64, len(da.Floats))
		for r := 0; r < rows; r++ {
			for c := 0; c < cols; c++ {
				out[r*cols+c] = da.Floats[c*rows+r]
			}
		}
		da.Floats = out
	}
	if da.Ints != nil {
		out := make([]int32, len(da.Ints))
		for r := 0; r < rows; r++ {
			for c := 0; c < cols; c++ {
				out[r*cols+c] = da.Ints[c*rows+r]
			}
		}
		da.Ints = out
	}
}
