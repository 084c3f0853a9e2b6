package gifti

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
)

const giftiDoctype = `<!DOCTYPE GIFTI SYSTEM "http://www.nitrc.org/frs/download.php/115/gifti.dtd">`

// WriteFile serializes the image and writes it to path. The file is fully
// encoded in memory first, so an encoding failure never leaves a partial
// file on disk.
func WriteFile(img *Image, path string) error {
	data, err := Write(img)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing GIFTI file: %w", err)
	}
	return nil
}

// Write serializes the image to GIFTI XML.
func Write(img *Image) ([]byte, error) {
	var b bytes.Buffer

	b.WriteString("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	b.WriteString(giftiDoctype)
	b.WriteString("\n")

	version := img.Version
	if version == "" {
		version = "1.0"
	}
	fmt.Fprintf(&b, "<GIFTI Version=%q NumberOfDataArrays=\"%d\">\n", version, len(img.Arrays))

	writeMeta(&b, img.Meta, "   ")

	if img.LabelTable == "" {
		b.WriteString("   <LabelTable/>\n")
	} else {
		fmt.Fprintf(&b, "   <LabelTable>%s</LabelTable>\n", img.LabelTable)
	}

	for i, da := range img.Arrays {
		if err := writeArray(&b, da); err != nil {
			return nil, fmt.Errorf("data array %d: %w", i, err)
		}
	}

	b.WriteString("</GIFTI>\n")
	return b.Bytes(), nil
}

func writeMeta(b *bytes.Buffer, meta MetaData, indent string) {
	if len(meta) == 0 {
		fmt.Fprintf(b, "%s<MetaData/>\n", indent)
		return
	}

	fmt.Fprintf(b, "%s<MetaData>\n", indent)
	for _, p := range meta {
		fmt.Fprintf(b, "%s   <MD>\n", indent)
		fmt.Fprintf(b, "%s      <Name><![CDATA[%s]]></Name>\n", indent, escapeCDATA(p.Name))
		fmt.Fprintf(b, "%s      <Value><![CDATA[%s]]></Value>\n", indent, escapeCDATA(p.Value))
		fmt.Fprintf(b, "%s   </MD>\n", indent)
	}
	fmt.Fprintf(b, "%s</MetaData>\n", indent)
}

func writeArray(b *bytes.Buffer, da *DataArray) error {
	if da.DataType.Size() == 0 {
		return fmt.Errorf("%w: %s", ErrUnsupportedDataType, da.DataType)
	}

	b.WriteString("   <DataArray ArrayIndexingOrder=\"RowMajorOrder\"\n")
	fmt.Fprintf(b, "              DataType=%q\n", da.DataType)
	for i, d := range da.Dims {
		fmt.Fprintf(b, "              Dim%d=\"%d\"\n", i, d)
	}
	fmt.Fprintf(b, "              Dimensionality=\"%d\"\n", len(da.Dims))
	fmt.Fprintf(b, "              Encoding=%q\n", da.Encoding)
	fmt.Fprintf(b, "              Endian=%q\n", endianOrDefault(da.Endian))
	fmt.Fprintf(b, "              ExternalFileName=\"%s\"\n", attrEscape(da.ExtFileName))
	fmt.Fprintf(b, "              ExternalFileOffset=\"%s\"\n", attrEscape(da.ExtFileOffset))
	fmt.Fprintf(b, "              Intent=%q>\n", da.Intent)

	writeMeta(b, da.Meta, "      ")

	if cs := da.CoordSys; cs != nil {
		b.WriteString("      <CoordinateSystemTransformMatrix>\n")
		fmt.Fprintf(b, "         <DataSpace><![CDATA[%s]]></DataSpace>\n", cs.DataSpace)
		fmt.Fprintf(b, "         <TransformedSpace><![CDATA[%s]]></TransformedSpace>\n", cs.TransformedSpace)
		b.WriteString("         <MatrixData>")
		for i, v := range cs.Transform {
			if i > 0 {
				if i%4 == 0 {
					b.WriteString("\n                     ")
				} else {
					b.WriteString(" ")
				}
			}
			b.WriteString(formatFloat(v))
		}
		b.WriteString("</MatrixData>\n")
		b.WriteString("      </CoordinateSystemTransformMatrix>\n")
	}

	payload, err := encodeData(da)
	if err != nil {
		return err
	}
	fmt.Fprintf(b, "      <Data>%s</Data>\n", payload)
	b.WriteString("   </DataArray>\n")
	return nil
}

func encodeData(da *DataArray) (string, error) {
	switch da.Encoding {
	case EncodingASCII:
		return encodeASCII(da)
	case EncodingBase64:
		raw, err := encodeBinary(da)
		if err != nil {
			return "", err
		}
		return base64.StdEncoding.EncodeToString(raw), nil
	case EncodingGZipBase64:
		raw, err := encodeBinary(da)
		if err != nil {
			return "", err
		}
		var zb bytes.Buffer
		zw := gzip.NewWriter(&zb)
		if _, err := zw.Write(raw); err != nil {
			return "", fmt.Errorf("gzip: %w", err)
		}
		if err := zw.Close(); err != nil {
			return "", fmt.Errorf("gzip: %w", err)
		}
		return base64.StdEncoding.EncodeToString(zb.Bytes()), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedEncoding, da.Encoding)
	}
}

func encodeASCII(da *DataArray) (string, error) {
	want := da.Len()
	var parts []string

	if da.DataType.IsFloat() {
		if len(da.Floats) != want {
			return "", countMismatch(len(da.Floats), want)
		}
		parts = make([]string, want)
		for i, v := range da.Floats {
			parts[i] = formatFloat(v)
		}
	} else {
		if len(da.Ints) != want {
			return "", countMismatch(len(da.Ints), want)
		}
		parts = make([]string, want)
		for i, v := range da.Ints {
			parts[i] = strconv.FormatInt(int64(v), 10)
		}
	}

	return strings.Join(parts, " "), nil
}

func encodeBinary(da *DataArray) ([]byte, error) {
	want := da.Len()
	order := byteOrder(da.Endian)

	switch da.DataType {
	case TypeFloat32:
		if len(da.Floats) != want {
			return nil, countMismatch(len(da.Floats), want)
		}
		raw := make([]byte, want*4)
		for i, v := range da.Floats {
			order.PutUint32(raw[i*4:], math.Float32bits(float32(v)))
		}
		return raw, nil
	case TypeFloat64:
		if len(da.Floats) != want {
			return nil, countMismatch(len(da.Floats), want)
		}
		raw := make([]byte, want*8)
		for i, v := range da.Floats {
			order.PutUint64(raw[i*8:], math.Float64bits(v))
		}
		return raw, nil
	case TypeInt32:
		if len(da.Ints) != want {
			return nil, countMismatch(len(da.Ints), want)
		}
		raw := make([]byte, want*4)
		for i, v := range da.Ints {
			order.PutUint32(raw[i*4:], uint32(v))
		}
		return raw, nil
	case TypeUInt8:
		if len(da.Ints) != want {
			return nil, countMismatch(len(da.Ints), want)
		}
		raw := make([]byte, want)
		for i, v := range da.Ints {
			raw[i] = byte(v)
		}
		return raw, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDataType, da.DataType)
	}
}

func countMismatch(have, want int) error {
	return fmt.Errorf("%w: array holds %d values, dimensions require %d", ErrInvalidGIFTI, have, want)
}

func endianOrDefault(endian string) string {
	if endian == "" {
		return LittleEndian
	}
	return endian
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// escapeCDATA splits any ']]>' so the value survives inside a CDATA section.
func escapeCDATA(s string) string {
	return strings.ReplaceAll(s, "]]>", "]]]]><![CDATA[>")
}

var attrReplacer = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")

func attrEscape(s string) string {
	return attrReplacer.Replace(s)
}
