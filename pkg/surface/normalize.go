package surface

import (
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/oesteban/surfnorm/pkg/affine"
	"github.com/oesteban/surfnorm/pkg/gifti"
)

// Normalize re-centers a GIFTI surface to align with native anatomical
// space. The mesh's own embedded volume-geometry offset is added to every
// vertex and the offset metadata is zeroed so later consumers cannot apply
// it again. If transformFile is non-empty, the transform it holds is applied
// after the recentring (coordinates become transform * (vertex + offset)).
//
// Surfaces whose file name contains "midthickness" or "graymid" gain the
// AnatomicalStructureSecondary/GeometricType descriptors expected by HCP
// tools if they are not already present.
//
// The output keeps the input's base name, written into the normalizer's
// output directory; the absolute output path is returned. Nothing is
// written if any step fails.
func (n *Normalizer) Normalize(inFile, transformFile string) (string, error) {
	img, pointset, _, err := loadMesh(inFile)
	if err != nil {
		return "", err
	}

	xfm, err := affine.Load(transformFile)
	if err != nil {
		return "", err
	}

	offset, err := readOffsets(pointset.Meta)
	if err != nil {
		return "", err
	}

	// Recentring happens on the original coordinates, before the transform:
	// the translation is composed on the right of the matrix product.
	m := affine.Compose(xfm, affine.Translation(offset[0], offset[1], offset[2]))
	pointset.Floats = affine.Apply(pointset.Floats, m)
	pointset.DataType = gifti.TypeFloat32

	// Zero the consumed offsets in place; absent keys stay absent.
	for i := range pointset.Meta {
		if isVolGeomKey(pointset.Meta[i].Name) {
			pointset.Meta[i].Value = zeroedOffset
		}
	}

	base := filepath.Base(inFile)
	lower := strings.ToLower(base)
	if strings.Contains(lower, "midthickness") || strings.Contains(lower, "graymid") {
		hasSecondary := pointset.Meta.Has(keyStructureSecondary)
		hasGeomType := pointset.Meta.Has(keyGeometricType)
		if !hasSecondary {
			pointset.Meta.Insert(1, gifti.NVPair{Name: keyStructureSecondary, Value: valMidThickness})
		}
		if !hasGeomType {
			pointset.Meta.Insert(2, gifti.NVPair{Name: keyGeometricType, Value: valAnatomical})
		}
	}

	outFile := filepath.Join(n.outDir, base)
	if err := gifti.WriteFile(img, outFile); err != nil {
		return "", err
	}

	absOut, err := filepath.Abs(outFile)
	if err != nil {
		absOut = outFile
	}

	n.log.Info("normalized surface",
		zap.String("in", inFile),
		zap.String("out", absOut),
		zap.Int("vertices", pointset.Rows()),
		zap.Float64s("offset", offset[:]))

	return absOut, nil
}

// ApplyOptions controls ApplyTransform.
type ApplyOptions struct {
	// Invert applies the inverse of the loaded transform.
	Invert bool
	// Center adds the mesh's volume-geometry offset to the transformed
	// coordinates and zeroes the offset metadata.
	Center bool
	// OutDir overrides the normalizer's output directory for this call.
	OutDir string
}

// ApplyTransform maps a GIFTI surface onto a target space with an affine
// transform read from transformFile (MAT or LTA format).
//
// The vertex coordinates are replaced by transform * vertex. With
// opts.Center set, the volume-geometry offset is added afterwards, post
// transform (this ordering differs from Normalize and matches the
// FreeSurfer absolute-coordinate convention), and the offset metadata is
// zeroed. The pointset's coordinate-system record is rewritten to mark the
// mesh as already aligned (both spaces ALIGNED_ANAT, identity transform).
// Coordinates are narrowed to 32-bit floats and face indices to 32-bit
// integers; the triangle array drops its metadata and coordinate system.
//
// The output file name is the input's base name with "_target.surf.gii"
// replacing the .gii extension. Nothing is written if any step fails.
func (n *Normalizer) ApplyTransform(inFile, transformFile string, opts ApplyOptions) (string, error) {
	img, pointset, triangles, err := loadMesh(inFile)
	if err != nil {
		return "", err
	}

	xfm, err := affine.Load(transformFile)
	if err != nil {
		return "", err
	}
	if opts.Invert {
		if xfm, err = affine.Invert(xfm); err != nil {
			return "", err
		}
	}

	coords := affine.Apply(pointset.Floats, xfm)

	if opts.Center {
		offset, err := readOffsets(pointset.Meta)
		if err != nil {
			return "", err
		}
		for i := 0; i+2 < len(coords); i += 3 {
			coords[i] += offset[0]
			coords[i+1] += offset[1]
			coords[i+2] += offset[2]
		}
		for _, key := range volGeomKeys {
			pointset.Meta.Set(key, zeroedOffset)
		}
	}

	pointset.Floats = coords
	pointset.DataType = gifti.TypeFloat32

	// The transform is now materialized in the coordinates; record the mesh
	// as already in target space so it is not applied twice.
	pointset.CoordSys = &gifti.CoordSystem{
		DataSpace:        gifti.XformAlignedAnat,
		TransformedSpace: gifti.XformAlignedAnat,
		Transform:        gifti.IdentityTransform(),
	}

	triangles.DataType = gifti.TypeInt32
	triangles.Meta = nil
	triangles.CoordSys = nil

	outDir := opts.OutDir
	if outDir == "" {
		outDir = n.outDir
	}
	base := filepath.Base(inFile)
	outFile := filepath.Join(outDir, strings.TrimSuffix(base, ".gii")+targetSuffix)

	if err := gifti.WriteFile(img, outFile); err != nil {
		return "", err
	}

	n.log.Info("applied transform to surface",
		zap.String("in", inFile),
		zap.String("transform", transformFile),
		zap.Bool("invert", opts.Invert),
		zap.Bool("center", opts.Center),
		zap.String("out", outFile))

	return outFile, nil
}
