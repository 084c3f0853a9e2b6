// Package surface normalizes FreeSurfer-generated GIFTI surface meshes.
//
// FreeSurfer records an offset to the center of the brain volume that not
// all consumers respect. Normalization materializes that offset (or an
// externally supplied affine transform) into the vertex coordinates and
// rewrites the mesh metadata so the correction cannot be applied twice.
package surface

import (
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/oesteban/surfnorm/pkg/gifti"
)

// Volume-geometry center offset keys written by FreeSurfer, one per axis
// (right, anterior, superior).
var volGeomKeys = [3]string{"VolGeomC_R", "VolGeomC_A", "VolGeomC_S"}

// Zeroed offset value, in FreeSurfer's fixed six-decimal formatting.
const zeroedOffset = "0.000000"

// Structural metadata for midthickness surfaces.
const (
	keyStructureSecondary = "AnatomicalStructureSecondary"
	keyGeometricType      = "GeometricType"
	valMidThickness       = "MidThickness"
	valAnatomical         = "Anatomical"
)

// Suffix appended to Operation B outputs, replacing the .gii extension.
const targetSuffix = "_target.surf.gii"

// Normalizer rewrites GIFTI surfaces into a consistent coordinate
// convention. It holds no state across calls; concurrent use on disjoint
// files is safe.
type Normalizer struct {
	outDir string
	log    *zap.Logger
}

// New returns a Normalizer writing into outDir ("" means the current
// directory). A nil logger disables logging.
func New(outDir string, log *zap.Logger) *Normalizer {
	if outDir == "" {
		outDir = "."
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Normalizer{outDir: outDir, log: log}
}

// readOffsets extracts the three volume-geometry center offsets from the
// pointset metadata. Missing keys default to zero.
func readOffsets(meta gifti.MetaData) ([3]float64, error) {
	var offset [3]float64
	for i, key := range volGeomKeys {
		val, ok := meta.Get(key)
		if !ok {
			continue
		}
		v, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return offset, fmt.Errorf("parsing %s=%q: not a number", key, val)
		}
		offset[i] = v
	}
	return offset, nil
}

func isVolGeomKey(name string) bool {
	for _, key := range volGeomKeys {
		if name == key {
			return true
		}
	}
	return false
}

// loadMesh parses a GIFTI file and checks that both mandatory components
// are present.
func loadMesh(path string) (*gifti.Image, *gifti.DataArray, *gifti.DataArray, error) {
	img, err := gifti.ParseFile(path)
	if err != nil {
		return nil, nil, nil, err
	}
	pointset, err := img.Pointset()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	triangles, err := img.Triangles()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, pointset, triangles, nil
}
