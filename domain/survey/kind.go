package survey

import "fmt"

// DatasetKind names one of the input tables a survey is assembled from
type DatasetKind string

const (
	KindLength       DatasetKind = "length"
	KindSpecimen     DatasetKind = "specimen"
	KindCatch        DatasetKind = "catch"
	KindHaulStrata   DatasetKind = "haul_strata"
	KindHaulTransect DatasetKind = "haul_transect"
	KindNASC         DatasetKind = "nasc"
	KindMesh         DatasetKind = "mesh"
)

// DatasetKinds lists every kind in load order
var DatasetKinds = []DatasetKind{
	KindHaulStrata, KindHaulTransect, KindLength, KindSpecimen, KindCatch, KindNASC, KindMesh,
}

// ParseDatasetKind validates a kind name
func ParseDatasetKind(s string) (DatasetKind, error) {
	for _, k := range DatasetKinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown dataset kind %q", s)
}

// Biological reports whether rows of this kind carry region-local haul
// numbers that need the regional haul offset. The stratification table is
// already keyed by survey-wide haul numbers.
func (k DatasetKind) Biological() bool {
	switch k {
	case KindLength, KindSpecimen, KindCatch, KindHaulTransect:
		return true
	}
	return false
}
