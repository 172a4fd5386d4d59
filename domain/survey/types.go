package survey

import (
	"math"
	"slices"
)

// Identifiers
type (
	StratumID  int
	HaulID     int
	TransectID int
)

// Sex is the sex code recorded on biological samples
type Sex int

const (
	SexMale    Sex = 1
	SexFemale  Sex = 2
	SexUnsexed Sex = 3
	// SexAll is a reporting pseudo-category summing every sex
	SexAll Sex = 0
)

// Category collapses any code other than male/female into unsexed
func (s Sex) Category() Sex {
	switch s {
	case SexMale, SexFemale:
		return s
	default:
		return SexUnsexed
	}
}

func (s Sex) String() string {
	switch s {
	case SexMale:
		return "male"
	case SexFemale:
		return "female"
	case SexAll:
		return "all"
	default:
		return "unsexed"
	}
}

// ParseSex maps a report label back to a Sex
func ParseSex(label string) (Sex, bool) {
	switch label {
	case "male":
		return SexMale, true
	case "female":
		return SexFemale, true
	case "unsexed":
		return SexUnsexed, true
	case "all":
		return SexAll, true
	}
	return 0, false
}

// Sexes lists the three sampled categories in table order
var Sexes = []Sex{SexMale, SexFemale, SexUnsexed}

// SexIndex returns the position of the sex category in Sexes
func SexIndex(s Sex) int {
	switch s.Category() {
	case SexMale:
		return 0
	case SexFemale:
		return 1
	default:
		return 2
	}
}

// Region tags disjoint national datasets sharing a haul numbering scheme
type Region string

const (
	RegionUS  Region = "US"
	RegionCAN Region = "CAN"
)

// Haul is a single trawl sampling event and its stratum assignment
type Haul struct {
	ID           HaulID    `json:"haul_num"`
	Stratum      StratumID `json:"stratum_num"`
	FractionHake float64   `json:"fraction_hake"`
	Region       Region    `json:"region"`
}

// HaulTransect links a haul to the transect it was towed on
type HaulTransect struct {
	Haul     HaulID     `json:"haul_num"`
	Transect TransectID `json:"transect_num"`
}

// LengthSample is a station-1 length-frequency row
type LengthSample struct {
	Haul      HaulID  `json:"haul_num"`
	SpeciesID int     `json:"species_id"`
	Sex       Sex     `json:"sex"`
	Length    float64 `json:"length"`
	Count     float64 `json:"length_count"`
	Region    Region  `json:"region"`
}

// Specimen is a station-2 individual fish. Missing measurements are NaN.
type Specimen struct {
	Haul      HaulID  `json:"haul_num"`
	SpeciesID int     `json:"species_id"`
	Sex       Sex     `json:"sex"`
	Length    float64 `json:"length"`
	Weight    float64 `json:"weight"`
	Age       float64 `json:"age"`
	Region    Region  `json:"region"`
}

// HasLengthWeight reports whether both length and weight were measured
func (s Specimen) HasLengthWeight() bool {
	return valid(s.Length) && valid(s.Weight)
}

// Complete reports whether length, weight and age were all measured
func (s Specimen) Complete() bool {
	return s.HasLengthWeight() && valid(s.Age)
}

// CatchRecord is the total catch weight of a species in a haul
type CatchRecord struct {
	Haul      HaulID  `json:"haul_num"`
	SpeciesID int     `json:"species_id"`
	Weight    float64 `json:"haul_weight"`
	Region    Region  `json:"region"`
}

// TransectInterval is one NASC measurement along a transect
type TransectInterval struct {
	Transect        TransectID `json:"transect_num"`
	Stratum         StratumID  `json:"stratum_num"`
	Haul            HaulID     `json:"haul_num"`
	NASC            float64    `json:"nasc"`
	VesselLogStart  float64    `json:"vessel_log_start"`
	VesselLogEnd    float64    `json:"vessel_log_end"`
	Latitude        float64    `json:"latitude"`
	Longitude       float64    `json:"longitude"`
	TransectSpacing float64    `json:"transect_spacing"`
}

// KrigedMeshCell is one node of the interpolated biomass-density mesh
type KrigedMeshCell struct {
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	Stratum        StratumID `json:"stratum_num"`
	BiomassDensity float64   `json:"biomass_density"`
	Area           float64   `json:"area"`
}

// Biomass is the cell's density integrated over its area
func (c KrigedMeshCell) Biomass() float64 {
	return c.BiomassDensity * c.Area
}

func valid(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Strata returns the sorted distinct strata of the given intervals
func Strata(intervals []TransectInterval) []StratumID {
	seen := make(map[StratumID]struct{}, 16)
	var out []StratumID
	for _, iv := range intervals {
		if _, ok := seen[iv.Stratum]; ok {
			continue
		}
		seen[iv.Stratum] = struct{}{}
		out = append(out, iv.Stratum)
	}
	slices.Sort(out)
	return out
}
