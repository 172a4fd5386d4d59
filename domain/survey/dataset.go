package survey

import "slices"

// Dataset is the source survey snapshot. The analysis engine treats it as
// read-only and works on clones.
type Dataset struct {
	Hauls         []Haul             `json:"hauls"`
	HaulTransects []HaulTransect     `json:"haul_transects"`
	Lengths       []LengthSample     `json:"lengths"`
	Specimens     []Specimen         `json:"specimens"`
	Catches       []CatchRecord      `json:"catches"`
	Intervals     []TransectInterval `json:"intervals"`
}

// Clone returns a deep copy
func (d *Dataset) Clone() *Dataset {
	if d == nil {
		return nil
	}
	return &Dataset{
		Hauls:         slices.Clone(d.Hauls),
		HaulTransects: slices.Clone(d.HaulTransects),
		Lengths:       slices.Clone(d.Lengths),
		Specimens:     slices.Clone(d.Specimens),
		Catches:       slices.Clone(d.Catches),
		Intervals:     slices.Clone(d.Intervals),
	}
}

// HaulStrata indexes the haul→stratum mapping
func (d *Dataset) HaulStrata() map[HaulID]StratumID {
	out := make(map[HaulID]StratumID, len(d.Hauls))
	for _, h := range d.Hauls {
		out[h.ID] = h.Stratum
	}
	return out
}

// FilterSpecies keeps only biological rows of the given species.
// A zero speciesID keeps everything. The receiver is modified in place, so
// call it on a clone.
func (d *Dataset) FilterSpecies(speciesID int) {
	if speciesID == 0 {
		return
	}
	d.Lengths = slices.DeleteFunc(d.Lengths, func(l LengthSample) bool { return l.SpeciesID != speciesID })
	d.Specimens = slices.DeleteFunc(d.Specimens, func(s Specimen) bool { return s.SpeciesID != speciesID })
	d.Catches = slices.DeleteFunc(d.Catches, func(c CatchRecord) bool { return c.SpeciesID != speciesID })
}

// Summary counts rows per table
type Summary struct {
	Hauls     int `json:"hauls"`
	Lengths   int `json:"lengths"`
	Specimens int `json:"specimens"`
	Catches   int `json:"catches"`
	Intervals int `json:"intervals"`
	Strata    int `json:"strata"`
}

// Summarize returns row counts for logging
func (d *Dataset) Summarize() Summary {
	return Summary{
		Hauls:     len(d.Hauls),
		Lengths:   len(d.Lengths),
		Specimens: len(d.Specimens),
		Catches:   len(d.Catches),
		Intervals: len(d.Intervals),
		Strata:    len(Strata(d.Intervals)),
	}
}
