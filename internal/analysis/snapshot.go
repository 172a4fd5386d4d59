package analysis

import (
	"slices"

	"echostrata/domain/core"
	"echostrata/domain/survey"
)

// Selection restricts a run to a subset of transects. An empty selection
// keeps every transect.
type Selection struct {
	Name      string              `json:"name,omitempty"`
	Transects []survey.TransectID `json:"transects,omitempty"`
}

// All reports whether the selection keeps every transect
func (s Selection) All() bool {
	return len(s.Transects) == 0
}

// Fingerprint identifies the transect set independent of order
func (s Selection) Fingerprint() core.Hash {
	ids := make([]int, len(s.Transects))
	for i, t := range s.Transects {
		ids[i] = int(t)
	}
	return core.HashInts("transects", ids)
}

// Snapshot deep-copies ds and narrows the copy to the selection and species.
// Hauls towed on the selected transects stay visible along with their
// length, specimen and catch rows; all other rows are dropped. The source
// dataset is never modified. It fails with core.ErrEmptySelection when no
// transect interval survives.
func Snapshot(ds *survey.Dataset, sel Selection, speciesID int) (*survey.Dataset, error) {
	if ds == nil {
		return nil, core.ErrEmptySelection
	}
	snap := ds.Clone()
	snap.FilterSpecies(speciesID)

	if !sel.All() {
		keepTransect := make(map[survey.TransectID]bool, len(sel.Transects))
		for _, t := range sel.Transects {
			keepTransect[t] = true
		}

		keepHaul := make(map[survey.HaulID]bool)
		for _, ht := range snap.HaulTransects {
			if keepTransect[ht.Transect] {
				keepHaul[ht.Haul] = true
			}
		}

		snap.Intervals = slices.DeleteFunc(snap.Intervals, func(iv survey.TransectInterval) bool {
			return !keepTransect[iv.Transect]
		})
		snap.HaulTransects = slices.DeleteFunc(snap.HaulTransects, func(ht survey.HaulTransect) bool {
			return !keepTransect[ht.Transect]
		})
		snap.Hauls = slices.DeleteFunc(snap.Hauls, func(h survey.Haul) bool { return !keepHaul[h.ID] })
		snap.Lengths = slices.DeleteFunc(snap.Lengths, func(l survey.LengthSample) bool { return !keepHaul[l.Haul] })
		snap.Specimens = slices.DeleteFunc(snap.Specimens, func(s survey.Specimen) bool { return !keepHaul[s.Haul] })
		snap.Catches = slices.DeleteFunc(snap.Catches, func(c survey.CatchRecord) bool { return !keepHaul[c.Haul] })
	}

	if len(snap.Intervals) == 0 {
		return nil, core.ErrEmptySelection
	}
	return snap, nil
}
