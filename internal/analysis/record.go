package analysis

import (
	"encoding/json"
	"strconv"
	"strings"

	"echostrata/internal/apportion"
	"echostrata/ports"
)

// NewRunRecord summarises a run for storage. app may be nil when no mesh was
// apportioned.
func NewRunRecord(surveyName string, params Params, res *TransectResult, app *apportion.Result) *ports.RunRecord {
	transects := make([]string, len(res.Selection.Transects))
	for i, t := range res.Selection.Transects {
		transects[i] = strconv.Itoa(int(t))
	}

	rec := &ports.RunRecord{
		ID:             res.RunID,
		Name:           res.Selection.Name,
		Survey:         surveyName,
		Fingerprint:    res.Fingerprint.String(),
		Transects:      strings.Join(transects, ","),
		SpeciesID:      params.SpeciesID,
		IntervalCount:  res.Summary.Intervals,
		StratumCount:   res.Summary.Strata,
		TotalBiomass:   res.TotalBiomass(),
		TotalAbundance: res.Biomass.TotalAbundance(),
		Consistent:     true,
		CreatedAt:      res.CreatedAt,
	}
	if len(res.Imputed) > 0 {
		if b, err := json.Marshal(res.Imputed); err == nil {
			rec.Imputed = string(b)
		}
	}

	if app != nil {
		kriged, apportioned := app.KrigedTotal, app.ApportionedTotal
		rec.KrigedTotal = &kriged
		rec.ApportionedTotal = &apportioned
		rec.Consistent = app.Consistent()
		rec.Warnings = strings.Join(app.WarningMessages(), "; ")
	}
	return rec
}
