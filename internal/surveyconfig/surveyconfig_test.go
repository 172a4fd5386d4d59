package surveyconfig

import (
	"os"
	"path/filepath"
	"testing"

	"echostrata/domain/survey"
	"echostrata/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
name: hake-2019
species_id: 22500
length_bins: {start: 2, stop: 80, count: 40}
age_bins: {start: 1, stop: 22, count: 22}
ts_regression: {slope: 20, intercept: -68}
interval_tolerance: 0.05
data_root: data
datasets:
  - kind: length
    file: Biological/US/length.xlsx
    sheet: biodata_length
    region: US
  - kind: length
    file: Biological/CAN/length.xlsx
    sheet: biodata_length_CAN
    region: CAN
  - kind: nasc
    file: Exports/nasc.xlsx
`

func TestParse(t *testing.T) {
	s, err := Parse([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, "hake-2019", s.Name)
	assert.Equal(t, 200, s.CANHaulOffset, "default kept when omitted")
	assert.Equal(t, 5, s.MinBinCount)
	assert.Len(t, s.Files(survey.KindLength), 2)
	assert.Len(t, s.Files(survey.KindMesh), 0)

	p, err := s.Params()
	require.NoError(t, err)
	assert.Equal(t, 40, p.LengthCenters.Len())
	assert.Equal(t, 2.0, p.LengthCenters.At(0))
	assert.Equal(t, 80.0, p.LengthCenters.At(39))
	assert.Equal(t, 22, p.AgeCenters.Len())
	assert.Equal(t, 20.0, p.TS.Slope)
	assert.Equal(t, 0.05, p.IntervalTolerance)
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"no datasets", "species_id: 1\n"},
		{"unknown kind", "datasets: [{kind: gear, file: a.xlsx}]\n"},
		{"bad region", "datasets: [{kind: nasc, file: a.xlsx, region: MX}]\n"},
		{"one bin", "length_bins: {start: 1, stop: 2, count: 1}\ndatasets: [{kind: nasc, file: a.xlsx}]\n"},
		{"reversed bins", "age_bins: {start: 5, stop: 1, count: 5}\ndatasets: [{kind: nasc, file: a.xlsx}]\n"},
		{"not yaml", "datasets: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
		})
	}
}

func TestLoadResolvesPaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "survey.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	s, err := Load(path)
	require.NoError(t, err)

	nasc := s.Files(survey.KindNASC)[0]
	assert.Equal(t, filepath.Join(dir, "data", "Exports", "nasc.xlsx"), s.Path(nasc))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Equal(t, errors.CodeDataLoad, errors.GetCode(err))
}
