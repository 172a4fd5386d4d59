// Package surveyconfig loads the per-survey parameter file: bins, target
// strength regression, tolerances and the input table locations.
package surveyconfig

import (
	"fmt"
	"os"
	"path/filepath"

	"echostrata/domain/survey"
	"echostrata/internal/acoustics"
	"echostrata/internal/analysis"
	"echostrata/internal/binning"
	"echostrata/internal/errors"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// BinSpec describes evenly spaced bin centers from Start to Stop inclusive
type BinSpec struct {
	Start float64 `yaml:"start"`
	Stop  float64 `yaml:"stop" validate:"gtfield=Start"`
	Count int     `yaml:"count" validate:"gte=2"`
}

// Centers builds the bin centers
func (b BinSpec) Centers() (binning.Centers, error) {
	return binning.NewCenters(binning.Linspace(b.Start, b.Stop, b.Count))
}

// DatasetFile locates one input table
type DatasetFile struct {
	Kind   string        `yaml:"kind" validate:"required,oneof=length specimen catch haul_strata haul_transect nasc mesh"`
	File   string        `yaml:"file" validate:"required"`
	Sheet  string        `yaml:"sheet"`
	Region survey.Region `yaml:"region" validate:"omitempty,oneof=US CAN"`
}

// Survey is the parameter file
type Survey struct {
	Name               string                 `yaml:"name"`
	SpeciesID          int                    `yaml:"species_id" validate:"gte=0"`
	CANHaulOffset      int                    `yaml:"can_haul_offset" validate:"gte=0"`
	LengthBins         BinSpec                `yaml:"length_bins"`
	AgeBins            BinSpec                `yaml:"age_bins"`
	TSRegression       acoustics.TSRegression `yaml:"ts_regression"`
	IntervalTolerance  float64                `yaml:"interval_tolerance" validate:"gte=0"`
	MinBinCount        int                    `yaml:"min_bin_count" validate:"gte=0"`
	ApportionTolerance float64                `yaml:"apportion_tolerance" validate:"gte=0"`
	DataRoot           string                 `yaml:"data_root"`
	Datasets           []DatasetFile          `yaml:"datasets" validate:"required,min=1,dive"`

	// directory of the parameter file, used to resolve a relative DataRoot
	baseDir string
}

// Default returns the Pacific hake settings with no datasets
func Default() Survey {
	return Survey{
		SpeciesID:     22500,
		CANHaulOffset: 200,
		LengthBins:    BinSpec{Start: 2, Stop: 80, Count: 40},
		AgeBins:       BinSpec{Start: 1, Stop: 22, Count: 22},
		TSRegression:  acoustics.HakeRegression,
		MinBinCount:   5,
	}
}

// Load reads and validates a parameter file
func Load(path string) (*Survey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.DataLoad(path, err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid survey config %s", path)
	}
	s.baseDir = filepath.Dir(path)
	return s, nil
}

// Parse decodes YAML on top of Default and validates the result
func Parse(data []byte) (*Survey, error) {
	s := Default()
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, errors.WithCode(errors.CodeConfigInvalid, fmt.Errorf("failed to parse survey config: %w", err))
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks field constraints and that the bins can be built
func (s *Survey) Validate() error {
	if err := validator.New().Struct(s); err != nil {
		return errors.ConfigInvalid(err.Error())
	}
	if _, err := s.LengthBins.Centers(); err != nil {
		return errors.WithCode(errors.CodeConfigInvalid, fmt.Errorf("length_bins: %w", err))
	}
	if _, err := s.AgeBins.Centers(); err != nil {
		return errors.WithCode(errors.CodeConfigInvalid, fmt.Errorf("age_bins: %w", err))
	}
	return nil
}

// Params converts the file into analysis settings
func (s *Survey) Params() (analysis.Params, error) {
	lengths, err := s.LengthBins.Centers()
	if err != nil {
		return analysis.Params{}, err
	}
	ages, err := s.AgeBins.Centers()
	if err != nil {
		return analysis.Params{}, err
	}
	return analysis.Params{
		SpeciesID:          s.SpeciesID,
		LengthCenters:      lengths,
		AgeCenters:         ages,
		TS:                 s.TSRegression,
		IntervalTolerance:  s.IntervalTolerance,
		MinBinCount:        s.MinBinCount,
		ApportionTolerance: s.ApportionTolerance,
	}, nil
}

// Path resolves a dataset file against DataRoot and the config location
func (s *Survey) Path(f DatasetFile) string {
	if filepath.IsAbs(f.File) {
		return f.File
	}
	root := s.DataRoot
	if !filepath.IsAbs(root) {
		root = filepath.Join(s.baseDir, root)
	}
	return filepath.Join(root, f.File)
}

// Files returns the entries of one kind in file order
func (s *Survey) Files(kind survey.DatasetKind) []DatasetFile {
	var out []DatasetFile
	for _, f := range s.Datasets {
		if f.Kind == string(kind) {
			out = append(out, f)
		}
	}
	return out
}
