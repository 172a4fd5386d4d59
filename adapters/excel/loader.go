package excel

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"echostrata/domain/core"
	"echostrata/domain/survey"
	"echostrata/internal/errors"
	"echostrata/internal/logging"
	"echostrata/internal/surveyconfig"

	"go.uber.org/zap"
)

// Loaded is everything read for one survey
type Loaded struct {
	Dataset *survey.Dataset
	Mesh    []survey.KrigedMeshCell
	Skipped map[survey.DatasetKind]int
}

// rowContext carries per-file settings into a row parser
type rowContext struct {
	region     survey.Region
	haulOffset int
}

// handler reads one dataset kind: the columns it needs and how a row lands
// in the survey
type handler struct {
	columns []string
	parse   func(p *rowParser, ctx rowContext, out *Loaded)
}

var handlers = map[survey.DatasetKind]handler{
	survey.KindLength: {
		columns: []string{"haul_num", "species_id", "sex", "length", "length_count"},
		parse: func(p *rowParser, ctx rowContext, out *Loaded) {
			row := survey.LengthSample{
				Haul:      survey.HaulID(p.Int("haul_num") + ctx.haulOffset),
				SpeciesID: p.Int("species_id"),
				Sex:       survey.Sex(p.Int("sex")),
				Length:    p.Float("length"),
				Count:     p.Float("length_count"),
				Region:    ctx.region,
			}
			if p.ok() {
				out.Dataset.Lengths = append(out.Dataset.Lengths, row)
			}
		},
	},
	survey.KindSpecimen: {
		columns: []string{"haul_num", "species_id", "sex", "length", "weight", "age"},
		parse: func(p *rowParser, ctx rowContext, out *Loaded) {
			row := survey.Specimen{
				Haul:      survey.HaulID(p.Int("haul_num") + ctx.haulOffset),
				SpeciesID: p.Int("species_id"),
				Sex:       survey.Sex(p.Int("sex")),
				Length:    p.OptionalFloat("length"),
				Weight:    p.OptionalFloat("weight"),
				Age:       p.OptionalFloat("age"),
				Region:    ctx.region,
			}
			if p.ok() {
				out.Dataset.Specimens = append(out.Dataset.Specimens, row)
			}
		},
	},
	survey.KindCatch: {
		columns: []string{"haul_num", "species_id", "haul_weight"},
		parse: func(p *rowParser, ctx rowContext, out *Loaded) {
			row := survey.CatchRecord{
				Haul:      survey.HaulID(p.Int("haul_num") + ctx.haulOffset),
				SpeciesID: p.Int("species_id"),
				Weight:    p.Float("haul_weight"),
				Region:    ctx.region,
			}
			if p.ok() {
				out.Dataset.Catches = append(out.Dataset.Catches, row)
			}
		},
	},
	survey.KindHaulStrata: {
		columns: []string{"haul_num", "stratum_num", "fraction_hake"},
		parse: func(p *rowParser, ctx rowContext, out *Loaded) {
			row := survey.Haul{
				ID:           survey.HaulID(p.Int("haul_num") + ctx.haulOffset),
				Stratum:      survey.StratumID(p.Int("stratum_num")),
				FractionHake: p.Float("fraction_hake"),
				Region:       ctx.region,
			}
			if p.ok() {
				out.Dataset.Hauls = append(out.Dataset.Hauls, row)
			}
		},
	},
	survey.KindHaulTransect: {
		columns: []string{"haul_num", "transect_num"},
		parse: func(p *rowParser, ctx rowContext, out *Loaded) {
			row := survey.HaulTransect{
				Haul:     survey.HaulID(p.Int("haul_num") + ctx.haulOffset),
				Transect: survey.TransectID(p.Int("transect_num")),
			}
			if p.ok() {
				out.Dataset.HaulTransects = append(out.Dataset.HaulTransects, row)
			}
		},
	},
	survey.KindNASC: {
		columns: []string{"transect_num", "stratum_num", "haul_num", "NASC", "vessel_log_start", "vessel_log_end", "latitude", "longitude", "transect_spacing"},
		parse: func(p *rowParser, _ rowContext, out *Loaded) {
			row := survey.TransectInterval{
				Transect:        survey.TransectID(p.Int("transect_num")),
				Stratum:         survey.StratumID(p.Int("stratum_num")),
				Haul:            survey.HaulID(p.Int("haul_num")),
				NASC:            p.Float("NASC"),
				VesselLogStart:  p.Float("vessel_log_start"),
				VesselLogEnd:    p.Float("vessel_log_end"),
				Latitude:        p.Float("latitude"),
				Longitude:       p.Float("longitude"),
				TransectSpacing: p.Float("transect_spacing"),
			}
			if p.ok() {
				out.Dataset.Intervals = append(out.Dataset.Intervals, row)
			}
		},
	},
	survey.KindMesh: {
		columns: []string{"latitude", "longitude", "stratum_num", "biomass_density", "area"},
		parse: func(p *rowParser, _ rowContext, out *Loaded) {
			row := survey.KrigedMeshCell{
				Latitude:       p.Float("latitude"),
				Longitude:      p.Float("longitude"),
				Stratum:        survey.StratumID(p.Int("stratum_num")),
				BiomassDensity: p.Float("biomass_density"),
				Area:           p.Float("area"),
			}
			if p.ok() {
				out.Mesh = append(out.Mesh, row)
			}
		},
	},
}

// SurveyLoader reads every dataset file named in a survey config
type SurveyLoader struct {
	cfg    *surveyconfig.Survey
	logger *zap.Logger
}

// NewSurveyLoader creates a loader for the given survey config
func NewSurveyLoader(cfg *surveyconfig.Survey, logger *zap.Logger) *SurveyLoader {
	return &SurveyLoader{cfg: cfg, logger: logging.OrNop(logger).Named("loader")}
}

// Load reads the files kind by kind. A missing file or column aborts the
// load; rows that fail to parse are skipped and counted.
func (l *SurveyLoader) Load(ctx context.Context) (*Loaded, error) {
	out := &Loaded{
		Dataset: &survey.Dataset{},
		Skipped: make(map[survey.DatasetKind]int),
	}

	for _, kind := range survey.DatasetKinds {
		for _, file := range l.cfg.Files(kind) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if err := l.loadFile(kind, file, out); err != nil {
				return nil, err
			}
		}
	}

	l.logger.Info("survey loaded",
		zap.Int("hauls", len(out.Dataset.Hauls)),
		zap.Int("lengths", len(out.Dataset.Lengths)),
		zap.Int("specimens", len(out.Dataset.Specimens)),
		zap.Int("catches", len(out.Dataset.Catches)),
		zap.Int("intervals", len(out.Dataset.Intervals)),
		zap.Int("mesh_cells", len(out.Mesh)))
	return out, nil
}

func (l *SurveyLoader) loadFile(kind survey.DatasetKind, file surveyconfig.DatasetFile, out *Loaded) error {
	h, ok := handlers[kind]
	if !ok {
		return errors.WithCode(errors.CodeMalformedInput, core.NewMalformedInputError(string(kind), "no reader for dataset kind"))
	}

	path := l.cfg.Path(file)
	data, err := NewDataReader(path, file.Sheet, l.logger).ReadData()
	if err != nil {
		return errors.DataLoad(path, err)
	}
	if missing := data.HasColumns(h.columns...); len(missing) > 0 {
		return errors.DataLoad(path, core.NewMalformedInputError(string(kind), "missing columns "+strings.Join(missing, ", ")))
	}

	rc := rowContext{region: file.Region}
	if rc.region == "" {
		rc.region = survey.RegionUS
	}
	if kind.Biological() && rc.region == survey.RegionCAN {
		rc.haulOffset = l.cfg.CANHaulOffset
	}

	skipped := 0
	for i, row := range data.Rows {
		p := &rowParser{row: row}
		h.parse(p, rc, out)
		if p.err != nil {
			skipped++
			l.logger.Debug("row skipped",
				zap.String("kind", string(kind)),
				zap.String("file", path),
				zap.Int("row", i+2),
				zap.Error(p.err))
		}
	}
	if skipped > 0 {
		out.Skipped[kind] += skipped
		l.logger.Warn("malformed rows skipped",
			zap.String("kind", string(kind)),
			zap.String("file", path),
			zap.Int("rows", skipped),
			zap.Error(core.ErrMalformedInput))
	}
	return nil
}

// rowParser reads typed cells and keeps the first failure
type rowParser struct {
	row RawRowData
	err error
}

func (p *rowParser) ok() bool { return p.err == nil }

func (p *rowParser) fail(col, value string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("column %s: %q: %w", col, value, err)
	}
}

// Int parses an integer cell. Spreadsheet integers sometimes come back as
// "12.0", which is accepted when the fraction is zero.
func (p *rowParser) Int(col string) int {
	v := p.row[col]
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f != math.Trunc(f) {
		p.fail(col, v, core.ErrMalformedInput)
		return 0
	}
	return int(f)
}

// Float parses a required numeric cell
func (p *rowParser) Float(col string) float64 {
	v := p.row[col]
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.fail(col, v, core.ErrMalformedInput)
		return 0
	}
	return f
}

// OptionalFloat parses a numeric cell where blank or NaN means not measured
func (p *rowParser) OptionalFloat(col string) float64 {
	v := p.row[col]
	if v == "" || strings.EqualFold(v, "nan") {
		return math.NaN()
	}
	return p.Float(col)
}
