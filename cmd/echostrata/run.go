package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"echostrata/adapters/excel"
	"echostrata/internal/analysis"
	"echostrata/internal/apportion"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newTransectCmd(a *app) *cobra.Command {
	var transects string
	var subsets []string
	var save bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "transect",
		Short: "Convert transect NASC to biomass density per interval",
		Long: `Load the survey files, estimate cross sections, compositions and adult
fractions per stratum, and convert every transect interval to abundance and
biomass.

Independent transect subsets run in parallel (ANALYSIS_WORKERS at a time).

Example:
  echostrata transect --transects 1,2,3
  echostrata transect --subset north=1,2,3 --subset south=4,5 --save`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sels, err := selections(transects, subsets)
			if err != nil {
				return err
			}
			ctx, cancel := a.analysisContext(cmd.Context())
			defer cancel()
			return a.runTransects(ctx, cmd.OutOrStdout(), sels, save, asJSON)
		},
	}

	cmd.Flags().StringVar(&transects, "transects", "", "Comma separated transects to keep (default all)")
	cmd.Flags().StringArrayVar(&subsets, "subset", nil, "Named transect subset name=1,2,3 (repeatable)")
	cmd.Flags().BoolVar(&save, "save", false, "Store the runs in the database")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print full results as JSON")
	return cmd
}

func newApportionCmd(a *app) *cobra.Command {
	var transects string
	var save bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "apportion",
		Short: "Apportion kriged mesh biomass over sex, length and age",
		Long: `Run the transect analysis, then distribute the kriged mesh biomass of each
stratum over sex, length and age using the stratum weight proportions.

The survey config must list a mesh dataset.

Example:
  echostrata apportion --save`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sels, err := selections(transects, nil)
			if err != nil {
				return err
			}
			ctx, cancel := a.analysisContext(cmd.Context())
			defer cancel()
			return a.runApportion(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr(), sels[0], save, asJSON)
		},
	}

	cmd.Flags().StringVar(&transects, "transects", "", "Comma separated transects feeding the proportions (default all)")
	cmd.Flags().BoolVar(&save, "save", false, "Store the run in the database")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the apportioned table as JSON")
	return cmd
}

func (a *app) analysisContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	if a.cfg.Analysis.Timeout > 0 {
		return context.WithTimeout(parent, a.cfg.Analysis.Timeout)
	}
	return context.WithCancel(parent)
}

// prepare loads the survey files and builds the analysis engine
func (a *app) prepare(ctx context.Context) (*excel.Loaded, *analysis.Engine, error) {
	s, err := a.loadSurvey()
	if err != nil {
		return nil, nil, err
	}
	params, err := s.Params()
	if err != nil {
		return nil, nil, err
	}
	loaded, err := excel.NewSurveyLoader(s, a.logger).Load(ctx)
	if err != nil {
		return nil, nil, err
	}
	for kind, n := range loaded.Skipped {
		a.logger.Warn("skipped malformed rows", zap.String("kind", string(kind)), zap.Int("rows", n))
	}
	return loaded, analysis.NewEngine(params, a.logger), nil
}

func (a *app) runTransects(ctx context.Context, out io.Writer, sels []analysis.Selection, save, asJSON bool) error {
	loaded, engine, err := a.prepare(ctx)
	if err != nil {
		return err
	}

	results, err := engine.RunSelections(ctx, loaded.Dataset, sels, a.cfg.Analysis.Workers)
	if err != nil {
		return err
	}

	if save {
		if err := a.saveRuns(ctx, engine.Params(), results, nil); err != nil {
			return err
		}
	}

	if asJSON {
		return writeJSON(out, results)
	}
	printTransectSummary(out, results)
	return nil
}

func (a *app) runApportion(ctx context.Context, out, errOut io.Writer, sel analysis.Selection, save, asJSON bool) error {
	loaded, engine, err := a.prepare(ctx)
	if err != nil {
		return err
	}
	if len(loaded.Mesh) == 0 {
		return fmt.Errorf("survey config lists no mesh dataset")
	}

	res, err := engine.RunTransects(ctx, loaded.Dataset, sel)
	if err != nil {
		return err
	}
	apportioned, err := engine.Apportion(ctx, res, loaded.Mesh)
	if err != nil {
		return err
	}

	if save {
		if err := a.saveRuns(ctx, engine.Params(), []*analysis.TransectResult{res}, apportioned); err != nil {
			return err
		}
	}

	if asJSON {
		return writeJSON(out, apportioned)
	}
	printApportionSummary(out, errOut, res, apportioned)
	return nil
}

func writeJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printTransectSummary(out io.Writer, results []*analysis.TransectResult) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SELECTION\tRUN\tINTERVALS\tSTRATA\tBIOMASS (kg)\tABUNDANCE\tIMPUTED")
	for _, r := range results {
		imputed := 0
		for _, ids := range r.Imputed {
			imputed += len(ids)
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%.1f\t%.0f\t%d\n",
			r.Selection.Name, r.RunID, r.Summary.Intervals, r.Summary.Strata,
			r.TotalBiomass(), r.Biomass.TotalAbundance(), imputed)
	}
	w.Flush()
}

func printApportionSummary(out, errOut io.Writer, res *analysis.TransectResult, result *apportion.Result) {
	fmt.Fprintf(out, "run %s\n", res.RunID)
	fmt.Fprintf(out, "kriged biomass:      %.1f kg\n", result.KrigedTotal)
	fmt.Fprintf(out, "apportioned biomass: %.1f kg\n", result.ApportionedTotal)
	if len(result.ImputedStrata) > 0 {
		fmt.Fprintf(out, "gap-filled strata:   %v\n", result.ImputedStrata)
	}
	fmt.Fprintf(out, "imputed length bins: %d\n", len(result.ImputedBins))
	for _, warn := range result.Warnings {
		fmt.Fprintf(errOut, "warning: %v\n", warn)
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SEX\tBIOMASS (kg)")
	for _, sex := range apportion.ReportSexes {
		fmt.Fprintf(w, "%s\t%.1f\n", sex, result.Table.Total(sex))
	}
	w.Flush()
}
