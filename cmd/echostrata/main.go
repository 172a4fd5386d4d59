package main

import (
	"fmt"
	"os"

	"echostrata/internal/config"
	"echostrata/internal/logging"
	"echostrata/internal/surveyconfig"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// app carries what every command needs once the root has bootstrapped
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	survey *surveyconfig.Survey
}

func main() {
	a := &app{}
	rootCmd := newRootCmd(a)

	err := rootCmd.Execute()
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	var envFile string
	var surveyPath string
	var logLevel string

	rootCmd := &cobra.Command{
		Use:           "echostrata",
		Short:         "Strata-based acoustic biomass estimation and apportionment",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.bootstrap(envFile, surveyPath, logLevel)
		},
	}

	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "Dotenv file loaded before reading the environment")
	rootCmd.PersistentFlags().StringVar(&surveyPath, "survey", "", "Survey parameter file (overrides SURVEY_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (overrides LOG_LEVEL)")

	rootCmd.AddCommand(
		newTransectCmd(a),
		newApportionCmd(a),
		newMigrateCmd(a),
		newServeCmd(a),
	)
	return rootCmd
}

func (a *app) bootstrap(envFile, surveyPath, logLevel string) error {
	if err := config.LoadDotEnv(envFile); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if surveyPath != "" {
		cfg.Survey.ConfigPath = surveyPath
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Development)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}

// loadSurvey reads the survey parameter file on first use; migrate and serve
// never need it
func (a *app) loadSurvey() (*surveyconfig.Survey, error) {
	if a.survey != nil {
		return a.survey, nil
	}
	s, err := surveyconfig.Load(a.cfg.Survey.ConfigPath)
	if err != nil {
		return nil, err
	}
	a.survey = s
	return s, nil
}
