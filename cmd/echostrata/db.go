package main

import (
	"context"
	"fmt"

	"echostrata/adapters/api"
	"echostrata/adapters/db"
	"echostrata/internal/analysis"
	"echostrata/internal/apportion"
	"echostrata/internal/migration"
	"echostrata/ports"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the run tables in DATABASE_URL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := a.openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer conn.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "schema %s ready (%s)\n", migration.NewRunner().Version(), a.cfg.Database.Driver)
			return nil
		},
	}
}

func newServeCmd(a *app) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve stored runs over the JSON API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.Server.GinMode != "" {
				gin.SetMode(a.cfg.Server.GinMode)
			}
			conn, err := a.openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer conn.Close()

			if port == "" {
				port = a.cfg.Server.Port
			}
			server := api.NewServer(db.NewRunRepository(conn), a.logger)
			return server.Start(":" + port)
		},
	}

	cmd.Flags().StringVar(&port, "port", "", "Listen port (overrides PORT)")
	return cmd
}

// openDB connects and brings the schema up to date
func (a *app) openDB(ctx context.Context) (*sqlx.DB, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	conn, err := db.Open(ctx, a.cfg.Database.Driver, a.cfg.Database.URL)
	if err != nil {
		return nil, err
	}
	if err := migration.NewRunner().Run(ctx, conn); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

func (a *app) saveRuns(ctx context.Context, params analysis.Params, results []*analysis.TransectResult, apportioned *apportion.Result) error {
	conn, err := a.openDB(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	var repo ports.RunRepository = db.NewRunRepository(conn)
	for _, res := range results {
		var cells []apportion.Cell
		if apportioned != nil {
			cells = apportioned.Table.Cells()
		}
		record := analysis.NewRunRecord(a.survey.Name, params, res, apportioned)
		if err := repo.SaveRun(ctx, record, res.Biomass, cells); err != nil {
			return err
		}
		a.logger.Info("run saved",
			zap.String("run_id", record.ID.String()),
			zap.String("selection", record.Name),
			zap.Int("cells", len(cells)))
	}
	return nil
}
