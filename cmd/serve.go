package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"valuation/internal/dataset"
	"valuation/internal/server"
)

var (
	serveOpts evalFlags
	serveAddr string
)

var serveCmd = &cobra.Command{
	Use:   "serve [data-file]",
	Short: "Serve evaluations over HTTP",
	Long: `Starts the HTTP API. When a data file is given (or data.path is set) it is
loaded once and GET /evaluate re-runs the evaluation of its target with the
query parameters, through the cache.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		evaluator, closeCache, err := openEvaluator(serveOpts.noCache)
		if err != nil {
			return err
		}
		defer closeCache()

		var ds *server.Dataset
		if path := serveOpts.dataPath(args); path != "" {
			records, err := loadAll(serveOpts.sourceKind(path), path)
			if err != nil {
				return err
			}
			target, candidates, err := dataset.SelectTarget(records, serveOpts.targetID())
			if err != nil {
				return err
			}
			if serveOpts.zoning {
				if err := annotateZoning(&target, candidates); err != nil {
					return err
				}
			}
			ds = &server.Dataset{Target: target, Records: candidates}
			log.Info("dataset loaded", "file", path, "target", target.Identifier, "records", len(candidates))
		}

		addr := cfg.Server.Address
		if serveAddr != "" {
			addr = serveAddr
		}
		if !verbose {
			gin.SetMode(gin.ReleaseMode)
		}
		return server.New(evaluator, serveOpts.settings(cmd), ds, log).Run(ctx, addr)
	},
}

func init() {
	serveOpts.bind(serveCmd, false)
	serveCmd.Flags().StringVar(&serveOpts.target, "target", "", "identifier of the target warehouse (default: first record)")
	serveCmd.Flags().BoolVar(&serveOpts.noCache, "no-cache", false, "do not read or write the evaluation cache")
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
	rootCmd.AddCommand(serveCmd)
}
