package main

import (
	"context"
	"fmt"
	"os"

	"dyfl-backend/internal/config"
	"dyfl-backend/internal/constants"
	fxmodules "dyfl-backend/internal/fx"
	"dyfl-backend/internal/logger"
	"dyfl-backend/internal/service"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var rootCmd = &cobra.Command{
	Use:   "dyfl-backend",
	Short: "Ranked defeat tracker for followed League of Legends players",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// .env has to be loaded before the logger reads LOG_LEVEL
		_ = config.LoadDotEnv()
	},
	RunE:          runServe,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the game detection scheduler",
	RunE:  runServe,
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Run a single detection pass over every tracked player and exit",
	RunE:  runReconcile,
}

var fixAccountIDsCmd = &cobra.Command{
	Use:   "fix-account-ids",
	Short: "Re-resolve tracked players whose stored account id is malformed",
	RunE:  runFixAccountIDs,
}

func init() {
	rootCmd.AddCommand(serveCmd, reconcileCmd, fixAccountIDsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logger.New().Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	app := fx.New(
		fxmodules.Module,
		fxmodules.Serve,
	)
	if err := app.Err(); err != nil {
		return err
	}
	app.Run()
	return nil
}

// runOnce starts the dependency graph without the server, calls fn and
// shuts everything down again.
func runOnce(fn func(ctx context.Context) error, targets ...any) error {
	app := fx.New(
		fxmodules.Module,
		fx.NopLogger,
		fx.Populate(targets...),
	)
	if err := app.Err(); err != nil {
		return err
	}

	startCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return err
	}

	runErr := fn(context.Background())

	stopCtx, stopCancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer stopCancel()
	if err := app.Stop(stopCtx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

func runReconcile(cmd *cobra.Command, args []string) error {
	var detector *service.Detector
	return runOnce(func(ctx context.Context) error {
		report, err := detector.RunPass(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "players: %d, batches: %d, new ranked games: %d, failures: %d, took %s\n",
			len(report.Results), report.Batches, report.NewRankedGames, report.Failures, report.Duration)
		return nil
	}, &detector)
}

func runFixAccountIDs(cmd *cobra.Command, args []string) error {
	var players *service.PlayerService
	return runOnce(func(ctx context.Context) error {
		fixes, err := players.FixInvalidAccountIDs(ctx)
		if err != nil {
			return err
		}
		if len(fixes) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "all account ids are valid")
			return nil
		}

		failed := 0
		for _, f := range fixes {
			if f.Err != nil {
				failed++
				fmt.Fprintf(cmd.OutOrStdout(), "FAIL %s (%q): %v\n", f.DisplayID, f.OldAccountID, f.Err)
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "OK   %s -> %s\n", f.DisplayID, f.NewAccountID)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d account ids could not be fixed", failed, len(fixes))
		}
		return nil
	}, &players)
}
