package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aretw0/lattice"
	"github.com/aretw0/lattice/internal/cli"
	"github.com/aretw0/lattice/internal/presentation/tui"
	"github.com/aretw0/lattice/pkg/runner"
)

var runCmd = &cobra.Command{
	Use:   "run <activity>",
	Short: "Play an activity in the terminal",
	Long: `Starts the activity at the given path (relative to the activity directory)
and reads answers from standard input until the activity ends.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		jsonMode, _ := cmd.Flags().GetBool("json")
		room, _ := cmd.Flags().GetString("room")
		user, _ := cmd.Flags().GetString("user")

		var handler runner.IOHandler
		if jsonMode {
			handler = runner.NewJSONHandler(os.Stdin, os.Stdout)
		} else {
			var opts []runner.TextHandlerOption
			if tui.IsTerminal(os.Stdout) {
				tui.PrintBanner(os.Stdout, lattice.Version)
				render, err := tui.NewRenderer(os.Stdout)
				if err != nil {
					logger.Warn("markdown rendering disabled", "err", err)
				} else {
					opts = append(opts, runner.WithRenderer(render))
				}
			}
			handler = runner.NewTextHandler(os.Stdin, os.Stdout, opts...)
		}

		r := runner.NewRunner(handler,
			runner.WithRoom(room),
			runner.WithUsername(user),
			runner.WithMaxInputSize(cfg.MaxInputSize),
			runner.WithLogger(logger),
		)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		backend, err := cli.Build(ctx, cfg, logger, r)
		if err != nil {
			return err
		}
		defer backend.Close()

		if err := r.Run(ctx, backend.Engine, args[0]); err != nil && ctx.Err() == nil {
			return fmt.Errorf("run %s: %w", args[0], err)
		}
		if ctx.Err() != nil && !jsonMode {
			fmt.Fprintln(os.Stdout, "\nInterrupted.")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().Bool("json", false, "Exchange JSON lines on stdin/stdout instead of text")
	runCmd.Flags().String("room", runner.DefaultRoom, "Room to play in")
	runCmd.Flags().String("user", runner.DefaultUsername, "Participant name")
}
