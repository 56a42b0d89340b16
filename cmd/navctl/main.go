// Command navctl is a terminal console for manually driving a
// bearing.Dispatcher: type two points, watch progress stream in, see the
// route or the failure code it settled on. It exists to exercise the
// dispatcher end to end without a real navigation engine or map data.
package main

import (
	"fmt"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/go-kratos/bearing"
	otelstats "github.com/go-kratos/bearing/contrib/otel"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "navctl",
		Short: "Interactive console for the route dispatcher",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(verbose)
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	return cmd
}

func run(verbose bool) error {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	// queue.program is nil until tea.NewProgram below constructs it, but
	// NewDispatcher needs a UITaskQueue immediately to start its worker.
	// The worker doesn't call RunOnGui until the first CalculateRoute
	// reply, which can't happen before a key event, which can't happen
	// before the program is running -- so the two-phase init is safe.
	// otel.GetTracerProvider() defaults to a no-op provider when the
	// process hasn't configured an exporter, so this sink costs nothing
	// when navctl is run standalone but picks up real tracing the moment
	// an operator wires one in (e.g. via OTEL_EXPORTER_* env vars).
	otelSink := otelstats.NewSink()

	queue := &uiQueue{}
	dispatcher := bearing.NewDispatcher(queue,
		bearing.WithLogger(log),
		bearing.WithEngine(newDemoEngine(), &demoFetcher{}),
		bearing.WithStatsSink(otelSink),
	)
	defer dispatcher.Destroy()

	program := tea.NewProgram(newModel(dispatcher, queue, otelSink))
	queue.program = program

	_, err := program.Run()
	return err
}
