package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/leash-sh/leash/internal/metrics"
	"github.com/leash-sh/leash/internal/proctree"
)

func newReapCmd(app *appContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reap PID",
		Short: "Terminate every descendant of a live process",
		Long: `Terminate the descendants of PID, deepest first, leaving PID itself
running. Descendants whose start time predates their parent's are holding
recycled process ids and are left alone.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := parsePID(args[0])
			if err != nil {
				return err
			}
			dir := proctree.System()
			start, err := dir.StartTime(pid)
			if err != nil {
				return fmt.Errorf("look up pid %d: %w", pid, err)
			}

			n := app.reaper(dir).Reap(proctree.Descriptor{PID: pid, StartTime: start})
			metrics.AddReapedProcesses(n)
			fmt.Fprintf(cmd.OutOrStdout(), "reaped %d process(es) under pid %d\n", n, pid)
			return nil
		},
	}
}

func parsePID(arg string) (int32, error) {
	pid, err := strconv.ParseInt(arg, 10, 32)
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid pid %q", arg)
	}
	return int32(pid), nil
}
