package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/leash-sh/leash/internal/proctree"
)

func newTreeCmd(app *appContext) *cobra.Command {
	return &cobra.Command{
		Use:   "tree PID",
		Short: "Print the live descendant tree of a process",
		Args:  cobra.ExactArgs(1),
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

			root := proctree.Descriptor{PID: pid, StartTime: start}
			printNode(cmd.OutOrStdout(), root, 0)
			return printTree(cmd.OutOrStdout(), dir, root, 1, app.cfg.ReapMaxDepth)
		},
	}
}

func printTree(w io.Writer, dir proctree.Directory, node proctree.Descriptor, depth, maxDepth int) error {
	if depth > maxDepth {
		return nil
	}
	kids, err := dir.Children(node.PID)
	if err != nil {
		return fmt.Errorf("children of pid %d: %w", node.PID, err)
	}
	for _, kid := range kids {
		printNode(w, kid, depth)
		if err := printTree(w, dir, kid, depth+1, maxDepth); err != nil {
			return err
		}
	}
	return nil
}

func printNode(w io.Writer, node proctree.Descriptor, depth int) {
	fmt.Fprintf(w, "%s%d\tstarted %s\n", strings.Repeat("  ", depth), node.PID, node.StartTime.Format(time.RFC3339))
}
