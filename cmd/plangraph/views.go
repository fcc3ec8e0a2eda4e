package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:     "stats",
	Short:   "Show dependency counts by kind and endpoint kinds",
	GroupID: "views",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		stats, err := depClient.GetStats(context.Background())
		if err != nil {
			return err
		}
		return emit(cmd.OutOrStdout(), outputFormat, stats, func(w io.Writer) error {
			return printStats(w, stats)
		})
	},
}

var graphCmd = &cobra.Command{
	Use:     "graph",
	Short:   "Print the whole dependency graph",
	Long:    "Print the whole dependency graph. --dot writes Graphviz source instead (pipe it to `dot -Tsvg`).",
	GroupID: "views",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		if dot, _ := cmd.Flags().GetBool("dot"); dot {
			src, err := depClient.GetGraphDOT(ctx)
			if err != nil {
				return err
			}
			_, err = io.WriteString(cmd.OutOrStdout(), src)
			return err
		}
		snap, err := depClient.GetGraph(ctx)
		if err != nil {
			return err
		}
		return emit(cmd.OutOrStdout(), outputFormat, snap, func(w io.Writer) error {
			return printGraph(w, snap)
		})
	},
}

var checkCmd = &cobra.Command{
	Use:     "check",
	Short:   "Verify the stored graph is acyclic, unique, valid and fully referenced",
	GroupID: "graph",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		report, err := depClient.Check(context.Background())
		if err != nil {
			return err
		}
		if err := emit(cmd.OutOrStdout(), outputFormat, report, func(w io.Writer) error {
			return printReport(w, report)
		}); err != nil {
			return err
		}
		if !report.OK() {
			return errCheckFailed
		}
		return nil
	},
}

var eventsCmd = &cobra.Command{
	Use:     "events <id>",
	Short:   "Show the audit history of a dependency",
	GroupID: "views",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		evs, err := depClient.GetEvents(context.Background(), args[0])
		if err != nil {
			return err
		}
		return emit(cmd.OutOrStdout(), outputFormat, evs, func(w io.Writer) error {
			return printEvents(w, evs)
		})
	},
}

var actorsCmd = &cobra.Command{
	Use:     "actors",
	Short:   "Show who has been writing to the graph",
	GroupID: "views",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		actors, err := depClient.ListActors(context.Background())
		if err != nil {
			return err
		}
		return emit(cmd.OutOrStdout(), outputFormat, actors, func(w io.Writer) error {
			return printActors(w, actors)
		})
	},
}

var healthCmd = &cobra.Command{
	Use:     "health",
	Short:   "Check that the server is reachable",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := depClient.Health(context.Background())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), status)
		return nil
	},
}

func init() {
	graphCmd.Flags().Bool("dot", false, "output Graphviz DOT source")
}
