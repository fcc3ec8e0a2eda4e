package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/plangraph/internal/client"
	"github.com/alfredjeanlab/plangraph/internal/model"
	"github.com/alfredjeanlab/plangraph/internal/ui"
)

var depCmd = &cobra.Command{
	Use:     "dep",
	Short:   "Manage dependencies between projects and tasks",
	GroupID: "graph",
}

var depAddCmd = &cobra.Command{
	Use:   "add <from> <to>",
	Short: "Add a dependency (e.g. add task:A task:B --kind FS)",
	Long: `Add a dependency from a predecessor to a successor.

Entities are written kind:id, where kind is project or task. The kind flag
accepts FS, SS, FF, SF or their long names (finish_to_start, ...). A positive
lag delays the successor; a negative lag lets it lead.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		draft, err := parseDraft(cmd, args[0], args[1])
		if err != nil {
			return err
		}
		dep, err := depClient.CreateDependency(context.Background(), draft)
		if err != nil {
			return err
		}
		return emit(cmd.OutOrStdout(), outputFormat, dep, func(w io.Writer) error {
			return printDependency(w, dep)
		})
	},
}

// parseDraft builds a draft from the add command's arguments and flags.
func parseDraft(cmd *cobra.Command, fromArg, toArg string) (model.DependencyDraft, error) {
	from, err := model.ParseEntityRef(fromArg)
	if err != nil {
		return model.DependencyDraft{}, err
	}
	to, err := model.ParseEntityRef(toArg)
	if err != nil {
		return model.DependencyDraft{}, err
	}
	kindArg, _ := cmd.Flags().GetString("kind")
	kind, err := model.ParseDependencyKind(kindArg)
	if err != nil {
		return model.DependencyDraft{}, err
	}
	lag, _ := cmd.Flags().GetInt("lag")
	note, _ := cmd.Flags().GetString("note")
	return model.DependencyDraft{From: from, To: to, Kind: kind, LagDays: lag, Note: note}, nil
}

var depUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Change the kind, lag or note of a dependency",
	Long: `Change the kind, lag or note of a dependency. Only flags that are given
are applied. Endpoints cannot be changed; remove the dependency and add a new
one instead.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		patch, err := parsePatch(cmd)
		if err != nil {
			return err
		}
		if patch.IsEmpty() {
			return fmt.Errorf("nothing to update: pass --kind, --lag or --note")
		}
		dep, err := depClient.UpdateDependency(context.Background(), args[0], patch)
		if err != nil {
			return err
		}
		return emit(cmd.OutOrStdout(), outputFormat, dep, func(w io.Writer) error {
			return printDependency(w, dep)
		})
	},
}

// parsePatch reads only the flags the user set.
func parsePatch(cmd *cobra.Command) (model.DependencyPatch, error) {
	var patch model.DependencyPatch
	flags := cmd.Flags()
	if flags.Changed("kind") {
		v, _ := flags.GetString("kind")
		kind, err := model.ParseDependencyKind(v)
		if err != nil {
			return patch, err
		}
		patch.Kind = &kind
	}
	if flags.Changed("lag") {
		v, _ := flags.GetInt("lag")
		patch.LagDays = &v
	}
	if flags.Changed("note") {
		v, _ := flags.GetString("note")
		patch.Note = &v
	}
	return patch, nil
}

var depRemoveCmd = &cobra.Command{
	Use:     "remove <id>...",
	Aliases: []string{"rm"},
	Short:   "Remove one or more dependencies",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, id := range args {
			if err := depClient.DeleteDependency(context.Background(), id); err != nil {
				return fmt.Errorf("removing %s: %w", id, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", id)
		}
		return nil
	},
}

var depShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a dependency",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dep, err := depClient.GetDependency(context.Background(), args[0])
		if err != nil {
			return err
		}
		return emit(cmd.OutOrStdout(), outputFormat, dep, func(w io.Writer) error {
			return printDependency(w, dep)
		})
	},
}

var depListCmd = &cobra.Command{
	Use:   "list [entity]",
	Short: "List dependencies, optionally those touching one entity",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := &client.ListRequest{}
		req.From, _ = cmd.Flags().GetString("from")
		req.To, _ = cmd.Flags().GetString("to")
		req.Kind, _ = cmd.Flags().GetStringSlice("kind")
		if len(args) == 1 {
			req.For = args[0]
		}

		deps, err := depClient.ListDependencies(context.Background(), req)
		if err != nil {
			return err
		}
		return emit(cmd.OutOrStdout(), outputFormat, deps, func(w io.Writer) error {
			return printDependencyList(w, deps, noteWidth())
		})
	},
}

// noteWidth leaves the note column whatever the terminal has left after
// the fixed columns.
func noteWidth() int {
	if w := ui.TerminalWidth(120) - 80; w > 20 {
		return w
	}
	return 20
}

func init() {
	depAddCmd.Flags().String("kind", string(model.FinishToStart), "dependency kind (FS, SS, FF, SF)")
	depAddCmd.Flags().Int("lag", 0, "lag in days (negative for lead)")
	depAddCmd.Flags().String("note", "", "free-text note")

	depUpdateCmd.Flags().String("kind", "", "new dependency kind")
	depUpdateCmd.Flags().Int("lag", 0, "new lag in days")
	depUpdateCmd.Flags().String("note", "", "new note (empty clears it)")

	depListCmd.Flags().String("from", "", "only edges leaving this entity (kind:id)")
	depListCmd.Flags().String("to", "", "only edges entering this entity (kind:id)")
	depListCmd.Flags().StringSlice("kind", nil, "only these kinds (comma-separated)")

	depCmd.AddCommand(depAddCmd)
	depCmd.AddCommand(depUpdateCmd)
	depCmd.AddCommand(depRemoveCmd)
	depCmd.AddCommand(depShowCmd)
	depCmd.AddCommand(depListCmd)
}
