package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/plangraph/internal/model"
	"github.com/alfredjeanlab/plangraph/internal/store/sqlite"
)

// Entity commands edit the projects and tasks tables of a standalone SQLite
// database. In Postgres deployments those tables belong to the surrounding
// application.
var entityCmd = &cobra.Command{
	Use:               "entity",
	Short:             "Register projects and tasks in a standalone SQLite database",
	GroupID:           "system",
	PersistentPreRunE: noClient,
}

var entityAddCmd = &cobra.Command{
	Use:   "add <kind:id>...",
	Short: "Register one or more entities (e.g. add project:P task:A task:B)",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		refs := make([]model.EntityRef, 0, len(args))
		for _, a := range args {
			ref, err := model.ParseEntityRef(a)
			if err != nil {
				return err
			}
			refs = append(refs, ref)
		}
		name, _ := cmd.Flags().GetString("name")

		st, err := openSQLite(cmd)
		if err != nil {
			return err
		}
		defer st.Close()

		ctx := context.Background()
		for _, ref := range refs {
			if err := st.RegisterEntity(ctx, ref, name); err != nil {
				return fmt.Errorf("registering %s: %w", ref, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered %s\n", ref)
		}
		return nil
	},
}

var entityListCmd = &cobra.Command{
	Use:   "list [kind]",
	Short: "List registered entities",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kinds := model.EntityKinds
		if len(args) == 1 {
			k := model.EntityKind(args[0])
			if !k.IsValid() {
				return fmt.Errorf("unknown entity kind %q (must be project or task)", args[0])
			}
			kinds = []model.EntityKind{k}
		}

		st, err := openSQLite(cmd)
		if err != nil {
			return err
		}
		defer st.Close()

		for _, k := range kinds {
			ids, err := st.ListEntities(context.Background(), k)
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Fprintln(cmd.OutOrStdout(), model.EntityRef{Kind: k, ID: id})
			}
		}
		return nil
	},
}

func openSQLite(cmd *cobra.Command) (*sqlite.SQLiteStore, error) {
	path, _ := cmd.Flags().GetString("db")
	if path == "" {
		path = os.Getenv("PLANGRAPH_SQLITE_PATH")
	}
	if path == "" {
		return nil, fmt.Errorf("no database: pass --db or set PLANGRAPH_SQLITE_PATH")
	}
	return sqlite.Open(path)
}

func init() {
	entityCmd.PersistentFlags().String("db", "", "SQLite database path (default $PLANGRAPH_SQLITE_PATH)")
	entityAddCmd.Flags().String("name", "", "display name stored with the entities")

	entityCmd.AddCommand(entityAddCmd)
	entityCmd.AddCommand(entityListCmd)
}
