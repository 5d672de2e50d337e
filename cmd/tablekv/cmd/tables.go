/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ssargent/tablekv/pkg/store"
)

// tablesCmd groups the table registry commands
var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "Manage named tables",
}

var tablesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tables in id order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := container.DB()
		if err != nil {
			return err
		}
		tables, err := db.ListTables()
		if err != nil {
			return err
		}
		return printTables(cmd.OutOrStdout(), tables)
	},
}

var tablesCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a table, or show the id of an existing one",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := container.DB()
		if err != nil {
			return err
		}
		t, err := db.OpenTable(args[0])
		if err != nil {
			return err
		}
		cmd.Printf("Table '%s' has id %d\n", args[0], t.ID())
		return nil
	},
}

var tablesRenameCmd = &cobra.Command{
	Use:   "rename <old> <new>",
	Short: "Rename a table, keeping its id and records",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := container.DB()
		if err != nil {
			return err
		}
		if err := db.RenameTable(args[0], args[1]); err != nil {
			return err
		}
		cmd.Printf("Renamed table '%s' to '%s'\n", args[0], args[1])
		return nil
	},
}

var tablesDropCmd = &cobra.Command{
	Use:   "drop <name>",
	Short: "Destroy a table and all of its records",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := container.DB()
		if err != nil {
			return err
		}
		if err := db.DestroyTable(args[0]); err != nil {
			return err
		}
		cmd.Printf("Dropped table '%s'\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tablesCmd)
	tablesCmd.AddCommand(tablesListCmd, tablesCreateCmd, tablesRenameCmd, tablesDropCmd)
}

func printTables(w io.Writer, tables []store.TableInfo) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME")
	for _, t := range tables {
		fmt.Fprintf(tw, "%d\t%s\n", t.ID, t.Name)
	}
	return tw.Flush()
}
