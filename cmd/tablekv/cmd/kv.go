/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/ssargent/tablekv/pkg/store"
)

// putCmd represents the put command
var putCmd = &cobra.Command{
	Use:   "put <key> <value>",
	Short: "Put a key-value pair",
	Long: `Put a key-value pair into a table, creating the table if needed.

Example:
  tablekv put -t users alice '{"age": 30}'
  tablekv put -t bin --hex 00ff10 value`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := parseKey(cmd, args[0])
		if err != nil {
			return err
		}
		t, err := openTable(cmd)
		if err != nil {
			return err
		}
		if err := t.Put(key, []byte(args[1])); err != nil {
			return err
		}
		cmd.Printf("Successfully put key '%s'\n", args[0])
		return nil
	},
}

// getCmd represents the get command
var getCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get the value of a key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := parseKey(cmd, args[0])
		if err != nil {
			return err
		}
		t, err := openTable(cmd)
		if err != nil {
			return err
		}
		value, err := t.Get(key)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(value))
		return err
	},
}

// deleteCmd represents the delete command
var deleteCmd = &cobra.Command{
	Use:   "delete <key>",
	Short: "Delete a key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := parseKey(cmd, args[0])
		if err != nil {
			return err
		}
		t, err := openTable(cmd)
		if err != nil {
			return err
		}
		if err := t.Delete(key); err != nil {
			return err
		}
		cmd.Printf("Deleted key '%s'\n", args[0])
		return nil
	},
}

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Print the records of a table in key order",
	Long: `Print the records of a table in key order, one "key<TAB>value" per line.

Examples:
  tablekv scan -t users
  tablekv scan -t users --start a --end m --limit 10
  tablekv scan -t users --reverse`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var opts scanOptions
		var err error
		start, _ := cmd.Flags().GetString("start")
		end, _ := cmd.Flags().GetString("end")
		if start != "" {
			if opts.start, err = parseKey(cmd, start); err != nil {
				return err
			}
		}
		if end != "" {
			if opts.end, err = parseKey(cmd, end); err != nil {
				return err
			}
		}
		opts.limit, _ = cmd.Flags().GetInt("limit")
		opts.reverse, _ = cmd.Flags().GetBool("reverse")
		opts.hex, _ = cmd.Flags().GetBool("hex")

		t, err := openTable(cmd)
		if err != nil {
			return err
		}
		return scanTable(t, opts, cmd.OutOrStdout())
	},
}

func init() {
	for _, c := range []*cobra.Command{putCmd, getCmd, deleteCmd, scanCmd} {
		rootCmd.AddCommand(c)
		c.Flags().StringP("table", "t", "", "Table name (required)")
		c.Flags().Bool("hex", false, "Keys are hex encoded")
		if err := c.MarkFlagRequired("table"); err != nil {
			panic(err)
		}
	}
	scanCmd.Flags().String("start", "", "Inclusive lower bound")
	scanCmd.Flags().String("end", "", "Exclusive upper bound")
	scanCmd.Flags().Int("limit", 0, "Maximum number of records (0 for all)")
	scanCmd.Flags().Bool("reverse", false, "Walk backwards from the end")
}

func parseKey(cmd *cobra.Command, raw string) ([]byte, error) {
	if useHex, _ := cmd.Flags().GetBool("hex"); useHex {
		key, err := hex.DecodeString(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid hex key %q", raw)
		}
		return key, nil
	}
	return []byte(raw), nil
}

func openTable(cmd *cobra.Command) (*store.Table, error) {
	name, _ := cmd.Flags().GetString("table")
	db, err := container.DB()
	if err != nil {
		return nil, err
	}
	return db.OpenTable(name)
}

type scanOptions struct {
	start, end []byte
	limit      int
	reverse    bool
	hex        bool
}

// scanTable writes the records in [start, end) to w
func scanTable(t *store.Table, opts scanOptions, w io.Writer) error {
	it, err := t.Iter()
	if err != nil {
		return err
	}
	defer it.Close()

	var valid bool
	switch {
	case !opts.reverse && opts.start == nil:
		valid = it.SeekToFirst()
	case !opts.reverse:
		valid = it.Seek(opts.start)
	case opts.end == nil:
		valid = it.SeekToLast()
	default:
		valid = it.SeekForPrev(opts.end)
		if valid && bytes.Equal(it.Key(), opts.end) {
			valid = it.Prev()
		}
	}

	n := 0
	for ; valid; n++ {
		key := it.Key()
		if opts.start != nil && bytes.Compare(key, opts.start) < 0 {
			break
		}
		if opts.end != nil && bytes.Compare(key, opts.end) >= 0 {
			break
		}
		if opts.limit > 0 && n == opts.limit {
			break
		}

		printable := string(key)
		if opts.hex {
			printable = hex.EncodeToString(key)
		}
		if _, err := fmt.Fprintf(w, "%s\t%s\n", printable, it.Value()); err != nil {
			return err
		}

		if opts.reverse {
			valid = it.Prev()
		} else {
			valid = it.Next()
		}
	}
	return it.Error()
}
