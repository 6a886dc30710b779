package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"codeindex/internal/store"
)

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the index database, starting fresh on the next index run",
	RunE:  runClear,
}

func runClear(cmd *cobra.Command, args []string) error {
	for _, suffix := range []string{"", "-wal", "-shm"} {
		path := cfg.DB.Path + suffix
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
	}

	// Recreate an empty, migrated database so a subsequent `query` command
	// gets a precise "index is empty" result instead of a missing-file error.
	st, err := store.Open(cfg.DB.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	fmt.Printf("cleared index at %s\n", cfg.DB.Path)
	return nil
}
