package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"codeindex/internal/store"
)

var (
	statsIncludeDeps         bool
	statsIncludeArchitecture bool
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize the index: symbol counts, languages, optional sub-reports",
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().BoolVar(&statsIncludeDeps, "deps", false, "include dependency counts")
	statsCmd.Flags().BoolVar(&statsIncludeArchitecture, "architecture", false, "include an architecture summary")
}

func runStats(cmd *cobra.Command, args []string) error {
	st, err := openReadOnlyStore()
	if err != nil {
		return err
	}
	defer st.Close()

	stats, err := st.GetStats(cfg.DB.Path, store.StatsOptions{
		IncludeDeps:         statsIncludeDeps,
		IncludeArchitecture: statsIncludeArchitecture,
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(stats)
}
