package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"codeindex/internal/manifest"
	"codeindex/internal/store"
)

var depsCmd = &cobra.Command{
	Use:   "deps",
	Short: "Inspect workspace manifest dependencies",
}

var depsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every dependency recorded from workspace manifests",
	RunE:  runDepsList,
}

var depsIndexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Re-scan workspace manifests and record their dependencies",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runDepsIndex,
}

var depsFindCmd = &cobra.Command{
	Use:   "find <name>",
	Short: "Find recorded dependencies whose name contains the query",
	Args:  cobra.ExactArgs(1),
	RunE:  runDepsFind,
}

var depsInfoCmd = &cobra.Command{
	Use:   "info <name>",
	Short: "Show the recorded version and kind for one dependency",
	Args:  cobra.ExactArgs(1),
	RunE:  runDepsInfo,
}

var depsSourceCmd = &cobra.Command{
	Use:   "source <name>",
	Short: "Show the manifest a dependency was declared in",
	Args:  cobra.ExactArgs(1),
	RunE:  runDepsSource,
}

func init() {
	depsCmd.AddCommand(depsListCmd, depsIndexCmd, depsFindCmd, depsInfoCmd, depsSourceCmd)
	rootCmd.AddCommand(depsCmd)
}

func printDeps(deps []store.Dependency) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(deps)
}

func runDepsList(cmd *cobra.Command, args []string) error {
	st, err := openReadOnlyStore()
	if err != nil {
		return err
	}
	defer st.Close()

	deps, err := st.ListDependencies()
	if err != nil {
		return err
	}
	return printDeps(deps)
}

func runDepsIndex(cmd *cobra.Command, args []string) error {
	root := workspace
	if root == "" {
		root = "."
	}
	if len(args) == 1 {
		root = args[0]
	}

	st, err := store.Open(cfg.DB.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := manifest.ScanDirectory(root, st); err != nil {
		return err
	}

	deps, err := st.ListDependencies()
	if err != nil {
		return err
	}
	fmt.Printf("recorded %d dependencies from manifests under %s\n", len(deps), root)
	return nil
}

func runDepsFind(cmd *cobra.Command, args []string) error {
	st, err := openReadOnlyStore()
	if err != nil {
		return err
	}
	defer st.Close()

	all, err := st.ListDependencies()
	if err != nil {
		return err
	}
	q := strings.ToLower(args[0])
	var out []store.Dependency
	for _, d := range all {
		if strings.Contains(strings.ToLower(d.Name), q) {
			out = append(out, d)
		}
	}
	return printDeps(out)
}

func runDepsInfo(cmd *cobra.Command, args []string) error {
	st, err := openReadOnlyStore()
	if err != nil {
		return err
	}
	defer st.Close()

	dep, found, err := st.GetDependencyInfo(args[0])
	if err != nil {
		return err
	}
	if !found {
		fmt.Printf("no recorded dependency named %q\n", args[0])
		return nil
	}
	return printDeps([]store.Dependency{dep})
}

func runDepsSource(cmd *cobra.Command, args []string) error {
	st, err := openReadOnlyStore()
	if err != nil {
		return err
	}
	defer st.Close()

	dep, found, err := st.GetDependencyInfo(args[0])
	if err != nil {
		return err
	}
	if !found {
		fmt.Printf("no recorded dependency named %q\n", args[0])
		return nil
	}
	fmt.Println(dep.ManifestPath)
	return nil
}
