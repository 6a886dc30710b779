package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"codeindex/internal/model"
	"codeindex/internal/store"
)

var (
	queryLimit    int
	queryLanguage string
	queryFuzzy    bool
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query the index",
}

var querySearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search symbols by name (exact/prefix, or fuzzy with --fuzzy)",
	Args:  cobra.ExactArgs(1),
	RunE:  runQuerySearch,
}

var queryDefinitionCmd = &cobra.Command{
	Use:   "definition <name>",
	Short: "Find the definition(s) of a symbol by name",
	Args:  cobra.ExactArgs(1),
	RunE:  runQueryDefinition,
}

var queryFunctionsCmd = &cobra.Command{
	Use:   "functions",
	Short: "List function/method symbols",
	RunE:  runQueryFunctions,
}

var queryTypesCmd = &cobra.Command{
	Use:   "types",
	Short: "List type symbols",
	RunE:  runQueryTypes,
}

func init() {
	for _, c := range []*cobra.Command{querySearchCmd, queryFunctionsCmd, queryTypesCmd} {
		c.Flags().IntVar(&queryLimit, "limit", 25, "maximum results")
		c.Flags().StringVar(&queryLanguage, "language", "", "filter by language")
	}
	querySearchCmd.Flags().BoolVar(&queryFuzzy, "fuzzy", false, "use fuzzy (edit-distance) matching")

	queryCmd.AddCommand(querySearchCmd, queryDefinitionCmd, queryFunctionsCmd, queryTypesCmd)
}

func openReadOnlyStore() (*store.Store, error) {
	return store.OpenReadOnly(cfg.DB.Path)
}

func printSymbols(symbols []model.Symbol) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(symbols)
}

func runQuerySearch(cmd *cobra.Command, args []string) error {
	st, err := openReadOnlyStore()
	if err != nil {
		return err
	}
	defer st.Close()

	opts := model.SearchOptions{Limit: queryLimit}
	if queryLanguage != "" {
		opts.LanguageFilter = []string{queryLanguage}
	}

	var results []model.Symbol
	if queryFuzzy {
		results, err = st.SearchFuzzy(args[0], opts)
	} else {
		results, err = st.Search(args[0], opts)
	}
	if err != nil {
		return err
	}
	return printSymbols(results)
}

func runQueryDefinition(cmd *cobra.Command, args []string) error {
	st, err := openReadOnlyStore()
	if err != nil {
		return err
	}
	defer st.Close()

	results, err := st.FindDefinition(args[0])
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Printf("no definition found for %q\n", args[0])
		return nil
	}
	return printSymbols(results)
}

func runQueryFunctions(cmd *cobra.Command, args []string) error {
	st, err := openReadOnlyStore()
	if err != nil {
		return err
	}
	defer st.Close()

	results, err := st.ListFunctions(store.ListOptions{Language: queryLanguage, Limit: queryLimit})
	if err != nil {
		return err
	}
	return printSymbols(results)
}

func runQueryTypes(cmd *cobra.Command, args []string) error {
	st, err := openReadOnlyStore()
	if err != nil {
		return err
	}
	defer st.Close()

	results, err := st.ListTypes(store.ListOptions{Language: queryLanguage, Limit: queryLimit})
	if err != nil {
		return err
	}
	return printSymbols(results)
}
