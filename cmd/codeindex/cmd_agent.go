package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"codeindex/internal/agent"
	"codeindex/internal/agenttools"
	"codeindex/internal/llm"
	"codeindex/internal/store"
)

var (
	agentFile     string
	agentHint     string
	agentTrace    bool
	agentMaxSteps int
)

var agentCmd = &cobra.Command{
	Use:   "agent <query>",
	Short: "Run the bounded tool-using context-collection agent",
	Long: `Drives an LLM through a bounded tool-call loop to fill the
task-context digest's required layers for query, dispatching allow-listed
tool calls against the index via the agenttools executor.`,
	Args: cobra.ExactArgs(1),
	RunE: runAgent,
}

func init() {
	agentCmd.Flags().StringVar(&agentFile, "file", "", "file hint for the collection request")
	agentCmd.Flags().StringVar(&agentHint, "task-hint", "", "free-text task hint")
	agentCmd.Flags().BoolVar(&agentTrace, "trace", false, "include the full step trace in output")
	agentCmd.Flags().IntVar(&agentMaxSteps, "max-steps", 0, "override the configured max steps")

	rootCmd.AddCommand(agentCmd)
}

func runAgent(cmd *cobra.Command, args []string) error {
	st, err := store.Open(cfg.DB.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), opTimeout)
	defer cancel()

	maxSteps := cfg.Agent.MaxSteps
	if agentMaxSteps > 0 {
		maxSteps = agentMaxSteps
	}

	req := agent.Request{
		Query:        args[0],
		File:         agentFile,
		TaskHint:     agentHint,
		TimeoutMs:    cfg.Agent.TimeoutMs,
		MaxSteps:     maxSteps,
		IncludeTrace: agentTrace,
		Provider:     cfg.Agent.Provider,
		Model:        cfg.Agent.Model,
		Endpoint:     cfg.Agent.Endpoint,
		APIKey:       cfg.Agent.APIKey,
	}

	client := llm.New(req.Provider, req.Model, req.Endpoint, req.APIKey)
	executor := agenttools.New(st)

	result, err := agent.Run(ctx, req, client, executor.Execute)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
