package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/screenlake/screenlake/pkg/agent"
	"github.com/screenlake/screenlake/pkg/api/config"
	"github.com/screenlake/screenlake/pkg/session"
	"github.com/screenlake/screenlake/pkg/warehouse"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		verbose   bool
		showSQL   bool
		showTable bool
		sessionID string
	)

	rootCmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a natural-language question against the warehouse.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.Join(args, " ")
			return ask(cmd, question, verbose, showSQL, showTable, sessionID)
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "set debug logging level")
	rootCmd.Flags().BoolVar(&showSQL, "sql", false, "print the SQL query that produced the answer")
	rootCmd.Flags().BoolVar(&showTable, "table", false, "print the raw result table")
	rootCmd.Flags().StringVar(&sessionID, "session", "", "session ID for follow-up questions")

	return rootCmd
}

func ask(cmd *cobra.Command, question string, verbose, showSQL, showTable bool, sessionID string) error {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if verbose {
		cfg.Verbose = true
	}
	log := newLogger(cfg.Verbose)

	ctx := cmd.Context()

	wh, err := warehouse.NewClient(warehouse.Config{
		Logger:   log,
		Addr:     cfg.ClickHouseAddr,
		Database: cfg.ClickHouseDatabase,
		Username: cfg.ClickHouseUsername,
		Password: cfg.ClickHousePassword,
	})
	if err != nil {
		return fmt.Errorf("failed to create warehouse client: %w", err)
	}

	limits := warehouse.Limits{
		MaxBytesRead: cfg.MaxBytesRead,
		Timeout:      cfg.QueryTimeout,
	}

	llm := agent.NewAnthropicLLMClient(cfg.AnthropicModel, cfg.MaxTokens, log)

	ag, err := agent.New(log, llm, wh, warehouse.NewSchemaFetcher(wh, cfg.SchemaCacheTTL),
		session.NewMemoryStore(), limits, agent.LoopConfig{
			InnerAttempts:   cfg.InnerAttempts,
			OuterAttempts:   cfg.OuterAttempts,
			AcceptThreshold: cfg.AcceptThreshold,
		})
	if err != nil {
		return fmt.Errorf("failed to create agent: %w", err)
	}

	result, err := ag.Ask(ctx, sessionID, question)
	if err != nil {
		return err
	}

	fmt.Println(result.Answer)

	if showSQL && result.SQL != "" {
		fmt.Println()
		fmt.Println("SQL:", result.SQL)
		fmt.Printf("State: %s, score: %.1f, attempts: %d\n", result.State, result.Score, result.Attempts)
	}
	if showTable && result.Result.HasData() {
		fmt.Println()
		printTable(result.Result)
	}
	return nil
}

func printTable(result warehouse.Table) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetHeader(result.Header())
	for _, row := range result.Rows[1:] {
		table.Append(row)
	}
	table.Render()
	if result.Truncated {
		fmt.Println("(results truncated)")
	}
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	}))
}
