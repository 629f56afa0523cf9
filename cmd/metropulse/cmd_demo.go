package main

import (
	"context"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"metropulse/internal/rag"
	"metropulse/internal/store"
)

// demoCmd runs the built-in sample questions through the assistant.
var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run the sample policy questions through the assistant",
	RunE:  runDemo,
}

var demoQuestionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))

func runDemo(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	st, err := store.NewStore(databasePath())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer st.Close()

	engine, _, closeEngine, err := buildRAGEngine(st)
	if err != nil {
		return err
	}
	if closeEngine != nil {
		defer closeEngine()
	}
	if engine == nil {
		return fmt.Errorf("policy assistant unavailable: no LLM credentials configured")
	}

	for i, q := range rag.SampleQueries() {
		fmt.Println(demoQuestionStyle.Render(fmt.Sprintf("%d. %s", i+1, q)))
		answer := engine.Answer(ctx, q)
		fmt.Println(answer.Response)
		if len(answer.Sources) > 0 {
			fmt.Printf("   (sources: %v)\n\n", answer.Sources)
		} else {
			fmt.Println()
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	stats := engine.Stats()
	if stats.Total.Total > 0 {
		fmt.Printf("Token usage: %d total (%d in, %d out)\n",
			stats.Total.Total, stats.Total.Input, stats.Total.Output)
	}
	return nil
}
