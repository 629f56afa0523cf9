package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"metropulse/internal/store"
)

// queryCmd answers a single policy question from the terminal.
var queryCmd = &cobra.Command{
	Use:   "query [question]",
	Short: "Ask the policy assistant a question",
	Long: `Runs one retrieval-augmented query against the policy document
corpus and prints the answer with its sources. Requires an LLM API key
(OPENAI_API_KEY or GEMINI_API_KEY, or llm.api_key in the config).`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

var (
	sourceHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	sourceItemStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func runQuery(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		return fmt.Errorf("question must not be empty")
	}

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

	answer := engine.Answer(ctx, question)

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		fmt.Println(answer.Response)
	} else if out, rerr := renderer.Render(answer.Response); rerr != nil {
		fmt.Println(answer.Response)
	} else {
		fmt.Print(out)
	}

	if len(answer.Sources) > 0 {
		fmt.Println(sourceHeaderStyle.Render("Sources"))
		for _, src := range answer.Sources {
			fmt.Println(sourceItemStyle.Render("  • " + src))
		}
	}
	return nil
}
