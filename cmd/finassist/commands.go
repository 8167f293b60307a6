package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/supportbot/finassist-go/internal/knowledge"
	"github.com/supportbot/finassist-go/internal/model"
	"github.com/supportbot/finassist-go/internal/service"
)

var (
	askStrategy string
	askTemp     float64
	askTokens   int

	turnIntent string
	turnText   string
	turnState  string

	searchK    int
	searchLive bool
)

var askCmd = &cobra.Command{
	Use:   "ask <query>",
	Short: "Answer a question with a fallback strategy",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

var turnCmd = &cobra.Command{
	Use:   "turn",
	Short: "Process one dialogue turn and print the new state",
	RunE:  runTurn,
}

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>...",
	Short: "Load knowledge JSON files into the configured vector store",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runIngest,
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the knowledge base",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

func init() {
	askCmd.Flags().StringVarP(&askStrategy, "strategy", "s", "", "llm_only, static_rag, dynamic_rag, dynamic_llm or none")
	askCmd.Flags().Float64Var(&askTemp, "temperature", -1, "override temperature")
	askCmd.Flags().IntVar(&askTokens, "max-tokens", 0, "override max tokens")

	turnCmd.Flags().StringVarP(&turnIntent, "intent", "i", "", "intent name")
	turnCmd.Flags().StringVarP(&turnText, "text", "t", "", "raw user text")
	turnCmd.Flags().StringVar(&turnState, "state", "", "prior state as JSON")
	_ = turnCmd.MarkFlagRequired("intent")

	searchCmd.Flags().IntVarP(&searchK, "k", "k", 3, "number of results")
	searchCmd.Flags().BoolVar(&searchLive, "hybrid", false, "merge live regulatory results")
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Minute)
	defer cancel()

	c, err := newContainer(ctx)
	if err != nil {
		return err
	}
	defer c.Close(context.Background())

	if err := c.BuildFallback(ctx); err != nil {
		return err
	}
	if err := c.LoadKnowledge(ctx); err != nil {
		return err
	}

	name := askStrategy
	if name == "" {
		name = c.Config.Fallback.Strategy
	}
	strategy, ok := model.ParseStrategy(name)
	if !ok {
		return fmt.Errorf("unknown strategy %q", name)
	}
	if c.Config.Fallback.Disabled {
		strategy = model.StrategyNone
	}

	tuning := service.Tuning{MaxTokens: askTokens}
	if askTemp >= 0 {
		tuning.Temperature = &askTemp
	}

	answer := c.Fallback.AnswerTuned(ctx, strings.Join(args, " "), strategy, tuning)
	printAnswer(answer)
	return nil
}

func printAnswer(answer model.FallbackAnswer) {
	switch answer.Outcome {
	case model.OutcomeAnswered:
		color.Green("[%s] %s", answer.Strategy, answer.Outcome)
	case model.OutcomeRejected, model.OutcomeUnavailable:
		color.Red("[%s] %s", answer.Strategy, answer.Outcome)
	default:
		color.Yellow("[%s] %s", answer.Strategy, answer.Outcome)
	}
	fmt.Println(answer.Text)

	if len(answer.Citations) > 0 {
		color.Cyan("\nSources:")
		for _, cite := range answer.Citations {
			fmt.Printf("  [%d] %s - %s %s\n", cite.Index, cite.Label, cite.Title, cite.URL)
		}
	}
	if len(answer.SourceBreakdown) > 0 {
		color.Cyan("Breakdown: static=%d live=%d internal=%d",
			answer.SourceBreakdown[model.SourceStatic],
			answer.SourceBreakdown[model.SourceLive],
			answer.SourceBreakdown[model.SourceInternal])
	}
}

func runTurn(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Minute)
	defer cancel()

	req := model.TurnRequest{IntentName: turnIntent, RawText: turnText}
	if turnState != "" {
		var prior model.SerializedState
		if err := json.Unmarshal([]byte(turnState), &prior); err != nil {
			return fmt.Errorf("invalid --state: %w", err)
		}
		req.PriorState = &prior
	}

	c, err := newContainer(ctx)
	if err != nil {
		return err
	}
	defer c.Close(context.Background())

	if err := c.BuildDialogue(ctx); err != nil {
		return err
	}

	resp := c.Turns.Process(ctx, req)
	color.Green("[%s]", resp.Source)
	fmt.Println(resp.ResponseText)

	state, err := json.MarshalIndent(resp.NewState, "", "  ")
	if err != nil {
		return err
	}
	color.Cyan("\nState:")
	fmt.Println(string(state))
	return nil
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Minute)
	defer cancel()

	c, err := newContainer(ctx)
	if err != nil {
		return err
	}
	defer c.Close(context.Background())

	docs, err := knowledge.LoadFiles(args, c.Logger)
	if err != nil {
		return err
	}

	if err := c.BuildFallback(ctx); err != nil {
		return err
	}

	start := time.Now()
	if err := c.Knowledge.Ingest(ctx, docs); err != nil {
		return err
	}
	total, err := c.Knowledge.Count(ctx)
	if err != nil {
		return err
	}
	color.Green("Ingested %d documents in %s (index now holds %d)", len(docs), time.Since(start).Round(time.Millisecond), total)
	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
	defer cancel()

	c, err := newContainer(ctx)
	if err != nil {
		return err
	}
	defer c.Close(context.Background())

	if err := c.BuildFallback(ctx); err != nil {
		return err
	}
	if err := c.LoadKnowledge(ctx); err != nil {
		return err
	}

	query := strings.Join(args, " ")
	search := c.Knowledge.Search
	if searchLive {
		search = c.Knowledge.HybridSearch
	}
	results, err := search(ctx, query, searchK)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		color.Yellow("No results")
		return nil
	}

	for i, r := range results {
		color.Cyan("%d. %s (%s, score %.3f)", i+1, r.Document.ID, r.Document.SourceType, r.Score)
		if r.Document.Title != "" {
			fmt.Printf("   %s\n", r.Document.Title)
		}
		fmt.Printf("   %s\n", preview(r.Document.Content, 160))
	}
	return nil
}

func preview(s string, limit int) string {
	runes := []rune(strings.Join(strings.Fields(s), " "))
	if len(runes) <= limit {
		return string(runes)
	}
	return string(runes[:limit]) + "..."
}
