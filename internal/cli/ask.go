package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/onesource/internal/model"
	"github.com/ppiankov/onesource/internal/trace"
)

var (
	askTimeout   time.Duration
	askLimit     int
	askUserID    string
	askJSON      bool
	askShowTrace bool
	llmEnabled   bool
	llmModel     string
)

// askCmd represents the ask command
var askCmd = &cobra.Command{
	Use:   "ask <query>",
	Short: "Answer a question from all configured knowledge sources",
	Long: `Ask fans the query out to every configured provider in parallel, fuses
the candidates with a transparent score (freshness, authority, specificity,
cross-source consensus), redacts sensitive tokens, and flags contradicting
sources.

Example:
  onesource ask "deploy window"
  onesource ask "rotation schedule" --json
  onesource ask "deploy window" --show-trace
  onesource ask "deploy window" --llm --llm-model gpt-4o-mini`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)

	askCmd.Flags().DurationVar(&askTimeout, "timeout", 30*time.Second, "overall ask timeout")
	askCmd.Flags().IntVar(&askLimit, "limit", 5, "per-provider candidate limit hint")
	askCmd.Flags().StringVar(&askUserID, "user", "", "user id passed to provider adapters")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "emit the full result as JSON")
	askCmd.Flags().BoolVar(&askShowTrace, "show-trace", false, "print the audit trace after the answer")

	// LLM flags
	askCmd.Flags().BoolVar(&llmEnabled, "llm", false, "enable LLM answer summary")
	askCmd.Flags().StringVar(&llmModel, "llm-model", "gpt-4o-mini", "LLM model name")
}

func runAsk(cmd *cobra.Command, args []string) error {
	query := args[0]
	ctx, cancel := context.WithTimeout(context.Background(), askTimeout)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.Aggregator.Limit = askLimit

	if llmEnabled {
		cfg.LLM.Provider = "openai"
		cfg.LLM.Model = llmModel
		cfg.LLM.StrictEvidence = true // always enforce
		if os.Getenv("OPENAI_API_KEY") == "" {
			return fmt.Errorf("OPENAI_API_KEY environment variable not set")
		}
	}

	logger := newLogger()
	assembler, err := buildAssembler(cfg, logger)
	if err != nil {
		return err
	}

	result, err := assembler.Ask(ctx, askUserID, query)
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}

	if askJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
	} else {
		renderResult(result)
	}

	if askShowTrace {
		if t := assembler.Trace(result.TraceID); t != nil {
			renderTrace(t)
		}
	}

	return nil
}

// renderResult prints the human-readable answer.
func renderResult(r *model.AskResult) {
	fmt.Println()
	fmt.Printf("Answer: %s\n", r.Answer)
	if r.Banner != "" {
		fmt.Printf("⚠ %s\n", r.Banner)
	}
	fmt.Println()

	if len(r.Citations) > 0 {
		fmt.Println("Citations:")
		for _, c := range r.Citations {
			fmt.Printf("  [%s] %s\n", c.Label, c.URL)
		}
		fmt.Println()
	}

	fmt.Printf("Confidence: %.2f   Freshness: %s   Trace: %s (%dms)\n",
		r.Confidence, r.Freshness.Format(time.RFC3339), r.TraceID, r.LatencyMS)

	if len(r.Redactions) > 0 {
		fmt.Printf("Redacted snippets: %d\n", len(r.Redactions))
	}
	if r.Summary != nil {
		fmt.Println()
		fmt.Printf("Summary (%s/%s):\n%s\n", r.Summary.Provider, r.Summary.Model, r.Summary.Text)
	}
}

// renderTrace prints the scoring rationale for audit display.
func renderTrace(t *trace.Trace) {
	fmt.Println()
	fmt.Printf("Trace %s — %q\n", t.TraceID, t.Query)

	fmt.Println("Providers:")
	for source, o := range t.Outcomes {
		fmt.Printf("  %-8s ms=%-5d timeout=%-5t rate_limited=%-5t error=%q count=%d\n",
			source, o.ElapsedMS, o.Timeout, o.RateLimited, o.Error, o.Count)
	}

	fmt.Println("Candidates:")
	for _, c := range t.Candidates {
		fmt.Printf("  %.4f  [%s] %s\n", c.Score, c.Source, c.URL)
		for _, reason := range c.Reasons {
			fmt.Printf("          %s\n", reason)
		}
	}

	if t.Chosen.URL != "" {
		fmt.Printf("Chosen: %s (%.4f)\n", t.Chosen.URL, t.Chosen.Score)
	}
	if t.Policy.Conflict || len(t.Policy.Redactions) > 0 {
		fmt.Printf("Policy: conflict=%t redactions=%v\n", t.Policy.Conflict, t.Policy.Redactions)
	}
}
