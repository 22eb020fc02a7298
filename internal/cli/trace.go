package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var traceJSON bool

// traceCmd represents the trace command
var traceCmd = &cobra.Command{
	Use:   "trace <id>",
	Short: "Show the audit trace for a previous ask",
	Long: `Show the stored audit trace for an ask: per-provider timings, every
candidate's score breakdown, the chosen answer, and the policy decisions.

Traces live in process memory for a bounded time, so this command can only
resolve ids produced by the same process (for example through the library
API). For one-shot CLI usage prefer:
  onesource ask "deploy window" --show-trace`,
	Args: cobra.ExactArgs(1),
	RunE: runTrace,
}

func init() {
	rootCmd.AddCommand(traceCmd)

	traceCmd.Flags().BoolVar(&traceJSON, "json", false, "emit the trace as JSON")
}

func runTrace(cmd *cobra.Command, args []string) error {
	id := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	assembler, err := buildAssembler(cfg, newLogger())
	if err != nil {
		return err
	}

	t := assembler.Trace(id)
	if t == nil {
		return fmt.Errorf("trace %s not found: traces are retained in memory for %s within one process; use 'onesource ask --show-trace' for one-shot runs", id, traceRetention)
	}

	if traceJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(t)
	}
	renderTrace(t)
	return nil
}
