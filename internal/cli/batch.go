package cli

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/onesource/internal/worker"
)

var (
	concurrency  int
	batchTimeout time.Duration
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Answer multiple queries from a file in parallel",
	Long: `Batch answers multiple queries concurrently:
- Read queries from the input file (one per line, # comments skipped)
- Each query gets its own fan-out round with per-provider timeouts
- Results are printed one block per query

Example:
  onesource batch queries.txt
  onesource batch queries.txt --concurrency 8 --timeout 5m`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", runtime.NumCPU(), "number of concurrent workers")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 10*time.Minute, "total timeout for batch processing")
	batchCmd.Flags().StringVar(&askUserID, "user", "", "user id passed to provider adapters")
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]
	ctx, cancel := context.WithTimeout(context.Background(), batchTimeout)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := newLogger()
	assembler, err := buildAssembler(cfg, logger)
	if err != nil {
		return err
	}

	processor := worker.NewBatchProcessor(assembler, askUserID, concurrency)

	fmt.Fprintf(os.Stderr, "Reading queries from %s...\n", file)
	outcomes, err := processor.ProcessFile(ctx, file)
	if err != nil {
		return fmt.Errorf("process file: %w", err)
	}

	successCount := 0
	failureCount := 0

	for _, outcome := range outcomes {
		fmt.Printf("── %q\n", outcome.Query)
		if outcome.Err != nil {
			failureCount++
			fmt.Printf("   error: %v\n", outcome.Err)
			continue
		}
		successCount++
		renderResult(outcome.Result)
	}

	fmt.Fprintf(os.Stderr, "\nBatch complete: %d total, %d answered, %d failed\n",
		len(outcomes), successCount, failureCount)

	return nil
}
