package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ppiankov/onesource/internal/model"
)

// Asker answers one query end to end.
type Asker interface {
	Ask(ctx context.Context, userID, query string) (*model.AskResult, error)
}

// AskJob runs one query through the pipeline
type AskJob struct {
	Query  string
	UserID string
	Asker  Asker
}

// Execute executes the ask job
func (j *AskJob) Execute(ctx context.Context) Result {
	result, err := j.Asker.Ask(ctx, j.UserID, j.Query)
	return &AskOutcome{
		Query:  j.Query,
		Result: result,
		Err:    err,
	}
}

// AskOutcome is the result of one batched ask
type AskOutcome struct {
	Query  string
	Result *model.AskResult
	Err    error
}

// GetError returns the error from the ask outcome
func (o *AskOutcome) GetError() error {
	return o.Err
}

// BatchProcessor answers many queries concurrently. Each query still gets
// its own fan-out round with its own per-provider timeouts.
type BatchProcessor struct {
	asker       Asker
	userID      string
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(asker Asker, userID string, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		asker:       asker,
		userID:      userID,
		concurrency: concurrency,
	}
}

// ProcessQueries answers multiple queries concurrently
func (b *BatchProcessor) ProcessQueries(ctx context.Context, queries []string) []*AskOutcome {
	if len(queries) == 0 {
		return []*AskOutcome{}
	}

	pool := NewPool(b.concurrency)
	pool.Start()

	for _, query := range queries {
		pool.Submit(&AskJob{
			Query:  query,
			UserID: b.userID,
			Asker:  b.asker,
		})
	}

	results := pool.Wait()

	outcomes := make([]*AskOutcome, len(results))
	for i, result := range results {
		outcomes[i] = result.(*AskOutcome)
	}

	return outcomes
}

// ProcessFile reads queries from a file and answers them concurrently
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*AskOutcome, error) {
	queries, err := ReadQueriesFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read queries: %w", err)
	}

	return b.ProcessQueries(ctx, queries), nil
}

// ReadQueriesFromFile reads queries from a file (one per line)
func ReadQueriesFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var queries []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !seen[line] {
			seen[line] = true
			queries = append(queries, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return queries, nil
}
