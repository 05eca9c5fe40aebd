package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Veraticus/card-purpose/internal/common"
	"github.com/Veraticus/card-purpose/internal/model"
	"github.com/Veraticus/card-purpose/internal/refdb"
)

// ProgressFunc is called after each transaction finishes, from a single goroutine.
type ProgressFunc func(done, total int)

// BatchItem pairs a transaction with its result.
type BatchItem struct {
	Transaction model.Transaction
	Result      model.ClassificationResult
}

// BatchSummary contains statistics about the batch run.
type BatchSummary struct {
	BySource       map[model.LabelSource]int
	Total          int
	Completed      int
	Unclassified   int
	OutOfTaxonomy  int
	Pending        int
	ProcessingTime time.Duration
}

// BatchOutcome holds completed results and the transactions left unprocessed.
// Both are in input order.
type BatchOutcome struct {
	Results  []BatchItem
	Pending  []model.Transaction
	Summary  BatchSummary
	Canceled bool
}

type batchResult struct {
	item    BatchItem
	index   int
	pending bool
}

// ClassifyBatch classifies txns in parallel against one snapshot taken at the
// start. Cancellation stops workers from taking new items; completed results
// are kept and the rest are reported as pending. The only error is an
// unavailable reference database.
func (e *Engine) ClassifyBatch(ctx context.Context, txns []model.Transaction, progress ProgressFunc) (*BatchOutcome, error) {
	startTime := time.Now()

	var snap *refdb.Snapshot
	if e.source != nil {
		snap = e.source.Snapshot()
	}
	if snap == nil {
		return nil, fmt.Errorf("%w: reference snapshot not loaded", common.ErrPersistence)
	}

	if len(txns) == 0 {
		e.logger.Info("No transactions to classify")
		return &BatchOutcome{Summary: BatchSummary{BySource: map[model.LabelSource]int{}}}, nil
	}

	e.logger.Info("Starting batch classification",
		"transactions", len(txns),
		"workers", e.cfg.ParallelWorkers,
		"reference_entries", snap.Len(),
		"snapshot_version", snap.Version())

	results := e.processParallel(ctx, txns, snap, progress)

	outcome := &BatchOutcome{
		Canceled: ctx.Err() != nil,
		Summary: BatchSummary{
			BySource: make(map[model.LabelSource]int),
			Total:    len(txns),
		},
	}
	for _, r := range results {
		if r.pending {
			outcome.Pending = append(outcome.Pending, txns[r.index])
			continue
		}
		outcome.Results = append(outcome.Results, r.item)
		outcome.Summary.add(r.item.Result)
	}
	outcome.Summary.Pending = len(outcome.Pending)
	outcome.Summary.ProcessingTime = time.Since(startTime)
	e.metrics.ObserveBatch(outcome.Summary.ProcessingTime)

	e.logger.Info("Batch classification finished",
		"completed", outcome.Summary.Completed,
		"unclassified", outcome.Summary.Unclassified,
		"pending", outcome.Summary.Pending,
		"canceled", outcome.Canceled,
		"elapsed", outcome.Summary.ProcessingTime)

	return outcome, nil
}

// processParallel fans txns out to the workers and returns results in input order.
func (e *Engine) processParallel(ctx context.Context, txns []model.Transaction, snap *refdb.Snapshot, progress ProgressFunc) []batchResult {
	// Create work channel
	workChan := make(chan int, len(txns))
	for i := range txns {
		workChan <- i
	}
	close(workChan)

	resultsChan := make(chan batchResult, len(txns))

	workers := min(e.cfg.ParallelWorkers, len(txns))
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(workerID int) {
			defer wg.Done()
			e.batchWorker(ctx, workerID, txns, snap, workChan, resultsChan)
		}(i)
	}

	// Wait for workers and close results
	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	results := make([]batchResult, 0, len(txns))
	for r := range resultsChan {
		results = append(results, r)
		if progress != nil {
			progress(len(results), len(txns))
		}
	}

	sort.Slice(results, func(i, j int) bool { return results[i].index < results[j].index })
	return results
}

// batchWorker drains the work channel. After cancellation it only marks items pending.
func (e *Engine) batchWorker(
	ctx context.Context,
	workerID int,
	txns []model.Transaction,
	snap *refdb.Snapshot,
	workChan <-chan int,
	resultsChan chan<- batchResult,
) {
	for idx := range workChan {
		if ctx.Err() != nil {
			resultsChan <- batchResult{index: idx, pending: true}
			continue
		}

		txn := txns[idx]
		result := e.Classify(ctx, txn, snap)

		// An unclassified result produced while canceling was interrupted, not decided.
		if ctx.Err() != nil && result.IsUnclassified() {
			e.logger.Debug("Transaction interrupted by cancellation",
				"worker_id", workerID,
				"transaction_id", txn.ID)
			resultsChan <- batchResult{index: idx, pending: true}
			continue
		}

		if result.MerchantKey != "" {
			txn.MerchantKey = result.MerchantKey
		}
		resultsChan <- batchResult{index: idx, item: BatchItem{Transaction: txn, Result: result}}
	}
}

func (s *BatchSummary) add(r model.ClassificationResult) {
	s.Completed++
	s.BySource[r.Source]++
	if r.IsUnclassified() {
		s.Unclassified++
	}
	if r.OutOfTaxonomy {
		s.OutOfTaxonomy++
	}
}

// Count returns how many results came from the base source, with or without rule validation.
func (s BatchSummary) Count(base model.LabelSource) int {
	n := 0
	for src, c := range s.BySource {
		if src.Base() == base {
			n += c
		}
	}
	return n
}
