package store

import (
	"log"
	"sync"
	"time"
)

// retentionBatch bounds how many history rows one DELETE touches, keeping
// the writer lock window short.
const retentionBatch = 1000

// ApplyRetention deletes history rows and chunks older than horizon. Live
// rows are removed in bounded batches. Returns the number of live rows
// deleted.
func (db *DB) ApplyRetention(horizon time.Duration) (int64, error) {
	cutoff := Millis(time.Now().Add(-horizon))
	var total int64
	for {
		res, err := db.Exec(db.Q(`DELETE FROM metric_history WHERE id IN
			(SELECT id FROM metric_history WHERE ts < ? LIMIT ?)`), cutoff, retentionBatch)
		if err != nil {
			return total, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, err
		}
		total += n
		if n < retentionBatch {
			break
		}
	}
	if _, err := db.Exec(db.Q(`DELETE FROM metric_history_chunks WHERE end_ts < ?`), cutoff); err != nil {
		return total, err
	}
	return total, nil
}

// RetentionWorker runs retention and compression sweeps on a schedule,
// independent of the ingestion path.
type RetentionWorker struct {
	db             *DB
	horizon        time.Duration
	compressionAge time.Duration
	interval       time.Duration
	stopChan       chan struct{}
	stopOnce       sync.Once
	wg             sync.WaitGroup
}

// NewRetentionWorker creates a worker for the given maintenance windows.
func NewRetentionWorker(db *DB, horizon, compressionAge, interval time.Duration) *RetentionWorker {
	return &RetentionWorker{
		db:             db,
		horizon:        horizon,
		compressionAge: compressionAge,
		interval:       interval,
		stopChan:       make(chan struct{}),
	}
}

// Start begins the sweep loop.
func (w *RetentionWorker) Start() {
	w.wg.Add(1)
	go w.run()
}

// Stop halts the sweep loop and waits for an in-flight sweep to finish.
// Safe to call more than once, concurrently.
func (w *RetentionWorker) Stop() {
	w.stopOnce.Do(func() { close(w.stopChan) })
	w.wg.Wait()
}

func (w *RetentionWorker) run() {
	defer w.wg.Done()
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopChan:
			return
		case <-ticker.C:
			w.Sweep()
		}
	}
}

// Sweep runs one compression pass followed by one retention pass.
func (w *RetentionWorker) Sweep() {
	if w.compressionAge > 0 {
		chunks, err := w.db.ApplyCompression(w.compressionAge)
		if err != nil {
			log.Printf("store: compression sweep: %v", err)
		} else if chunks > 0 {
			log.Printf("store: compressed %d history chunks", chunks)
		}
	}
	if w.horizon > 0 {
		deleted, err := w.db.ApplyRetention(w.horizon)
		if err != nil {
			log.Printf("store: retention sweep: %v", err)
		} else if deleted > 0 {
			log.Printf("store: evicted %d history rows past retention", deleted)
		}
	}
}
