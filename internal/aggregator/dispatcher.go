package aggregator

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/lucsky/cuid"

	"workspace-search/internal/common/logging"
)

// Job is one queued search to run in the background and deliver to a
// callback URL.
type Job struct {
	ID          string
	Query       string
	ResponseURL string
}

// jobTimeout bounds one background search end to end, including delivery.
const jobTimeout = 2 * time.Minute

// Dispatcher runs queued searches on a fixed worker pool. The search
// endpoint acknowledges immediately and the result is posted to the
// caller's response URL when it is ready.
type Dispatcher struct {
	aggregator *Aggregator
	client     *http.Client
	logger     logging.Logger

	jobs    chan Job
	wg      sync.WaitGroup
	workers int
}

// NewDispatcher creates a dispatcher with the given worker count.
func NewDispatcher(aggregator *Aggregator, client *http.Client, workers int, logger logging.Logger) *Dispatcher {
	return &Dispatcher{
		aggregator: aggregator,
		client:     client,
		logger:     logger,
		jobs:       make(chan Job, 64),
		workers:    workers,
	}
}

// Start launches the worker pool.
func (d *Dispatcher) Start() {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
}

// Stop drains queued jobs and waits for running ones to finish.
func (d *Dispatcher) Stop() {
	close(d.jobs)
	d.wg.Wait()
}

// Enqueue queues a background search. It returns the job id, or false when
// the queue is full.
func (d *Dispatcher) Enqueue(query, responseURL string) (string, bool) {
	job := Job{
		ID:          cuid.New(),
		Query:       query,
		ResponseURL: responseURL,
	}

	select {
	case d.jobs <- job:
		return job.ID, true
	default:
		return "", false
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()

	for job := range d.jobs {
		d.run(job)
	}
}

func (d *Dispatcher) run(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	ctx = context.WithValue(ctx, "job_id", job.ID)

	logger := d.logger.WithContext(ctx)
	started := time.Now()

	outcomes := d.aggregator.Search(ctx, job.Query)
	text := Format(outcomes, d.aggregator.registry.Names())

	logger.Info("background search finished",
		logging.Duration("elapsed", time.Since(started)),
		logging.Int("sources", len(outcomes)),
	)

	if err := d.deliver(ctx, job.ResponseURL, text); err != nil {
		logger.Error("failed to deliver search results", err,
			logging.String("response_url", job.ResponseURL),
		)
	}
}

// deliver posts the rendered text back to the caller's response URL in the
// shape slash-command consumers expect.
func (d *Dispatcher) deliver(ctx context.Context, responseURL, text string) error {
	payload, err := json.Marshal(map[string]string{
		"response_type": "in_channel",
		"text":          text,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, responseURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return nil
}
