package broadcast

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	ErrQueueFull = errors.New("broadcast queue is full")
	ErrStopped   = errors.New("broadcast dispatcher stopped")
)

// Job is one POST to a tower.
type Job struct {
	URL    string
	Params url.Values
}

type DispatcherConfig struct {
	Workers    int
	Queue      int
	Timeout    time.Duration
	RetryDelay time.Duration
	MaxRetries int
	// OnDone, when set, is called after every job with its final error.
	OnDone func(Job, error)
}

func (c *DispatcherConfig) setDefaults() {
	if c.Workers < 1 {
		c.Workers = 1
	}
	if c.Queue < 1 {
		c.Queue = 64
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 10 * time.Minute
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
}

// Dispatcher delivers jobs with a fixed pool of workers. Connection errors
// and timeouts are retried; any non-2xx answer fails the job.
type Dispatcher struct {
	cfg    DispatcherConfig
	client *http.Client
	log    zerolog.Logger
	jobs   chan Job

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewDispatcher(cfg DispatcherConfig, log zerolog.Logger) *Dispatcher {
	cfg.setDefaults()
	return &Dispatcher{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		log:    log.With().Str("component", "broadcast").Logger(),
		jobs:   make(chan Job, cfg.Queue),
	}
}

// Start launches the workers. They exit when ctx is cancelled or after Stop
// once the queue is drained.
func (d *Dispatcher) Start(ctx context.Context) {
	for w := 0; w < d.cfg.Workers; w++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case job, ok := <-d.jobs:
					if !ok {
						return
					}
					err := d.deliver(ctx, job)
					if d.cfg.OnDone != nil {
						d.cfg.OnDone(job, err)
					}
				}
			}
		}()
	}
}

// Enqueue hands a job to the pool without blocking.
func (d *Dispatcher) Enqueue(job Job) error {
	return d.EnqueueAll([]Job{job})
}

// EnqueueAll hands every job to the pool or none of them: when the queue
// lacks room for the whole batch nothing is queued.
func (d *Dispatcher) EnqueueAll(jobs []Job) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrStopped
	}
	// workers only drain the queue, so the room seen here cannot shrink
	// while mu is held
	if cap(d.jobs)-len(d.jobs) < len(jobs) {
		return ErrQueueFull
	}
	for _, job := range jobs {
		d.jobs <- job
	}
	return nil
}

// Stop refuses new jobs and waits for the workers to finish.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.jobs)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) deliver(ctx context.Context, job Job) error {
	for attempt := 0; ; attempt++ {
		err := d.post(ctx, job)
		if err == nil {
			d.log.Info().Str("url", job.URL).Str("msgid", job.Params.Get("msgid")).Msg("broadcast delivered")
			return nil
		}
		if !retryable(err) || attempt >= d.cfg.MaxRetries {
			d.log.Error().Err(err).Str("url", job.URL).Int("attempts", attempt+1).Msg("broadcast failed")
			return err
		}
		d.log.Warn().Err(err).Str("url", job.URL).Dur("retry_in", d.cfg.RetryDelay).Msg("broadcast retry")

		t := time.NewTimer(d.cfg.RetryDelay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

// StatusError is a delivery answered with a non-2xx status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("tower answered %d: %s", e.Code, e.Body)
}

func (d *Dispatcher) post(ctx context.Context, job Job) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, job.URL, strings.NewReader(job.Params.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return nil
}

// retryable reports connection failures and timeouts.
func retryable(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
