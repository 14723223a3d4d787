package modbus

import (
	"fmt"
	"sync"
	"time"

	"github.com/GoAethereal/cancel"
)

// Job is the work a daemon performs on each iteration. A non-nil error
// stops the daemon; the error is returned from Stop.
type Job func(ctx *LocalContext) error

// Daemon periodically executes a job against a local context in the
// background. On each iteration the job runs, then the daemon sleeps
// for whatever remains of the period.
type Daemon struct {
	job    Job
	period time.Duration
	stop   func()
	done   chan struct{}
	err    error
}

// NewDaemon returns a one-shot daemon executing job every period.
func NewDaemon(job Job, period time.Duration) (*Daemon, error) {
	if period < 0 {
		return nil, fmt.Errorf("%w: %s", ErrNegativePeriod, period)
	}
	return &Daemon{job: job, period: period}, nil
}

// Serve starts the daemon in the background.
func (d *Daemon) Serve(ctx *LocalContext) {
	sig := cancel.New()
	var once sync.Once
	d.stop = func() { once.Do(sig.Cancel) }
	d.done = make(chan struct{})
	go d.serve(sig, ctx)
}

func (d *Daemon) serve(sig cancel.Context, ctx *LocalContext) {
	defer close(d.done)
	for {
		select {
		case <-sig.Done():
			return
		default:
		}
		start := time.Now()
		if err := d.job(ctx); err != nil {
			d.err = err
			return
		}
		wait := d.period - time.Since(start)
		if wait < 0 {
			wait = 0
		}
		select {
		case <-sig.Done():
			return
		case <-time.After(wait):
		}
	}
}

// Stop gracefully stops the daemon. The current iteration completes
// before Stop returns. If the job failed, its error is returned.
func (d *Daemon) Stop() error {
	if d.done == nil {
		return nil
	}
	d.stop()
	<-d.done
	return d.err
}

// Cancel signals the daemon to stop and returns without waiting for
// the current iteration. Any job error is abandoned with the worker.
func (d *Daemon) Cancel() {
	if d.done != nil {
		d.stop()
	}
}
