package mailq

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultMaxAttempts bounds automatic retry of one message.
	DefaultMaxAttempts = 5

	// DefaultBaseBackoff is the first retry delay; it doubles per attempt.
	DefaultBaseBackoff = time.Second

	// popTimeout is how long each BRPOP blocks before the worker rechecks
	// its stop channel.
	popTimeout = time.Second
)

// Sender delivers one message. Implementations decide the transport (SMTP,
// an API, a log line in dev).
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Worker drains a Queue in the background. Failed deliveries are re-queued
// with an exponential delay until MaxAttempts is reached, then dropped with
// an error log; delivery failures are never surfaced to end users.
type Worker struct {
	Queue       *Queue
	Sender      Sender
	Logger      *slog.Logger
	MaxAttempts int           // 0 means DefaultMaxAttempts
	BaseBackoff time.Duration // 0 means DefaultBaseBackoff

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewWorker wires a worker over queue and sender.
func NewWorker(queue *Queue, sender Sender, logger *slog.Logger) *Worker {
	return &Worker{
		Queue:  queue,
		Sender: sender,
		Logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start begins the background drain loop. Non-blocking; call Stop to shut
// down gracefully.
func (w *Worker) Start() {
	go w.run()
	w.Logger.Info("mail worker started", "queue", w.Queue.key)
}

// Stop shuts the worker down and waits for any in-flight delivery to finish.
func (w *Worker) Stop() {
	close(w.stopCh)
	<-w.doneCh
	w.Logger.Info("mail worker stopped")
}

func (w *Worker) run() {
	defer close(w.doneCh)

	ctx := context.Background()
	for {
		select {
		case <-w.stopCh:
			return
		default:
		}

		if _, err := w.Queue.PromoteDue(ctx, time.Now()); err != nil {
			w.Logger.Error("mail retry promotion failed", "err", err)
		}

		res, err := w.Queue.rdb.BRPop(ctx, popTimeout, w.Queue.key).Result()
		if err != nil {
			if !errors.Is(err, redis.Nil) {
				w.Logger.Error("mail queue pop failed", "err", err)
				// Back off briefly so a dead redis doesn't spin the loop.
				time.Sleep(popTimeout)
			}
			continue
		}

		// BRPOP returns [key, value].
		if len(res) != 2 {
			continue
		}
		w.deliver(ctx, res[1])
	}
}

func (w *Worker) deliver(ctx context.Context, payload string) {
	var msg Message
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		w.Logger.Error("dropping undecodable mail job", "err", err)
		return
	}

	msg.Attempts++
	if err := w.Sender.Send(ctx, msg); err == nil {
		return
	} else if msg.Attempts >= w.maxAttempts() {
		w.Logger.Error("dropping mail after max attempts",
			"subject", msg.Subject, "attempts", msg.Attempts, "err", err)
		return
	} else {
		w.Logger.Warn("mail delivery failed, will retry",
			"subject", msg.Subject, "attempt", msg.Attempts, "err", err)
	}

	// Park the retry in redis so it survives a worker shutdown; the drain
	// loop promotes it once the delay elapses.
	readyAt := time.Now().Add(w.backoff(msg.Attempts))
	if err := w.Queue.ScheduleRetry(ctx, msg, readyAt); err != nil {
		w.Logger.Error("failed to schedule mail retry", "err", err)
	}
}

func (w *Worker) maxAttempts() int {
	if w.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return w.MaxAttempts
}

// backoff doubles per completed attempt: base, 2*base, 4*base, ...
func (w *Worker) backoff(attempts int) time.Duration {
	base := w.BaseBackoff
	if base <= 0 {
		base = DefaultBaseBackoff
	}
	return base << (attempts - 1)
}
