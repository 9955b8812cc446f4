package ruleforge

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/ruleforge/ruleforge-go/core"
	"github.com/ruleforge/ruleforge-go/obs"
	"github.com/ruleforge/ruleforge-go/stream"
	"github.com/ruleforge/ruleforge-go/transport"
)

// Operation is the handle for one analysis run. It settles exactly once:
// with a report on success, a typed error on failure, or a canceled-coded
// error when canceled or superseded. All methods are safe for concurrent
// use.
//
// Events reach consumers two ways, both in decode order: the buffered
// Events channel, closed once the operation settles, and Subscribe, which
// replays the event log before live delivery so late subscribers miss
// nothing.
type Operation struct {
	id        string
	client    *Client
	ctx       context.Context
	cancel    context.CancelFunc
	startedAt time.Time
	recorder  *obs.OperationRecorder

	// deliverMu serializes event delivery, settlement delivery and
	// subscription replay so no observer sees an event after OnSettled or a
	// replay interleaved with live events.
	deliverMu sync.Mutex

	mu        sync.Mutex
	status    core.Status
	events    []core.ProgressEvent
	progress  int
	stage     core.Stage
	outcome   core.Outcome
	observers []Observer

	ch   chan core.ProgressEvent
	done chan struct{}
}

// ID returns the operation's unique identifier.
func (op *Operation) ID() string { return op.id }

// StartedAt returns when the operation was started.
func (op *Operation) StartedAt() time.Time { return op.startedAt }

// Status returns the current lifecycle state.
func (op *Operation) Status() core.Status {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.status
}

// Progress returns the progress value of the last event. Values pass
// through as the server sent them, without clamping or reordering.
func (op *Operation) Progress() int {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.progress
}

// Stage returns the stage of the last event.
func (op *Operation) Stage() core.Stage {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.stage
}

// EventLog returns a copy of the append-only event log.
func (op *Operation) EventLog() []core.ProgressEvent {
	op.mu.Lock()
	defer op.mu.Unlock()
	return append([]core.ProgressEvent(nil), op.events...)
}

// Events returns the live event channel. Every published event is
// delivered in order; the channel closes once the operation has settled.
// Consumers should drain promptly: a full buffer stalls decoding until
// space frees or the operation is canceled.
func (op *Operation) Events() <-chan core.ProgressEvent { return op.ch }

// Done returns a channel closed when the operation settles.
func (op *Operation) Done() <-chan struct{} { return op.done }

// Outcome returns the settlement and whether the operation has settled.
func (op *Operation) Outcome() (core.Outcome, bool) {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.outcome, op.status.Terminal()
}

// Err returns the terminal failure, or nil while running and on success.
func (op *Operation) Err() error {
	out, ok := op.Outcome()
	if !ok {
		return nil
	}
	return out.Err
}

// Report returns the successful result once settled, nil otherwise.
func (op *Operation) Report() *core.Report {
	out, _ := op.Outcome()
	return out.Report
}

// Wait blocks until the operation settles or ctx ends.
func (op *Operation) Wait(ctx context.Context) (core.Outcome, error) {
	select {
	case <-op.done:
		out, _ := op.Outcome()
		return out, nil
	case <-ctx.Done():
		return core.Outcome{}, ctx.Err()
	}
}

// Cancel aborts the operation: the transport stops reading and the status
// is Canceled before Cancel returns. The outcome carries a canceled-coded
// error so presentation layers can suppress it rather than render a
// failure. Canceling a settled operation is a no-op.
func (op *Operation) Cancel() {
	op.settle(core.Outcome{
		Status: core.StatusCanceled,
		Err:    core.NewError(core.ErrCanceled, "analysis canceled"),
	})
}

func (op *Operation) supersede() {
	op.settle(core.Outcome{
		Status: core.StatusCanceled,
		Err:    core.NewError(core.ErrCanceled, "superseded by a newer analysis"),
	})
}

// Subscribe registers an observer. The event log accumulated so far is
// replayed in order before live delivery begins, so a subscriber attaching
// mid-run misses nothing; on a settled operation the replay is followed
// immediately by the settlement.
func (op *Operation) Subscribe(o Observer) {
	if o == nil {
		return
	}
	op.deliverMu.Lock()
	defer op.deliverMu.Unlock()

	op.mu.Lock()
	backlog := append([]core.ProgressEvent(nil), op.events...)
	outcome := op.outcome
	settled := op.status.Terminal()
	if !settled {
		op.observers = append(op.observers, o)
	}
	op.mu.Unlock()

	for _, ev := range backlog {
		o.OnEvent(ev)
	}
	if settled {
		o.OnSettled(outcome)
	}
}

// settle records the terminal outcome. Exactly the first call wins; it
// aborts the transport, releases waiters and ends the telemetry span. The
// settlement is delivered to observers by the stream goroutine afterwards,
// strictly ordered after every event delivery.
func (op *Operation) settle(outcome core.Outcome) {
	op.mu.Lock()
	if op.status != core.StatusRunning {
		op.mu.Unlock()
		return
	}
	op.status = outcome.Status
	op.outcome = outcome
	progress := op.progress
	op.mu.Unlock()

	op.cancel()
	close(op.done)

	var spanErr error
	if outcome.Status == core.StatusFailed {
		spanErr = outcome.Err
	}
	op.recorder.End(spanErr, string(outcome.Status), progress)
}

func (op *Operation) settleErr(err error) {
	status := core.StatusFailed
	if core.IsCanceled(err) {
		status = core.StatusCanceled
	}
	op.settle(core.Outcome{Status: status, Err: err})
}

func (op *Operation) settleTerminal(ev core.ProgressEvent) {
	switch {
	case ev.Stage == core.StageComplete && len(ev.Data) > 0:
		op.settle(core.Outcome{
			Status: core.StatusSucceeded,
			Report: &core.Report{Raw: ev.Data},
		})
	case ev.Stage == core.StageComplete:
		// The server declared success but broke its own contract; for the
		// caller this is indistinguishable from a cut-off stream.
		op.settleErr(core.NewError(core.ErrStreamTruncated, "analysis completed without a result payload"))
	default:
		msg := ev.Message
		if msg == "" {
			msg = "analysis failed"
		}
		op.settleErr(core.NewError(core.ErrAnalysisFailed, msg))
	}
}

// publish appends the event to the log and delivers it to observers and
// the channel. It reports false once the operation is no longer running,
// which stops the decode loop even when more bytes arrived on the wire.
func (op *Operation) publish(ev core.ProgressEvent) bool {
	op.deliverMu.Lock()
	defer op.deliverMu.Unlock()

	op.mu.Lock()
	if op.status != core.StatusRunning {
		op.mu.Unlock()
		return false
	}
	op.events = append(op.events, ev)
	op.progress = ev.Progress
	op.stage = ev.Stage
	observers := append([]Observer(nil), op.observers...)
	op.mu.Unlock()

	for _, o := range observers {
		o.OnEvent(ev)
	}
	select {
	case op.ch <- ev:
	case <-op.ctx.Done():
	}
	return true
}

// finish delivers the settlement and closes the event channel. It runs on
// the stream goroutine, the only sender, after the last publish.
func (op *Operation) finish() {
	op.deliverMu.Lock()
	defer op.deliverMu.Unlock()

	op.mu.Lock()
	outcome := op.outcome
	observers := op.observers
	op.observers = nil
	op.mu.Unlock()

	for _, o := range observers {
		o.OnSettled(outcome)
	}
	close(op.ch)
}

// run drives the whole exchange: submit, then decode the body until a
// terminal frame, end of stream, or settlement from the outside.
func (op *Operation) run(treq transport.Request) {
	defer op.finish()

	dec := stream.NewDecoder(stream.WithWarnFunc(op.client.warnf))
	published := 0
	defer func() { obs.RecordFrames(published, dec.Skipped()) }()

	resp, err := op.client.transport.Do(op.ctx, treq)
	if err != nil {
		op.settleErr(err)
		return
	}
	defer resp.Body.Close()

	// The read below cannot be interrupted directly; closing the body on
	// cancellation guarantees no further bytes are consumed even when the
	// HTTP client does not honor the request context.
	go func() {
		<-op.ctx.Done()
		resp.Body.Close()
	}()

	buf := make([]byte, 32*1024)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			for _, ev := range dec.Decode(buf[:n]) {
				if !op.publish(ev) {
					return
				}
				published++
				if ev.Terminal() {
					op.settleTerminal(ev)
					return
				}
			}
		}
		if readErr == nil {
			continue
		}
		switch {
		case op.ctx.Err() != nil:
			op.settleErr(core.NewError(core.ErrCanceled, "analysis canceled", core.WithWrapped(readErr)))
		case errors.Is(readErr, io.EOF):
			op.settleErr(core.NewError(core.ErrStreamTruncated, "stream ended without a terminal result"))
		default:
			op.settleErr(core.NewError(core.ErrTransportFailure, "stream read failed", core.WithWrapped(readErr)))
		}
		return
	}
}
