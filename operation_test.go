package ruleforge

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ruleforge/ruleforge-go/core"
	"github.com/ruleforge/ruleforge-go/internal/testutil"
)

// waitCtx bounds blocking waits so a settlement bug fails the test instead
// of hanging it.
func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func recvEvent(t *testing.T, op *Operation) core.ProgressEvent {
	t.Helper()
	select {
	case ev, ok := <-op.Events():
		if !ok {
			t.Fatal("event channel closed early")
		}
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for an event")
	}
	return core.ProgressEvent{}
}

// drainEvents consumes the channel until it closes. Because the channel is
// closed only after observers received their settlement, returning from
// here means delivery is fully done.
func drainEvents(t *testing.T, op *Operation) []core.ProgressEvent {
	t.Helper()
	deadline := time.After(5 * time.Second)
	var events []core.ProgressEvent
	for {
		select {
		case ev, ok := <-op.Events():
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-deadline:
			t.Fatal("timed out draining events")
		}
	}
}

type recordingObserver struct {
	mu      sync.Mutex
	events  []core.ProgressEvent
	settled []core.Outcome
}

func (r *recordingObserver) OnEvent(ev core.ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingObserver) OnSettled(out core.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settled = append(r.settled, out)
}

func (r *recordingObserver) snapshot() ([]core.ProgressEvent, []core.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]core.ProgressEvent(nil), r.events...), append([]core.Outcome(nil), r.settled...)
}

func TestOperationSuccessStream(t *testing.T) {
	mock := &testutil.MockService{Steps: []testutil.Step{
		testutil.OKStream(
			testutil.Frame("queued", 0, "queued"),
			testutil.Frame("fetching", 20, "fetching page"),
			testutil.Frame("analyzing", 80, "scanning"),
			testutil.CompleteFrame(100, "done", `{"rules":[{"id":"r1"}]}`),
		),
	}}
	client := newTestClient(mock)

	op, err := client.Start(context.Background(), URLInput("https://example.com"))
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if op.ID() == "" {
		t.Error("operation should have an ID")
	}
	if op.StartedAt().IsZero() {
		t.Error("operation should record its start time")
	}

	events := drainEvents(t, op)
	if len(events) != 4 {
		t.Fatalf("expected 4 events, got %d", len(events))
	}
	wantStages := []Stage{StageQueued, StageFetching, StageAnalyzing, StageComplete}
	for i, want := range wantStages {
		if events[i].Stage != want {
			t.Errorf("event %d: expected stage %s, got %s", i, want, events[i].Stage)
		}
	}

	out, settled := op.Outcome()
	if !settled {
		t.Fatal("operation should be settled after the channel closes")
	}
	if out.Status != StatusSucceeded {
		t.Errorf("expected StatusSucceeded, got %s", out.Status)
	}
	if out.Err != nil {
		t.Errorf("successful operation must carry no error, got %v", out.Err)
	}
	if out.Report == nil || string(out.Report.Raw) != `{"rules":[{"id":"r1"}]}` {
		t.Errorf("unexpected report: %s", out.Report)
	}
	if op.Progress() != 100 {
		t.Errorf("expected progress 100, got %d", op.Progress())
	}
	if op.Stage() != StageComplete {
		t.Errorf("expected StageComplete, got %s", op.Stage())
	}
	if got := op.EventLog(); len(got) != 4 {
		t.Errorf("expected 4 logged events, got %d", len(got))
	}
	select {
	case <-op.Done():
	default:
		t.Error("Done should be closed after settlement")
	}
}

func TestOperationErrorFrame(t *testing.T) {
	mock := &testutil.MockService{Steps: []testutil.Step{
		testutil.OKStream(
			testutil.Frame("analyzing", 50, "working"),
			testutil.ErrorFrame("model refused the document"),
		),
	}}
	client := newTestClient(mock)

	op, err := client.Start(context.Background(), URLInput("https://example.com"))
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	out, err := op.Wait(waitCtx(t))
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if out.Status != StatusFailed {
		t.Errorf("expected StatusFailed, got %s", out.Status)
	}
	if !IsAnalysisFailed(out.Err) {
		t.Fatalf("expected analysis_failed, got %v", out.Err)
	}
	if !strings.Contains(out.Err.Error(), "model refused the document") {
		t.Errorf("server message lost: %v", out.Err)
	}
	if out.Report != nil {
		t.Error("failed operation must not carry a report")
	}
	if got := op.EventLog(); len(got) != 2 {
		t.Errorf("expected the error frame in the log, got %d events", len(got))
	}
}

func TestOperationCompleteWithoutPayload(t *testing.T) {
	mock := &testutil.MockService{Steps: []testutil.Step{
		testutil.OKStream(
			testutil.Frame("analyzing", 50, "working"),
			testutil.Frame("complete", 100, "done"),
		),
	}}
	client := newTestClient(mock)

	op, err := client.Start(context.Background(), URLInput("https://example.com"))
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	out, err := op.Wait(waitCtx(t))
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if out.Status != StatusFailed {
		t.Errorf("expected StatusFailed, got %s", out.Status)
	}
	if !IsStreamTruncated(out.Err) {
		t.Errorf("a complete frame without payload should read as truncation, got %v", out.Err)
	}
	if out.Report != nil {
		t.Error("no payload means no report")
	}
}

func TestOperationTruncatedStream(t *testing.T) {
	mock := &testutil.MockService{Steps: []testutil.Step{
		testutil.OKStream(
			testutil.Frame("queued", 0, "queued"),
			testutil.Frame("analyzing", 40, "working"),
		),
	}}
	client := newTestClient(mock)

	op, err := client.Start(context.Background(), URLInput("https://example.com"))
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	out, err := op.Wait(waitCtx(t))
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if !IsStreamTruncated(out.Err) {
		t.Fatalf("expected stream_truncated at EOF without a terminal frame, got %v", out.Err)
	}
	// Events before the cut still reached the consumer.
	if got := op.EventLog(); len(got) != 2 {
		t.Errorf("expected 2 logged events, got %d", len(got))
	}
}

func TestOperationSkipsMalformedFrames(t *testing.T) {
	mock := &testutil.MockService{Steps: []testutil.Step{
		testutil.OKStream(
			testutil.Frame("analyzing", 30, "working"),
			"data: {not json}\n",
			": keepalive\n",
			"event: progress\n",
			testutil.CompleteFrame(100, "done", `{"rules":[]}`),
		),
	}}
	client := newTestClient(mock)

	op, err := client.Start(context.Background(), URLInput("https://example.com"))
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	out, err := op.Wait(waitCtx(t))
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if out.Status != StatusSucceeded {
		t.Fatalf("garbage lines must not abort the stream: %v", out.Err)
	}
	if got := op.EventLog(); len(got) != 2 {
		t.Errorf("expected only the 2 well-formed events, got %d", len(got))
	}
}

func TestOperationProgressPassthrough(t *testing.T) {
	step, feed := testutil.HeldStream()
	mock := &testutil.MockService{Steps: []testutil.Step{step}}
	client := newTestClient(mock)

	op, err := client.Start(context.Background(), URLInput("https://example.com"))
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer feed.Close()
	defer op.Cancel()

	go feed.Write([]byte(testutil.Frame("analyzing", 250, "overshoot")))
	ev := recvEvent(t, op)
	if ev.Progress != 250 {
		t.Errorf("expected raw progress value, got %d", ev.Progress)
	}
	// Out-of-range values pass through untouched; clamping is a display
	// concern.
	if op.Progress() != 250 {
		t.Errorf("expected Progress() 250, got %d", op.Progress())
	}
}

func TestOperationCancelMidStream(t *testing.T) {
	step, feed := testutil.HeldStream()
	mock := &testutil.MockService{Steps: []testutil.Step{step}}
	client := newTestClient(mock)

	op, err := client.Start(context.Background(), URLInput("https://example.com"))
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	go feed.Write([]byte(testutil.Frame("fetching", 10, "fetching") + testutil.Frame("analyzing", 30, "working")))
	recvEvent(t, op)
	recvEvent(t, op)

	op.Cancel()
	// Cancel is synchronous: the status is terminal before it returns.
	if got := op.Status(); got != StatusCanceled {
		t.Fatalf("expected StatusCanceled immediately, got %s", got)
	}
	if !IsCanceled(op.Err()) {
		t.Errorf("expected canceled outcome, got %v", op.Err())
	}
	op.Cancel() // second cancel is a no-op

	// Frames arriving after cancellation go nowhere.
	_, _ = feed.Write([]byte(testutil.Frame("analyzing", 90, "late")))
	feed.Close()
	if extra := drainEvents(t, op); len(extra) != 0 {
		t.Errorf("expected no events after cancel, got %d", len(extra))
	}
	if got := op.EventLog(); len(got) != 2 {
		t.Errorf("expected the log frozen at 2 events, got %d", len(got))
	}
	out, _ := op.Outcome()
	if out.Report != nil {
		t.Error("canceled operation must not carry a report")
	}
}

func TestObserverSeesEventsThenSettlement(t *testing.T) {
	mock := &testutil.MockService{Steps: []testutil.Step{
		testutil.OKStream(
			testutil.Frame("queued", 0, "queued"),
			testutil.Frame("analyzing", 70, "scanning"),
			testutil.CompleteFrame(100, "done", `{"rules":[]}`),
		),
	}}
	client := newTestClient(mock)

	op, err := client.Start(context.Background(), URLInput("https://example.com"))
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	rec := &recordingObserver{}
	op.Subscribe(rec)

	drainEvents(t, op)
	events, settled := rec.snapshot()
	if len(events) != 3 {
		t.Fatalf("expected 3 observed events, got %d", len(events))
	}
	if len(settled) != 1 {
		t.Fatalf("expected exactly one settlement, got %d", len(settled))
	}
	if settled[0].Status != StatusSucceeded {
		t.Errorf("expected succeeded settlement, got %s", settled[0].Status)
	}
	if events[len(events)-1].Stage != StageComplete {
		t.Errorf("settlement must follow the last event, last stage was %s", events[len(events)-1].Stage)
	}
}

func TestSubscribeReplaysBacklog(t *testing.T) {
	step, feed := testutil.HeldStream()
	mock := &testutil.MockService{Steps: []testutil.Step{step}}
	client := newTestClient(mock)

	op, err := client.Start(context.Background(), URLInput("https://example.com"))
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	go feed.Write([]byte(testutil.Frame("fetching", 15, "fetching")))
	recvEvent(t, op)

	// Subscribing mid-run replays what was missed before live delivery.
	rec := &recordingObserver{}
	op.Subscribe(rec)

	go func() {
		feed.Write([]byte(testutil.CompleteFrame(100, "done", `{"rules":[]}`)))
		feed.Close()
	}()
	drainEvents(t, op)

	events, settled := rec.snapshot()
	if len(events) != 2 {
		t.Fatalf("expected replayed + live events, got %d", len(events))
	}
	if events[0].Stage != StageFetching || events[1].Stage != StageComplete {
		t.Errorf("events out of order: %s, %s", events[0].Stage, events[1].Stage)
	}
	if len(settled) != 1 || settled[0].Status != StatusSucceeded {
		t.Errorf("expected one succeeded settlement, got %+v", settled)
	}
}

func TestSubscribeAfterSettled(t *testing.T) {
	mock := &testutil.MockService{Steps: []testutil.Step{
		testutil.OKStream(
			testutil.Frame("analyzing", 60, "scanning"),
			testutil.CompleteFrame(100, "done", `{"rules":[]}`),
		),
	}}
	client := newTestClient(mock)

	op, err := client.Start(context.Background(), URLInput("https://example.com"))
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	drainEvents(t, op)

	// A late subscriber gets the full history and the settlement inline.
	rec := &recordingObserver{}
	op.Subscribe(rec)
	events, settled := rec.snapshot()
	if len(events) != 2 {
		t.Fatalf("expected full replay, got %d events", len(events))
	}
	if len(settled) != 1 || settled[0].Status != StatusSucceeded {
		t.Errorf("expected the settlement delivered inline, got %+v", settled)
	}
}

func TestCancelAfterSettleIsNoOp(t *testing.T) {
	mock := &testutil.MockService{Steps: []testutil.Step{
		testutil.OKStream(testutil.CompleteFrame(100, "done", `{"rules":[]}`)),
	}}
	client := newTestClient(mock)

	op, err := client.Start(context.Background(), URLInput("https://example.com"))
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, err := op.Wait(waitCtx(t)); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}

	op.Cancel()
	if got := op.Status(); got != StatusSucceeded {
		t.Errorf("cancel after settlement must not change the outcome, got %s", got)
	}
	if op.Err() != nil {
		t.Errorf("expected no error, got %v", op.Err())
	}
}

func TestWaitContextExpiry(t *testing.T) {
	step, feed := testutil.HeldStream()
	mock := &testutil.MockService{Steps: []testutil.Step{step}}
	client := newTestClient(mock)

	op, err := client.Start(context.Background(), URLInput("https://example.com"))
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer feed.Close()
	defer op.Cancel()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := op.Wait(ctx); err != context.DeadlineExceeded {
		t.Fatalf("expected deadline error, got %v", err)
	}
	// The operation itself keeps running; only the wait gave up.
	if got := op.Status(); got != StatusRunning {
		t.Errorf("expected StatusRunning, got %s", got)
	}
}
