package multiagent

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/saurav-sabu/RepoScribe/internal/domain"
	"github.com/saurav-sabu/RepoScribe/internal/team"
)

type handleFunc func(ctx context.Context, task domain.Task, wctx domain.WorkerContext) (*domain.Response, error)

// fakeWorker records every call and answers through handle, or with
// "<id> output" by default.
type fakeWorker struct {
	spec   domain.WorkerSpec
	handle handleFunc
	seq    *callLog

	mu    sync.Mutex
	tasks []domain.Task
	ctxs  []domain.WorkerContext
}

func (w *fakeWorker) Spec() domain.WorkerSpec { return w.spec }

func (w *fakeWorker) Handle(ctx context.Context, task domain.Task, wctx domain.WorkerContext) (*domain.Response, error) {
	w.mu.Lock()
	w.tasks = append(w.tasks, task)
	w.ctxs = append(w.ctxs, wctx)
	w.mu.Unlock()
	w.seq.add(w.spec.ID)

	if w.handle != nil {
		return w.handle(ctx, task, wctx)
	}
	return &domain.Response{
		WorkerID:             w.spec.ID,
		Content:              w.spec.ID + " output",
		RequiresConfirmation: w.spec.RequiresConfirmation,
	}, nil
}

func (w *fakeWorker) calls() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.tasks)
}

func (w *fakeWorker) lastTask() domain.Task {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.tasks[len(w.tasks)-1]
}

func (w *fakeWorker) lastContext() domain.WorkerContext {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ctxs[len(w.ctxs)-1]
}

// callLog records the order in which workers were invoked.
type callLog struct {
	mu  sync.Mutex
	ids []string
}

func (l *callLog) add(id string) {
	l.mu.Lock()
	l.ids = append(l.ids, id)
	l.mu.Unlock()
}

func (l *callLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.ids...)
}

type fakeTeam struct {
	workers map[string]*fakeWorker
	log     *callLog
}

func (f *fakeTeam) factory(behaviors map[string]handleFunc) WorkerFactory {
	return func(spec domain.WorkerSpec) (domain.Worker, error) {
		w := &fakeWorker{spec: spec, handle: behaviors[spec.ID], seq: f.log}
		f.workers[spec.ID] = w
		return w, nil
	}
}

func (f *fakeTeam) worker(t *testing.T, id string) *fakeWorker {
	t.Helper()
	w, ok := f.workers[id]
	require.True(t, ok, "worker %s not built", id)
	return w
}

// called returns the ids of workers invoked at least once.
func (f *fakeTeam) called() map[string]int {
	out := make(map[string]int)
	for id, w := range f.workers {
		if n := w.calls(); n > 0 {
			out[id] = n
		}
	}
	return out
}

// fakeOrigin reports a fixed origin remote; set swaps it.
type fakeOrigin struct {
	mu  sync.Mutex
	url string
}

func (o *fakeOrigin) Origin(context.Context) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.url == "" {
		return "", fmt.Errorf("no origin remote")
	}
	return o.url, nil
}

func (o *fakeOrigin) set(url string) {
	o.mu.Lock()
	o.url = url
	o.mu.Unlock()
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func defaultDefinition(t *testing.T) *team.Definition {
	t.Helper()
	def, err := team.Default()
	require.NoError(t, err)
	return def
}

func reply(content string) handleFunc {
	return func(context.Context, domain.Task, domain.WorkerContext) (*domain.Response, error) {
		return &domain.Response{Content: content, RequiresConfirmation: true}, nil
	}
}

func failing(err error) handleFunc {
	return func(context.Context, domain.Task, domain.WorkerContext) (*domain.Response, error) {
		return nil, err
	}
}

func oracleDown(id string) error {
	return fmt.Errorf("%w: worker %s: provider error", domain.ErrOracleUnavailable, id)
}

// recordingBus is a synchronous EventBus for assertions.
type recordingBus struct {
	mu     sync.Mutex
	events []domain.Event
}

func (b *recordingBus) Publish(_ context.Context, e domain.Event) {
	b.mu.Lock()
	b.events = append(b.events, e)
	b.mu.Unlock()
}
func (b *recordingBus) Subscribe(domain.EventType, domain.EventHandler) func() { return func() {} }
func (b *recordingBus) SubscribeAll(domain.EventHandler) func()                { return func() {} }
func (b *recordingBus) Close()                                                 {}

func (b *recordingBus) count(typ domain.EventType) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, e := range b.events {
		if e.Type == typ {
			n++
		}
	}
	return n
}

func (b *recordingBus) types() []domain.EventType {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]domain.EventType, 0, len(b.events))
	for _, e := range b.events {
		out = append(out, e.Type)
	}
	return out
}
