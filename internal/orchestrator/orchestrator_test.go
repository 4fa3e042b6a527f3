package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"thumbnailer/internal/domain"
	"thumbnailer/internal/provider"
)

// fakeRepo records lifecycle transitions for assertions. With honorCtx set
// it refuses writes on a dead context the way a real database driver would.
type fakeRepo struct {
	mu     sync.Mutex
	events []string
	jobs   map[string]*domain.Thumbnail

	failMarkGenerating bool
	honorCtx           bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{jobs: map[string]*domain.Thumbnail{}}
}

func (r *fakeRepo) record(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *fakeRepo) Create(_ context.Context, t *domain.Thumbnail) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *t
	r.jobs[t.ID] = &cp
	r.events = append(r.events, "create")
	return nil
}

func (r *fakeRepo) MarkGenerating(_ context.Context, id, composedPrompt string) error {
	if r.failMarkGenerating {
		return errors.New("db down")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if j, ok := r.jobs[id]; ok {
		j.Status = domain.StatusGenerating
		j.ComposedPrompt = composedPrompt
	}
	r.events = append(r.events, "mark_generating")
	return nil
}

func (r *fakeRepo) Complete(ctx context.Context, id, imageURL, providerID string) error {
	if r.honorCtx {
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if j, ok := r.jobs[id]; ok {
		j.Status = domain.StatusCompleted
		j.ImageURL = imageURL
		j.Provider = providerID
	}
	r.events = append(r.events, "complete")
	return nil
}

func (r *fakeRepo) Fail(ctx context.Context, id, reason string) error {
	if r.honorCtx {
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if j, ok := r.jobs[id]; ok {
		j.Status = domain.StatusFailed
		j.ErrorMessage = reason
	}
	r.events = append(r.events, "fail")
	return nil
}

func (r *fakeRepo) GetByID(_ context.Context, id, ownerID string) (*domain.Thumbnail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok || j.OwnerID != ownerID {
		return nil, domain.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (r *fakeRepo) Requeue(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if j, ok := r.jobs[id]; ok {
		j.Status = domain.StatusPending
	}
	r.events = append(r.events, "requeue")
	return nil
}

func (r *fakeRepo) ListByOwner(context.Context, string) ([]domain.Thumbnail, error) { return nil, nil }
func (r *fakeRepo) Delete(context.Context, string, string) error                   { return nil }
func (r *fakeRepo) ClaimPending(context.Context, time.Duration) (*domain.Thumbnail, error) {
	return nil, domain.ErrNoJobPending
}

func (r *fakeRepo) job(t *testing.T, id string) domain.Thumbnail {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		t.Fatalf("job %s not stored", id)
	}
	return *j
}

// stubAdapter is a scripted provider adapter.
type stubAdapter struct {
	id       string
	result   *provider.Result
	fail     *provider.Failure
	panicMsg string
	onCall   func()
}

func (s *stubAdapter) ID() string { return s.id }

func (s *stubAdapter) Generate(ctx context.Context, req provider.Request) (*provider.Result, error) {
	if s.onCall != nil {
		s.onCall()
	}
	if s.panicMsg != "" {
		panic(s.panicMsg)
	}
	if s.fail != nil {
		f := *s.fail
		f.ProviderID = s.id
		return nil, &f
	}
	res := *s.result
	res.ProviderID = s.id
	return &res, nil
}

// stubPublisher records publishes and can be scripted to fail, either
// immediately or only once the job context has expired.
type stubPublisher struct {
	err         error
	waitCtxDone bool
	urls        map[string]string
}

func (p *stubPublisher) Publish(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if p.waitCtxDone {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if p.err != nil {
		return "", p.err
	}
	url := "https://cdn.test/" + key
	if p.urls == nil {
		p.urls = map[string]string{}
	}
	p.urls[key] = url
	return url, nil
}

func testJob() *domain.Thumbnail {
	return &domain.Thumbnail{
		ID:          "job-1",
		OwnerID:     "owner-1",
		Title:       "Test",
		Style:       domain.StyleMinimalist,
		AspectRatio: domain.AspectSquare,
		Status:      domain.StatusPending,
	}
}

func newTestOrchestrator(repo domain.ThumbnailRepository, pub *stubPublisher, adapters ...provider.Adapter) *Orchestrator {
	return New(repo, pub, adapters, time.Second, zerolog.Nop())
}

func TestPrepareMarksGeneratingBeforeProviderCalls(t *testing.T) {
	repo := newFakeRepo()
	called := false
	adapter := &stubAdapter{
		id:     "a1",
		result: &provider.Result{Data: []byte("png"), ContentType: "image/png"},
		onCall: func() {
			called = true
			repo.record("provider_call")
		},
	}
	o := newTestOrchestrator(repo, &stubPublisher{}, adapter)

	job := testJob()
	if err := repo.Create(context.Background(), job); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := o.Prepare(context.Background(), job); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if job.Status != domain.StatusGenerating {
		t.Fatalf("status after Prepare = %s, want generating", job.Status)
	}
	if job.ComposedPrompt == "" {
		t.Fatalf("composed prompt should be set")
	}
	if called {
		t.Fatalf("no provider may be called during Prepare")
	}
	if err := o.Process(context.Background(), job); err != nil {
		t.Fatalf("Process: %v", err)
	}
	want := []string{"create", "mark_generating", "provider_call", "complete"}
	if strings.Join(repo.events, ",") != strings.Join(want, ",") {
		t.Fatalf("event order = %v, want %v", repo.events, want)
	}
}

func TestFallbackUsesSecondAdapterAfterTimeout(t *testing.T) {
	png := make([]byte, 512)
	repo := newFakeRepo()
	a1 := &stubAdapter{id: "a1", fail: &provider.Failure{Reason: provider.ReasonTimeout}}
	a2 := &stubAdapter{id: "a2", result: &provider.Result{Data: png, ContentType: "image/png"}}
	o := newTestOrchestrator(repo, &stubPublisher{}, a1, a2)

	job := testJob()
	repo.Create(context.Background(), job)
	if err := o.Run(context.Background(), job); err != nil {
		t.Fatalf("Run: %v", err)
	}

	stored := repo.job(t, job.ID)
	if stored.Status != domain.StatusCompleted {
		t.Fatalf("status = %s, want completed", stored.Status)
	}
	if stored.ImageURL == "" {
		t.Fatalf("image url should be set on completion")
	}
	if stored.Provider != "a2" {
		t.Fatalf("provider = %q, want a2 (the adapter that actually produced the asset)", stored.Provider)
	}
}

func TestAllAdaptersFailAggregatesReasons(t *testing.T) {
	repo := newFakeRepo()
	a1 := &stubAdapter{id: "alpha", fail: &provider.Failure{Reason: provider.ReasonBadStatus, HTTPStatus: 500}}
	a2 := &stubAdapter{id: "beta", fail: &provider.Failure{Reason: provider.ReasonBadStatus, HTTPStatus: 500}}
	o := newTestOrchestrator(repo, &stubPublisher{}, a1, a2)

	job := testJob()
	repo.Create(context.Background(), job)
	err := o.Run(context.Background(), job)

	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("error type = %T, want *ExhaustedError", err)
	}
	if len(exhausted.Failures) != 2 {
		t.Fatalf("failures = %d, want one entry per adapter", len(exhausted.Failures))
	}

	stored := repo.job(t, job.ID)
	if stored.Status != domain.StatusFailed {
		t.Fatalf("status = %s, want failed", stored.Status)
	}
	for _, id := range []string{"alpha", "beta"} {
		if !strings.Contains(stored.ErrorMessage, id) {
			t.Fatalf("error message %q should mention adapter %s", stored.ErrorMessage, id)
		}
	}
	if stored.ImageURL != "" {
		t.Fatalf("failed job must not carry an image url")
	}
}

func TestPublishFailureIsDistinctFromExhaustion(t *testing.T) {
	repo := newFakeRepo()
	a1 := &stubAdapter{id: "a1", result: &provider.Result{Data: []byte("png"), ContentType: "image/png"}}
	o := newTestOrchestrator(repo, &stubPublisher{err: errors.New("bucket gone")}, a1)

	job := testJob()
	repo.Create(context.Background(), job)
	err := o.Run(context.Background(), job)

	var perr *PublishError
	if !errors.As(err, &perr) {
		t.Fatalf("error type = %T, want *PublishError", err)
	}
	var exhausted *ExhaustedError
	if errors.As(err, &exhausted) {
		t.Fatalf("publish failure must not read as provider exhaustion")
	}

	stored := repo.job(t, job.ID)
	if stored.Status != domain.StatusFailed {
		t.Fatalf("status = %s, want failed", stored.Status)
	}
	if !strings.Contains(stored.ErrorMessage, "publish failed") {
		t.Fatalf("error message %q should name the publish step", stored.ErrorMessage)
	}
}

func TestPublishDeadlineStillFinalizesJob(t *testing.T) {
	repo := newFakeRepo()
	repo.honorCtx = true
	a1 := &stubAdapter{id: "a1", result: &provider.Result{Data: []byte("png"), ContentType: "image/png"}}
	o := newTestOrchestrator(repo, &stubPublisher{waitCtxDone: true}, a1)

	job := testJob()
	repo.Create(context.Background(), job)
	if err := o.Prepare(context.Background(), job); err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := o.Process(ctx, job)

	var perr *PublishError
	if !errors.As(err, &perr) {
		t.Fatalf("error type = %T, want *PublishError", err)
	}

	stored := repo.job(t, job.ID)
	if stored.Status != domain.StatusFailed {
		t.Fatalf("status after publish deadline = %s, want failed (never stranded in generating)", stored.Status)
	}
	if !strings.Contains(stored.ErrorMessage, "publish failed") {
		t.Fatalf("error message %q should name the publish step", stored.ErrorMessage)
	}
}

func TestPanickingAdapterStillFinalizesJob(t *testing.T) {
	repo := newFakeRepo()
	a1 := &stubAdapter{id: "a1", panicMsg: "boom"}
	o := newTestOrchestrator(repo, &stubPublisher{}, a1)

	job := testJob()
	repo.Create(context.Background(), job)
	if err := o.Prepare(context.Background(), job); err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	func() {
		defer func() {
			if recover() == nil {
				t.Errorf("expected panic to propagate")
			}
		}()
		o.Process(context.Background(), job)
	}()

	stored := repo.job(t, job.ID)
	if stored.Status != domain.StatusFailed {
		t.Fatalf("status after panic = %s, want failed (never stranded in generating)", stored.Status)
	}
}

func TestEmptyChainFails(t *testing.T) {
	repo := newFakeRepo()
	o := newTestOrchestrator(repo, &stubPublisher{})

	job := testJob()
	repo.Create(context.Background(), job)
	err := o.Run(context.Background(), job)

	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("error type = %T, want *ExhaustedError", err)
	}
	if repo.job(t, job.ID).Status != domain.StatusFailed {
		t.Fatalf("job should be failed when no adapters are configured")
	}
}

func TestDispatcherProcessesEnqueuedJob(t *testing.T) {
	repo := newFakeRepo()
	a1 := &stubAdapter{id: "a1", result: &provider.Result{Data: []byte("png"), ContentType: "image/png"}}
	o := newTestOrchestrator(repo, &stubPublisher{}, a1)
	d := NewDispatcher(o, 2, 4, zerolog.Nop())

	job := testJob()
	repo.Create(context.Background(), job)
	if err := o.Prepare(context.Background(), job); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := d.Enqueue(job); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	d.Close()

	if got := repo.job(t, job.ID).Status; got != domain.StatusCompleted {
		t.Fatalf("status = %s, want completed", got)
	}
}

func TestDispatcherQueueFull(t *testing.T) {
	repo := newFakeRepo()
	block := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once
	slow := &stubAdapter{
		id:     "slow",
		result: &provider.Result{Data: []byte("png"), ContentType: "image/png"},
		onCall: func() {
			once.Do(func() { close(started) })
			<-block
		},
	}
	o := newTestOrchestrator(repo, &stubPublisher{}, slow)
	d := NewDispatcher(o, 1, 1, zerolog.Nop())

	first := testJob()
	repo.Create(context.Background(), first)
	if err := d.Enqueue(first); err != nil {
		t.Fatalf("enqueue first: %v", err)
	}
	<-started

	// Busy worker plus a full queue: the next enqueue must not block.
	queued := &domain.Thumbnail{ID: "job-2", OwnerID: "owner-1", Status: domain.StatusGenerating}
	repo.Create(context.Background(), queued)
	if err := d.Enqueue(queued); err != nil {
		t.Fatalf("enqueue queued: %v", err)
	}

	overflow := &domain.Thumbnail{ID: "job-3", OwnerID: "owner-1", Status: domain.StatusGenerating}
	err := d.Enqueue(overflow)
	close(block)
	d.Close()

	if !errors.Is(err, ErrQueueFull) {
		t.Fatalf("error = %v, want ErrQueueFull", err)
	}
}
