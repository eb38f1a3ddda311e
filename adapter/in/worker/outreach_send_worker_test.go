package worker

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"outreach_server/core/domain"
	"outreach_server/core/port/out"
	"outreach_server/core/service/queue"
	"outreach_server/core/service/ratelimit"
	"outreach_server/core/service/warmup"
	"outreach_server/pkg/apperr"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ---- fakes ----

// fakeStore implements out.QueueStore, out.CounterStore and out.MemberStore
// in memory, mirroring the Redis sorted set / counter / set semantics.
type fakeStore struct {
	mu      sync.Mutex
	queues  map[string][]scored
	seqs    map[string]int64
	counts  map[string]int64
	members map[string]map[string]bool
}

type scored struct {
	member string
	score  int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		queues:  make(map[string][]scored),
		seqs:    make(map[string]int64),
		counts:  make(map[string]int64),
		members: make(map[string]map[string]bool),
	}
}

func (f *fakeStore) Add(_ context.Context, key, member string, score int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queues[key] = append(f.queues[key], scored{member, score})
	sort.SliceStable(f.queues[key], func(i, j int) bool {
		return f.queues[key][i].score < f.queues[key][j].score
	})
	for i, s := range f.queues[key] {
		if s.member == member {
			return int64(i), nil
		}
	}
	return 0, nil
}

func (f *fakeStore) PopMin(_ context.Context, key string, count int) ([]out.ScoredItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	q := f.queues[key]
	if count > len(q) {
		count = len(q)
	}
	items := make([]out.ScoredItem, 0, count)
	for _, s := range q[:count] {
		items = append(items, out.ScoredItem{Member: s.member, Score: s.score})
	}
	f.queues[key] = q[count:]
	return items, nil
}

func (f *fakeStore) Card(_ context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.queues[key])), nil
}

func (f *fakeStore) NextSeq(_ context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seqs[key]++
	return f.seqs[key], nil
}

func (f *fakeStore) Incr(_ context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[key]++
	return f.counts[key], nil
}

func (f *fakeStore) Get(_ context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[key], nil
}

func (f *fakeStore) Expire(_ context.Context, _ string, _ time.Duration) error { return nil }

func (f *fakeStore) AddMember(_ context.Context, set, member string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.members[set] == nil {
		f.members[set] = make(map[string]bool)
	}
	f.members[set][member] = true
	return nil
}

func (f *fakeStore) Members(_ context.Context, set string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var list []string
	for m := range f.members[set] {
		list = append(list, m)
	}
	return list, nil
}

func (f *fakeStore) RemoveMember(_ context.Context, set, member string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.members[set], member)
	return nil
}

func (f *fakeStore) setCount(key string, n int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[key] = n
}

func (f *fakeStore) queueLen(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queues[key])
}

type fakeWarmupRepo struct {
	startedAt *time.Time
}

func (f *fakeWarmupRepo) GetStartedAt(_ context.Context, _ uuid.UUID) (*time.Time, error) {
	return f.startedAt, nil
}

func (f *fakeWarmupRepo) StartWarmup(_ context.Context, _ uuid.UUID, startedAt time.Time) error {
	if f.startedAt == nil {
		f.startedAt = &startedAt
	}
	return nil
}

type fakeProspects struct {
	byID map[int64]*domain.Prospect
}

func (f *fakeProspects) GetByID(_ context.Context, id int64) (*domain.Prospect, error) {
	if p, ok := f.byID[id]; ok {
		return p, nil
	}
	return nil, apperr.NotFound("prospect")
}

func (f *fakeProspects) GetByEmail(_ context.Context, _ uuid.UUID, _ string) (*domain.Prospect, error) {
	return nil, apperr.NotFound("prospect")
}

func (f *fakeProspects) GetByLinkedInURL(_ context.Context, _ uuid.UUID, _ string) (*domain.Prospect, error) {
	return nil, apperr.NotFound("prospect")
}

func (f *fakeProspects) GetEnrichment(_ context.Context, _ int64) (*domain.Enrichment, error) {
	return nil, apperr.NotFound("enrichment")
}

func (f *fakeProspects) UpdateStage(_ context.Context, _ int64, _ domain.LifecycleStage) error {
	return nil
}

func (f *fakeProspects) SetVIP(_ context.Context, _ int64, _ string) error { return nil }
func (f *fakeProspects) MarkBounced(_ context.Context, _ string) error     { return nil }
func (f *fakeProspects) MarkComplained(_ context.Context, _ string) error  { return nil }

type fakeConvo struct {
	mu       sync.Mutex
	appended []*domain.ThreadMessage
}

func (f *fakeConvo) Append(_ context.Context, _ uuid.UUID, msg *domain.ThreadMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appended = append(f.appended, msg)
	return nil
}

func (f *fakeConvo) GetThread(_ context.Context, _ uuid.UUID, _ string) ([]domain.ThreadMessage, error) {
	return nil, nil
}

type fakeSender struct {
	mu   sync.Mutex
	sent []*out.OutboundEmail
	err  error
}

func (f *fakeSender) SendEmail(_ context.Context, msg *out.OutboundEmail, _ *out.EmailCredentials) (*out.SendReceipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, msg)
	return &out.SendReceipt{MessageID: "mg-msg-1", Status: "queued"}, nil
}

func (f *fakeSender) ParseWebhookPayload(_ []byte) (*out.EmailEvent, error) {
	return nil, apperr.ValidationFailed("not implemented")
}

func (f *fakeSender) VerifyCredentials(_ context.Context, _ *out.EmailCredentials) (bool, error) {
	return true, nil
}

func (f *fakeSender) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

// ---- harness ----

type workerHarness struct {
	worker    *SendWorker
	store     *fakeStore
	sender    *fakeSender
	convo     *fakeConvo
	prospects *fakeProspects
	userID    uuid.UUID
}

func newWorkerHarness(t *testing.T, warmedUp bool) *workerHarness {
	t.Helper()

	store := newFakeStore()
	sender := &fakeSender{}
	convo := &fakeConvo{}
	warmupRepo := &fakeWarmupRepo{}
	if warmedUp {
		started := time.Now().AddDate(0, 0, -30)
		warmupRepo.startedAt = &started
	}
	userID := uuid.New()
	prospects := &fakeProspects{byID: map[int64]*domain.Prospect{
		7: {ID: 7, UserID: userID, Email: "dana@acme.example.com", Stage: domain.StageQualified},
	}}

	cfg := DefaultSendWorkerConfig()
	cfg.PollInterval = time.Hour // tests drive drains explicitly
	cfg.DefaultFrom = "sdr@outbound.example.com"
	cfg.Credentials = out.EmailCredentials{Domain: "outbound.example.com", APIKey: "key-test"}

	w := NewSendWorker(
		queue.NewEmailQueueWithRegistry(store, store),
		warmup.NewService(warmupRepo),
		ratelimit.NewDailyLimiter(store, 20),
		prospects,
		convo,
		sender,
		cfg,
		zerolog.Nop(),
	)

	return &workerHarness{
		worker:    w,
		store:     store,
		sender:    sender,
		convo:     convo,
		prospects: prospects,
		userID:    userID,
	}
}

func (h *workerHarness) item() *domain.EmailQueueItem {
	return &domain.EmailQueueItem{
		UserID:              h.userID,
		CampaignID:          3,
		ProspectID:          7,
		SendingEmail:        "sdr@outbound.example.com",
		PersonalizedSubject: "Re: cutting onboarding time",
		PersonalizedBody:    "Happy to walk through it Thursday.",
		ThreadID:            "thread-42",
		EnqueuedAt:          time.Now(),
	}
}

func (h *workerHarness) emailCounterKey() string {
	return "ratelimit:daily:" + h.userID.String() + ":email"
}

func (h *workerHarness) userQueueKey() string {
	return "emailqueue:" + h.userID.String()
}

// ---- tests ----

func TestProcessSendDeliversEmail(t *testing.T) {
	h := newWorkerHarness(t, true)

	if err := h.worker.processSend(context.Background(), &sendTask{item: *h.item()}); err != nil {
		t.Fatalf("processSend: %v", err)
	}

	if got := h.sender.sentCount(); got != 1 {
		t.Fatalf("sent %d emails, want 1", got)
	}
	msg := h.sender.sent[0]
	if msg.From != "sdr@outbound.example.com" {
		t.Errorf("From = %q", msg.From)
	}
	if msg.To != "dana@acme.example.com" {
		t.Errorf("To = %q", msg.To)
	}
	if msg.Subject != "Re: cutting onboarding time" {
		t.Errorf("Subject = %q", msg.Subject)
	}

	if m := h.worker.GetMetrics(); m.Sent != 1 {
		t.Errorf("metrics.Sent = %d, want 1", m.Sent)
	}
	if len(h.convo.appended) != 1 || h.convo.appended[0].Direction != domain.DirectionOutbound {
		t.Errorf("expected one outbound thread message, got %v", h.convo.appended)
	}
	if count, _ := h.store.Get(context.Background(), h.emailCounterKey()); count != 1 {
		t.Errorf("quota counter = %d, want 1", count)
	}
}

func TestProcessSendDefersWhenWarmupBudgetSpent(t *testing.T) {
	h := newWorkerHarness(t, false) // warm-up phase, limit 5
	h.store.setCount(h.emailCounterKey(), 5)

	if err := h.worker.processSend(context.Background(), &sendTask{item: *h.item()}); err != nil {
		t.Fatalf("processSend: %v", err)
	}

	if got := h.sender.sentCount(); got != 0 {
		t.Fatalf("sent %d emails during exhausted warm-up budget, want 0", got)
	}
	if got := h.store.queueLen(h.userQueueKey()); got != 1 {
		t.Errorf("queue length = %d, want 1 (item requeued)", got)
	}
	if m := h.worker.GetMetrics(); m.Deferred != 1 {
		t.Errorf("metrics.Deferred = %d, want 1", m.Deferred)
	}
}

func TestProcessSendRequeuesOnTransientFailure(t *testing.T) {
	h := newWorkerHarness(t, true)
	h.sender.err = apperr.ServiceUnavailable("mailgun", nil)

	err := h.worker.processSend(context.Background(), &sendTask{item: *h.item()})
	if err == nil {
		t.Fatal("expected error from transient send failure")
	}

	if got := h.store.queueLen(h.userQueueKey()); got != 1 {
		t.Errorf("queue length = %d, want 1 (item requeued)", got)
	}
	if m := h.worker.GetMetrics(); m.Requeued != 1 {
		t.Errorf("metrics.Requeued = %d, want 1", m.Requeued)
	}
}

func TestProcessSendDropsSuppressedProspect(t *testing.T) {
	h := newWorkerHarness(t, true)
	h.prospects.byID[7].Bounced = true

	if err := h.worker.processSend(context.Background(), &sendTask{item: *h.item()}); err != nil {
		t.Fatalf("processSend: %v", err)
	}

	if got := h.sender.sentCount(); got != 0 {
		t.Fatalf("sent %d emails to bounced address, want 0", got)
	}
	if got := h.store.queueLen(h.userQueueKey()); got != 0 {
		t.Errorf("queue length = %d, want 0 (suppressed item dropped)", got)
	}
}

func TestSendBudgetTracksWarmupPhase(t *testing.T) {
	ctx := context.Background()

	h := newWorkerHarness(t, false)
	h.store.setCount(h.emailCounterKey(), 3)
	if got := h.worker.sendBudget(ctx, h.userID); got != 2 {
		t.Errorf("warm-up budget = %d, want 2 (5 - 3 used)", got)
	}

	h = newWorkerHarness(t, true)
	h.store.setCount(h.emailCounterKey(), 3)
	if got := h.worker.sendBudget(ctx, h.userID); got != 17 {
		t.Errorf("warmed-up budget = %d, want 17 (20 - 3 used)", got)
	}
}

func TestDrainUserDeregistersEmptyQueue(t *testing.T) {
	ctx := context.Background()
	h := newWorkerHarness(t, true)

	if err := h.store.AddMember(ctx, "emailqueue:users", h.userID.String()); err != nil {
		t.Fatal(err)
	}

	h.worker.drainUser(ctx, h.userID)

	members, _ := h.store.Members(ctx, "emailqueue:users")
	if len(members) != 0 {
		t.Errorf("active user set = %v, want empty after drain of empty queue", members)
	}
}

func TestStartDrainStopDeliversQueuedItems(t *testing.T) {
	ctx := context.Background()
	h := newWorkerHarness(t, true)

	h.worker.Start()
	defer h.worker.Stop()

	q := queue.NewEmailQueueWithRegistry(h.store, h.store)
	for i := 0; i < 3; i++ {
		if _, err := q.Enqueue(ctx, h.item()); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}

	h.worker.drainOnce(ctx)
	h.worker.Stop() // close flushes the batch and waits for completion

	if got := h.sender.sentCount(); got != 3 {
		t.Fatalf("sent %d emails, want 3", got)
	}
}
