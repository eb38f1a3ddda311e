package outreach

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"outreach_server/core/domain"
	"outreach_server/core/port/out"
	"outreach_server/core/service/qualification"
	"outreach_server/core/service/queue"
	"outreach_server/core/service/ratelimit"
	"outreach_server/core/service/warmup"
	"outreach_server/pkg/apperr"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// ---- fakes ----

type fakeProspectRepo struct {
	byEmail    map[string]*domain.Prospect
	byLinkedIn map[string]*domain.Prospect
	stages     map[int64]domain.LifecycleStage
}

func newFakeProspectRepo() *fakeProspectRepo {
	return &fakeProspectRepo{
		byEmail:    make(map[string]*domain.Prospect),
		byLinkedIn: make(map[string]*domain.Prospect),
		stages:     make(map[int64]domain.LifecycleStage),
	}
}

func (f *fakeProspectRepo) GetByID(_ context.Context, prospectID int64) (*domain.Prospect, error) {
	for _, p := range f.byEmail {
		if p.ID == prospectID {
			return p, nil
		}
	}
	for _, p := range f.byLinkedIn {
		if p.ID == prospectID {
			return p, nil
		}
	}
	return nil, apperr.NotFound("prospect")
}

func (f *fakeProspectRepo) GetByEmail(_ context.Context, _ uuid.UUID, email string) (*domain.Prospect, error) {
	if p, ok := f.byEmail[email]; ok {
		return p, nil
	}
	return nil, apperr.NotFound("prospect")
}

func (f *fakeProspectRepo) GetByLinkedInURL(_ context.Context, _ uuid.UUID, url string) (*domain.Prospect, error) {
	if p, ok := f.byLinkedIn[url]; ok {
		return p, nil
	}
	return nil, apperr.NotFound("prospect")
}

func (f *fakeProspectRepo) GetEnrichment(_ context.Context, prospectID int64) (*domain.Enrichment, error) {
	return &domain.Enrichment{ProspectID: prospectID}, nil
}

func (f *fakeProspectRepo) UpdateStage(_ context.Context, prospectID int64, stage domain.LifecycleStage) error {
	f.stages[prospectID] = stage
	return nil
}

func (f *fakeProspectRepo) SetVIP(_ context.Context, _ int64, _ string) error { return nil }
func (f *fakeProspectRepo) MarkBounced(_ context.Context, _ string) error     { return nil }
func (f *fakeProspectRepo) MarkComplained(_ context.Context, _ string) error  { return nil }

type fakeReviewRepo struct {
	entries []*out.ReviewEntry
}

func (f *fakeReviewRepo) Create(_ context.Context, entry *out.ReviewEntry) error {
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeReviewRepo) ListPending(_ context.Context, _ uuid.UUID, _ int) ([]*out.ReviewEntry, error) {
	return f.entries, nil
}

type fakeConvoLog struct {
	appended []*domain.ThreadMessage
}

func (f *fakeConvoLog) Append(_ context.Context, _ uuid.UUID, msg *domain.ThreadMessage) error {
	f.appended = append(f.appended, msg)
	return nil
}

func (f *fakeConvoLog) GetThread(_ context.Context, _ uuid.UUID, _ string) ([]domain.ThreadMessage, error) {
	return nil, nil
}

type fakeLinkedIn struct {
	sentMessages []string
}

func (f *fakeLinkedIn) Search(_ context.Context, _ map[string]any) (json.RawMessage, error) {
	return nil, nil
}

func (f *fakeLinkedIn) GetCompanyPage(_ context.Context, _ string) (json.RawMessage, error) {
	return nil, nil
}
func (f *fakeLinkedIn) Like(_ context.Context, _ string) error                     { return nil }
func (f *fakeLinkedIn) Comment(_ context.Context, _, _ string) error               { return nil }
func (f *fakeLinkedIn) SendConnectionRequest(_ context.Context, _, _ string) error { return nil }

func (f *fakeLinkedIn) SendMessage(_ context.Context, _, message string) error {
	f.sentMessages = append(f.sentMessages, message)
	return nil
}

type scriptedLLM struct {
	response string
	err      error
}

func (s *scriptedLLM) CompleteWithSystem(_ context.Context, _, _ string) (string, error) {
	return s.response, s.err
}

type fakeQueueStore struct {
	items map[string][]out.ScoredItem
	seqs  map[string]int64
}

func newFakeQueueStore() *fakeQueueStore {
	return &fakeQueueStore{items: make(map[string][]out.ScoredItem), seqs: make(map[string]int64)}
}

func (f *fakeQueueStore) Add(_ context.Context, key, member string, score int64) (int64, error) {
	f.items[key] = append(f.items[key], out.ScoredItem{Member: member, Score: score})
	sort.SliceStable(f.items[key], func(i, j int) bool { return f.items[key][i].Score < f.items[key][j].Score })
	return 0, nil
}

func (f *fakeQueueStore) PopMin(_ context.Context, key string, count int) ([]out.ScoredItem, error) {
	q := f.items[key]
	if count > len(q) {
		count = len(q)
	}
	popped := q[:count]
	f.items[key] = q[count:]
	return append([]out.ScoredItem(nil), popped...), nil
}

func (f *fakeQueueStore) Card(_ context.Context, key string) (int64, error) {
	return int64(len(f.items[key])), nil
}

func (f *fakeQueueStore) NextSeq(_ context.Context, key string) (int64, error) {
	f.seqs[key]++
	return f.seqs[key], nil
}

type fakeCounterStore struct {
	counts map[string]int64
}

func (f *fakeCounterStore) Incr(_ context.Context, key string) (int64, error) {
	f.counts[key]++
	return f.counts[key], nil
}

func (f *fakeCounterStore) Get(_ context.Context, key string) (int64, error) {
	return f.counts[key], nil
}

func (f *fakeCounterStore) Expire(_ context.Context, _ string, _ time.Duration) error { return nil }

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

// ---- harness ----

type harness struct {
	pipeline  *ReplyPipeline
	prospects *fakeProspectRepo
	reviews   *fakeReviewRepo
	convos    *fakeConvoLog
	linkedin  *fakeLinkedIn
	queues    *fakeQueueStore
	counters  *fakeCounterStore
	userID    uuid.UUID
}

func newHarness(llmResponse string, warmedUp bool) *harness {
	return newHarnessWithLLM(&scriptedLLM{response: llmResponse}, warmedUp)
}

func newHarnessWithLLM(llm out.LLM, warmedUp bool) *harness {
	prospects := newFakeProspectRepo()
	reviews := &fakeReviewRepo{}
	convos := &fakeConvoLog{}
	linkedin := &fakeLinkedIn{}
	queues := newFakeQueueStore()
	counters := &fakeCounterStore{counts: make(map[string]int64)}
	warmupRepo := &fakeWarmupRepo{}
	if warmedUp {
		started := time.Now().AddDate(0, 0, -20)
		warmupRepo.startedAt = &started
	}

	pipeline := NewReplyPipeline(
		prospects,
		reviews,
		convos,
		linkedin,
		qualification.NewEngine(llm),
		queue.NewEmailQueue(queues),
		ratelimit.NewDailyLimiter(counters, 20),
		warmup.NewService(warmupRepo),
		"sdr@outbound.example.com",
	)

	return &harness{
		pipeline:  pipeline,
		prospects: prospects,
		reviews:   reviews,
		convos:    convos,
		linkedin:  linkedin,
		queues:    queues,
		counters:  counters,
		userID:    uuid.New(),
	}
}

func (h *harness) addProspect(vip bool) *domain.Prospect {
	p := &domain.Prospect{
		ID:          7,
		UserID:      h.userID,
		CampaignID:  3,
		FirstName:   "Dana",
		LastName:    "Reyes",
		Email:       "dana@acme.example",
		LinkedInURL: "https://linkedin.com/in/dana-reyes",
		Company:     "Acme Robotics",
		JobTitle:    "VP Engineering",
		Stage:       domain.StageContacted,
		IsVIP:       vip,
	}
	h.prospects.byEmail[p.Email] = p
	h.prospects.byLinkedIn[p.LinkedInURL] = p
	return p
}

func (h *harness) emailReply() *domain.InboundReply {
	return &domain.InboundReply{
		UserID:      h.userID,
		Channel:     domain.ChannelEmail,
		SenderEmail: "dana@acme.example",
		Subject:     "Quick question",
		ReplyText:   "Send me pricing please.",
		ThreadID:    "thread-1",
		MessageID:   "msg-1",
	}
}

func qualifiedResponse(confidence string) string {
	return `{"qualification_status":"qualified","confidence_score":` + confidence +
		`,"proposed_channel":"email","proposed_response":"Here is our pricing.","reasoning":"Asked for pricing."}`
}

// ---- tests ----

func TestHandleReply_AutoSendEnqueues(t *testing.T) {
	h := newHarness(qualifiedResponse("92"), true)
	h.addProspect(true)

	outcome, err := h.pipeline.HandleReply(context.Background(), h.emailReply())
	if err != nil {
		t.Fatalf("HandleReply: %v", err)
	}
	if outcome.Outcome != domain.OutcomeAutoSend {
		t.Fatalf("outcome = %s, want auto_send", outcome.Outcome)
	}
	if outcome.QueueItem == "" {
		t.Error("expected a queue item ID")
	}

	key := "emailqueue:" + h.userID.String()
	if len(h.queues.items[key]) != 1 {
		t.Fatalf("queued %d items, want 1", len(h.queues.items[key]))
	}
	if h.prospects.stages[7] != domain.StageQualified {
		t.Errorf("stage = %s, want qualified", h.prospects.stages[7])
	}
}

func TestHandleReply_Confidence80GoesToReview(t *testing.T) {
	h := newHarness(qualifiedResponse("80"), true)
	h.addProspect(false)

	outcome, err := h.pipeline.HandleReply(context.Background(), h.emailReply())
	if err != nil {
		t.Fatalf("HandleReply: %v", err)
	}
	if outcome.Outcome != domain.OutcomeReviewQueue {
		t.Errorf("outcome = %s, want review_queue", outcome.Outcome)
	}
	if len(h.reviews.entries) != 1 {
		t.Fatalf("review entries = %d, want 1", len(h.reviews.entries))
	}
	if h.reviews.entries[0].Confidence != 80 {
		t.Errorf("review confidence = %d, want 80", h.reviews.entries[0].Confidence)
	}
}

func TestHandleReply_NotQualifiedMovesToNurture(t *testing.T) {
	h := newHarness(`{"qualification_status":"not_qualified","confidence_score":90,"reasoning":"Clear rejection."}`, true)
	h.addProspect(false)

	outcome, err := h.pipeline.HandleReply(context.Background(), h.emailReply())
	if err != nil {
		t.Fatalf("HandleReply: %v", err)
	}
	if outcome.Outcome != domain.OutcomeNurture {
		t.Errorf("outcome = %s, want nurture", outcome.Outcome)
	}
	if h.prospects.stages[7] != domain.StageNurture {
		t.Errorf("stage = %s, want nurture", h.prospects.stages[7])
	}
	if len(h.reviews.entries) != 0 {
		t.Errorf("nurture outcome must not create review entries, got %d", len(h.reviews.entries))
	}
}

func TestHandleReply_ParseErrorRoutesToReview(t *testing.T) {
	h := newHarness("Sounds like a great lead to me!", true)
	h.addProspect(false)

	outcome, err := h.pipeline.HandleReply(context.Background(), h.emailReply())
	if err != nil {
		t.Fatalf("HandleReply must not fail on a parse error: %v", err)
	}
	if outcome.Outcome != domain.OutcomeReviewQueue {
		t.Errorf("outcome = %s, want review_queue", outcome.Outcome)
	}
	if len(h.reviews.entries) != 1 {
		t.Fatalf("review entries = %d, want 1", len(h.reviews.entries))
	}
	if h.reviews.entries[0].Status != "" {
		t.Errorf("parse failure must not fabricate a status, got %q", h.reviews.entries[0].Status)
	}
}

func TestHandleReply_ModelOutageRoutesToReview(t *testing.T) {
	h := newHarnessWithLLM(&scriptedLLM{err: errors.New("connection refused")}, true)
	h.addProspect(false)

	outcome, err := h.pipeline.HandleReply(context.Background(), h.emailReply())
	if err != nil {
		t.Fatalf("a model outage must not lose the reply: %v", err)
	}
	if outcome.Outcome != domain.OutcomeReviewQueue {
		t.Errorf("outcome = %s, want review_queue", outcome.Outcome)
	}
	if len(h.reviews.entries) != 1 {
		t.Fatalf("review entries = %d, want 1", len(h.reviews.entries))
	}
	if h.reviews.entries[0].Status != "" {
		t.Errorf("an outage must not fabricate a status, got %q", h.reviews.entries[0].Status)
	}
}

func TestHandleReply_QuotaExhaustedDowngradesToReview(t *testing.T) {
	h := newHarness(qualifiedResponse("95"), true)
	h.addProspect(false)

	// Simulate a day's worth of sends already counted.
	h.counters.counts["ratelimit:daily:"+h.userID.String()+":"+ResourceEmail] = 20

	outcome, err := h.pipeline.HandleReply(context.Background(), h.emailReply())
	if err != nil {
		t.Fatalf("HandleReply: %v", err)
	}
	if outcome.Outcome != domain.OutcomeReviewQueue {
		t.Errorf("outcome = %s, want review_queue downgrade", outcome.Outcome)
	}
	key := "emailqueue:" + h.userID.String()
	if len(h.queues.items[key]) != 0 {
		t.Errorf("nothing should be queued past the daily limit, got %d items", len(h.queues.items[key]))
	}
}

func TestHandleReply_WarmupLimitGatesEnqueue(t *testing.T) {
	// Not warmed up: the effective ceiling is the warm-up limit of 5.
	h := newHarness(qualifiedResponse("95"), false)
	h.addProspect(false)

	h.counters.counts["ratelimit:daily:"+h.userID.String()+":"+ResourceEmail] = 5

	outcome, err := h.pipeline.HandleReply(context.Background(), h.emailReply())
	if err != nil {
		t.Fatalf("HandleReply: %v", err)
	}
	if outcome.Outcome != domain.OutcomeReviewQueue {
		t.Errorf("outcome = %s, want review_queue during warm-up at limit", outcome.Outcome)
	}
}

func TestHandleReply_LinkedInAutoSendGoesThroughAdapter(t *testing.T) {
	response := `{"qualification_status":"qualified","confidence_score":91,"proposed_channel":"linkedin","proposed_response":"Let's connect on a call.","reasoning":"Interested."}`
	h := newHarness(response, true)
	h.addProspect(false)

	reply := &domain.InboundReply{
		UserID:      h.userID,
		Channel:     domain.ChannelLinkedIn,
		LinkedInURL: "https://linkedin.com/in/dana-reyes",
		ReplyText:   "Sure, tell me more.",
		ThreadID:    "li-thread-1",
		MessageID:   "li-msg-1",
	}

	outcome, err := h.pipeline.HandleReply(context.Background(), reply)
	if err != nil {
		t.Fatalf("HandleReply: %v", err)
	}
	if outcome.Outcome != domain.OutcomeAutoSend {
		t.Fatalf("outcome = %s, want auto_send", outcome.Outcome)
	}
	if len(h.linkedin.sentMessages) != 1 {
		t.Fatalf("linkedin messages sent = %d, want 1", len(h.linkedin.sentMessages))
	}
	if h.linkedin.sentMessages[0] != "Let's connect on a call." {
		t.Errorf("sent %q", h.linkedin.sentMessages[0])
	}
}

func TestHandleReply_UnknownProspect(t *testing.T) {
	h := newHarness(qualifiedResponse("92"), true)

	_, err := h.pipeline.HandleReply(context.Background(), h.emailReply())
	if !apperr.IsCode(err, apperr.CodeNotFound) {
		t.Errorf("expected NOT_FOUND for unknown sender, got %v", err)
	}
}

func TestHandleReply_AppendsInboundToConversationLog(t *testing.T) {
	h := newHarness(qualifiedResponse("92"), true)
	h.addProspect(false)

	if _, err := h.pipeline.HandleReply(context.Background(), h.emailReply()); err != nil {
		t.Fatalf("HandleReply: %v", err)
	}
	if len(h.convos.appended) == 0 {
		t.Fatal("inbound reply was not logged")
	}
	if h.convos.appended[0].Direction != domain.DirectionInbound {
		t.Errorf("direction = %s, want inbound", h.convos.appended[0].Direction)
	}
}
