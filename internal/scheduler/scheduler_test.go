package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"salescrm_backend/internal/email"
	"salescrm_backend/internal/opportunities/domain"
	"salescrm_backend/internal/opportunities/repository"
	"salescrm_backend/platform/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

type testSchedulerConfig struct {
	redisURL string
}

func (c testSchedulerConfig) GetRedisURL() string                { return c.redisURL }
func (c testSchedulerConfig) GetRedisTLSInsecure() bool          { return false }
func (c testSchedulerConfig) GetAsynqQueueName() string          { return "pipeline" }
func (c testSchedulerConfig) GetAsynqConcurrency() int           { return 1 }
func (c testSchedulerConfig) GetAsynqMaxRetry() int              { return 3 }
func (c testSchedulerConfig) GetAsynqTaskTimeout() time.Duration { return 20 * time.Second }

func TestEnqueueNotifyAssigned(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testSchedulerConfig{redisURL: "redis://" + mr.Addr()}

	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	defer client.Close()

	payload := NotifyAssignedPayload{
		OpportunityID: uuid.NewString(),
		TenantID:      uuid.NewString(),
		RecipientIDs:  []string{uuid.NewString()},
		FromStage:     "PROPOSAL",
		ToStage:       "NEGOTIATION",
	}
	if err := client.EnqueueNotifyAssigned(context.Background(), payload); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	opt, err := redisClientOpt(cfg.redisURL, false)
	if err != nil {
		t.Fatalf("redis opt: %v", err)
	}
	inspector := asynq.NewInspector(opt)
	defer inspector.Close()

	tasks, err := inspector.ListPendingTasks("pipeline")
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("expected one pending task, got %d", len(tasks))
	}
	task := tasks[0]
	if task.Type != TaskNotifyAssigned || task.MaxRetry != 3 || task.Timeout != 20*time.Second {
		t.Fatalf("unexpected task options: type=%s max_retry=%d timeout=%s", task.Type, task.MaxRetry, task.Timeout)
	}

	got, err := ParseNotifyAssignedPayload(asynq.NewTask(task.Type, task.Payload))
	if err != nil {
		t.Fatalf("parse payload: %v", err)
	}
	if got.OpportunityID != payload.OpportunityID || got.ToStage != "NEGOTIATION" || len(got.RecipientIDs) != 1 {
		t.Fatalf("unexpected payload: %+v", got)
	}
}

func TestNewClientRequiresRedisURL(t *testing.T) {
	if _, err := NewClient(testSchedulerConfig{}); err == nil {
		t.Fatal("expected error without redis url")
	}
}

func TestNilClientIsNoop(t *testing.T) {
	var client *Client
	if err := client.EnqueueNotifyAssigned(context.Background(), NotifyAssignedPayload{}); err != nil {
		t.Fatalf("expected nil client to be a no-op, got %v", err)
	}
}

func TestRetryDelay(t *testing.T) {
	cases := []struct {
		n    int
		want time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{3, 8 * time.Second},
		{20, maxRetryDelay},
	}
	for _, tc := range cases {
		if got := retryDelay(tc.n, nil, nil); got != tc.want {
			t.Fatalf("retryDelay(%d): expected %s, got %s", tc.n, tc.want, got)
		}
	}
}

type fakeNotificationStore struct {
	opp        domain.Opportunity
	oppErr     error
	recipients []repository.Recipient
	askedFor   []uuid.UUID
}

func (s *fakeNotificationStore) GetOpportunity(_ context.Context, _, _ uuid.UUID) (domain.Opportunity, error) {
	return s.opp, s.oppErr
}

func (s *fakeNotificationStore) ListActiveRecipients(_ context.Context, _ uuid.UUID, userIDs []uuid.UUID) ([]repository.Recipient, error) {
	s.askedFor = userIDs
	return s.recipients, nil
}

type sentEmail struct {
	to   string
	data email.OpportunityStageEmail
}

type fakeSender struct {
	sent []sentEmail
	fail map[string]error
}

func (s *fakeSender) SendOpportunityStageEmail(_ context.Context, toEmail string, data email.OpportunityStageEmail) error {
	if err := s.fail[toEmail]; err != nil {
		return err
	}
	s.sent = append(s.sent, sentEmail{to: toEmail, data: data})
	return nil
}

func notifyTask(t *testing.T, payload NotifyAssignedPayload) *asynq.Task {
	t.Helper()
	task, err := NewNotifyAssignedTask(payload)
	if err != nil {
		t.Fatalf("new task: %v", err)
	}
	return task
}

func TestNotifyHandlerSendsToActiveRecipients(t *testing.T) {
	active, inactive := uuid.New(), uuid.New()
	oppID := uuid.New()
	store := &fakeNotificationStore{
		opp:        domain.Opportunity{ID: oppID, Name: "Acme Expansion"},
		recipients: []repository.Recipient{{UserID: active, Email: "sam@example.com", FullName: "Sam Lee"}},
	}
	sender := &fakeSender{}
	h := NewNotifyHandler(store, sender, "https://crm.example.com/", logger.New("test"))

	err := h.Handle(context.Background(), notifyTask(t, NotifyAssignedPayload{
		OpportunityID: oppID.String(),
		TenantID:      uuid.NewString(),
		RecipientIDs:  []string{active.String(), inactive.String(), "garbage"},
		FromStage:     "NEGOTIATION",
		ToStage:       "CLOSE",
	}))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(store.askedFor) != 2 {
		t.Fatalf("expected malformed ids dropped, asked for %v", store.askedFor)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected one email, got %d", len(sender.sent))
	}
	got := sender.sent[0]
	if got.to != "sam@example.com" || got.data.OpportunityName != "Acme Expansion" || got.data.ToStage != "CLOSE" {
		t.Fatalf("unexpected email: %+v", got)
	}
	if got.data.OpportunityURL != "https://crm.example.com/opportunities/"+oppID.String() {
		t.Fatalf("unexpected url %q", got.data.OpportunityURL)
	}
}

func TestNotifyHandlerRetrySemantics(t *testing.T) {
	recipient := uuid.New()
	payload := NotifyAssignedPayload{
		OpportunityID: uuid.NewString(),
		TenantID:      uuid.NewString(),
		RecipientIDs:  []string{recipient.String()},
		ToStage:       "CLOSE",
	}
	log := logger.New("test")

	malformed := asynq.NewTask(TaskNotifyAssigned, []byte("{"))
	if err := NewNotifyHandler(&fakeNotificationStore{}, &fakeSender{}, "", log).Handle(context.Background(), malformed); !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected malformed payload to skip retry, got %v", err)
	}

	gone := &fakeNotificationStore{oppErr: repository.ErrNotFound}
	if err := NewNotifyHandler(gone, &fakeSender{}, "", log).Handle(context.Background(), notifyTask(t, payload)); !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected missing opportunity to skip retry, got %v", err)
	}

	store := &fakeNotificationStore{recipients: []repository.Recipient{{UserID: recipient, Email: "sam@example.com"}}}
	sender := &fakeSender{fail: map[string]error{"sam@example.com": errors.New("smtp 421")}}
	err := NewNotifyHandler(store, sender, "", log).Handle(context.Background(), notifyTask(t, payload))
	if err == nil || errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected retryable send failure, got %v", err)
	}
}
