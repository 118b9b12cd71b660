package scheduler

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"salescrm_backend/internal/email"
	"salescrm_backend/internal/opportunities/repository"
	"salescrm_backend/platform/config"
	"salescrm_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const maxRetryDelay = 5 * time.Minute

// NotificationStore is what the notify handler reads.
type NotificationStore interface {
	repository.OpportunityReader
	repository.RecipientReader
}

type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	log    *logger.Logger
}

// WorkerConfig combines the config interfaces the worker reads.
type WorkerConfig interface {
	config.SchedulerConfig
	config.NotificationConfig
}

func NewWorker(cfg WorkerConfig, store NotificationStore, sender email.Sender, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = defaultQueue
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
		RetryDelayFunc: retryDelay,
		ErrorHandler:   asynq.ErrorHandlerFunc(taskErrorHandler(log)),
	})

	mux := asynq.NewServeMux()
	notify := NewNotifyHandler(store, sender, cfg.GetAppBaseURL(), log)
	mux.HandleFunc(TaskNotifyAssigned, notify.Handle)

	return &Worker{server: server, mux: mux, log: log}, nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

// retryDelay backs off 2^n seconds, capped at maxRetryDelay.
func retryDelay(n int, _ error, _ *asynq.Task) time.Duration {
	d := time.Duration(math.Pow(2, float64(n))) * time.Second
	if d <= 0 || d > maxRetryDelay {
		return maxRetryDelay
	}
	return d
}

// taskErrorHandler logs every failed attempt with its retry position.
func taskErrorHandler(log *logger.Logger) func(ctx context.Context, task *asynq.Task, err error) {
	return func(ctx context.Context, task *asynq.Task, err error) {
		retried, _ := asynq.GetRetryCount(ctx)
		maxRetry, _ := asynq.GetMaxRetry(ctx)
		log.TaskFailed(task.Type(), retried, maxRetry, err)
	}
}

// NotifyHandler emails assignees about a committed stage change.
type NotifyHandler struct {
	store      NotificationStore
	sender     email.Sender
	appBaseURL string
	log        *logger.Logger
}

func NewNotifyHandler(store NotificationStore, sender email.Sender, appBaseURL string, log *logger.Logger) *NotifyHandler {
	return &NotifyHandler{
		store:      store,
		sender:     sender,
		appBaseURL: strings.TrimRight(appBaseURL, "/"),
		log:        log,
	}
}

// Handle sends one email per active recipient. Malformed payloads and
// vanished opportunities are not retried; send failures are.
func (h *NotifyHandler) Handle(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseNotifyAssignedPayload(task)
	if err != nil {
		return fmt.Errorf("parse payload: %v: %w", err, asynq.SkipRetry)
	}
	opportunityID, err := uuid.Parse(payload.OpportunityID)
	if err != nil {
		return fmt.Errorf("opportunity id: %v: %w", err, asynq.SkipRetry)
	}
	tenantID, err := uuid.Parse(payload.TenantID)
	if err != nil {
		return fmt.Errorf("tenant id: %v: %w", err, asynq.SkipRetry)
	}

	userIDs := make([]uuid.UUID, 0, len(payload.RecipientIDs))
	for _, raw := range payload.RecipientIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			h.log.Warn("skipping malformed recipient id", "opportunity_id", opportunityID, "recipient_id", raw)
			continue
		}
		userIDs = append(userIDs, id)
	}
	if len(userIDs) == 0 {
		return nil
	}

	opp, err := h.store.GetOpportunity(ctx, tenantID, opportunityID)
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("opportunity %s: %w", opportunityID, asynq.SkipRetry)
	}
	if err != nil {
		return err
	}

	recipients, err := h.store.ListActiveRecipients(ctx, tenantID, userIDs)
	if err != nil {
		return err
	}

	var errs []error
	for _, r := range recipients {
		err := h.sender.SendOpportunityStageEmail(ctx, r.Email, email.OpportunityStageEmail{
			RecipientName:   r.FullName,
			OpportunityName: opp.Name,
			FromStage:       payload.FromStage,
			ToStage:         payload.ToStage,
			OpportunityURL:  h.opportunityURL(opportunityID),
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("notify %s: %w", r.UserID, err))
		}
	}
	return errors.Join(errs...)
}

func (h *NotifyHandler) opportunityURL(id uuid.UUID) string {
	if h.appBaseURL == "" {
		return ""
	}
	return h.appBaseURL + "/opportunities/" + id.String()
}
