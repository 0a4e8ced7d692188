package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"didauday/internal/domain"
	"didauday/internal/events"
	"didauday/internal/metrics"
	"didauday/internal/models"
	"didauday/internal/payment"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	payoutDeadLetterKey = "payouts:deadletter"
)

// PayoutGateway is the processor surface the worker needs; satisfied
// by the payment client.
type PayoutGateway interface {
	CreatePayoutBatch(ctx context.Context, batchID string, items []payment.PayoutItem) (*payment.PayoutResult, error)
}

// PayoutWorker drains the payout queue. Each task is one partner
// payout; a task either completes with a PAYOUT ledger entry, is
// rescheduled with backoff, or lands in the dead letter list after the
// last retry.
type PayoutWorker struct {
	store        domain.Store
	gateway      PayoutGateway
	mirror       domain.LedgerMirror
	notifier     domain.Notifier
	eventBus     domain.EventPublisher
	redis        *redis.Client
	retryPolicy  RetryPolicy
	wake         chan struct{}
	pollInterval time.Duration
	batchSize    int
	platformFrom string
	logger       *zerolog.Logger
}

func NewPayoutWorker(store domain.Store, gateway PayoutGateway, mirror domain.LedgerMirror,
	notifier domain.Notifier, eventBus domain.EventPublisher, redisClient *redis.Client,
	retry RetryPolicy, platformFrom string, logger *zerolog.Logger) *PayoutWorker {
	if retry.MaxRetries == 0 {
		retry = DefaultRetryPolicy()
	}
	return &PayoutWorker{
		store:        store,
		gateway:      gateway,
		mirror:       mirror,
		notifier:     notifier,
		eventBus:     eventBus,
		redis:        redisClient,
		retryPolicy:  retry,
		wake:         make(chan struct{}, 1),
		pollInterval: 5 * time.Second,
		batchSize:    20,
		platformFrom: platformFrom,
		logger:       logger,
	}
}

// Wake nudges the loop without waiting out the poll interval.
func (w *PayoutWorker) Wake() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Start runs the drain loop until ctx is done.
func (w *PayoutWorker) Start(ctx context.Context) {
	w.logger.Info().Msg("payout worker started")
	defer w.logger.Info().Msg("payout worker stopped")

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.wake:
		case <-ticker.C:
		}

		if err := w.drainPending(ctx); err != nil {
			w.logger.Error().Err(err).Msg("drain payout queue error")
		}
	}
}

// ProcessSession makes an immediate delivery attempt for every due
// task of one payment session.
func (w *PayoutWorker) ProcessSession(ctx context.Context, sessionID string) error {
	tasks, err := w.store.GetPayoutTasksBySession(ctx, sessionID)
	if err != nil {
		return err
	}
	for _, task := range tasks {
		if task.Status != models.PayoutStatusPending && task.Status != models.PayoutStatusRetry {
			continue
		}
		w.processTask(ctx, task)
	}
	return nil
}

func (w *PayoutWorker) drainPending(ctx context.Context) error {
	tasks, err := w.store.GetPendingPayoutTasks(ctx, w.batchSize)
	if err != nil {
		return err
	}
	for _, task := range tasks {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		w.processTask(ctx, task)
	}
	return nil
}

func (w *PayoutWorker) processTask(ctx context.Context, task *models.PayoutTask) {
	if task.PayoutEmail == "" {
		w.failTask(ctx, task, fmt.Errorf("partner %d has no payout email", task.PartnerID))
		return
	}

	batchID := uuid.NewString()
	item := payment.PayoutItem{
		Receiver: task.PayoutEmail,
		Amount:   task.Amount,
		Note:     fmt.Sprintf("booking %d payout", task.BookingID),
	}
	result, err := w.gateway.CreatePayoutBatch(ctx, batchID, []payment.PayoutItem{item})
	if err != nil {
		w.retryOrFail(ctx, task, err)
		return
	}
	if !contains(result.Accepted, task.PayoutEmail) {
		w.retryOrFail(ctx, task, fmt.Errorf("processor rejected receiver %s", task.PayoutEmail))
		return
	}

	if err := w.store.UpdatePayoutTaskStatus(ctx, task.ID, models.PayoutStatusCompleted, "", nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark payout completed error")
	}

	w.recordPayout(ctx, task)
	w.notifyPartner(ctx, task)
	metrics.IncPayout("succeeded")
	w.publish(events.EventPayoutSucceeded, task, "")

	w.logger.Info().Int64("task_id", task.ID).Int64("partner_id", task.PartnerID).
		Int64("amount", task.Amount).Str("session_id", task.PaymentSessionID).Msg("payout delivered")
}

func (w *PayoutWorker) retryOrFail(ctx context.Context, task *models.PayoutTask, cause error) {
	attempt := int(task.RetryCount) + 1
	if attempt >= w.retryPolicy.MaxRetries {
		w.failTask(ctx, task, cause)
		return
	}

	next := time.Now().Add(w.retryPolicy.NextDelay(attempt))
	if err := w.store.UpdatePayoutTaskStatus(ctx, task.ID, models.PayoutStatusRetry, cause.Error(), &next); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark payout retry error")
	}
	metrics.IncPayout("retried")
	w.logger.Warn().Err(cause).Int64("task_id", task.ID).Int("attempt", attempt).
		Time("next_retry_at", next).Msg("payout attempt failed")
}

func (w *PayoutWorker) failTask(ctx context.Context, task *models.PayoutTask, cause error) {
	if err := w.store.UpdatePayoutTaskStatus(ctx, task.ID, models.PayoutStatusFailed, cause.Error(), nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark payout failed error")
	}
	w.pushDeadLetter(ctx, task, cause)
	metrics.IncPayout("failed")
	w.publish(events.EventPayoutFailed, task, cause.Error())
	w.logger.Error().Err(cause).Int64("task_id", task.ID).Int64("partner_id", task.PartnerID).
		Msg("payout failed permanently")
}

func (w *PayoutWorker) recordPayout(ctx context.Context, task *models.PayoutTask) {
	rec := &models.PaymentRecord{
		SenderEmail:      w.platformFrom,
		ReceiverEmail:    task.PayoutEmail,
		Kind:             models.PaymentKindPayout,
		Amount:           task.Amount,
		PaymentSessionID: task.PaymentSessionID,
	}
	if err := w.store.AppendPayment(ctx, rec); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("append payout ledger entry error")
		return
	}
	if w.mirror != nil {
		if err := w.mirror.AppendLedgerEntry(ctx, rec); err != nil {
			w.logger.Warn().Err(err).Int64("entry_id", rec.ID).Msg("mirror ledger entry error")
		}
	}
}

func (w *PayoutWorker) notifyPartner(ctx context.Context, task *models.PayoutTask) {
	if w.notifier == nil {
		return
	}
	partner, err := w.store.GetProfile(ctx, task.PartnerID)
	if err != nil {
		w.logger.Warn().Err(err).Int64("partner_id", task.PartnerID).Msg("resolve partner error")
		return
	}
	if err := w.notifier.NotifyPartner(ctx, partner, task.Amount, task.PaymentSessionID); err != nil {
		w.logger.Warn().Err(err).Int64("task_id", task.ID).Msg("notify partner error")
	}
}

func (w *PayoutWorker) pushDeadLetter(ctx context.Context, task *models.PayoutTask, cause error) {
	if w.redis == nil {
		return
	}
	data, err := json.Marshal(struct {
		*models.PayoutTask
		Cause string `json:"cause"`
	}{task, cause.Error()})
	if err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("encode dead letter error")
		return
	}
	if err := w.redis.LPush(ctx, payoutDeadLetterKey, data).Err(); err != nil {
		w.logger.Warn().Err(err).Int64("task_id", task.ID).Msg("dead letter push error")
	}
}

func (w *PayoutWorker) publish(eventType string, task *models.PayoutTask, errMsg string) {
	if w.eventBus == nil {
		return
	}
	payload := events.PayoutEventPayload{
		BookingID:        task.BookingID,
		PartnerID:        task.PartnerID,
		Amount:           task.Amount,
		PaymentSessionID: task.PaymentSessionID,
		Error:            errMsg,
	}
	if err := w.eventBus.PublishJSON(eventType, payload); err != nil {
		w.logger.Error().Err(err).Str("event_type", eventType).Msg("publish event error")
	}
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
