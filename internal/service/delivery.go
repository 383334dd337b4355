package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"taskpilot/internal/model"
	"taskpilot/internal/notify"
	"taskpilot/internal/repository"
)

// DeliveryScheduler pushes due reminders out through the notification
// gateway. It is driven by a periodic tick; a tick that overruns its period
// is skipped by the cron chain rather than run concurrently. Marking a
// reminder sent happens only after a successful send, so a crash in between
// yields at most a duplicate delivery, never a silent drop.
type DeliveryScheduler struct {
	reminders   *repository.ReminderRepository
	gateway     notify.Gateway
	sendTimeout time.Duration
	concurrency int
	maxAttempts int
	batchLimit  int
	now         func() time.Time
	log         *logrus.Entry
}

func NewDeliveryScheduler(reminders *repository.ReminderRepository, gateway notify.Gateway,
	sendTimeout time.Duration, concurrency, maxAttempts, batchLimit int, log *logrus.Entry) *DeliveryScheduler {
	if concurrency < 1 {
		concurrency = 1
	}
	if batchLimit < 1 {
		batchLimit = 200
	}
	return &DeliveryScheduler{
		reminders:   reminders,
		gateway:     gateway,
		sendTimeout: sendTimeout,
		concurrency: concurrency,
		maxAttempts: maxAttempts,
		batchLimit:  batchLimit,
		now:         time.Now,
		log:         log,
	}
}

// Tick selects and dispatches one batch of due reminders. Sends fan out with
// bounded concurrency; each send gets its own timeout. Returns the number
// delivered. Errors are absorbed into the reminder rows and the log; a
// failed tick never takes the scheduling loop down with it.
func (d *DeliveryScheduler) Tick(ctx context.Context) int {
	due, err := d.reminders.ListDue(ctx, d.now(), d.maxAttempts, d.batchLimit)
	if err != nil {
		d.log.WithError(err).Error("select due reminders")
		return 0
	}
	if len(due) == 0 {
		return 0
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		delivered int
	)
	sem := make(chan struct{}, d.concurrency)

	for i := range due {
		reminder := due[i]
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			if d.deliver(ctx, reminder) {
				mu.Lock()
				delivered++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	d.log.WithFields(logrus.Fields{
		"due":       len(due),
		"delivered": delivered,
	}).Debug("delivery tick")
	return delivered
}

func (d *DeliveryScheduler) deliver(ctx context.Context, reminder model.Reminder) bool {
	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()

	text := renderReminder(reminder)
	if err := d.gateway.Send(sendCtx, reminder.RecipientID, text); err != nil {
		d.log.WithError(err).WithFields(logrus.Fields{
			"reminder": reminder.ID,
			"task":     reminder.Task.PublicID,
			"attempt":  reminder.Attempts + 1,
		}).Warn("reminder delivery failed")
		if rerr := d.reminders.RecordFailure(ctx, reminder.ID, err.Error()); rerr != nil {
			d.log.WithError(rerr).Error("record delivery failure")
		}
		return false
	}

	if err := d.reminders.MarkSent(ctx, reminder.ID, d.now()); err != nil {
		// The send went out but the marker write failed; the next tick will
		// re-select and re-send. At-least-once, by contract.
		d.log.WithError(err).WithField("reminder", reminder.ID).Error("mark reminder sent")
		return false
	}
	return true
}

func renderReminder(reminder model.Reminder) string {
	task := reminder.Task
	switch reminder.Kind {
	case model.ReminderAfterDeadline:
		return fmt.Sprintf("⚠️ <b>%s</b> [%s] is overdue (deadline %s)",
			task.Content, task.PublicID, formatDeadline(task.Deadline))
	case model.ReminderCustom:
		return fmt.Sprintf("🔔 <b>%s</b> [%s]", task.Content, task.PublicID)
	default:
		label := ""
		if reminder.OffsetLabel != nil {
			label = " in " + *reminder.OffsetLabel
		}
		return fmt.Sprintf("⏳ <b>%s</b> [%s] is due%s (deadline %s)",
			task.Content, task.PublicID, label, formatDeadline(task.Deadline))
	}
}

func formatDeadline(deadline *time.Time) string {
	if deadline == nil {
		return "—"
	}
	return deadline.Format("2006-01-02 15:04")
}
