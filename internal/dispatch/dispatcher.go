// Package dispatch fans an assignment out to every notification channel,
// retries each channel independently, records every attempt in the audit log
// and recomputes the assignment's aggregate delivery status.
//
// Nothing exported here returns an error. Channel failures become FAILED
// audit rows and log lines.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"emergency-dispatch/internal/audit"
	"emergency-dispatch/internal/db"
	"emergency-dispatch/internal/logging"
	"emergency-dispatch/internal/models"
	"emergency-dispatch/internal/providers"
	"emergency-dispatch/internal/settings"
)

const (
	noTokenRecipient   = "NO_TOKEN"
	noContactRecipient = "NO_CONTACT"

	errNoAgencyToken = "No FCM token registered for this agency."
	errNoUserToken   = "No push token registered for this user."
	errNoPhone       = "No contact phone registered for this agency."
	errNoEmail       = "No contact email registered for this agency."

	defaultChannelTimeout = 10 * time.Second
)

// RetrySource supplies the retry ceiling. *settings.Provider implements it.
type RetrySource interface {
	MaxNotificationRetries(ctx context.Context, def int) settings.IntResult
}

// Escalator is told about assignments whose every delivery attempt failed.
type Escalator interface {
	AssignmentFailed(ctx context.Context, r FailureReport) error
}

// FailureReport describes an assignment that ended FAILED.
type FailureReport struct {
	AssignmentID int64
	AlertID      int64
	AlertType    models.AlertType
	Priority     models.Priority
	AgencyName   string
	Channels     []models.Channel
}

type Options struct {
	ChannelTimeout    time.Duration
	DefaultMaxRetries int
	Escalator         Escalator
}

type channelFunc func(ctx context.Context, asg models.Assignment, agency models.Agency, p Payload) bool

type Dispatcher struct {
	store     db.Store
	audit     *audit.Log
	retries   RetrySource
	senders   providers.Senders
	logger    *logging.Logger
	timeout   time.Duration
	defRetry  int
	escalator Escalator
	locks     *keyedMutex

	channelFuncs map[models.Channel]channelFunc
}

func New(store db.Store, log *audit.Log, retries RetrySource, senders providers.Senders, logger *logging.Logger, opts Options) *Dispatcher {
	if opts.ChannelTimeout <= 0 {
		opts.ChannelTimeout = defaultChannelTimeout
	}
	if opts.DefaultMaxRetries < 0 {
		opts.DefaultMaxRetries = 0
	}
	d := &Dispatcher{
		store:     store,
		audit:     log,
		retries:   retries,
		senders:   senders,
		logger:    logger,
		timeout:   opts.ChannelTimeout,
		defRetry:  opts.DefaultMaxRetries,
		escalator: opts.Escalator,
		locks:     newKeyedMutex(),
	}
	d.channelFuncs = map[models.Channel]channelFunc{
		models.ChannelPush:  d.sendPush,
		models.ChannelSMS:   d.sendSMS,
		models.ChannelEmail: d.sendEmail,
	}
	return d
}

// Dispatch delivers asg to its agency on push, SMS and email, in that order,
// then recomputes the assignment's notification status. It keeps running if
// the caller's context is cancelled.
func (d *Dispatcher) Dispatch(ctx context.Context, asg models.Assignment) {
	ctx = context.WithoutCancel(ctx)

	alert, err := d.store.GetAlert(ctx, asg.AlertID)
	if err != nil {
		d.logger.Errorf("Dispatch of assignment %d aborted, failed to load alert %d: %v", asg.ID, asg.AlertID, err)
		return
	}
	agency, err := d.store.GetAgency(ctx, asg.AgencyID)
	if err != nil {
		d.logger.Errorf("Dispatch of assignment %d aborted, failed to load agency %d: %v", asg.ID, asg.AgencyID, err)
		return
	}
	reporter, err := d.store.GetUser(ctx, alert.UserID)
	if err != nil {
		d.logger.Warnf("Reporter %d of alert %d not loaded: %v", alert.UserID, alert.ID, err)
	}

	payload := BuildPayload(alert, reporter)

	var failed []models.Channel
	for _, ch := range models.Channels {
		if !d.runChannel(ctx, ch, asg, agency, payload) {
			failed = append(failed, ch)
		}
	}

	status, changed := d.refreshStatus(ctx, asg.ID)
	d.logger.Infof("Assignment %d (alert %d, agency %s) dispatched: status=%s failed_channels=%v",
		asg.ID, alert.ID, agency.Name, status, failed)
	if changed && status == models.NotificationFailed {
		d.escalate(ctx, FailureReport{
			AssignmentID: asg.ID,
			AlertID:      alert.ID,
			AlertType:    alert.Type,
			Priority:     alert.Priority,
			AgencyName:   agency.Name,
			Channels:     failed,
		})
	}
}

// runChannel isolates one channel from the others.
func (d *Dispatcher) runChannel(ctx context.Context, ch models.Channel, asg models.Assignment, agency models.Agency, p Payload) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Errorf("%s channel panicked for assignment %d: %v", ch, asg.ID, r)
			ok = false
		}
	}()
	fn, found := d.channelFuncs[ch]
	if !found {
		d.logger.Errorf("No sender registered for channel %s", ch)
		return false
	}
	return fn(ctx, asg, agency, p)
}

func (d *Dispatcher) sendPush(ctx context.Context, asg models.Assignment, agency models.Agency, p Payload) bool {
	if agency.PushToken == "" {
		d.recordMissing(ctx, asg.ID, models.ChannelPush, noTokenRecipient, errNoAgencyToken)
		d.logger.Errorf("Push skipped for %s: no token", agency.Name)
		return false
	}
	msg := providers.PushMessage{
		Token: agency.PushToken,
		Title: p.PushTitle(),
		Body:  p.PushBody(),
		Data:  p.Data(),
	}
	return d.sendWithRetry(ctx, asg.ID, models.ChannelPush, agency.PushToken, func(ctx context.Context) error {
		return d.senders.Push.SendPush(ctx, msg)
	})
}

func (d *Dispatcher) sendSMS(ctx context.Context, asg models.Assignment, agency models.Agency, p Payload) bool {
	if agency.ContactPhone == "" {
		d.recordMissing(ctx, asg.ID, models.ChannelSMS, noContactRecipient, errNoPhone)
		d.logger.Errorf("SMS skipped for %s: no contact phone", agency.Name)
		return false
	}
	body := p.SMSBody()
	return d.sendWithRetry(ctx, asg.ID, models.ChannelSMS, agency.ContactPhone, func(ctx context.Context) error {
		return d.senders.SMS.SendSMS(ctx, agency.ContactPhone, body)
	})
}

func (d *Dispatcher) sendEmail(ctx context.Context, asg models.Assignment, agency models.Agency, p Payload) bool {
	if agency.ContactEmail == "" {
		d.recordMissing(ctx, asg.ID, models.ChannelEmail, noContactRecipient, errNoEmail)
		d.logger.Errorf("Email skipped for %s: no contact email", agency.Name)
		return false
	}
	subject, body := p.EmailSubject(), p.EmailBody()
	return d.sendWithRetry(ctx, asg.ID, models.ChannelEmail, agency.ContactEmail, func(ctx context.Context) error {
		return d.senders.Email.SendEmail(ctx, agency.ContactEmail, subject, body)
	})
}

// sendWithRetry makes up to max_notification_retries+1 attempts, read fresh
// on every call, and records one audit row per attempt with the zero-based
// attempt index. It stops at the first success and reports whether one happened.
func (d *Dispatcher) sendWithRetry(ctx context.Context, assignmentID int64, ch models.Channel, recipient string, send func(context.Context) error) bool {
	maxRetries := d.retries.MaxNotificationRetries(ctx, d.defRetry).Value
	if maxRetries < 0 {
		maxRetries = 0
	}

	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := d.attempt(ctx, ch, send)
		if err == nil {
			d.record(ctx, audit.Entry{
				AssignmentID: assignmentID,
				Channel:      ch,
				Recipient:    recipient,
				Status:       models.NotificationSent,
				RetryCount:   attempt,
			})
			d.logger.Infof("%s delivered (attempt %d) to %s", ch, attempt+1, audit.Truncate(recipient, audit.MaxRecipientLen))
			return true
		}

		d.record(ctx, audit.Entry{
			AssignmentID: assignmentID,
			Channel:      ch,
			Recipient:    recipient,
			Status:       models.NotificationFailed,
			RetryCount:   attempt,
			Error:        err.Error(),
		})
		if attempt < maxRetries {
			d.logger.Warnf("%s attempt %d failed for assignment %d, retrying: %v", ch, attempt+1, assignmentID, err)
		} else {
			d.logger.Errorf("%s all %d attempts failed for assignment %d: %v", ch, maxRetries+1, assignmentID, err)
		}
	}
	return false
}

// sendOnce is the single-attempt variant used for reporter notices.
func (d *Dispatcher) sendOnce(ctx context.Context, assignmentID int64, ch models.Channel, recipient string, send func(context.Context) error) bool {
	err := d.attempt(ctx, ch, send)
	entry := audit.Entry{
		AssignmentID: assignmentID,
		Channel:      ch,
		Recipient:    recipient,
		Status:       models.NotificationSent,
	}
	if err != nil {
		entry.Status = models.NotificationFailed
		entry.Error = err.Error()
		d.logger.Errorf("%s notice failed for assignment %d: %v", ch, assignmentID, err)
	}
	d.record(ctx, entry)
	return err == nil
}

// attempt runs send under the channel timeout and turns a panic into an error.
func (d *Dispatcher) attempt(ctx context.Context, ch models.Channel, send func(context.Context) error) (err error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sender panic: %v", r)
		}
		status := models.NotificationSent
		if err != nil {
			status = models.NotificationFailed
		}
		deliveryDuration.WithLabelValues(string(ch)).Observe(time.Since(start).Seconds())
		deliveryAttempts.WithLabelValues(string(ch), string(status)).Inc()
	}()

	return send(ctx)
}

func (d *Dispatcher) recordMissing(ctx context.Context, assignmentID int64, ch models.Channel, recipient, reason string) {
	deliveryAttempts.WithLabelValues(string(ch), string(models.NotificationFailed)).Inc()
	d.record(ctx, audit.Entry{
		AssignmentID: assignmentID,
		Channel:      ch,
		Recipient:    recipient,
		Status:       models.NotificationFailed,
		Error:        reason,
	})
}

func (d *Dispatcher) record(ctx context.Context, e audit.Entry) {
	if _, err := d.audit.Record(ctx, e); err != nil {
		d.logger.Errorf("Audit write failed: %v", err)
	}
}

// refreshStatus recomputes the aggregate status from every audit row of the
// assignment: SENT if any row is SENT, FAILED if all rows are FAILED,
// otherwise unchanged. Calls for the same assignment are serialized.
func (d *Dispatcher) refreshStatus(ctx context.Context, assignmentID int64) (models.NotificationStatus, bool) {
	unlock := d.locks.Lock(assignmentID)
	defer unlock()

	current, err := d.store.GetAssignment(ctx, assignmentID)
	if err != nil {
		d.logger.Errorf("Failed to reload assignment %d: %v", assignmentID, err)
		return "", false
	}

	logs, err := d.store.ListNotificationLogs(ctx, models.LogFilter{AssignmentID: assignmentID})
	if err != nil {
		d.logger.Errorf("Failed to read delivery logs of assignment %d: %v", assignmentID, err)
		return current.NotificationStatus, false
	}

	next := Aggregate(logs, current.NotificationStatus)
	if next == current.NotificationStatus {
		return next, false
	}
	if err := d.store.UpdateAssignmentStatus(ctx, assignmentID, next); err != nil {
		d.logger.Errorf("Failed to update status of assignment %d: %v", assignmentID, err)
		return current.NotificationStatus, false
	}
	assignmentOutcomes.WithLabelValues(string(next)).Inc()
	return next, true
}

// Aggregate folds attempt outcomes into an assignment status.
func Aggregate(logs []models.NotificationLog, current models.NotificationStatus) models.NotificationStatus {
	if len(logs) == 0 {
		return current
	}
	allFailed := true
	for _, l := range logs {
		if l.Status == models.NotificationSent {
			return models.NotificationSent
		}
		if l.Status != models.NotificationFailed {
			allFailed = false
		}
	}
	if allFailed {
		return models.NotificationFailed
	}
	return current
}

func (d *Dispatcher) escalate(ctx context.Context, r FailureReport) {
	if d.escalator == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			d.logger.Errorf("Escalation panicked for assignment %d: %v", r.AssignmentID, rec)
		}
	}()
	if err := d.escalator.AssignmentFailed(ctx, r); err != nil {
		d.logger.Warnf("Escalation failed for assignment %d: %v", r.AssignmentID, err)
	}
}
