package dispatch

import (
	"context"
	"strconv"

	"emergency-dispatch/internal/models"
	"emergency-dispatch/internal/providers"
)

// SendUserAcknowledgment tells the reporter an agency acknowledged their
// alert: one push attempt and one SMS attempt, each audited against asg.
func (d *Dispatcher) SendUserAcknowledgment(ctx context.Context, reporter models.User, notice AckNotice, asg models.Assignment) {
	ctx = context.WithoutCancel(ctx)
	data := map[string]string{
		"type":        "ACKNOWLEDGMENT",
		"alert_id":    strconv.FormatInt(notice.AlertID, 10),
		"agency_name": notice.AgencyName,
	}
	d.notifyReporter(ctx, reporter, asg, "Alert Acknowledged!", notice.PushBody(), notice.SMSBody(), data)
}

// SendStatusUpdate tells the reporter their alert moved to status.
func (d *Dispatcher) SendStatusUpdate(ctx context.Context, asg models.Assignment, status models.AlertStatus) {
	ctx = context.WithoutCancel(ctx)

	alert, err := d.store.GetAlert(ctx, asg.AlertID)
	if err != nil {
		d.logger.Errorf("Status update for assignment %d skipped, failed to load alert: %v", asg.ID, err)
		return
	}
	agency, err := d.store.GetAgency(ctx, asg.AgencyID)
	if err != nil {
		d.logger.Errorf("Status update for assignment %d skipped, failed to load agency: %v", asg.ID, err)
		return
	}
	reporter, err := d.store.GetUser(ctx, alert.UserID)
	if err != nil {
		d.logger.Errorf("Status update for assignment %d skipped, failed to load reporter: %v", asg.ID, err)
		return
	}

	title, body := StatusMessage(agency.Name, status)
	data := map[string]string{
		"type":       "STATUS_UPDATE",
		"alert_id":   strconv.FormatInt(alert.ID, 10),
		"new_status": string(status),
	}
	d.notifyReporter(ctx, reporter, asg, title, body, StatusSMS(agency.Name, status, alert.ID), data)
}

func (d *Dispatcher) notifyReporter(ctx context.Context, reporter models.User, asg models.Assignment, title, body, sms string, data map[string]string) {
	func() {
		defer d.recoverNotice(models.ChannelPush, asg.ID)
		if reporter.PushToken == "" {
			d.recordMissing(ctx, asg.ID, models.ChannelPush, reporter.Email, errNoUserToken)
			return
		}
		msg := providers.PushMessage{Token: reporter.PushToken, Title: title, Body: body, Data: data}
		d.sendOnce(ctx, asg.ID, models.ChannelPush, reporter.PushToken, func(ctx context.Context) error {
			return d.senders.Push.SendPush(ctx, msg)
		})
	}()

	func() {
		defer d.recoverNotice(models.ChannelSMS, asg.ID)
		d.sendOnce(ctx, asg.ID, models.ChannelSMS, reporter.Phone, func(ctx context.Context) error {
			return d.senders.SMS.SendSMS(ctx, reporter.Phone, sms)
		})
	}()
}

func (d *Dispatcher) recoverNotice(ch models.Channel, assignmentID int64) {
	if r := recover(); r != nil {
		d.logger.Errorf("%s notice panicked for assignment %d: %v", ch, assignmentID, r)
	}
}
