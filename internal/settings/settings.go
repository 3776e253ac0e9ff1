// Package settings reads runtime-tunable operational parameters with safe
// fallback to static defaults. No method here returns an error: every failure
// degrades to the caller's default and is logged at warning level.
package settings

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"emergency-dispatch/internal/db"
	"emergency-dispatch/internal/logging"
	"emergency-dispatch/internal/models"
)

const (
	KeyAlertCreationRateLimit = "alert_creation_rate_limit"
	KeyUserRateLimit          = "user_rate_limit"
	KeyMaxNotificationRetries = "max_notification_retries"
	KeyAlertPollingInterval   = "alert_polling_interval_s"
	KeyLocationUpdateInterval = "location_update_interval_m"
)

// Defaults are seeded on first admin access.
var Defaults = []models.Setting{
	{Key: KeyAlertCreationRateLimit, Value: "5", Description: "Max alerts a civilian can create per hour"},
	{Key: KeyUserRateLimit, Value: "100", Description: "Max API requests per user per hour"},
	{Key: KeyMaxNotificationRetries, Value: "2", Description: "Maximum retry attempts per notification channel"},
	{Key: KeyAlertPollingInterval, Value: "5", Description: "Frontend polling interval in seconds (informational)"},
	{Key: KeyLocationUpdateInterval, Value: "15", Description: "Min metres moved before location update is sent (informational)"},
}

// FallbackReason says why a default was used. The zero value means the
// stored value was used.
type FallbackReason string

const (
	FallbackNone       FallbackReason = ""
	FallbackMissing    FallbackReason = "missing"
	FallbackUnreadable FallbackReason = "unreadable"
	FallbackNotInteger FallbackReason = "not_integer"
	FallbackOutOfRange FallbackReason = "out_of_range"
)

// IntResult is either the stored value or the caller's default plus the reason.
type IntResult struct {
	Value    int
	Fallback FallbackReason
}

func (r IntResult) UsedDefault() bool {
	return r.Fallback != FallbackNone
}

// Reader is the slice of db.Store the provider needs.
type Reader interface {
	GetSetting(ctx context.Context, key string) (models.Setting, error)
}

type Provider struct {
	store  Reader
	logger *logging.Logger
}

func NewProvider(store Reader, logger *logging.Logger) *Provider {
	return &Provider{store: store, logger: logger}
}

// GetInt returns the stored positive integer for key, or def.
func (p *Provider) GetInt(ctx context.Context, key string, def int) IntResult {
	return p.readInt(ctx, key, def, 1)
}

// MaxNotificationRetries returns the retry ceiling. Zero is valid and means a
// single attempt. Negative or non-numeric values fall back to def.
func (p *Provider) MaxNotificationRetries(ctx context.Context, def int) IntResult {
	return p.readInt(ctx, KeyMaxNotificationRetries, def, 0)
}

// AlertCreationRate returns the throttle rate as "<n>/hour" when the stored
// value is a positive integer, otherwise the static rate string unchanged.
func (p *Provider) AlertCreationRate(ctx context.Context, static string) string {
	res := p.readInt(ctx, KeyAlertCreationRateLimit, 0, 1)
	if res.UsedDefault() {
		return static
	}
	return fmt.Sprintf("%d/hour", res.Value)
}

func (p *Provider) readInt(ctx context.Context, key string, def, min int) IntResult {
	setting, err := p.store.GetSetting(ctx, key)
	if err != nil {
		reason := FallbackUnreadable
		if errors.Is(err, db.ErrNotFound) {
			reason = FallbackMissing
		}
		return p.fallback(key, def, reason, err)
	}

	v, err := strconv.Atoi(strings.TrimSpace(setting.Value))
	if err != nil {
		return p.fallback(key, def, FallbackNotInteger, err)
	}
	if v < min {
		return p.fallback(key, def, FallbackOutOfRange, fmt.Errorf("value %d below minimum %d", v, min))
	}
	return IntResult{Value: v}
}

func (p *Provider) fallback(key string, def int, reason FallbackReason, cause error) IntResult {
	p.logger.WithField("setting", key).Warnf("Could not use setting (%s: %v); using default=%d", reason, cause, def)
	return IntResult{Value: def, Fallback: reason}
}

// Seeder is the slice of db.Store needed to install defaults.
type Seeder interface {
	EnsureSetting(ctx context.Context, s models.Setting) error
}

// Seed inserts any missing default setting without touching existing values.
func Seed(ctx context.Context, store Seeder) error {
	for _, s := range Defaults {
		if err := store.EnsureSetting(ctx, s); err != nil {
			return err
		}
	}
	return nil
}
