package settings

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"emergency-dispatch/internal/db/dbtest"
	"emergency-dispatch/internal/logging"
)

func newProvider(t *testing.T) (*Provider, *dbtest.Memory, *test.Hook) {
	t.Helper()
	logger := logging.NewWithWriter(io.Discard, "debug")
	hook := test.NewLocal(logger.Logger)
	store := dbtest.New()
	return NewProvider(store, logger), store, hook
}

func TestGetInt(t *testing.T) {
	tests := []struct {
		name   string
		stored *string
		want   int
		reason FallbackReason
	}{
		{name: "missing", stored: nil, want: 7, reason: FallbackMissing},
		{name: "valid", stored: ptr("12"), want: 12},
		{name: "padded", stored: ptr(" 3 "), want: 3},
		{name: "non numeric", stored: ptr("lots"), want: 7, reason: FallbackNotInteger},
		{name: "zero", stored: ptr("0"), want: 7, reason: FallbackOutOfRange},
		{name: "negative", stored: ptr("-4"), want: 7, reason: FallbackOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, store, hook := newProvider(t)
			if tt.stored != nil {
				store.PutSetting(KeyUserRateLimit, *tt.stored)
			}

			got := p.GetInt(context.Background(), KeyUserRateLimit, 7)

			assert.Equal(t, tt.want, got.Value)
			assert.Equal(t, tt.reason, got.Fallback)
			if tt.reason != FallbackNone {
				require.NotNil(t, hook.LastEntry())
				assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
			} else {
				assert.Empty(t, hook.AllEntries())
			}
		})
	}
}

func TestGetInt_UnreadableStore(t *testing.T) {
	p, store, hook := newProvider(t)
	store.Fail("GetSetting", errors.New("connection reset"))

	got := p.GetInt(context.Background(), KeyUserRateLimit, 100)

	assert.Equal(t, 100, got.Value)
	assert.Equal(t, FallbackUnreadable, got.Fallback)
	assert.Len(t, hook.AllEntries(), 1)
}

func TestMaxNotificationRetries(t *testing.T) {
	p, store, _ := newProvider(t)
	ctx := context.Background()

	store.PutSetting(KeyMaxNotificationRetries, "0")
	got := p.MaxNotificationRetries(ctx, 2)
	assert.Equal(t, 0, got.Value)
	assert.False(t, got.UsedDefault())

	store.PutSetting(KeyMaxNotificationRetries, "-1")
	got = p.MaxNotificationRetries(ctx, 2)
	assert.Equal(t, 2, got.Value)
	assert.Equal(t, FallbackOutOfRange, got.Fallback)

	store.PutSetting(KeyMaxNotificationRetries, "two")
	got = p.MaxNotificationRetries(ctx, 2)
	assert.Equal(t, 2, got.Value)
	assert.Equal(t, FallbackNotInteger, got.Fallback)

	store.PutSetting(KeyMaxNotificationRetries, "5")
	assert.Equal(t, 5, p.MaxNotificationRetries(ctx, 2).Value)
}

func TestAlertCreationRate(t *testing.T) {
	p, store, _ := newProvider(t)
	ctx := context.Background()

	assert.Equal(t, "10/minute", p.AlertCreationRate(ctx, "10/minute"))

	store.PutSetting(KeyAlertCreationRateLimit, "8")
	assert.Equal(t, "8/hour", p.AlertCreationRate(ctx, "10/minute"))

	store.PutSetting(KeyAlertCreationRateLimit, "0")
	assert.Equal(t, "10/minute", p.AlertCreationRate(ctx, "10/minute"))
}

func TestSeed_KeepsExistingValues(t *testing.T) {
	store := dbtest.New()
	ctx := context.Background()
	store.PutSetting(KeyMaxNotificationRetries, "0")

	require.NoError(t, Seed(ctx, store))
	require.NoError(t, Seed(ctx, store))

	all, err := store.ListSettings(ctx)
	require.NoError(t, err)
	assert.Len(t, all, len(Defaults))

	s, err := store.GetSetting(ctx, KeyMaxNotificationRetries)
	require.NoError(t, err)
	assert.Equal(t, "0", s.Value)
}

func ptr(s string) *string { return &s }
