package ratelimit

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"emergency-dispatch/internal/logging"
)

func TestParseRate(t *testing.T) {
	tests := []struct {
		in      string
		want    Rate
		wantErr bool
	}{
		{in: "5/hour", want: Rate{Count: 5, Period: time.Hour}},
		{in: "5/h", want: Rate{Count: 5, Period: time.Hour}},
		{in: "100/day", want: Rate{Count: 100, Period: 24 * time.Hour}},
		{in: "10/min", want: Rate{Count: 10, Period: time.Minute}},
		{in: " 3 / sec ", want: Rate{Count: 3, Period: time.Second}},
		{in: "5", wantErr: true},
		{in: "0/hour", wantErr: true},
		{in: "-1/hour", wantErr: true},
		{in: "x/hour", wantErr: true},
		{in: "5/", wantErr: true},
		{in: "5/week", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRate(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLimiter_PerKey(t *testing.T) {
	l := New(func(context.Context) string { return "2/hour" }, logging.NewWithWriter(io.Discard, "error"))
	ctx := context.Background()

	assert.True(t, l.Allow(ctx, "user:1"))
	assert.True(t, l.Allow(ctx, "user:1"))
	assert.False(t, l.Allow(ctx, "user:1"))

	assert.True(t, l.Allow(ctx, "user:2"))
}

func TestLimiter_RateChangeRebuildsBucket(t *testing.T) {
	current := "1/hour"
	l := New(func(context.Context) string { return current }, logging.NewWithWriter(io.Discard, "error"))
	ctx := context.Background()

	assert.True(t, l.Allow(ctx, "user:1"))
	assert.False(t, l.Allow(ctx, "user:1"))

	current = "3/hour"
	assert.True(t, l.Allow(ctx, "user:1"))
	assert.True(t, l.Allow(ctx, "user:1"))
	assert.True(t, l.Allow(ctx, "user:1"))
	assert.False(t, l.Allow(ctx, "user:1"))
}

func TestLimiter_InvalidRateAllows(t *testing.T) {
	l := New(func(context.Context) string { return "garbage" }, logging.NewWithWriter(io.Discard, "error"))
	for i := 0; i < 10; i++ {
		assert.True(t, l.Allow(context.Background(), "user:1"))
	}
}
