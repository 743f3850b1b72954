package logsink

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&LogRecord{}))
	return db
}

func TestSink_SubmitAndFlushPersists(t *testing.T) {
	db := newTestDB(t)
	s := New(db, 16, 4, 20*time.Millisecond, false)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	s.Submit(LogRecord{RequestID: "r1", StatusCode: 200})
	s.Submit(LogRecord{RequestID: "r2", StatusCode: 200})

	time.Sleep(60 * time.Millisecond) // let the ticker flush
	cancel()
	require.NoError(t, <-done)

	var count int64
	db.Model(&LogRecord{}).Count(&count)
	assert.Equal(t, int64(2), count)
}

func TestSink_DropsWhenChannelFull(t *testing.T) {
	db := newTestDB(t)
	s := New(db, 1, 128, time.Hour, false) // Run is never started, so nothing drains

	s.Submit(LogRecord{RequestID: "a"})
	s.Submit(LogRecord{RequestID: "b"}) // channel capacity 1, so the second drops

	assert.Equal(t, uint64(1), s.Dropped())
}

func TestSink_FlushesRemainingOnShutdown(t *testing.T) {
	db := newTestDB(t)
	s := New(db, 16, 128, time.Hour, false) // interval long enough that only shutdown-drain flushes

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	s.Submit(LogRecord{RequestID: "only"})
	time.Sleep(10 * time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	var count int64
	db.Model(&LogRecord{}).Count(&count)
	assert.Equal(t, int64(1), count)
}
