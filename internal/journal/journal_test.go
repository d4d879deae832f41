package journal

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memStorage struct {
	mu      sync.Mutex
	batches [][]CallRecord
	err     error
}

func (m *memStorage) WriteBatch(_ context.Context, records []CallRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, records)
	return m.err
}

func (m *memStorage) total() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, b := range m.batches {
		n += len(b)
	}
	return n
}

func TestJournalFlushesBySize(t *testing.T) {
	store := &memStorage{}
	j := New(store, Options{BufferSize: 100, BatchSize: 3, FlushInterval: time.Hour}, zap.NewNop())
	j.Start()

	for i := 0; i < 3; i++ {
		j.Log(CallRecord{RequestID: "r", Method: "GET", Path: "/ai/models"})
	}
	require.Eventually(t, func() bool { return store.total() == 3 }, time.Second, 5*time.Millisecond)

	j.Stop()
	assert.Len(t, store.batches, 1)
	assert.False(t, store.batches[0][0].Timestamp.IsZero())
}

func TestJournalDrainsOnStop(t *testing.T) {
	store := &memStorage{}
	j := New(store, Options{BufferSize: 100, BatchSize: 50, FlushInterval: time.Hour}, zap.NewNop())
	j.Start()

	for i := 0; i < 7; i++ {
		j.Log(CallRecord{Path: "/security/threats"})
	}
	j.Stop()
	assert.Equal(t, 7, store.total())

	// после остановки записи не принимаются
	j.Log(CallRecord{Path: "/late"})
	assert.EqualValues(t, 1, j.Dropped())
	j.Stop()
}

func TestJournalLogConcurrentWithStop(t *testing.T) {
	store := &memStorage{}
	j := New(store, Options{BufferSize: 10000, BatchSize: 16, FlushInterval: time.Millisecond}, zap.NewNop())
	j.Start()

	const writers, perWriter = 8, 200
	var wg sync.WaitGroup
	start := make(chan struct{})
	for range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			for range perWriter {
				j.Log(CallRecord{Path: "/ai/models"})
			}
		}()
	}
	close(start)
	j.Stop()
	wg.Wait()

	assert.EqualValues(t, writers*perWriter, int64(store.total())+j.Dropped())
}

func TestJournalOverflowDrops(t *testing.T) {
	store := &memStorage{}
	j := New(store, Options{BufferSize: 2, BatchSize: 10, FlushInterval: time.Hour}, zap.NewNop())
	// воркер не запущен, буфер не вычитывается
	j.Log(CallRecord{})
	j.Log(CallRecord{})
	j.Log(CallRecord{})
	assert.Equal(t, 2, j.Pending())
	assert.EqualValues(t, 1, j.Dropped())
}

func TestJournalStorageErrorIsLogged(t *testing.T) {
	store := &memStorage{err: errors.New("db down")}
	j := New(store, Options{BatchSize: 1, FlushInterval: time.Hour}, zap.NewNop())
	j.Start()
	j.Log(CallRecord{})
	j.Stop()
	assert.Equal(t, 1, store.total())
}
