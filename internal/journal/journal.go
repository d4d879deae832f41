package journal

/*
Журнал вызовов API.

Транспорт отдает сюда запись о каждом завершенном запросе и не ждет записи в БД:
- Log неблокирующий, при переполнении буфера запись сбрасывается с Error в логе;
- воркер копит пачку и пишет ее по таймеру или при достижении BatchSize;
- Stop закрывает канал, воркер вычитывает остаток и делает финальный flush.
*/

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Storage определяет, куда физически сохраняются записи
type Storage interface {
	WriteBatch(ctx context.Context, records []CallRecord) error
}

// Recorder: то, что нужно транспорту.
type Recorder interface {
	Log(rec CallRecord)
}

type Options struct {
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
}

type Journal struct {
	ch     chan CallRecord
	repo   Storage
	opts   Options
	logger *zap.Logger
	wg     sync.WaitGroup

	// mu: Log держит RLock на время отправки, Stop берет Lock вокруг close
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
}

func New(repo Storage, opts Options, logger *zap.Logger) *Journal {
	if opts.BufferSize <= 0 {
		opts.BufferSize = 1000
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = 500 * time.Millisecond
	}
	return &Journal{
		ch:     make(chan CallRecord, opts.BufferSize),
		repo:   repo,
		opts:   opts,
		logger: logger.Named("journal"),
	}
}

func (j *Journal) Start() {
	j.wg.Add(1)
	go j.worker()
}

// Stop «запирает» вход в канал и ждет, пока воркер всё допишет.
func (j *Journal) Stop() {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return
	}
	j.closed = true
	j.logger.Info("stopping journal: closing channel and flushing buffer")
	close(j.ch)
	j.mu.Unlock()

	j.wg.Wait()
	j.logger.Info("journal stopped", zap.Int64("dropped", j.dropped.Load()))
}

func (j *Journal) Log(rec CallRecord) {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	j.mu.RLock()
	defer j.mu.RUnlock()

	if j.closed {
		j.dropped.Add(1)
		j.logger.Warn("call record dropped: journal is stopping", zap.String("request_id", rec.RequestID))
		return
	}

	select {
	case j.ch <- rec:
	default:
		j.dropped.Add(1)
		j.logger.Error("journal_buffer_overflow",
			zap.String("request_id", rec.RequestID),
			zap.String("path", rec.Path),
		)
	}
}

// Dropped сколько записей потеряно из-за переполнения или остановки.
func (j *Journal) Dropped() int64 {
	return j.dropped.Load()
}

// Pending текущая заполненность буфера.
func (j *Journal) Pending() int {
	return len(j.ch)
}

func (j *Journal) worker() {
	defer j.wg.Done()

	batch := make([]CallRecord, 0, j.opts.BatchSize)
	ticker := time.NewTicker(j.opts.FlushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		// Background: основной контекст к этому моменту может быть закрыт
		if err := j.repo.WriteBatch(context.Background(), batch); err != nil {
			j.logger.Error("journal flush failed", zap.Int("records", len(batch)), zap.Error(err))
		}
		batch = make([]CallRecord, 0, j.opts.BatchSize)
	}

	for {
		select {
		case rec, ok := <-j.ch:
			if !ok {
				flush()
				j.logger.Info("journal worker finished")
				return
			}
			batch = append(batch, rec)
			if len(batch) >= j.opts.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
