package runner

import (
	"context"
	"sync"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	appErr "github.com/classtrack/lms/internal/pkg/errors"
)

// Run outcome statuses. A partial run returns a resume state and expects to
// be invoked again.
const (
	StatusCompleted = "completed"
	StatusPartial   = "partial"
)

// ImportRequest is one queued orchestrator invocation. ResumeState is the
// opaque continuation of an earlier partial run; Attempt counts retries of
// this same chunk, not of the import as a whole.
type ImportRequest struct {
	ImportID    string
	JobID       string
	UserID      string
	CourseID    string
	DriveURL    string
	ResumeState string
	Attempt     int
}

type ImportResult struct {
	Status      string
	ResumeState string
}

// Invoker executes one bounded chunk of an import. Fail is called once after
// the last retry so the invoker can mark the import terminally failed.
type Invoker interface {
	Run(ctx context.Context, req *ImportRequest) (*ImportResult, error)
	Fail(ctx context.Context, req *ImportRequest, cause error)
}

// Runner drains a bounded queue of import chunks on a single worker. A failed
// chunk is retried with a short delay; a partial chunk is re-enqueued as its
// own continuation with the attempt counter reset, so the retry budget guards
// each chunk rather than long imports.
type Runner struct {
	invoker     Invoker
	queue       chan *ImportRequest
	maxAttempts int
	retryDelay  time.Duration
	done        chan struct{}
	wg          sync.WaitGroup
	startOnce   sync.Once
	stopOnce    sync.Once
}

func New(invoker Invoker, queueSize, maxAttempts int) *Runner {
	if queueSize <= 0 {
		queueSize = 64
	}
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &Runner{
		invoker:     invoker,
		queue:       make(chan *ImportRequest, queueSize),
		maxAttempts: maxAttempts,
		retryDelay:  time.Second,
		done:        make(chan struct{}),
	}
}

func (r *Runner) Start() {
	r.startOnce.Do(func() {
		r.wg.Add(1)
		go r.loop()
	})
}

// Stop stops accepting work and waits for the in-flight chunk.
func (r *Runner) Stop() {
	r.stopOnce.Do(func() {
		close(r.done)
	})
	r.wg.Wait()
}

// Enqueue hands an import chunk to the worker. A full queue rejects instead
// of blocking the caller.
func (r *Runner) Enqueue(req *ImportRequest) error {
	select {
	case <-r.done:
		return appErr.ErrInternal
	default:
	}
	select {
	case r.queue <- req:
		return nil
	default:
		return appErr.ErrTooMany
	}
}

func (r *Runner) loop() {
	defer r.wg.Done()
	for {
		select {
		case <-r.done:
			return
		case req := <-r.queue:
			r.process(req)
		}
	}
}

func (r *Runner) process(req *ImportRequest) {
	ctx := context.Background()
	logger := logutil.GetLogger(ctx).With(
		zap.String("import_id", req.ImportID),
		zap.String("job_id", req.JobID),
		zap.Int("attempt", req.Attempt),
	)
	result, err := r.invoker.Run(ctx, req)
	if err != nil {
		next := *req
		next.Attempt++
		if next.Attempt >= r.maxAttempts {
			logger.Error("import chunk failed after final attempt", zap.Error(err))
			r.invoker.Fail(ctx, &next, err)
			return
		}
		logger.Warn("import chunk failed, retrying", zap.Error(err))
		r.requeueAfter(&next, r.retryDelay)
		return
	}
	if result.Status == StatusPartial {
		logger.Info("import chunk partial, continuing")
		next := *req
		next.ResumeState = result.ResumeState
		next.Attempt = 0
		r.requeueAfter(&next, 0)
		return
	}
	logger.Info("import chunk completed")
}

// requeueAfter re-enqueues from the worker without deadlocking on a full
// queue.
func (r *Runner) requeueAfter(req *ImportRequest, delay time.Duration) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if delay > 0 {
			timer := time.NewTimer(delay)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-r.done:
				return
			}
		}
		select {
		case r.queue <- req:
		case <-r.done:
		}
	}()
}
