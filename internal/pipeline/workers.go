package pipeline

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/sirupsen/logrus"
)

// Job couples a request with the delivery callback invoked once the
// pipeline terminates. Deliver runs on the worker goroutine, so slow
// chat sends there never stall the update loop.
type Job struct {
	Request
	Deliver func(res *Result, err error)
}

// WorkerPool runs sessions on a fixed set of workers so heavy stages
// (downloads, transcoding, backend calls) never block the handling of
// other incoming chat events.
type WorkerPool struct {
	jobs     chan *Job
	count    int
	pipeline *Pipeline
	observer Observer
	log      *logrus.Entry
	wg       sync.WaitGroup
}

// NewWorkerPool builds a pool over the pipeline. observer may be nil.
func NewWorkerPool(count int, pl *Pipeline, observer Observer, log *logrus.Entry) *WorkerPool {
	if count <= 0 {
		count = 4
	}
	return &WorkerPool{
		jobs:     make(chan *Job, 100),
		count:    count,
		pipeline: pl,
		observer: observer,
		log:      log,
	}
}

// Start launches the workers.
func (wp *WorkerPool) Start() {
	wp.log.WithField("workers", wp.count).Info("worker pool started")
	for i := 0; i < wp.count; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop closes the queue and waits for in-flight sessions to finish.
// No cancellation is supported mid-pipeline: a started stage runs to
// completion or failure.
func (wp *WorkerPool) Stop() {
	close(wp.jobs)
	wp.wg.Wait()
	wp.log.Info("worker pool stopped")
}

// Enqueue submits a job. Returns false when the queue is full, so the
// caller can tell the user to retry instead of stalling the event loop.
func (wp *WorkerPool) Enqueue(job *Job) bool {
	select {
	case wp.jobs <- job:
		wp.log.WithFields(logrus.Fields{
			"session": job.SessionID,
			"source":  job.Input.Kind,
		}).Info("session enqueued")
		return true
	default:
		wp.log.WithField("session", job.SessionID).Warn("queue full, session rejected")
		return false
	}
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()
	log := wp.log.WithField("worker", id)

	for job := range wp.jobs {
		wp.process(log, job)
	}
}

func (wp *WorkerPool) process(log *logrus.Entry, job *Job) {
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(logrus.Fields{
				"session": job.SessionID,
				"panic":   r,
			}).Error(string(debug.Stack()))
			wp.notify(job, StageFailed)
			job.Deliver(nil, &StageError{
				Stage: StageFailed,
				Err:   fmt.Errorf("internal error: %v", r),
			})
		}
	}()

	res, err := wp.pipeline.Run(context.Background(), job.Request)
	if err != nil {
		wp.notify(job, StageFailed)
		job.Deliver(nil, err)
		return
	}

	wp.notify(job, StageDelivering)
	job.Deliver(res, nil)
	wp.notify(job, StageDone)
}

func (wp *WorkerPool) notify(job *Job, stage Stage) {
	if wp.observer != nil {
		wp.observer(job.SessionID, job.ChatID, stage)
	}
}
