package worker

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/hbomb79/Siphon/pkg/logger"
)

var workerLogger = logger.Get("Worker")

// ErrTaskPanicked wraps the recovered value of a task that panicked.
var ErrTaskPanicked = errors.New("task panicked")

type WorkerStatus int32

const (
	Sleeping WorkerStatus = iota
	Working
	Finished
)

type Worker interface {
	Start()
	Status() WorkerStatus
	Label() string
	Close()
}

type job struct {
	label string
	task  Task
	done  chan error
}

type taskWorker struct {
	label         string
	queue         <-chan *job
	currentStatus atomic.Int32
}

func NewWorker(label string, queue <-chan *job) *taskWorker {
	return &taskWorker{label: label, queue: queue}
}

// Start pulls jobs from the shared queue until the queue is closed. A
// panicking task does not take the worker down; the panic is reported
// back to the submitter as an error.
func (worker *taskWorker) Start() {
	workerLogger.Emit(logger.NEW, "Starting worker %v\n", worker.label)
	worker.setStatus(Sleeping)

	for j := range worker.queue {
		worker.setStatus(Working)
		j.done <- worker.execute(j)
		worker.setStatus(Sleeping)
	}

	worker.setStatus(Finished)
	workerLogger.Emit(logger.STOP, "Worker %v has stopped\n", worker.label)
}

func (worker *taskWorker) execute(j *job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			workerLogger.Emit(logger.ERROR, "Worker %v recovered from panic in task %s: %v\n", worker.label, j.label, r)
			err = fmt.Errorf("%w: %s: %v", ErrTaskPanicked, j.label, r)
		}
	}()

	workerLogger.Emit(logger.VERBOSE, "Worker %v executing %s\n", worker.label, j.label)
	return j.task()
}

// Status returns the current status of this worker
func (worker *taskWorker) Status() WorkerStatus {
	return WorkerStatus(worker.currentStatus.Load())
}

func (worker *taskWorker) setStatus(status WorkerStatus) {
	worker.currentStatus.Store(int32(status))
}

// Label returns the label for this worker
func (worker *taskWorker) Label() string {
	return worker.label
}

// Close is a no-op for queue workers: the pool closes the shared
// queue, which causes every worker to exit once it drains.
func (worker *taskWorker) Close() {}
