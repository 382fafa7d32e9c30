package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"github.com/ujenga-aus/JengaIQ-sub003/pkg/models"
)

// Processor runs one queued import through the parse/compute/persist
// pipeline. A nil error means the outcome is durably recorded, whether
// the import completed or failed; a non-nil error means nothing was
// recorded and the job should be redelivered.
type Processor interface {
	ProcessImport(ctx context.Context, importID string) (*models.Import, error)
}

// Worker consumes queued imports from NATS and processes them.
type Worker struct {
	id        string
	hostname  string
	nc        *nats.Conn
	js        nats.JetStreamContext
	processor Processor
	logger    *logrus.Logger
	config    *Config

	jobSub     *nats.Subscription
	activeJobs int
	mu         sync.RWMutex
	running    bool
	wg         sync.WaitGroup
}

// NewWorker connects to NATS and prepares a worker. A nil config uses
// DefaultConfig; a nil logger uses the logrus standard logger.
func NewWorker(natsURL string, processor Processor, logger *logrus.Logger, config *Config) (*Worker, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	hostname, _ := os.Hostname()
	workerID := fmt.Sprintf("%s-%s", hostname, uuid.New().String()[:8])

	nc, js, err := connect(natsURL)
	if err != nil {
		return nil, err
	}

	if err := initStreams(js); err != nil {
		nc.Close()
		return nil, err
	}

	return &Worker{
		id:        workerID,
		hostname:  hostname,
		nc:        nc,
		js:        js,
		processor: processor,
		logger:    logger,
		config:    config,
	}, nil
}

// Start subscribes to the pending stream and begins processing imports.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("worker already running")
	}
	w.running = true

	var err error
	w.jobSub, err = w.js.QueueSubscribe(
		ImportsPendingSubject,
		WorkersQueueGroup,
		w.handleJob,
		nats.Durable(WorkersQueueGroup),
		nats.ManualAck(),
		nats.AckWait(w.config.AckWait),
	)
	if err != nil {
		return fmt.Errorf("failed to subscribe to imports: %w", err)
	}

	w.logger.WithFields(logrus.Fields{
		"worker_id": w.id,
		"hostname":  w.hostname,
	}).Info("Import worker started")
	return nil
}

// Stop drains in-flight jobs and shuts the worker down.
func (w *Worker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.mu.Unlock()

	w.logger.WithField("worker_id", w.id).Info("Stopping import worker")

	// Stop new deliveries first, then wait for in-flight jobs.
	if w.jobSub != nil {
		w.jobSub.Unsubscribe()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("Import worker drained")
	case <-time.After(w.config.ShutdownTimeout):
		w.logger.Warn("Import worker shutdown timeout reached")
	}

	w.nc.Close()

	w.logger.WithField("worker_id", w.id).Info("Import worker stopped")
	return nil
}

// handleJob processes a single import job from the queue.
func (w *Worker) handleJob(msg *nats.Msg) {
	w.wg.Add(1)
	defer w.wg.Done()

	var job ImportJob
	if err := json.Unmarshal(msg.Data, &job); err != nil {
		// A malformed job never becomes readable; drop it.
		w.logger.WithError(err).Warn("Dropping malformed import job")
		msg.Ack()
		return
	}

	w.logger.WithFields(logrus.Fields{
		"worker_id":  w.id,
		"import_id":  job.ImportID,
		"program_id": job.ProgramID,
		"filename":   job.Filename,
	}).Info("Processing import")

	w.mu.Lock()
	w.activeJobs++
	w.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), w.config.JobTimeout)
	imp, err := w.processor.ProcessImport(ctx, job.ImportID)
	cancel()

	w.mu.Lock()
	w.activeJobs--
	w.mu.Unlock()

	if err != nil {
		if !w.shouldRequeue(err) {
			w.logger.WithError(err).WithField("import_id", job.ImportID).Warn("Dropping import job that can never succeed")
			msg.Ack()
			return
		}
		// Nothing durable was recorded, so redelivery can still succeed.
		w.logger.WithError(err).WithField("import_id", job.ImportID).Error("Import processing failed, requeueing")
		msg.Nak()
		return
	}

	if err := w.publishResult(imp); err != nil {
		w.logger.WithError(err).WithField("import_id", job.ImportID).Error("Failed to publish import result")
		msg.Nak()
		return
	}

	msg.Ack()
	w.logger.WithFields(logrus.Fields{
		"worker_id": w.id,
		"import_id": job.ImportID,
		"status":    string(imp.Status),
	}).Info("Import processed")
}

// publishResult publishes a finished-import summary to the results stream.
func (w *Worker) publishResult(imp *models.Import) error {
	result := buildResult(imp, w.id, w.hostname)

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	if _, err := w.js.Publish(ImportsResultsSubject, data); err != nil {
		return fmt.Errorf("failed to publish result: %w", err)
	}

	return nil
}

// shouldRequeue decides whether a failed job goes back on the queue.
func (w *Worker) shouldRequeue(err error) bool {
	if w.config.DropIf != nil && w.config.DropIf(err) {
		return false
	}
	return true
}

// buildResult maps a processed import onto the result message.
func buildResult(imp *models.Import, workerID, hostname string) *ImportResultMessage {
	finished := time.Now()
	if imp.FinishedAt != nil {
		finished = *imp.FinishedAt
	}

	return &ImportResultMessage{
		ImportID:          imp.ID,
		ProgramID:         imp.ProgramID,
		WorkerID:          workerID,
		Status:            string(imp.Status),
		TaskCount:         imp.TaskCount,
		RelationshipCount: imp.RelationshipCount,
		CriticalCount:     imp.CriticalCount,
		CycleTaskIDs:      imp.CycleTaskIDs,
		ErrorMessage:      imp.Error,
		FinishedAt:        finished,
		Hostname:          hostname,
	}
}

// GetID returns the worker ID.
func (w *Worker) GetID() string {
	return w.id
}

// GetActiveJobs returns the number of imports currently being processed.
func (w *Worker) GetActiveJobs() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.activeJobs
}
