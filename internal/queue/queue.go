package queue

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	// NATS stream names
	ImportsPendingStream = "SCHEDULE_IMPORTS"
	ImportsResultsStream = "SCHEDULE_RESULTS"

	// Subject names
	ImportsPendingSubject = "imports.pending"
	ImportsResultsSubject = "imports.results"

	// WorkersQueueGroup is the queue group shared by import workers so
	// each job is delivered to exactly one of them.
	WorkersQueueGroup = "import-workers"
)

// ImportJob is the message published to the pending stream for each
// queued import. The payload itself stays in the database; workers
// fetch it by import id.
type ImportJob struct {
	ImportID   string    `json:"import_id"`
	ProgramID  string    `json:"program_id"`
	Filename   string    `json:"filename"`
	Source     string    `json:"source"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// ImportResultMessage summarizes a finished import for downstream
// consumers of the results stream.
type ImportResultMessage struct {
	ImportID          string    `json:"import_id"`
	ProgramID         string    `json:"program_id"`
	WorkerID          string    `json:"worker_id"`
	Status            string    `json:"status"`
	TaskCount         int       `json:"task_count"`
	RelationshipCount int       `json:"relationship_count"`
	CriticalCount     int       `json:"critical_count"`
	CycleTaskIDs      []string  `json:"cycle_task_ids,omitempty"`
	ErrorMessage      string    `json:"error_message,omitempty"`
	FinishedAt        time.Time `json:"finished_at"`
	Hostname          string    `json:"hostname"`
}

// Config holds queue tuning shared by the enqueuer and workers.
type Config struct {
	// AckWait is how long NATS waits for an ack before redelivering a job.
	AckWait time.Duration
	// JobTimeout bounds a single import run. It must stay under AckWait
	// or a slow job gets redelivered while still in flight.
	JobTimeout time.Duration
	// ShutdownTimeout bounds the drain of in-flight jobs on Stop.
	ShutdownTimeout time.Duration
	// DropIf classifies processor errors that can never succeed, for
	// example a job whose import row no longer exists. Matching jobs
	// are acked and dropped instead of requeued. Nil drops nothing.
	DropIf func(err error) bool
}

// DefaultConfig returns the default queue configuration.
func DefaultConfig() *Config {
	return &Config{
		AckWait:         5 * time.Minute,
		JobTimeout:      4 * time.Minute,
		ShutdownTimeout: 30 * time.Second,
	}
}

// connect dials NATS and creates a JetStream context.
func connect(natsURL string) (*nats.Conn, nats.JetStreamContext, error) {
	nc, err := nats.Connect(natsURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	return nc, js, nil
}

// initStreams creates the import streams if they do not already exist.
func initStreams(js nats.JetStreamContext) error {
	// Pending imports form a work queue: a job is removed once acked.
	_, err := js.AddStream(&nats.StreamConfig{
		Name:      ImportsPendingStream,
		Subjects:  []string{ImportsPendingSubject},
		Retention: nats.WorkQueuePolicy,
		MaxAge:    24 * time.Hour,
	})
	if err != nil && err != nats.ErrStreamNameAlreadyInUse {
		return fmt.Errorf("failed to create pending imports stream: %w", err)
	}

	// Results are retained for a day so downstream consumers can catch up.
	_, err = js.AddStream(&nats.StreamConfig{
		Name:      ImportsResultsStream,
		Subjects:  []string{ImportsResultsSubject},
		Retention: nats.LimitsPolicy,
		MaxAge:    24 * time.Hour,
	})
	if err != nil && err != nats.ErrStreamNameAlreadyInUse {
		return fmt.Errorf("failed to create results stream: %w", err)
	}

	return nil
}
