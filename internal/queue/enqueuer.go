package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"github.com/ujenga-aus/JengaIQ-sub003/pkg/models"
)

// Enqueuer publishes queued imports to NATS for the worker pool.
type Enqueuer struct {
	nc     *nats.Conn
	js     nats.JetStreamContext
	logger *logrus.Logger

	resultSub *nats.Subscription
}

// NewEnqueuer connects to NATS and ensures the import streams exist.
func NewEnqueuer(natsURL string, logger *logrus.Logger) (*Enqueuer, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	nc, js, err := connect(natsURL)
	if err != nil {
		return nil, err
	}

	if err := initStreams(js); err != nil {
		nc.Close()
		return nil, err
	}

	return &Enqueuer{nc: nc, js: js, logger: logger}, nil
}

// Enqueue publishes an import job to the pending stream.
func (e *Enqueuer) Enqueue(ctx context.Context, imp *models.Import) error {
	job := &ImportJob{
		ImportID:   imp.ID,
		ProgramID:  imp.ProgramID,
		Filename:   imp.Filename,
		Source:     string(imp.Source),
		EnqueuedAt: time.Now(),
	}

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal import job: %w", err)
	}

	if _, err := e.js.Publish(ImportsPendingSubject, data, nats.Context(ctx)); err != nil {
		return fmt.Errorf("failed to publish import job: %w", err)
	}

	return nil
}

// QueueDepth returns the number of jobs waiting in the pending stream.
func (e *Enqueuer) QueueDepth() (int, error) {
	info, err := e.js.StreamInfo(ImportsPendingStream)
	if err != nil {
		return 0, fmt.Errorf("failed to get stream info: %w", err)
	}
	return int(info.State.Msgs), nil
}

// SubscribeResults delivers finished-import summaries to handler on a
// durable subscription. Malformed messages are acked and dropped.
func (e *Enqueuer) SubscribeResults(durable string, handler func(*ImportResultMessage)) error {
	sub, err := e.js.Subscribe(ImportsResultsSubject, func(msg *nats.Msg) {
		var result ImportResultMessage
		if err := json.Unmarshal(msg.Data, &result); err != nil {
			e.logger.WithError(err).Warn("Dropping malformed import result")
			msg.Ack()
			return
		}
		handler(&result)
		msg.Ack()
	}, nats.Durable(durable), nats.ManualAck())
	if err != nil {
		return fmt.Errorf("failed to subscribe to results: %w", err)
	}

	e.resultSub = sub
	return nil
}

// Healthy reports whether the NATS connection is up.
func (e *Enqueuer) Healthy() bool {
	return e.nc != nil && e.nc.IsConnected()
}

// Close unsubscribes and closes the NATS connection.
func (e *Enqueuer) Close() {
	if e.resultSub != nil {
		e.resultSub.Unsubscribe()
	}
	e.nc.Close()
}
