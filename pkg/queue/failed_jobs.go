package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/tiendalabs/tienda/pkg/logger"
)

// failedJobDoc is the document persisted to the failed_jobs collection.
type failedJobDoc struct {
	JobType  string    `bson:"job_type"`
	Payload  string    `bson:"payload"`
	Error    string    `bson:"error"`
	Attempts int       `bson:"attempts"`
	FailedAt time.Time `bson:"failed_at"`
}

// failedJobs is the optional Mongo backend for persisting failed jobs.
// Set via UseMongo() — nil means in-memory only.
var failedJobs *mongo.Collection

// UseMongo configures the queue to persist failed jobs to the given database.
// Call once at boot, after the Mongo connection is established:
//
//	queue.UseMongo(conn.DB)
func UseMongo(db *mongo.Database) {
	failedJobs = db.Collection("failed_jobs")
}

// persistFailed writes a failed job record to Mongo (if configured) and
// always appends to the in-memory slice as a fallback.
func (m *Manager) persistFailed(job Job, typeName string, lastErr error, attempts int) {
	m.mu.Lock()
	m.failed = append(m.failed, FailedJob{
		Job: job, Err: lastErr, FailedAt: time.Now(), Attempts: attempts,
	})
	m.mu.Unlock()

	if failedJobs == nil {
		return
	}

	payload, err := json.Marshal(job)
	if err != nil {
		payload = []byte(fmt.Sprintf(`{"error": "could not marshal: %v"}`, err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = failedJobs.InsertOne(ctx, failedJobDoc{
		JobType:  typeName,
		Payload:  string(payload),
		Error:    lastErr.Error(),
		Attempts: attempts,
		FailedAt: time.Now(),
	})
	if err != nil {
		// Non-fatal — the in-memory slice still has it.
		logger.Error("queue: persist failed job", "type", typeName, "error", err)
	}
}
