// Package migration provides a document-database migration runner, used for
// index creation and data backfills.
//
// Usage (in database/migrations):
//
//	func init() {
//	    migration.Register("20240101000000_users_email_unique", &usersEmailUnique{})
//	}
//
//	type usersEmailUnique struct{}
//	func (m *usersEmailUnique) Up(ctx context.Context, db *mongo.Database) error {
//	    _, err := db.Collection("users").Indexes().CreateOne(ctx, ...)
//	    return err
//	}
//	func (m *usersEmailUnique) Down(ctx context.Context, db *mongo.Database) error {
//	    _, err := db.Collection("users").Indexes().DropOne(ctx, "email_1")
//	    return err
//	}
//
// Run from CLI:
//
//	tienda migrate             // run all pending
//	tienda migrate:rollback    // rollback last batch
package migration

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tiendalabs/tienda/pkg/logger"
)

// Migration is the interface every migration must implement.
type Migration interface {
	// Up applies the migration.
	Up(ctx context.Context, db *mongo.Database) error
	// Down reverses the migration.
	Down(ctx context.Context, db *mongo.Database) error
}

// record is the tracking document stored in the migrations collection.
type record struct {
	Name  string    `bson:"name"`
	Batch int       `bson:"batch"`
	RunAt time.Time `bson:"run_at"`
}

const collectionName = "migrations"

// ------------------- Registry -------------------

type registeredMigration struct {
	name string
	m    Migration
}

var registry []registeredMigration

// Register adds a migration to the global registry.
// name should be a timestamp-prefixed string, e.g.
// "20240101000000_users_email_unique", so lexical order is chronological.
func Register(name string, m Migration) {
	registry = append(registry, registeredMigration{name: name, m: m})
}

// ------------------- Runner -------------------

// Runner executes and tracks migrations.
type Runner struct {
	db *mongo.Database
}

// New creates a Runner backed by the provided database handle.
func New(db *mongo.Database) *Runner {
	return &Runner{db: db}
}

func (r *Runner) coll() *mongo.Collection { return r.db.Collection(collectionName) }

// Pending returns the migrations that have not yet been run, in name order.
func (r *Runner) Pending(ctx context.Context) ([]registeredMigration, error) {
	cursor, err := r.coll().Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	var ran []record
	if err := cursor.All(ctx, &ran); err != nil {
		return nil, err
	}

	ranSet := make(map[string]bool, len(ran))
	for _, rec := range ran {
		ranSet[rec.Name] = true
	}

	var pending []registeredMigration
	for _, reg := range registry {
		if !ranSet[reg.name] {
			pending = append(pending, reg)
		}
	}

	sort.Slice(pending, func(i, j int) bool {
		return pending[i].name < pending[j].name
	})

	return pending, nil
}

// Run executes all pending migrations in a single batch.
func (r *Runner) Run(ctx context.Context) error {
	pending, err := r.Pending(ctx)
	if err != nil {
		return fmt.Errorf("migration: fetch pending: %w", err)
	}

	if len(pending) == 0 {
		logger.Info("migration: nothing to migrate")
		fmt.Println("Nothing to migrate.")
		return nil
	}

	batch, err := r.nextBatch(ctx)
	if err != nil {
		return fmt.Errorf("migration: next batch: %w", err)
	}

	for _, reg := range pending {
		logger.Info("migration: running", "name", reg.name)
		fmt.Printf("  ▶ Migrating: %s\n", reg.name)

		if err := reg.m.Up(ctx, r.db); err != nil {
			return fmt.Errorf("migration: %s up: %w", reg.name, err)
		}

		_, err := r.coll().InsertOne(ctx, record{Name: reg.name, Batch: batch, RunAt: time.Now()})
		if err != nil {
			return fmt.Errorf("migration: record %s: %w", reg.name, err)
		}

		fmt.Printf("  ✅ Migrated:  %s\n", reg.name)
	}

	logger.Info("migration: done", "ran", len(pending), "batch", batch)
	return nil
}

// Rollback reverses all migrations from the most recent batch.
func (r *Runner) Rollback(ctx context.Context) error {
	maxBatch, err := r.maxBatch(ctx)
	if err != nil {
		return err
	}
	if maxBatch == 0 {
		fmt.Println("Nothing to roll back.")
		return nil
	}

	opts := options.Find().SetSort(bson.D{{Key: "name", Value: -1}})
	cursor, err := r.coll().Find(ctx, bson.M{"batch": maxBatch}, opts)
	if err != nil {
		return err
	}
	var records []record
	if err := cursor.All(ctx, &records); err != nil {
		return err
	}

	regMap := make(map[string]Migration, len(registry))
	for _, reg := range registry {
		regMap[reg.name] = reg.m
	}

	for _, rec := range records {
		m, ok := regMap[rec.Name]
		if !ok {
			return fmt.Errorf("migration: cannot rollback %s — not registered", rec.Name)
		}

		fmt.Printf("  ◀ Rolling back: %s\n", rec.Name)
		logger.Info("migration: rolling back", "name", rec.Name)

		if err := m.Down(ctx, r.db); err != nil {
			return fmt.Errorf("migration: %s down: %w", rec.Name, err)
		}

		if _, err := r.coll().DeleteOne(ctx, bson.M{"name": rec.Name}); err != nil {
			return err
		}

		fmt.Printf("  ✅ Rolled back:  %s\n", rec.Name)
	}

	return nil
}

// Status prints all migrations and whether each has been run.
func (r *Runner) Status(ctx context.Context) error {
	cursor, err := r.coll().Find(ctx, bson.M{})
	if err != nil {
		return err
	}
	var ran []record
	if err := cursor.All(ctx, &ran); err != nil {
		return err
	}

	ranMap := make(map[string]record, len(ran))
	for _, rec := range ran {
		ranMap[rec.Name] = rec
	}

	fmt.Printf("%-60s  %-8s  %s\n", "Migration", "Status", "Batch")
	fmt.Println(strings.Repeat("-", 80))
	for _, reg := range registry {
		if rec, ok := ranMap[reg.name]; ok {
			fmt.Printf("%-60s  %-8s  %d\n", reg.name, "Ran", rec.Batch)
		} else {
			fmt.Printf("%-60s  %-8s  -\n", reg.name, "Pending")
		}
	}
	return nil
}

func (r *Runner) maxBatch(ctx context.Context) (int, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "batch", Value: -1}})
	var rec record
	err := r.coll().FindOne(ctx, bson.M{}, opts).Decode(&rec)
	if err == mongo.ErrNoDocuments {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return rec.Batch, nil
}

func (r *Runner) nextBatch(ctx context.Context) (int, error) {
	max, err := r.maxBatch(ctx)
	if err != nil {
		return 0, err
	}
	return max + 1, nil
}
