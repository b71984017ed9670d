// Package exports writes per-species inference tables to the blob store in
// the background while the run moves on to the next species.
package exports

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	blobcore "orthoinfer/internal/blob/core"
	"orthoinfer/internal/logging"
	"orthoinfer/pkg/domain"
)

// Status describes the lifecycle stage of an export request.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Format names a rendering of the inference table.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

var contentTypes = map[Format]string{
	FormatJSON: "application/json",
	FormatCSV:  "text/csv",
}

// Artifact captures one stored rendering.
type Artifact struct {
	Key         string    `json:"key"`
	Format      Format    `json:"format"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	Rows        int       `json:"rows"`
	ETag        string    `json:"etag,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Record tracks an export request and its artifacts.
type Record struct {
	ID          string     `json:"id"`
	RunID       string     `json:"run_id"`
	Release     string     `json:"release"`
	Species     string     `json:"species"`
	Formats     []Format   `json:"formats"`
	Status      Status     `json:"status"`
	Error       string     `json:"error,omitempty"`
	Artifacts   []Artifact `json:"artifacts,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Input is an enqueue request. Species is the target species code and
// SpeciesName its full name as stored on the inference records.
type Input struct {
	RunID       string
	Release     string
	Species     string
	SpeciesName string
	Rows        []domain.InferenceRecord
	Formats     []Format
}

// Prefix is the blob prefix holding every artifact of one species export.
func Prefix(release, species string) string {
	return "exports/" + release + "/" + species + "/"
}

// Key returns the blob key of the table rendered in format.
func Key(release, species string, format Format) string {
	return Prefix(release, species) + "inferences." + string(format)
}

var errStopped = errors.New("export worker stopped")

// Worker executes exports asynchronously.
type Worker struct {
	store blobcore.Store
	log   logging.Logger

	// sendMu orders sends on queue against its close in Stop.
	sendMu   sync.RWMutex
	queue    chan exportTask
	stopping chan struct{}

	mu   sync.RWMutex
	jobs map[string]*Record

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

type exportTask struct {
	id    string
	input Input
}

// NewWorker constructs a worker writing into store.
func NewWorker(store blobcore.Store, log logging.Logger) *Worker {
	if log == nil {
		log = logging.Noop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		store:    store,
		log:      log,
		queue:    make(chan exportTask, 32),
		stopping: make(chan struct{}),
		jobs:     make(map[string]*Record),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins processing export requests.
func (w *Worker) Start() {
	w.sendMu.RLock()
	queue := w.queue
	w.sendMu.RUnlock()
	if queue == nil {
		return
	}
	w.wg.Add(1)
	go w.loop(queue)
}

// Stop stops accepting requests, lets queued exports finish and waits for
// the worker. When ctx expires first the remaining exports are abandoned.
func (w *Worker) Stop(ctx context.Context) error {
	w.once.Do(func() {
		close(w.stopping)
		w.sendMu.Lock()
		close(w.queue)
		w.queue = nil
		w.sendMu.Unlock()
	})
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		w.cancel()
		return nil
	case <-ctx.Done():
		w.cancel()
		return ctx.Err()
	}
}

func (w *Worker) loop(queue <-chan exportTask) {
	defer w.wg.Done()
	for task := range queue {
		if w.ctx.Err() != nil {
			w.fail(task.id, "worker stopped")
			continue
		}
		w.process(task)
	}
}

// EnqueueExport schedules an export job and returns the queued record. It
// blocks while the queue is full until the worker takes a job, ctx ends or
// the worker stops.
func (w *Worker) EnqueueExport(ctx context.Context, input Input) (Record, error) {
	if strings.TrimSpace(input.Species) == "" {
		return Record{}, fmt.Errorf("export species required")
	}
	formats := input.Formats
	if len(formats) == 0 {
		formats = []Format{FormatCSV, FormatJSON}
	}
	uniq := make([]Format, 0, len(formats))
	seen := make(map[Format]struct{})
	for _, format := range formats {
		if _, duplicate := seen[format]; duplicate {
			continue
		}
		if _, ok := contentTypes[format]; !ok {
			return Record{}, fmt.Errorf("unsupported export format %s", format)
		}
		uniq = append(uniq, format)
		seen[format] = struct{}{}
	}

	now := time.Now().UTC()
	record := Record{
		ID:        uuid.NewString(),
		RunID:     input.RunID,
		Release:   input.Release,
		Species:   input.Species,
		Formats:   uniq,
		Status:    StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	input.Formats = uniq
	input.Rows = append([]domain.InferenceRecord(nil), input.Rows...)

	w.mu.Lock()
	w.jobs[record.ID] = &record
	queued := record.copy()
	w.mu.Unlock()

	if err := w.send(ctx, exportTask{id: record.ID, input: input}); err != nil {
		w.mu.Lock()
		delete(w.jobs, record.ID)
		w.mu.Unlock()
		return Record{}, err
	}
	w.log.Debug(ctx, "export queued",
		logging.String("export_id", record.ID), logging.String("species", input.Species), logging.Int("rows", len(input.Rows)))
	return queued, nil
}

func (w *Worker) send(ctx context.Context, task exportTask) error {
	w.sendMu.RLock()
	defer w.sendMu.RUnlock()
	if w.queue == nil {
		return errStopped
	}
	select {
	case w.queue <- task:
		return nil
	case <-w.stopping:
		return errStopped
	case <-ctx.Done():
		return fmt.Errorf("enqueue export: %w", ctx.Err())
	}
}

// GetExport returns a snapshot of the export record.
func (w *Worker) GetExport(id string) (Record, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	record, ok := w.jobs[id]
	if !ok {
		return Record{}, false
	}
	return record.copy(), true
}

func (w *Worker) process(task exportTask) {
	w.updateStatus(task.id, StatusRunning)
	artifacts := make([]Artifact, 0, len(task.input.Formats))
	written := make(map[string]struct{}, len(task.input.Formats))
	for _, format := range task.input.Formats {
		payload, err := materialize(format, task.input)
		if err != nil {
			w.fail(task.id, err.Error())
			return
		}
		key := Key(task.input.Release, task.input.Species, format)
		info, err := w.store.Put(w.ctx, key, bytes.NewReader(payload), blobcore.PutOptions{
			ContentType: contentTypes[format],
			Overwrite:   true,
			Metadata: map[string]string{
				"run_id":  task.input.RunID,
				"species": task.input.Species,
			},
		})
		if err != nil {
			w.fail(task.id, fmt.Sprintf("store artifact failed: %v", err))
			return
		}
		artifacts = append(artifacts, Artifact{
			Key:         key,
			Format:      format,
			ContentType: contentTypes[format],
			SizeBytes:   int64(len(payload)),
			Rows:        len(task.input.Rows),
			ETag:        info.ETag,
			CreatedAt:   time.Now().UTC(),
		})
		written[key] = struct{}{}
	}
	w.prune(task.input, written)
	w.complete(task.id, artifacts)
}

// prune removes artifacts an earlier export left under the species prefix
// that this export did not rewrite.
func (w *Worker) prune(input Input, written map[string]struct{}) {
	prefix := Prefix(input.Release, input.Species)
	infos, err := w.store.List(w.ctx, prefix)
	if err != nil {
		w.log.Warn(w.ctx, "list stale exports", logging.String("prefix", prefix), logging.Err(err))
		return
	}
	for _, info := range infos {
		if _, ok := written[info.Key]; ok {
			continue
		}
		if _, err := w.store.Delete(w.ctx, info.Key); err != nil {
			w.log.Warn(w.ctx, "delete stale export", logging.String("key", info.Key), logging.Err(err))
			continue
		}
		w.log.Debug(w.ctx, "stale export removed", logging.String("key", info.Key))
	}
}

func (w *Worker) updateStatus(id string, status Status) {
	w.mu.Lock()
	if record, ok := w.jobs[id]; ok {
		record.Status = status
		record.UpdatedAt = time.Now().UTC()
	}
	w.mu.Unlock()
}

func (w *Worker) complete(id string, artifacts []Artifact) {
	now := time.Now().UTC()
	w.mu.Lock()
	if record, ok := w.jobs[id]; ok {
		record.Status = StatusSucceeded
		record.Error = ""
		record.Artifacts = artifacts
		record.UpdatedAt = now
		record.CompletedAt = &now
	}
	w.mu.Unlock()
	w.log.Info(w.ctx, "export written", logging.String("export_id", id), logging.Int("artifacts", len(artifacts)))
}

func (w *Worker) fail(id, reason string) {
	now := time.Now().UTC()
	w.mu.Lock()
	if record, ok := w.jobs[id]; ok {
		record.Status = StatusFailed
		record.Error = reason
		record.UpdatedAt = now
		record.CompletedAt = &now
	}
	w.mu.Unlock()
	w.log.Warn(w.ctx, "export failed", logging.String("export_id", id), logging.String("error", reason))
}

var csvHeader = []string{"source_id", "species", "target_id", "kind", "mocked"}

func materialize(format Format, input Input) ([]byte, error) {
	switch format {
	case FormatJSON:
		payload, err := json.Marshal(struct {
			RunID   string                   `json:"run_id"`
			Release string                   `json:"release"`
			Species string                   `json:"species"`
			Rows    []domain.InferenceRecord `json:"rows"`
		}{input.RunID, input.Release, input.SpeciesName, input.Rows})
		if err != nil {
			return nil, fmt.Errorf("marshal json: %w", err)
		}
		return payload, nil
	case FormatCSV:
		buf := &bytes.Buffer{}
		writer := csv.NewWriter(buf)
		if err := writer.Write(csvHeader); err != nil {
			return nil, err
		}
		for _, row := range input.Rows {
			if err := writer.Write([]string{
				row.Source.String(),
				row.Species,
				row.Target.String(),
				row.Kind,
				strconv.FormatBool(row.Mocked),
			}); err != nil {
				return nil, err
			}
		}
		writer.Flush()
		if err := writer.Error(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unsupported export format %s", format)
	}
}

func (r Record) copy() Record {
	dup := r
	dup.Formats = append([]Format(nil), r.Formats...)
	if len(r.Artifacts) > 0 {
		dup.Artifacts = append([]Artifact(nil), r.Artifacts...)
	}
	if r.CompletedAt != nil {
		at := *r.CompletedAt
		dup.CompletedAt = &at
	}
	return dup
}
