// Package pipeline runs the fetch → analyze → normalize → persist loop over
// the tracked entities and schedules it at every slot boundary.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/seenimoa/moodpulse/internal/logger"
	"github.com/seenimoa/moodpulse/internal/store"
	"github.com/seenimoa/moodpulse/pkg/models"
	"github.com/seenimoa/moodpulse/pkg/utils"
)

// Stages reported in models.EntityResult.Stage.
const (
	StageFetch     = "fetch"
	StageAnalyze   = "analyze"
	StageNormalize = "normalize"
	StageWrite     = "write"
)

// DefaultPacing is the minimum spacing between the starts of two model
// requests, sized to stay under a per-minute request quota.
const DefaultPacing = 65 * time.Second

// NewPacer returns a limiter that admits one model request per pacing
// interval. A non-positive pacing admits every request at once.
//
// The orchestrator takes a token before an entity's first request. Share the
// same limiter with the analyzer's retries (llm.WithRetryPacer) so that
// retried requests are spaced too and the next entity waits after them.
func NewPacer(pacing time.Duration) *rate.Limiter {
	limit := rate.Inf
	if pacing > 0 {
		limit = rate.Every(pacing)
	}
	return rate.NewLimiter(limit, 1)
}

// Fetcher returns the headlines of one feed.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]string, error)
}

// Analyzer returns the model's raw text for an entity's headlines.
type Analyzer interface {
	Analyze(ctx context.Context, entity models.EntityConfig, headlines []string) (string, error)
}

// NormalizeFunc turns raw model text into a complete record.
type NormalizeFunc func(entity models.EntityConfig, raw string) (models.AnalysisRecord, error)

// Store persists records and run artifacts. *store.FileStore implements it.
type Store interface {
	Load() (models.Store, error)
	Rebuild() (models.Store, error)
	WriteRecord(rec models.AnalysisRecord, slot utils.Slot) error
	WriteStore(st models.Store) error
	WriteReport(r *models.RunReport) error
}

// Publisher mirrors a finished run elsewhere. *store.Mirror implements it.
type Publisher interface {
	Publish(ctx context.Context, st models.Store, report *models.RunReport) error
}

// Config holds configuration for creating an Orchestrator.
type Config struct {
	Entities      []models.EntityConfig
	Fetcher       Fetcher
	Analyzer      Analyzer
	Normalize     NormalizeFunc
	Store         Store
	Mirror        Publisher // optional
	ScheduleHours []int
	Pacing        time.Duration    // 0 disables pacing; ignored when Pacer is set
	Pacer         *rate.Limiter    // optional, shared with the analyzer's retries
	Now           func() time.Time // defaults to time.Now
}

// Orchestrator processes the tracked entities strictly one at a time.
type Orchestrator struct {
	cfg   Config
	pacer *rate.Limiter
}

// NewOrchestrator validates cfg and creates an Orchestrator.
func NewOrchestrator(cfg Config) (*Orchestrator, error) {
	switch {
	case cfg.Fetcher == nil:
		return nil, errors.New("pipeline: fetcher is required")
	case cfg.Analyzer == nil:
		return nil, errors.New("pipeline: analyzer is required")
	case cfg.Normalize == nil:
		return nil, errors.New("pipeline: normalize func is required")
	case cfg.Store == nil:
		return nil, errors.New("pipeline: store is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	pacer := cfg.Pacer
	if pacer == nil {
		pacer = NewPacer(cfg.Pacing)
	}
	return &Orchestrator{cfg: cfg, pacer: pacer}, nil
}

// Entities returns the tracked entities in processing order.
func (o *Orchestrator) Entities() []models.EntityConfig {
	return o.cfg.Entities
}

// Run performs one pass over every tracked entity. Per-entity failures are
// recorded in the report and never stop the loop. The combined store is
// written even when ctx is cancelled mid-run; an error is returned only when
// that write fails.
func (o *Orchestrator) Run(ctx context.Context) (*models.RunReport, error) {
	started := o.cfg.Now()
	slot := utils.AlignSlot(started, o.cfg.ScheduleHours)
	runID := uuid.NewString()
	log := logger.Log.WithFields(logrus.Fields{"run": runID, "slot": slot.Label, "entities": len(o.cfg.Entities)})
	log.Info("run started")

	existing := o.loadExisting()

	queue := newTaskQueue(o.cfg.Entities)
	acc := newAccumulator()
	for t, ok := queue.next(); ok; t, ok = queue.next() {
		acc = acc.add(o.process(ctx, t, slot))
	}

	merged := store.Merge(existing, acc.updates, entityIDs(o.cfg.Entities))
	report := &models.RunReport{
		ID:         runID,
		Slot:       slot.Label,
		UpdatedAt:  slot.Timestamp,
		StartedAt:  started,
		FinishedAt: o.cfg.Now(),
		Results:    acc.results,
	}

	if err := o.cfg.Store.WriteStore(merged); err != nil {
		log.WithError(err).Error("writing combined store failed")
		return report, fmt.Errorf("pipeline: write store: %w", err)
	}
	if err := o.cfg.Store.WriteReport(report); err != nil {
		log.WithError(err).Warn("writing run report failed")
	}
	if o.cfg.Mirror != nil {
		// The mirror is best effort and still runs after cancellation.
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		if err := o.cfg.Mirror.Publish(pctx, merged, report); err != nil {
			log.WithError(err).Warn("mirroring run failed")
		}
		cancel()
	}

	log.WithFields(logrus.Fields{
		"updated":  report.Updated(),
		"failed":   report.Failed(),
		"stored":   len(merged),
		"duration": report.FinishedAt.Sub(started).Round(time.Second).String(),
	}).Info("run finished")
	return report, nil
}

func (o *Orchestrator) loadExisting() models.Store {
	existing, err := o.cfg.Store.Load()
	if err == nil {
		return existing
	}
	logger.Log.WithError(err).Warn("combined store unreadable, rebuilding from latest records")
	existing, err = o.cfg.Store.Rebuild()
	if err != nil {
		logger.Log.WithError(err).Error("rebuilding store failed, starting empty")
		return models.Store{}
	}
	return existing
}

// outcome is the result of processing one task.
type outcome struct {
	result models.EntityResult
	record *models.AnalysisRecord
}

func (o *Orchestrator) process(ctx context.Context, t task, slot utils.Slot) outcome {
	e := t.entity
	log := logger.Entity(e.ID).WithField("task", fmt.Sprintf("%d/%d", t.index+1, t.total))
	res := models.EntityResult{EntityID: e.ID, Status: models.StatusFailed}

	fail := func(stage string, err error) outcome {
		res.Stage, res.Error = stage, err.Error()
		log.WithField("stage", stage).WithError(err).Warn("entity not updated, keeping previous data")
		return outcome{result: res}
	}

	if err := ctx.Err(); err != nil {
		return fail(StageFetch, err)
	}

	headlines, err := o.cfg.Fetcher.Fetch(ctx, e.FeedURL)
	if err != nil {
		return fail(StageFetch, err)
	}
	res.Headlines = len(headlines)
	log.WithField("headlines", len(headlines)).Debug("feed fetched")

	// Only entities that reach the model consume a pacing slot.
	if err := o.pacer.Wait(ctx); err != nil {
		return fail(StageAnalyze, err)
	}
	raw, err := o.cfg.Analyzer.Analyze(ctx, e, headlines)
	if err != nil {
		return fail(StageAnalyze, err)
	}

	rec, err := o.cfg.Normalize(e, raw)
	if err != nil {
		return fail(StageNormalize, err)
	}
	rec.EntityID = e.ID
	rec.UpdatedAt = slot.Timestamp

	if err := o.cfg.Store.WriteRecord(rec, slot); err != nil {
		return fail(StageWrite, err)
	}

	res.Status = models.StatusUpdated
	log.WithFields(logrus.Fields{"mood": rec.Mood, "intensity": rec.Intensity}).Info("entity updated")
	return outcome{result: res, record: &rec}
}

// ── Task queue & accumulator ──

type task struct {
	index  int
	total  int
	entity models.EntityConfig
}

// taskQueue hands out tasks one at a time in configuration order.
type taskQueue struct {
	tasks []task
}

func newTaskQueue(entities []models.EntityConfig) *taskQueue {
	q := &taskQueue{tasks: make([]task, len(entities))}
	for i, e := range entities {
		q.tasks[i] = task{index: i, total: len(entities), entity: e}
	}
	return q
}

func (q *taskQueue) next() (task, bool) {
	if len(q.tasks) == 0 {
		return task{}, false
	}
	t := q.tasks[0]
	q.tasks = q.tasks[1:]
	return t, true
}

// accumulator collects a run's updates and per-entity results.
type accumulator struct {
	updates models.Store
	results []models.EntityResult
}

func newAccumulator() accumulator {
	return accumulator{updates: models.Store{}}
}

func (a accumulator) add(o outcome) accumulator {
	if o.record != nil {
		a.updates[o.record.EntityID] = *o.record
	}
	a.results = append(a.results, o.result)
	return a
}

func entityIDs(entities []models.EntityConfig) []string {
	ids := make([]string, len(entities))
	for i, e := range entities {
		ids[i] = e.ID
	}
	return ids
}
