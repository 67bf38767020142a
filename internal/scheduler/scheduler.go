package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"

	"IndexForge/internal/model"
	"IndexForge/internal/pipeline"
	"IndexForge/internal/report"

	"github.com/robfig/cron/v3"
)

// Scheduler drives refresh pipelines on a cron schedule. Each registered
// index runs independently; the orchestrator's run-lock keeps runs for one
// index from interleaving.
type Scheduler struct {
	Cron *cron.Cron
	Ctx  context.Context

	orchestrators []*pipeline.Orchestrator
}

// NewScheduler creates a Scheduler.
func NewScheduler(ctx context.Context) *Scheduler {
	return &Scheduler{
		Cron: cron.New(cron.WithSeconds()),
		Ctx:  ctx,
	}
}

// Register adds a refresh job for one index on the given cron spec.
func (s *Scheduler) Register(refreshCron string, o *pipeline.Orchestrator) error {
	s.orchestrators = append(s.orchestrators, o)
	if _, err := s.Cron.AddFunc(refreshCron, func() { s.refresh(o) }); err != nil {
		return fmt.Errorf("register refresh task for %s: %w", o.Ctx.IndexID, err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Println("[INFO] scheduler started")
}

// Stop stops the cron scheduler gracefully.
func (s *Scheduler) Stop() {
	s.Cron.Stop()
	log.Println("[INFO] scheduler stopped")
}

// RunAllNow triggers every registered index immediately (manual trigger /
// RUN_ON_START).
func (s *Scheduler) RunAllNow() {
	for _, o := range s.orchestrators {
		s.refresh(o)
	}
}

func (s *Scheduler) refresh(o *pipeline.Orchestrator) {
	log.Printf("[INFO] scheduled refresh for index %s", o.Ctx.IndexID)
	summary, err := o.TriggerRefresh(s.Ctx)
	if errors.Is(err, model.ErrRunInProgress) {
		log.Printf("[WARN] refresh for %s already running, skipping", o.Ctx.IndexID)
		return
	}
	if err != nil {
		log.Printf("[ERROR] refresh for %s: %v", o.Ctx.IndexID, err)
	}
	if summary != nil {
		log.Print(report.FormatRunSummary(summary))
	}
}
