// Package scheduler triggers ingest, clustering and risk runs on cron
// schedules so a deployment does not depend on an outside caller.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rajasatyajit/IssueRadar/config"
	apperrors "github.com/rajasatyajit/IssueRadar/internal/errors"
	"github.com/rajasatyajit/IssueRadar/internal/logger"
	"github.com/rajasatyajit/IssueRadar/internal/models"
)

// Job runs one pass for a single organization
type Job func(ctx context.Context, organizationID string) error

// OrganizationLister resolves which organizations a tick covers
type OrganizationLister interface {
	GetOrganization(ctx context.Context, id string) (*models.Organization, error)
	ListOrganizations(ctx context.Context) ([]models.Organization, error)
}

// Scheduler owns a cron instance and the jobs registered on it
type Scheduler struct {
	cron   *cron.Cron
	orgs   OrganizationLister
	org    string
	parser cron.Parser

	mu      sync.Mutex
	jobs    map[string]Job
	entries map[string]cron.EntryID
	ctx     context.Context
	cancel  context.CancelFunc
}

// New creates a scheduler. When cfg.Organization is set every job runs for
// that organization only; otherwise each tick fans out over all of them.
func New(orgs OrganizationLister, cfg config.SchedulerConfig) *Scheduler {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	cl := cronLogger{}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		orgs:    orgs,
		org:     cfg.Organization,
		parser:  parser,
		jobs:    make(map[string]Job),
		entries: make(map[string]cron.EntryID),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Add registers job under name. An empty spec disables the job.
func (s *Scheduler) Add(name, spec string, job Job) error {
	if spec == "" {
		logger.Info("Scheduled job disabled", "job", name)
		return nil
	}
	schedule, err := s.parser.Parse(spec)
	if err != nil {
		return fmt.Errorf("failed to parse schedule for %s: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %s already registered", name)
	}
	s.jobs[name] = job
	s.entries[name] = s.cron.Schedule(schedule, cron.FuncJob(func() {
		_ = s.RunJob(s.ctx, name)
	}))

	logger.Info("Job scheduled", "job", name, "schedule", spec, "next_run", schedule.Next(time.Now()).Format(time.RFC3339))
	return nil
}

// Jobs returns the registered job names mapped to their next run time
func (s *Scheduler) Jobs() map[string]time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]time.Time, len(s.entries))
	for name, id := range s.entries {
		out[name] = s.cron.Entry(id).Next
	}
	return out
}

// RunJob executes the named job once over the target organizations. A failing
// organization does not stop the others; all failures are returned together.
func (s *Scheduler) RunJob(ctx context.Context, name string) error {
	s.mu.Lock()
	job, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown job: %s", name)
	}

	ctx = logger.ContextWithTraceID(ctx, fmt.Sprintf("%s-%d", name, time.Now().UnixNano()))
	log := logger.WithContext(ctx).With("job", name)

	orgIDs, err := s.targets(ctx)
	if err != nil {
		log.Error("Scheduled job could not resolve organizations", "error", err)
		return err
	}

	var errs apperrors.MultiError
	for _, id := range orgIDs {
		start := time.Now()
		if err := job(ctx, id); err != nil {
			log.Error("Scheduled job failed", "organization_id", id, "error", err)
			errs.Add(fmt.Errorf("%s for %s: %w", name, id, err))
			continue
		}
		log.Info("Scheduled job completed", "organization_id", id, "duration", time.Since(start))
	}
	return errs.ErrOrNil()
}

func (s *Scheduler) targets(ctx context.Context) ([]string, error) {
	if s.org != "" {
		if _, err := s.orgs.GetOrganization(ctx, s.org); err != nil {
			return nil, fmt.Errorf("scheduled organization %s: %w", s.org, err)
		}
		return []string{s.org}, nil
	}
	orgs, err := s.orgs.ListOrganizations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	ids := make([]string, 0, len(orgs))
	for _, o := range orgs {
		ids = append(ids, o.ID)
	}
	return ids, nil
}

// Start begins firing jobs in the background
func (s *Scheduler) Start() {
	s.cron.Start()
	for name, next := range s.Jobs() {
		logger.Info("Scheduler started job", "job", name, "next_run", next.Format(time.RFC3339))
	}
}

// Stop halts the cron loop and cancels in-flight jobs once ctx expires
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		logger.Warn("Scheduler stop timed out, cancelling running jobs")
	}
	s.cancel()
}

// cronLogger routes cron's own logging through the application logger
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logger.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
