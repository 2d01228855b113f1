// Package monitor is the polling loop. It registers the health, digest,
// policy and report tasks with a scheduler and ticks it at a fixed
// cadence, one task and one instance at a time.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"grimm.is/opnwatch/internal/audit"
	"grimm.is/opnwatch/internal/clock"
	"grimm.is/opnwatch/internal/config"
	"grimm.is/opnwatch/internal/health"
	"grimm.is/opnwatch/internal/i18n"
	"grimm.is/opnwatch/internal/logging"
	"grimm.is/opnwatch/internal/metrics"
	"grimm.is/opnwatch/internal/notification"
	"grimm.is/opnwatch/internal/opnsense"
	"grimm.is/opnwatch/internal/policy"
	"grimm.is/opnwatch/internal/report"
	"grimm.is/opnwatch/internal/scheduler"
)

// Task identifiers, in the order they run within a tick.
const (
	TaskHealth = "health"
	TaskDigest = "digest"
	TaskPolicy = "policy"
	TaskReport = "report"
	TaskPrune  = "prune"
)

const pruneEvery = 24 * time.Hour

// ErrExit is returned by Run after a recovered panic when on_error is "exit".
var ErrExit = errors.New("stopping after unexpected error")

// Journal records what the loop did. *audit.Store implements it.
type Journal interface {
	Write(ctx context.Context, evt audit.Event) error
	Prune(ctx context.Context) (int64, error)
}

// Options carries the optional collaborators of a Service.
type Options struct {
	Clock   clock.Clock
	Logger  *logging.Logger
	Metrics *metrics.Registry
	Tracker *health.Tracker
	Journal Journal
}

type instance struct {
	cfg config.Instance
	api API
}

// Service runs the polling loop for every configured instance.
type Service struct {
	cfg        *config.Config
	instances  []instance
	sender     notification.Sender
	formatter  *report.Formatter
	schedule   policy.Schedule
	reconciler *policy.Reconciler
	sched      *scheduler.Scheduler
	clock      clock.Clock
	logger     *logging.Logger
	metrics    *metrics.Registry
	tracker    *health.Tracker
	journal    Journal

	// Owned by the loop goroutine.
	memory        policy.Memory
	policyFailing map[string]bool
	lastDigest    time.Time
}

// New wires a Service. apis must hold a client for every instance in cfg.
func New(cfg *config.Config, apis map[string]API, sender notification.Sender, opts Options) (*Service, error) {
	if opts.Clock == nil {
		opts.Clock = &clock.RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewRegistry()
	}
	if opts.Tracker == nil {
		opts.Tracker = health.NewTracker(opts.Clock)
	}

	s := &Service{
		cfg:           cfg,
		sender:        sender,
		formatter:     report.NewFormatter(i18n.Lookup(cfg.Report.Language), cfg.Report.FooterText, cfg.Report.FooterURL),
		schedule:      policy.ScheduleFromConfig(cfg.Policy),
		clock:         opts.Clock,
		logger:        opts.Logger.WithComponent("monitor"),
		metrics:       opts.Metrics,
		tracker:       opts.Tracker,
		journal:       opts.Journal,
		memory:        policy.Memory{},
		policyFailing: make(map[string]bool),
	}

	for _, inst := range cfg.Instances {
		api, ok := apis[inst.Name]
		if !ok {
			return nil, fmt.Errorf("no API client for instance %q", inst.Name)
		}
		s.instances = append(s.instances, instance{cfg: inst, api: api})
	}

	reg := s.metrics
	s.sched = scheduler.New(opts.Logger,
		scheduler.WithClock(opts.Clock),
		scheduler.WithObserver(func(id string, err error, elapsed time.Duration) {
			reg.RecordTask(id, err, elapsed)
		}),
	)

	iv := cfg.Intervals
	tasks := []*scheduler.Task{
		{ID: TaskHealth, Name: "Gateway health", Schedule: scheduler.Every(iv.HealthEvery), Func: s.checkHealth},
	}
	if iv.DigestEvery > 0 {
		tasks = append(tasks, &scheduler.Task{ID: TaskDigest, Name: "All-clear digest", Schedule: scheduler.Every(iv.HealthEvery), Func: s.sendDigest})
	}
	if cfg.Mode == config.ModeControl {
		s.reconciler = policy.NewReconciler(cfg.Policy.BlockedContent, cfg.Policy.AllowedContent, opts.Logger.WithComponent("policy"))
		tasks = append(tasks,
			&scheduler.Task{ID: TaskPolicy, Name: "Alias policy", Schedule: scheduler.Every(iv.PolicyEvery), Func: s.applyPolicy},
			&scheduler.Task{ID: TaskReport, Name: "Periodic report", Schedule: scheduler.Every(iv.ReportEvery), Func: s.SendReports},
		)
	}
	if s.journal != nil {
		tasks = append(tasks, &scheduler.Task{ID: TaskPrune, Name: "Journal retention", Schedule: scheduler.Every(pruneEvery), Func: s.pruneJournal})
	}
	for _, t := range tasks {
		t.Enabled = true
		if err := s.sched.AddTask(t); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Scheduler exposes the task scheduler (status endpoint).
func (s *Service) Scheduler() *scheduler.Scheduler {
	return s.sched
}

// Tracker exposes the latest health results.
func (s *Service) Tracker() *health.Tracker {
	return s.tracker
}

// Memory returns a copy of the applied-state memory.
func (s *Service) Memory() policy.Memory {
	out := make(policy.Memory, len(s.memory))
	for k, v := range s.memory {
		out[k] = v
	}
	return out
}

// Desired returns the policy state for t in the configured timezone.
func (s *Service) Desired(t time.Time) policy.State {
	if loc := s.cfg.Policy.Location; loc != nil {
		t = t.In(loc)
	}
	return s.schedule.Desired(t)
}

// Run ticks until ctx is cancelled. It returns nil on cancellation and
// ErrExit when an unexpected failure occurs with on_error = "exit".
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info("monitor started",
		"mode", s.cfg.Mode,
		"instances", len(s.instances),
		"tick", s.cfg.Intervals.TickEvery)

	for {
		if ctx.Err() != nil {
			break
		}
		if err := s.Tick(ctx); err != nil {
			return err
		}
		if err := s.clock.Sleep(ctx, s.cfg.Intervals.TickEvery); err != nil {
			break
		}
	}

	s.logger.Info("monitor stopped")
	return nil
}

// Tick runs the due tasks once. A panic is recovered, logged, counted and
// notified; the on_error policy decides whether it ends the loop.
func (s *Service) Tick(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = s.handlePanic(ctx, r)
		}
	}()

	if err := s.sched.Tick(ctx, s.clock.Now()); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// RunTask runs one task now, outside its schedule, and returns its status.
// A panic is handled as in Tick.
func (s *Service) RunTask(ctx context.Context, id string) (status scheduler.TaskStatus, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = s.handlePanic(ctx, r)
			status, _ = s.sched.GetTaskStatus(id)
		}
	}()

	if _, ok := s.sched.GetTaskStatus(id); !ok {
		return status, fmt.Errorf("no task %q in %s mode", id, s.cfg.Mode)
	}
	err = s.sched.RunTask(ctx, id)
	status, _ = s.sched.GetTaskStatus(id)
	return status, err
}

func (s *Service) handlePanic(ctx context.Context, r any) error {
	perr := fmt.Errorf("%v", r)
	s.metrics.Panics.Inc()
	s.logger.Error("unexpected error in polling loop",
		"critical", true,
		"error", perr,
		"stack", string(debug.Stack()))

	// The loop context may already be gone; the notice should still go out.
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	s.record(sendCtx, audit.Event{
		Action:  audit.ActionPanic,
		Outcome: "recovered",
		Details: map[string]any{"error": perr.Error()},
	})
	s.notify(sendCtx, notification.Notification{
		Title:   "opnwatch critical error",
		Message: s.formatter.FormatCritical(perr),
		Level:   notification.LevelCritical,
	})

	if s.cfg.OnError == config.OnErrorExit {
		return fmt.Errorf("%w: %v", ErrExit, perr)
	}
	return nil
}

func (s *Service) record(ctx context.Context, evt audit.Event) {
	if s.journal == nil {
		return
	}
	if err := s.journal.Write(ctx, evt); err != nil {
		s.logger.Warn("journal write failed", "action", evt.Action, "error", err)
	}
}

func (s *Service) pruneJournal(ctx context.Context) error {
	removed, err := s.journal.Prune(ctx)
	if err != nil {
		return err
	}
	if removed > 0 {
		s.logger.Info("journal pruned", "removed", removed)
	}
	return nil
}

func (s *Service) notify(ctx context.Context, n notification.Notification) {
	if s.sender == nil {
		return
	}
	if err := s.sender.Send(ctx, n); err != nil {
		s.logger.Warn("notification not delivered", "title", n.Title, "instance", n.Instance, "error", err)
	}
}

// checkHealth fetches gateway status for every instance and alerts
// immediately on problems.
func (s *Service) checkHealth(ctx context.Context) error {
	log := s.logger.WithFields(map[string]any{"task": TaskHealth, "run_id": scheduler.RunID(ctx)})
	threshold := s.cfg.Health.HighPingThreshold()
	healthLog := s.logger.WithComponent("health")

	var errs []error
	for _, inst := range s.instances {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		name := inst.cfg.DisplayName()

		status, err := inst.api.GatewayStatus(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			log.Warn("gateway status unavailable", "instance", name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			status = nil
		}

		rep := health.Evaluate(status, threshold, healthLog.WithFields(map[string]any{"instance": name}))
		s.tracker.Record(inst.cfg.Name, rep)
		s.metrics.RecordHealth(inst.cfg.Name, len(rep.Problems), s.clock.Now())
		s.metrics.ObserveGateways(inst.cfg.Name, status)

		if !rep.HasProblem {
			log.Debug("instance healthy", "instance", name)
			continue
		}

		problems := rep.Problems
		if err != nil && s.cfg.Health.ProbeEnabled() && !errors.Is(err, context.Canceled) {
			problems = append(problems, probeLine(ctx, inst.cfg.URL))
		}

		log.Warn("sending health alert", "instance", name, "problems", len(problems))
		s.record(ctx, audit.Event{
			Instance: inst.cfg.Name,
			Action:   audit.ActionHealthAlert,
			Outcome:  fmt.Sprintf("%d problem(s)", len(problems)),
			Details:  map[string]any{"problems": problems},
		})
		s.notify(ctx, notification.Notification{
			Title:    "Firewall health alert",
			Message:  s.formatter.FormatAlert(name, problems),
			Level:    notification.LevelWarning,
			Instance: inst.cfg.Name,
			Urgent:   true,
		})
	}
	return errors.Join(errs...)
}

// sendDigest sends the all-clear message when the latest health pass was
// clean everywhere and the digest interval has elapsed.
func (s *Service) sendDigest(ctx context.Context) error {
	if !s.tracker.AllClear() {
		return nil
	}
	now := s.clock.Now()
	if !s.lastDigest.IsZero() && now.Sub(s.lastDigest) < s.cfg.Intervals.DigestEvery {
		s.logger.Debug("all clear, digest not due",
			"next_in", s.cfg.Intervals.DigestEvery-now.Sub(s.lastDigest))
		return nil
	}

	s.logger.Info("all firewalls healthy, sending digest")
	s.notify(ctx, notification.Notification{
		Title:   "Status report",
		Message: s.formatter.FormatAllClear(s.cfg.Intervals.HealthEvery),
		Level:   notification.LevelInfo,
	})
	s.lastDigest = now
	return nil
}

// applyPolicy reconciles every instance towards the scheduled state.
func (s *Service) applyPolicy(ctx context.Context) error {
	desired := s.Desired(s.clock.Now())
	log := s.logger.WithFields(map[string]any{"task": TaskPolicy, "run_id": scheduler.RunID(ctx)})
	log.Debug("policy evaluation", "desired", desired)

	var errs []error
	for _, inst := range s.instances {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		name := inst.cfg.DisplayName()
		target := policy.Target{
			ID:        inst.cfg.Name,
			Name:      name,
			AliasName: inst.cfg.AliasName,
			API:       inst.api,
		}

		outcome, err := s.reconciler.Reconcile(ctx, target, desired, s.memory)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.metrics.RecordReconcile(inst.cfg.Name, outcome.String(), int(desired), int(s.memory.Current(inst.cfg.Name)))

		switch {
		case err != nil:
			errs = append(errs, err)
			if !s.policyFailing[inst.cfg.Name] {
				s.policyFailing[inst.cfg.Name] = true
				s.record(ctx, audit.Event{
					Instance: inst.cfg.Name,
					Action:   audit.ActionPolicyFailed,
					Outcome:  outcome.String(),
					Details:  map[string]any{"desired": desired.String(), "error": err.Error()},
				})
				s.notify(ctx, notification.Notification{
					Title:    "Policy not applied",
					Message:  s.formatter.FormatPolicyFailure(name, desired.String(), err),
					Level:    notification.LevelWarning,
					Instance: inst.cfg.Name,
				})
			}
		case outcome == policy.OutcomeUpdated:
			delete(s.policyFailing, inst.cfg.Name)
			s.record(ctx, audit.Event{
				Instance: inst.cfg.Name,
				Action:   audit.ActionPolicyApplied,
				Outcome:  desired.String(),
				Details:  map[string]any{"alias": inst.cfg.AliasName, "content": s.reconciler.Content(desired)},
			})
			s.notify(ctx, notification.Notification{
				Title:    "Policy applied",
				Message:  s.formatter.FormatPolicyChange(name, desired.String()),
				Level:    notification.LevelInfo,
				Instance: inst.cfg.Name,
			})
		default:
			delete(s.policyFailing, inst.cfg.Name)
		}
	}
	return errors.Join(errs...)
}

// SendReports formats and sends the periodic report of every instance,
// pausing between instances.
func (s *Service) SendReports(ctx context.Context) error {
	for i, inst := range s.instances {
		if i > 0 && s.cfg.Intervals.SpacingWait > 0 {
			if err := s.clock.Sleep(ctx, s.cfg.Intervals.SpacingWait); err != nil {
				return err
			}
		}
		msg := s.RenderReport(ctx, inst.cfg.Name)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.notify(ctx, notification.Notification{
			Title:    "Firewall report",
			Message:  msg,
			Level:    notification.LevelInfo,
			Instance: inst.cfg.Name,
		})
	}
	return nil
}

// RenderReport collects the report data of one instance and formats it.
// Failed fetches omit their section.
func (s *Service) RenderReport(ctx context.Context, name string) string {
	var inst *instance
	for i := range s.instances {
		if s.instances[i].cfg.Name == name {
			inst = &s.instances[i]
			break
		}
	}
	if inst == nil {
		return ""
	}

	display := inst.cfg.DisplayName()
	log := s.logger.WithFields(map[string]any{"instance": display})
	log.Info("collecting report data")

	in := report.Input{Name: display}
	var err error

	if in.Activity, err = inst.api.Activity(ctx); err != nil {
		log.Warn("activity unavailable", "error", err)
	}
	if in.Temperatures, err = inst.api.Temperatures(ctx); err != nil {
		log.Warn("temperatures unavailable", "error", err)
	}
	if in.Traffic, err = inst.api.Traffic(ctx); err != nil {
		log.Warn("traffic unavailable", "error", err)
	}
	var gw *opnsense.GatewayStatus
	if gw, err = inst.api.GatewayStatus(ctx); err != nil {
		log.Warn("gateway status unavailable", "error", err)
	}
	in.Gateways = gw

	s.metrics.ObserveActivity(inst.cfg.Name, in.Activity)
	s.metrics.ObserveTraffic(inst.cfg.Name, in.Traffic)
	s.metrics.ObserveGateways(inst.cfg.Name, in.Gateways)
	if avg, ok := report.AverageCPUTemperature(in.Temperatures); ok {
		s.metrics.ObserveTemperature(inst.cfg.Name, avg)
	}

	return s.formatter.Format(in)
}
