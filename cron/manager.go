package cron

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/saiset-co/catalog-service/types"
)

type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

// Manager schedules named jobs with second-precision cron specs. A job never
// overlaps with itself: a tick that fires while the previous run is still
// going is skipped.
type Manager struct {
	ctx             context.Context
	cancel          context.CancelFunc
	logger          types.Logger
	metrics         types.MetricsManager
	cron            *cron.Cron
	timezone        *time.Location
	jobs            map[string]*types.JobEntry
	running         map[string]bool
	state           atomic.Value
	mu              sync.RWMutex
	shutdownTimeout time.Duration
	jobTimeout      time.Duration
}

func NewManager(ctx context.Context, config types.ConfigManager, logger types.Logger, metrics types.MetricsManager) (*Manager, error) {
	timezone := time.UTC
	if cronConfig := config.GetConfig().Cron; cronConfig != nil && cronConfig.Timezone != "" {
		loc, err := time.LoadLocation(cronConfig.Timezone)
		if err != nil {
			logger.Warn("Unknown cron timezone, using UTC", zap.String("timezone", cronConfig.Timezone))
		} else {
			timezone = loc
		}
	}

	cronOptions := []cron.Option{
		cron.WithLocation(timezone),
		cron.WithSeconds(),
		cron.WithChain(cron.Recover(cronLogger{logger: logger})),
	}

	managerCtx, cancel := context.WithCancel(ctx)

	manager := &Manager{
		ctx:             managerCtx,
		cancel:          cancel,
		logger:          logger,
		metrics:         metrics,
		cron:            cron.New(cronOptions...),
		timezone:        timezone,
		jobs:            make(map[string]*types.JobEntry),
		running:         make(map[string]bool),
		shutdownTimeout: 10 * time.Second,
		jobTimeout:      5 * time.Minute,
	}

	manager.state.Store(StateStopped)

	return manager, nil
}

func (m *Manager) Add(jobName, spec string, job types.JobFunc) error {
	if jobName == "" {
		return types.ErrCronJobNameIsEmpty
	}

	if spec == "" {
		return types.ErrCronExpressionInvalid
	}

	if job == nil {
		return types.ErrCronJobIsNil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.jobs[jobName]; exists {
		return types.Errorf(types.ErrCronJobExists, "job: %s", jobName)
	}

	entryID, err := m.cron.AddFunc(spec, func() {
		_ = m.execute(jobName)
	})
	if err != nil {
		return types.Errorf(types.ErrCronExpressionInvalid, "%s: %v", spec, err)
	}

	entry := &types.JobEntry{
		ID:      entryID,
		Name:    jobName,
		Spec:    spec,
		Job:     job,
		AddedAt: time.Now(),
	}

	if cronEntry := m.cron.Entry(entryID); cronEntry.ID != 0 {
		entry.NextRun = cronEntry.Next
	}

	m.jobs[jobName] = entry

	m.logger.Info("Cron job added",
		zap.String("job_name", jobName),
		zap.String("spec", spec))

	return nil
}

func (m *Manager) Remove(jobName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.jobs[jobName]
	if !exists {
		return types.Errorf(types.ErrCronJobNotFound, "job: %s", jobName)
	}

	m.cron.Remove(entry.ID)
	delete(m.jobs, jobName)

	m.logger.Info("Cron job removed", zap.String("job_name", jobName))
	return nil
}

// Run executes a job immediately, outside its schedule.
func (m *Manager) Run(jobName string) error {
	return m.execute(jobName)
}

func (m *Manager) Jobs() []types.JobInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	infos := make([]types.JobInfo, 0, len(m.jobs))
	for _, entry := range m.jobs {
		info := types.JobInfo{
			Name:         entry.Name,
			Spec:         entry.Spec,
			LastRun:      entry.LastRun,
			NextRun:      entry.NextRun,
			LastDuration: entry.LastDuration,
			RunCount:     entry.RunCount,
		}
		if entry.RunCount > 0 {
			info.AvgDuration = entry.TotalDuration / time.Duration(entry.RunCount)
		}
		if entry.Error != nil {
			info.LastError = entry.Error.Error()
		}
		infos = append(infos, info)
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

func (m *Manager) Start() error {
	if !m.transitionState(StateStopped, StateStarting) {
		return types.ErrCronIsRunning
	}

	defer func() {
		if m.getState() == StateStarting {
			m.setState(StateRunning)
		}
	}()

	m.cron.Start()
	m.setSchedulerStatus(1)

	m.logger.Info("Cron manager started",
		zap.String("timezone", m.timezone.String()),
		zap.Int("jobs", len(m.Jobs())))
	return nil
}

func (m *Manager) Stop() error {
	if !m.transitionState(StateRunning, StateStopping) {
		return types.ErrCronIsNotRunning
	}

	defer m.setState(StateStopped)

	m.cancel()
	stopCtx := m.cron.Stop()

	select {
	case <-stopCtx.Done():
	case <-time.After(m.shutdownTimeout):
		m.logger.Warn("Cron manager stop timeout, some jobs may not have finished")
		return types.ErrCronJobTimeout
	}

	m.setSchedulerStatus(0)
	m.logger.Info("Cron scheduler stopped gracefully")
	return nil
}

func (m *Manager) IsRunning() bool {
	return m.getState() == StateRunning
}

func (m *Manager) getState() State {
	return m.state.Load().(State)
}

func (m *Manager) setState(newState State) bool {
	currentState := m.getState()
	return m.state.CompareAndSwap(currentState, newState)
}

func (m *Manager) transitionState(from, to State) bool {
	return m.state.CompareAndSwap(from, to)
}

func (m *Manager) execute(jobName string) (err error) {
	m.mu.Lock()
	entry, exists := m.jobs[jobName]
	if !exists {
		m.mu.Unlock()
		return types.Errorf(types.ErrCronJobNotFound, "job: %s", jobName)
	}
	if m.running[jobName] {
		m.mu.Unlock()
		m.logger.Warn("Cron job skipped, previous run still active", zap.String("job_name", jobName))
		return types.Errorf(types.ErrCronJobFailed, "job %s is already running", jobName)
	}
	m.running[jobName] = true
	job := entry.Job
	m.mu.Unlock()

	startTime := time.Now()

	jobCtx, cancel := context.WithTimeout(m.ctx, m.jobTimeout)
	defer cancel()

	m.metricsGauge("cron_active_jobs").Inc()

	defer func() {
		if r := recover(); r != nil {
			err = types.Errorf(types.ErrCronJobFailed, "job panic: %v", r)
		}

		m.metricsGauge("cron_active_jobs").Dec()
		m.finish(jobName, startTime, err)
	}()

	m.logger.Debug("Cron job started", zap.String("job_name", jobName))

	if err = job(jobCtx); err == nil && jobCtx.Err() == context.DeadlineExceeded {
		err = types.Errorf(types.ErrCronJobTimeout, "timeout after %v", m.jobTimeout)
	}

	return err
}

func (m *Manager) finish(jobName string, startTime time.Time, err error) {
	duration := time.Since(startTime)

	m.mu.Lock()
	delete(m.running, jobName)
	if entry, exists := m.jobs[jobName]; exists {
		entry.LastRun = startTime
		entry.LastDuration = duration
		entry.TotalDuration += duration
		entry.RunCount++
		entry.Error = err

		if cronEntry := m.cron.Entry(entry.ID); cronEntry.ID != 0 {
			entry.NextRun = cronEntry.Next
		}
	}
	m.mu.Unlock()

	result := "success"
	if err != nil {
		result = "error"
	}

	if m.metrics != nil {
		m.metrics.Counter("cron_job_executions_total", map[string]string{
			"job_name": jobName,
			"result":   result,
		}).Inc()

		m.metrics.Histogram("cron_job_duration_seconds",
			[]float64{0.01, 0.1, 1.0, 10.0, 60.0, 300.0},
			map[string]string{"job_name": jobName},
		).Observe(duration.Seconds())
	}

	if err != nil {
		m.logger.Error("Cron job failed",
			zap.String("job_name", jobName),
			zap.Duration("duration", duration),
			zap.Error(err))
		return
	}

	m.logger.Debug("Cron job completed",
		zap.String("job_name", jobName),
		zap.Duration("duration", duration))
}

func (m *Manager) metricsGauge(name string) types.Gauge {
	if m.metrics == nil {
		return noopGauge{}
	}
	return m.metrics.Gauge(name, nil)
}

func (m *Manager) setSchedulerStatus(value float64) {
	m.metricsGauge("cron_scheduler_running").Set(value)
}

type noopGauge struct{}

func (noopGauge) Set(float64)  {}
func (noopGauge) Inc()         {}
func (noopGauge) Dec()         {}
func (noopGauge) Add(float64)  {}
func (noopGauge) Sub(float64)  {}
func (noopGauge) Get() float64 { return 0 }

// cronLogger adapts types.Logger to cron.Logger.
type cronLogger struct {
	logger types.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, toFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append(toFields(keysAndValues), zap.Error(err))...)
}

func toFields(keysAndValues []interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields = append(fields, zap.Any(fmt.Sprint(keysAndValues[i]), keysAndValues[i+1]))
	}
	return fields
}
