package types

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
)

// JobFunc is a scheduled job. The context is cancelled on timeout or shutdown.
type JobFunc func(ctx context.Context) error

type CronManager interface {
	LifecycleManager
	Add(jobName, spec string, job JobFunc) error
	Remove(jobName string) error
	Run(jobName string) error
	Jobs() []JobInfo
}

type JobEntry struct {
	ID            cron.EntryID
	Name          string
	Spec          string
	Job           JobFunc
	AddedAt       time.Time
	LastRun       time.Time
	NextRun       time.Time
	LastDuration  time.Duration
	TotalDuration time.Duration
	RunCount      int64
	Error         error
}

type JobInfo struct {
	Name         string        `json:"name"`
	Spec         string        `json:"spec"`
	LastRun      time.Time     `json:"last_run"`
	NextRun      time.Time     `json:"next_run"`
	LastDuration time.Duration `json:"last_duration"`
	AvgDuration  time.Duration `json:"avg_duration"`
	RunCount     int64         `json:"run_count"`
	LastError    string        `json:"last_error,omitempty"`
}
