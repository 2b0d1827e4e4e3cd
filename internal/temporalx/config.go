package temporalx

import (
	"strings"
	"time"
)

const (
	DefaultNamespace = "teachback"
	DefaultTaskQueue = "teachback-turns"
)

// Config describes how to reach the Temporal frontend. An empty Address
// disables the remote platform.
type Config struct {
	Address   string
	Namespace string
	TaskQueue string

	DialTimeout time.Duration
	DialMaxWait time.Duration
	Backoff     time.Duration
	BackoffMax  time.Duration

	// ActivityTimeout bounds one model call inside a workflow.
	ActivityTimeout time.Duration

	// WorkerConcurrency caps concurrent activity and workflow tasks.
	WorkerConcurrency int
}

func DefaultConfig() Config {
	return Config{
		Namespace:         DefaultNamespace,
		TaskQueue:         DefaultTaskQueue,
		DialTimeout:       5 * time.Second,
		DialMaxWait:       30 * time.Second,
		Backoff:           250 * time.Millisecond,
		BackoffMax:        5 * time.Second,
		ActivityTimeout:   45 * time.Second,
		WorkerConcurrency: 4,
	}
}

func (c Config) Enabled() bool {
	return strings.TrimSpace(c.Address) != ""
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	c.Address = strings.TrimSpace(c.Address)
	c.Namespace = stringsOr(c.Namespace, d.Namespace)
	c.TaskQueue = stringsOr(c.TaskQueue, d.TaskQueue)
	if c.DialTimeout <= 0 {
		c.DialTimeout = d.DialTimeout
	}
	if c.DialMaxWait < 0 {
		c.DialMaxWait = 0
	}
	if c.Backoff <= 0 {
		c.Backoff = d.Backoff
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = d.BackoffMax
	}
	if c.ActivityTimeout <= 0 {
		c.ActivityTimeout = d.ActivityTimeout
	}
	if c.WorkerConcurrency < 1 {
		c.WorkerConcurrency = d.WorkerConcurrency
	}
	return c
}

func stringsOr(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return strings.TrimSpace(v)
}

func clampBackoff(base, max time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = 250 * time.Millisecond
	}
	sleep := base
	for i := 1; i < attempt; i++ {
		sleep *= 2
		if max > 0 && sleep >= max {
			return max
		}
	}
	if max > 0 && sleep > max {
		return max
	}
	return sleep
}
