package engine

import "time"

const (
	DefaultTurnTimeout       = 60 * time.Second
	DefaultRemoteCallTimeout = 20 * time.Second
	DefaultEnrichTimeout     = 10 * time.Second
	DefaultAnalyticsCadence  = 5
	DefaultPersistQueueSize  = 64
)

// Config tunes the turn pipeline. Zero fields take the defaults above.
type Config struct {
	// TurnTimeout bounds one SubmitTurn call end to end.
	TurnTimeout time.Duration

	// RemoteCallTimeout bounds each remote platform call.
	RemoteCallTimeout time.Duration

	// EnrichTimeout is the enrichment hard timeout. It should be shorter
	// than TurnTimeout.
	EnrichTimeout time.Duration

	AnalyticsCadence int
	PersistQueueSize int
}

func DefaultConfig() Config {
	return Config{
		TurnTimeout:       DefaultTurnTimeout,
		RemoteCallTimeout: DefaultRemoteCallTimeout,
		EnrichTimeout:     DefaultEnrichTimeout,
		AnalyticsCadence:  DefaultAnalyticsCadence,
		PersistQueueSize:  DefaultPersistQueueSize,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.TurnTimeout <= 0 {
		c.TurnTimeout = d.TurnTimeout
	}
	if c.RemoteCallTimeout <= 0 {
		c.RemoteCallTimeout = d.RemoteCallTimeout
	}
	if c.EnrichTimeout <= 0 {
		c.EnrichTimeout = d.EnrichTimeout
	}
	if c.AnalyticsCadence <= 0 {
		c.AnalyticsCadence = d.AnalyticsCadence
	}
	if c.PersistQueueSize <= 0 {
		c.PersistQueueSize = d.PersistQueueSize
	}
	return c
}
