package cron

import "github.com/ZaynJarvis/vikingbot/pkg/session"

// Schedule describes when a job fires: a fixed time ("at"), a fixed
// interval ("every"), or a cron expression ("cron").
type Schedule struct {
	Kind    string `json:"kind"`
	AtMs    int64  `json:"atMs,omitempty"`
	EveryMs int64  `json:"everyMs,omitempty"`
	Expr    string `json:"expr,omitempty"`
	Tz      string `json:"tz,omitempty"`
}

// Payload is what a due job delivers back into the agent.
type Payload struct {
	Kind       string      `json:"kind"` // system_event, agent_turn
	Message    string      `json:"message"`
	Deliver    bool        `json:"deliver"`
	SessionKey session.Key `json:"sessionKey"`
}

// JobState is runtime state.
type JobState struct {
	NextRunAtMs int64  `json:"nextRunAtMs,omitempty"`
	LastRunAtMs int64  `json:"lastRunAtMs,omitempty"`
	LastStatus  string `json:"lastStatus,omitempty"` // ok, error, skipped
	LastError   string `json:"lastError,omitempty"`
}

// Job is one scheduled job.
type Job struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Enabled        bool     `json:"enabled"`
	Schedule       Schedule `json:"schedule"`
	Payload        Payload  `json:"payload"`
	State          JobState `json:"state"`
	CreatedAtMs    int64    `json:"createdAtMs"`
	UpdatedAtMs    int64    `json:"updatedAtMs"`
	DeleteAfterRun bool     `json:"deleteAfterRun"`
}

// Store is the persisted job list.
type Store struct {
	Version int   `json:"version"`
	Jobs    []Job `json:"jobs"`
}
