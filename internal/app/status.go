package app

import (
	"time"

	"neurotutor/internal/rotation"
	"neurotutor/internal/runtime/supervisor"
	"neurotutor/internal/task/scheduler"
)

// Status is the operator snapshot served on /status.
type Status struct {
	StartedAt    time.Time             `json:"started_at"`
	Uptime       string                `json:"uptime"`
	Sessions     int                   `json:"sessions"`
	AllowList    int                   `json:"allow_list"`
	AllowListErr string                `json:"allow_list_err,omitempty"`
	Rotation     *rotation.State       `json:"rotation,omitempty"`
	Policy       rotation.Policy       `json:"policy,omitempty"`
	LastTick     *rotation.TickSummary `json:"last_tick,omitempty"`
	Scheduler    scheduler.Snapshot    `json:"scheduler"`
	Goroutines   supervisor.Counters   `json:"goroutines"`
}

func (a *App) Status() Status {
	st := Status{
		StartedAt:  a.startedAt,
		Sessions:   a.sessions.Len(),
		AllowList:  a.gate.Len(),
		Scheduler:  a.sched.Snapshot(),
		Goroutines: a.sup.Counters(),
	}
	if !a.startedAt.IsZero() {
		st.Uptime = time.Since(a.startedAt).Truncate(time.Second).String()
	}
	if err := a.gate.Err(); err != nil {
		st.AllowListErr = err.Error()
	}
	if a.rotation != nil {
		rs := a.rotation.State()
		st.Rotation = &rs
		st.Policy = a.rotation.Policy()
		if last, ok := a.rotation.LastSummary(); ok {
			st.LastTick = &last
		}
	}
	return st
}
