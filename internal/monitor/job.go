package monitor

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Status is the lifecycle state of a monitor job.
// pending -> running -> {completed | error}, with stopping as an
// optimistic side state reachable only from running.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusStopping  Status = "stopping"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

var terminalStates = map[Status]bool{
	StatusCompleted: true,
	StatusError:     true,
}

func (s Status) Terminal() bool { return terminalStates[s] }

// Active reports whether the job still needs polling.
func (s Status) Active() bool {
	switch s {
	case StatusPending, StatusRunning, StatusStopping:
		return true
	}
	return false
}

// Kind selects the provider-side search strategy.
type Kind string

const (
	// KindPreferenceSweep searches across the member's ranked preferences.
	KindPreferenceSweep Kind = "preference-sweep"
	// KindSpecificSearch hunts one explicitly described slot.
	KindSpecificSearch Kind = "specific-search"
)

// Subject is the member a job books on behalf of.
type Subject struct {
	MemberID    string `json:"member_id"`
	DisplayName string `json:"member_name"`
}

// Criteria describes what the provider should search for.
// Hour is nil when any hour is acceptable.
type Criteria struct {
	Level         string   `json:"level" validate:"required"`
	Side          string   `json:"side" validate:"omitempty,oneof=left right any"`
	Dates         []string `json:"dates" validate:"required,min=1,dive,datetime=2006-01-02"`
	Hour          *int     `json:"hour,omitempty" validate:"omitempty,min=0,max=23"`
	BudgetMinutes int      `json:"budget_minutes" validate:"required,min=1"`
}

func (c Criteria) Validate() error {
	return validator.New().Struct(c)
}

// Summary renders the criteria in the key=value style used by CLI output
// and notifications.
func (c Criteria) Summary() string {
	hour := "any"
	if c.Hour != nil {
		hour = fmt.Sprintf("%02d:00", *c.Hour)
	}
	side := c.Side
	if side == "" {
		side = "any"
	}
	return fmt.Sprintf("level=%s side=%s dates=%s hour=%s budget=%dm",
		c.Level, side, strings.Join(c.Dates, ","), hour, c.BudgetMinutes)
}

// LogEntry is one timestamped progress message.
type LogEntry struct {
	At      time.Time `json:"at"`
	Message string    `json:"message"`
}

// SlotRef identifies the session a successful monitor booked.
type SlotRef struct {
	Date  string `json:"date"`
	Start string `json:"start"`
	End   string `json:"end"`
	Level string `json:"level,omitempty"`
	Side  string `json:"side,omitempty"`
}

// Result is the terminal outcome of a job. Present iff the job is terminal.
type Result struct {
	Success    bool     `json:"success"`
	Voucher    string   `json:"voucher,omitempty"`
	AccessCode string   `json:"accessCode,omitempty"`
	Slot       *SlotRef `json:"slot,omitempty"`
	Error      string   `json:"error,omitempty"`
}

// MonitorJob is one background search/booking attempt as tracked locally.
type MonitorJob struct {
	ID             string     `json:"id"`
	Kind           Kind       `json:"kind"`
	Status         Status     `json:"status"`
	Subject        Subject    `json:"subject"`
	Criteria       Criteria   `json:"criteria"`
	ElapsedSeconds int        `json:"elapsed_seconds"`
	StartedAt      time.Time  `json:"started_at"`
	Log            []LogEntry `json:"log,omitempty"`
	Result         *Result    `json:"result,omitempty"`
}

func (j MonitorJob) Active() bool { return j.Status.Active() }

// copy returns a deep copy so callers never observe a half-merged job.
func (j MonitorJob) copy() MonitorJob {
	out := j
	if j.Criteria.Dates != nil {
		out.Criteria.Dates = append([]string(nil), j.Criteria.Dates...)
	}
	if j.Criteria.Hour != nil {
		h := *j.Criteria.Hour
		out.Criteria.Hour = &h
	}
	if j.Log != nil {
		out.Log = append([]LogEntry(nil), j.Log...)
	}
	if j.Result != nil {
		r := *j.Result
		if j.Result.Slot != nil {
			s := *j.Result.Slot
			r.Slot = &s
		}
		out.Result = &r
	}
	return out
}

// StartRequest is the payload for creating a monitor job.
type StartRequest struct {
	Kind     Kind     `json:"kind"`
	Subject  Subject  `json:"subject"`
	Criteria Criteria `json:"criteria"`
}

// CriteriaPatch is a partial criteria update. Nil fields are left unchanged
// by the provider.
type CriteriaPatch struct {
	Level         *string  `json:"level,omitempty"`
	Side          *string  `json:"side,omitempty"`
	Dates         []string `json:"dates,omitempty"`
	Hour          *int     `json:"hour,omitempty"`
	BudgetMinutes *int     `json:"budget_minutes,omitempty"`
}
