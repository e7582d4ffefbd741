// Package trigger models the events that start a workflow run and decides
// which workflows a given event matches.
package trigger

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/vk/matrixflow/internal/config"
)

// Kind identifies the class of triggering event.
type Kind string

const (
	KindPush        Kind = "push"
	KindPullRequest Kind = "pull_request"
	KindSchedule    Kind = "schedule"
)

// Event is one concrete triggering occurrence. Branch is meaningful for
// push and pull_request events only.
type Event struct {
	Kind   Kind
	Branch string
	Time   time.Time
}

// ParseKind converts a user-supplied event name into a Kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindPush, KindPullRequest, KindSchedule:
		return Kind(s), nil
	}
	return "", fmt.Errorf("unknown event kind %q (want push, pull_request or schedule)", s)
}

// Matches reports whether the event starts a workflow with the given
// triggers. A nil trigger set matches nothing.
//
// Push and pull_request events match when the corresponding trigger is
// declared and its branch filter is empty or contains the event branch.
// Schedule events match any workflow that declares at least one schedule;
// picking the exact fire time is the schedule loop's job, not the matcher's.
func Matches(on *config.Triggers, ev Event) bool {
	if on == nil {
		return false
	}
	switch ev.Kind {
	case KindPush:
		return branchMatches(on.Push, ev.Branch)
	case KindPullRequest:
		return branchMatches(on.PullRequest, ev.Branch)
	case KindSchedule:
		return len(on.Schedules) > 0
	}
	return false
}

func branchMatches(filter *config.BranchFilter, branch string) bool {
	if filter == nil {
		return false
	}
	if len(filter.Branches) == 0 {
		return true
	}
	for _, b := range filter.Branches {
		if b == branch {
			return true
		}
	}
	return false
}

// cronParser accepts the standard five-field syntax plus the usual
// descriptors (@hourly and friends).
var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ParseCron validates a five-field cron spec and returns its schedule.
func ParseCron(spec string) (cron.Schedule, error) {
	sched, err := cronParser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid cron spec %q: %w", spec, err)
	}
	return sched, nil
}
