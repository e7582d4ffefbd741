package trigger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/matrixflow/internal/config"
)

func TestParseKind(t *testing.T) {
	for _, valid := range []string{"push", "pull_request", "schedule"} {
		kind, err := ParseKind(valid)
		require.NoError(t, err)
		assert.Equal(t, Kind(valid), kind)
	}

	_, err := ParseKind("workflow_dispatch")
	assert.Error(t, err)
}

func TestMatches_PushBranchFilter(t *testing.T) {
	on := &config.Triggers{
		Push: &config.BranchFilter{Branches: []string{"main"}},
	}

	assert.True(t, Matches(on, Event{Kind: KindPush, Branch: "main"}))
	assert.False(t, Matches(on, Event{Kind: KindPush, Branch: "feature/x"}))
	// No pull_request trigger declared at all.
	assert.False(t, Matches(on, Event{Kind: KindPullRequest, Branch: "main"}))
}

func TestMatches_EmptyBranchFilterMatchesEverything(t *testing.T) {
	on := &config.Triggers{PullRequest: &config.BranchFilter{}}

	assert.True(t, Matches(on, Event{Kind: KindPullRequest, Branch: "anything"}))
}

func TestMatches_ScheduleIndependentOfPush(t *testing.T) {
	// A workflow with only a schedule trigger must fire on schedule events
	// and on nothing else.
	on := &config.Triggers{Schedules: []string{"0 4 * * 0"}}

	assert.True(t, Matches(on, Event{Kind: KindSchedule, Time: time.Now()}))
	assert.False(t, Matches(on, Event{Kind: KindPush, Branch: "main"}))
}

func TestMatches_NilTriggers(t *testing.T) {
	assert.False(t, Matches(nil, Event{Kind: KindPush}))
}

func TestParseCron(t *testing.T) {
	sched, err := ParseCron("0 4 * * 0")
	require.NoError(t, err)

	// Next fire after a Wednesday must be Sunday 04:00.
	wed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	next := sched.Next(wed)
	assert.Equal(t, time.Weekday(0), next.Weekday())
	assert.Equal(t, 4, next.Hour())
	assert.Equal(t, 0, next.Minute())
}

func TestParseCron_RejectsGarbage(t *testing.T) {
	for _, bad := range []string{"", "* * *", "61 * * * *", "not a cron"} {
		_, err := ParseCron(bad)
		assert.Error(t, err, "spec %q should not parse", bad)
	}
}
