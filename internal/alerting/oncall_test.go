package alerting

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/good-yellow-bee/alertflow/internal/models"
)

func TestOnCallActiveAt(t *testing.T) {
	// 2025-06-02 is a Monday in ISO week 23.
	monday := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	tuesday := monday.Add(24 * time.Hour)
	tod := func(hour, minute int) *models.TimeOfDay {
		return &models.TimeOfDay{Hour: hour, Minute: minute}
	}
	datePtr := func(t time.Time) *time.Time { return &t }

	tests := []struct {
		name string
		oc   models.OnCall
		now  time.Time
		want bool
	}{
		{
			name: "repeat days covered",
			oc:   models.OnCall{RepeatType: models.RepeatList, RepeatDays: []string{"Mon", "Wed"}},
			now:  monday,
			want: true,
		},
		{
			name: "repeat days not covered",
			oc:   models.OnCall{RepeatType: models.RepeatList, RepeatDays: []string{"Mon", "Wed"}},
			now:  tuesday,
			want: false,
		},
		{
			name: "repeat days inside daily window",
			oc:   models.OnCall{RepeatType: models.RepeatList, RepeatDays: []string{"Mon"}, StartTime: tod(9, 0), EndTime: tod(17, 0)},
			now:  monday,
			want: true,
		},
		{
			name: "repeat days outside daily window",
			oc:   models.OnCall{RepeatType: models.RepeatList, RepeatDays: []string{"Mon"}, StartTime: tod(14, 0), EndTime: tod(17, 0)},
			now:  monday,
			want: false,
		},
		{
			name: "daily window wraps midnight",
			oc:   models.OnCall{RepeatType: models.RepeatList, StartTime: tod(22, 0), EndTime: tod(6, 0)},
			now:  time.Date(2025, 6, 2, 2, 0, 0, 0, time.UTC),
			want: true,
		},
		{
			name: "iso week covered",
			oc:   models.OnCall{RepeatType: models.RepeatList, RepeatWeeks: []int{23}},
			now:  monday,
			want: true,
		},
		{
			name: "iso week not covered",
			oc:   models.OnCall{RepeatType: models.RepeatList, RepeatWeeks: []int{24}},
			now:  monday,
			want: false,
		},
		{
			name: "month covered",
			oc:   models.OnCall{RepeatType: models.RepeatList, RepeatMonths: []string{"Jun"}},
			now:  monday,
			want: true,
		},
		{
			name: "date range covered",
			oc:   models.OnCall{StartDate: datePtr(monday.Add(-24 * time.Hour)), EndDate: datePtr(monday.Add(24 * time.Hour))},
			now:  monday,
			want: true,
		},
		{
			name: "date range ended",
			oc:   models.OnCall{StartDate: datePtr(monday.Add(-48 * time.Hour)), EndDate: datePtr(monday.Add(-24 * time.Hour))},
			now:  monday,
			want: false,
		},
		{
			name: "date range not started",
			oc:   models.OnCall{StartDate: datePtr(monday.Add(24 * time.Hour))},
			now:  monday,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := OnCallActiveAt(&tt.oc, tt.now); got != tt.want {
				t.Errorf("OnCallActiveAt() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResolveRecipients(t *testing.T) {
	ctx := context.Background()
	engine, store, _ := newTestEngine(t)

	if err := store.Groups().SetMembers(ctx, "netops", []string{"carol", "dave"}); err != nil {
		t.Fatalf("set members: %v", err)
	}
	err := store.OnCalls().Create(ctx, &models.OnCall{
		ID:         "oc1",
		UserIDs:    []string{"erin"},
		RepeatType: models.RepeatList,
		RepeatDays: []string{"Mon"},
	})
	if err != nil {
		t.Fatalf("create oncall: %v", err)
	}

	rule := &models.NotificationRule{
		ID:        "r1",
		Receivers: []string{"ops@example.com"},
		UserIDs:   []string{"alice"},
		GroupIDs:  []string{"netops"},
		UseOnCall: true,
	}

	got, err := engine.resolveRecipients(ctx, rule, "", testNow)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	want := []string{"alice", "carol", "dave", "erin", "ops@example.com"}
	if len(got) != len(want) {
		t.Fatalf("recipients = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("recipients = %v, want %v", got, want)
		}
	}
}

func TestResolveRecipientsDeduplicates(t *testing.T) {
	ctx := context.Background()
	engine, store, _ := newTestEngine(t)

	if err := store.Groups().SetMembers(ctx, "netops", []string{"alice"}); err != nil {
		t.Fatalf("set members: %v", err)
	}
	rule := &models.NotificationRule{
		ID:       "r1",
		UserIDs:  []string{"alice"},
		GroupIDs: []string{"netops"},
	}

	got, err := engine.resolveRecipients(ctx, rule, "", testNow)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(got) != 1 || got[0] != "alice" {
		t.Fatalf("recipients = %v, want just alice", got)
	}
}

func TestResolveRecipientsNoCoverage(t *testing.T) {
	ctx := context.Background()
	engine, store, _ := newTestEngine(t)

	// Tuesday rotation only, asked on a Monday.
	err := store.OnCalls().Create(ctx, &models.OnCall{
		ID:         "oc1",
		UserIDs:    []string{"erin"},
		RepeatType: models.RepeatList,
		RepeatDays: []string{"Tue"},
	})
	if err != nil {
		t.Fatalf("create oncall: %v", err)
	}

	rule := &models.NotificationRule{ID: "r1", UseOnCall: true}
	if _, err := engine.resolveRecipients(ctx, rule, "", testNow); !errors.Is(err, ErrNoOnCallCoverage) {
		t.Fatalf("got %v, want ErrNoOnCallCoverage", err)
	}
}
