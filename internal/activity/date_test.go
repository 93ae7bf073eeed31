package activity

import (
	"testing"
	"time"
)

func TestResolveDate(t *testing.T) {
	now := time.Date(2024, 3, 10, 23, 30, 0, 0, time.UTC)
	tests := []struct {
		name       string
		client     string
		want       string
		fromClient bool
	}{
		{"no client date", "", "2024-03-10", false},
		{"valid client date", "2024-01-15", "2024-01-15", true},
		{"client date with spaces", " 2024-01-15 ", "2024-01-15", true},
		{"malformed client date", "not-a-date", "2024-03-10", false},
		{"impossible calendar date", "2024-02-30", "2024-03-10", false},
		{"timestamp is not a date", "2024-01-15T10:00:00Z", "2024-03-10", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			day, fromClient := ResolveDate(tt.client, now, time.UTC)
			if got := day.Format(DateLayout); got != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, got)
			}
			if fromClient != tt.fromClient {
				t.Fatalf("expected fromClient=%v, got %v", tt.fromClient, fromClient)
			}
		})
	}
}

func TestResolveDateUsesServerLocation(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	now := time.Date(2024, 3, 10, 22, 30, 0, 0, time.UTC)

	day, _ := ResolveDate("", now, loc)
	if got := day.Format(DateLayout); got != "2024-03-11" {
		t.Fatalf("expected server day in its own zone, got %s", got)
	}
	if day.Location() != time.UTC || day.Hour() != 0 {
		t.Fatalf("expected midnight UTC day value, got %v", day)
	}
}

func TestWindow(t *testing.T) {
	today := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	start, end := Window(today, 7)
	if start.Format(DateLayout) != "2024-01-09" || end.Format(DateLayout) != "2024-01-15" {
		t.Fatalf("unexpected window %s..%s", start.Format(DateLayout), end.Format(DateLayout))
	}
	if days := DaysBetween(start, end); len(days) != 7 {
		t.Fatalf("expected 7 days, got %d", len(days))
	}
}

func TestDaysBetweenAcrossMonthAndEmpty(t *testing.T) {
	start := time.Date(2024, 2, 27, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	days := DaysBetween(start, end)
	want := []string{"2024-02-27", "2024-02-28", "2024-02-29", "2024-03-01", "2024-03-02"}
	if len(days) != len(want) {
		t.Fatalf("expected %d days, got %d", len(want), len(days))
	}
	for i, d := range days {
		if d.Format(DateLayout) != want[i] {
			t.Fatalf("day %d: expected %s, got %s", i, want[i], d.Format(DateLayout))
		}
	}
	if got := DaysBetween(end, start); len(got) != 0 {
		t.Fatalf("expected no days for reversed range, got %d", len(got))
	}
}
