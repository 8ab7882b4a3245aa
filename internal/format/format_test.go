package format

import (
	"strings"
	"testing"

	"hiretrack/internal/db"
	"hiretrack/internal/timeutil"
	"hiretrack/internal/tracker"
)

func summary(company, role, season, stage string, date int64) tracker.ApplicationSummary {
	return tracker.ApplicationSummary{
		App:     db.Application{Company: company, Role: role, Season: season},
		Current: &db.Stage{Stage: stage, Date: timeutil.UnixTime(date)},
	}
}

func TestDiscordTimestamp(t *testing.T) {
	const ts = 1753235628
	for _, style := range []string{"F", "f", "R"} {
		want := "<t:1753235628:" + style + ">"
		if got := DiscordTimestamp(ts, style); got != want {
			t.Errorf("DiscordTimestamp(%q) = %q, want %q", style, got, want)
		}
	}
}

func TestASCIIBarChart(t *testing.T) {
	data := map[string]int{"Applied": 5, "OA": 3, "Phone": 2, "Offer": 1}

	chart := ASCIIBarChart(data, "Application Statistics")

	for label := range data {
		if !strings.Contains(chart, label) {
			t.Errorf("chart missing label %q", label)
		}
	}
	if !strings.Contains(chart, "Total: 11 applications") {
		t.Error("chart missing total line")
	}
	// The largest bucket fills the full width and sorts first.
	if !strings.Contains(chart, strings.Repeat("█", 40)) {
		t.Error("largest bucket does not fill the chart width")
	}
	if strings.Index(chart, "Applied") > strings.Index(chart, "Offer") {
		t.Error("chart not sorted largest first")
	}
}

func TestASCIIBarChartEmpty(t *testing.T) {
	chart := ASCIIBarChart(map[string]int{}, "Application Statistics")
	if !strings.Contains(chart, "No data available") {
		t.Errorf("empty chart = %q, want no-data message", chart)
	}
}

func TestApplicationList(t *testing.T) {
	apps := []tracker.ApplicationSummary{
		summary("Google", "Software Engineer", db.SeasonSummer, db.StageApplied, 1753235628),
		summary("Meta", "Product Manager", db.SeasonFall, db.StageOA, 1753235628),
		summary("Apple", "iOS Developer", db.SeasonFullTime, db.StageApplied, 1753235628),
	}

	got := ApplicationList(apps, "Test Applications")

	for _, want := range []string{
		"Test Applications",
		" 1. **Google** - Software Engineer (Summer)",
		"(Fall)",
		"Meta",
		"Apple",
		"└─ Stage: OA",
		"└─ Updated: <t:1753235628:f>",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("list missing %q:\n%s", want, got)
		}
	}
	// Full time positions do not show a season suffix.
	if strings.Contains(got, "(Full time)") {
		t.Errorf("list shows a Full time season suffix:\n%s", got)
	}
}

func TestApplicationListEmpty(t *testing.T) {
	got := ApplicationList(nil, "Empty List")
	if !strings.Contains(got, "Empty List") || !strings.Contains(got, "No applications found") {
		t.Errorf("empty list = %q", got)
	}
}

func TestApplicationListNoStageHistory(t *testing.T) {
	apps := []tracker.ApplicationSummary{{
		App: db.Application{Company: "Acme", Role: "Engineer", Season: db.SeasonSummer},
	}}

	got := ApplicationList(apps, "Applications")
	if !strings.Contains(got, "└─ Stage: Unknown") {
		t.Errorf("list missing Unknown stage fallback:\n%s", got)
	}
}

func TestReminderMessage(t *testing.T) {
	app := &db.Application{Company: "Google", Role: "Software Engineer", Season: db.SeasonSummer}
	current := &db.Stage{Stage: db.StageOA, Date: timeutil.UnixTime(1753235628)}

	msg := ReminderMessage(app, current)

	for _, want := range []string{
		"Job Application Reminder",
		"**Company:** Google",
		"**Role:** Software Engineer",
		"**Season:** Summer",
		"**Current Stage:** OA",
		"<t:1753235628:f>",
		"<t:1753235628:R>",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}
}

func TestReminderMessageFullTime(t *testing.T) {
	app := &db.Application{Company: "Google", Role: "Software Engineer", Season: db.SeasonFullTime}
	current := &db.Stage{Stage: db.StageApplied, Date: timeutil.UnixTime(1753235628)}

	msg := ReminderMessage(app, current)

	if strings.Contains(msg, "**Season:**") {
		t.Errorf("full time message shows a season line:\n%s", msg)
	}
	if !strings.Contains(msg, "**Current Stage:** Applied") {
		t.Errorf("message missing stage line:\n%s", msg)
	}
}

func TestStatsSummary(t *testing.T) {
	stats := map[string]int{"Applied": 5, "OA": 3, "Phone": 2, "Offer": 1}

	got := StatsSummary(stats)
	want := "**Total: 11** | Applied: 5 (45.5%) | OA: 3 (27.3%) | Phone: 2 (18.2%) | Offer: 1 (9.1%)"
	if got != want {
		t.Errorf("StatsSummary = %q, want %q", got, want)
	}
}

func TestStatsSummaryEmpty(t *testing.T) {
	if got := StatsSummary(nil); got != "No applications tracked yet" {
		t.Errorf("StatsSummary(nil) = %q", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("Short text", 20); got != "Short text" {
		t.Errorf("short text changed: %q", got)
	}

	long := "This is a very long text that should be truncated"
	got := Truncate(long, 20)
	if got != "This is a very lo..." {
		t.Errorf("Truncate = %q", got)
	}
	if len(got) != 20 {
		t.Errorf("truncated length = %d, want 20", len(got))
	}
}
