// Package tracker is the service layer over the application store: stage
// history with a derived current stage, reminders, stats, stale detection
// and CSV export.
package tracker

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	log "github.com/inconshreveable/log15"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"hiretrack/internal/db"
	"hiretrack/internal/timeutil"
)

// DefaultPageSize bounds list pages when the caller does not ask for one.
const DefaultPageSize = 15

// Service exposes every tracker operation over the backing database.
type Service struct {
	db  *gorm.DB
	log log.Logger

	// now is swappable in tests so second-granularity boundaries are exact.
	now func() time.Time
}

// New builds a Service over an opened database handle.
func New(gdb *gorm.DB) *Service {
	return &Service{
		db:  gdb,
		log: log.New("module", "tracker"),
		now: time.Now,
	}
}

// ApplicationSummary pairs an application with its derived current stage.
// Current is nil for an application with no stage history.
type ApplicationSummary struct {
	App     db.Application
	Current *db.Stage
}

// moreRecent reports whether a supersedes b as the current stage: higher
// normalized date wins, ties go to the higher id (most recently inserted).
func moreRecent(a, b *db.Stage) bool {
	if a.Date != b.Date {
		return a.Date > b.Date
	}
	return a.ID > b.ID
}

// currentStages resolves the current stage of each given application in one
// query. Legacy rows can hold text dates, so the winner is picked here on
// normalized values rather than by SQL ordering.
func (s *Service) currentStages(ctx context.Context, appIDs []uint) (map[uint]*db.Stage, error) {
	current := make(map[uint]*db.Stage, len(appIDs))
	if len(appIDs) == 0 {
		return current, nil
	}
	var stages []db.Stage
	if err := s.db.WithContext(ctx).Where("app_id IN ?", appIDs).Find(&stages).Error; err != nil {
		return nil, fmt.Errorf("currentStages: %w", err)
	}
	for i := range stages {
		st := &stages[i]
		if cur, ok := current[st.AppID]; !ok || moreRecent(st, cur) {
			current[st.AppID] = st
		}
	}
	return current, nil
}

// summaries loads the user's applications (optionally season filtered, id
// ascending) together with their current stages.
func (s *Service) summaries(ctx context.Context, userID int64, seasonFilter string) ([]ApplicationSummary, error) {
	q := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if seasonFilter != "" {
		q = q.Where("season = ?", seasonFilter)
	}
	var apps []db.Application
	if err := q.Order("id").Find(&apps).Error; err != nil {
		return nil, err
	}

	ids := make([]uint, len(apps))
	for i, a := range apps {
		ids[i] = a.ID
	}
	current, err := s.currentStages(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]ApplicationSummary, len(apps))
	for i, a := range apps {
		out[i] = ApplicationSummary{App: a, Current: current[a.ID]}
	}
	return out, nil
}

func filterByStage(in []ApplicationSummary, stage string) []ApplicationSummary {
	var out []ApplicationSummary
	for _, sum := range in {
		if sum.Current != nil && sum.Current.Stage == stage {
			out = append(out, sum)
		}
	}
	return out
}

// AddApplication records a new application for the user and seeds its
// history with an initial "Applied" stage. An empty season falls back to the
// default.
func (s *Service) AddApplication(ctx context.Context, company, role string, userID int64, season string, guildID *int64) (*db.Application, error) {
	if season == "" {
		season = db.DefaultSeason
	}
	if !db.IsValidSeason(season) {
		return nil, fmt.Errorf("%w %q (valid seasons: %s)", ErrInvalidSeason, season, db.SeasonList())
	}

	var count int64
	err := s.db.WithContext(ctx).Model(&db.Application{}).
		Where("company = ? AND role = ? AND user_id = ?", company, role, userID).
		Count(&count).Error
	if err != nil {
		return nil, fmt.Errorf("AddApplication: %w", err)
	}
	if count > 0 {
		return nil, fmt.Errorf("%w for %s - %s", ErrDuplicateApplication, company, role)
	}

	app := &db.Application{
		Company:   company,
		Role:      role,
		Season:    season,
		UserID:    userID,
		GuildID:   guildID,
		CreatedAt: timeutil.UnixTime(s.now().Unix()),
	}
	if err := s.db.WithContext(ctx).Create(app).Error; err != nil {
		return nil, fmt.Errorf("AddApplication: %w", err)
	}

	seed := &db.Stage{AppID: app.ID, Stage: db.StageApplied, Date: timeutil.UnixTime(s.now().Unix())}
	if err := s.db.WithContext(ctx).Create(seed).Error; err != nil {
		return nil, fmt.Errorf("AddApplication: seed stage: %w", err)
	}

	s.log.Debug("application added", "company", company, "user", userID)
	return app, nil
}

// UpdateStage appends a record to the application's stage history. With a
// nil date the record gets a timestamp strictly greater than every existing
// one (now, or latest+1 when the clock has not moved past the latest record)
// so it is unambiguously current. An explicit date is stored as-is, which
// permits backdating.
func (s *Service) UpdateStage(ctx context.Context, company, stage string, userID int64, date *int64) (*db.Stage, error) {
	if !db.IsValidStage(stage) {
		return nil, fmt.Errorf("%w %q (valid stages: %s)", ErrInvalidStage, stage, db.StageList())
	}

	app, err := s.ApplicationByCompany(ctx, company, userID)
	if err != nil {
		return nil, fmt.Errorf("UpdateStage: %w", err)
	}
	if app == nil {
		return nil, fmt.Errorf("%w for %s", ErrApplicationNotFound, company)
	}

	var when int64
	if date != nil {
		when = *date
	} else {
		when = s.now().Unix()
		latest, err := s.CurrentStage(ctx, app.ID)
		if err != nil {
			return nil, fmt.Errorf("UpdateStage: %w", err)
		}
		if latest != nil && latest.Date.Int64() >= when {
			when = latest.Date.Int64() + 1
		}
	}

	rec := &db.Stage{AppID: app.ID, Stage: stage, Date: timeutil.UnixTime(when)}
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, fmt.Errorf("UpdateStage: %w", err)
	}

	s.log.Debug("stage updated", "company", company, "stage", stage, "user", userID)
	return rec, nil
}

// CurrentStage returns the stage record with the highest normalized date for
// the application. Returns nil when the application has no stage history.
func (s *Service) CurrentStage(ctx context.Context, appID uint) (*db.Stage, error) {
	current, err := s.currentStages(ctx, []uint{appID})
	if err != nil {
		return nil, fmt.Errorf("CurrentStage: %w", err)
	}
	return current[appID], nil
}

// ListApplications returns one page of the user's applications with their
// current stages. The stage filter matches the derived value and is applied
// before pagination, so pages and CountApplications agree.
func (s *Service) ListApplications(ctx context.Context, userID int64, stageFilter, seasonFilter string, limit, offset int) ([]ApplicationSummary, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if offset < 0 {
		offset = 0
	}

	all, err := s.summaries(ctx, userID, seasonFilter)
	if err != nil {
		return nil, fmt.Errorf("ListApplications: %w", err)
	}
	if stageFilter != "" {
		all = filterByStage(all, stageFilter)
	}

	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

// CountApplications reports how many applications match the filters.
func (s *Service) CountApplications(ctx context.Context, userID int64, stageFilter, seasonFilter string) (int, error) {
	all, err := s.summaries(ctx, userID, seasonFilter)
	if err != nil {
		return 0, fmt.Errorf("CountApplications: %w", err)
	}
	if stageFilter != "" {
		all = filterByStage(all, stageFilter)
	}
	return len(all), nil
}

// ApplicationByCompany looks up the user's application by exact company
// name. Returns nil when none exists.
func (s *Service) ApplicationByCompany(ctx context.Context, company string, userID int64) (*db.Application, error) {
	var app db.Application
	err := s.db.WithContext(ctx).Where("company = ? AND user_id = ?", company, userID).First(&app).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ApplicationByCompany: %w", err)
	}
	return &app, nil
}

// Application fetches one application by id. Returns nil when it no longer
// exists.
func (s *Service) Application(ctx context.Context, id uint) (*db.Application, error) {
	var app db.Application
	err := s.db.WithContext(ctx).First(&app, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Application: %w", err)
	}
	return &app, nil
}

// Stats buckets the user's applications by their current stage.
// Applications with no stage history are not counted.
func (s *Service) Stats(ctx context.Context, userID int64) (map[string]int, error) {
	all, err := s.summaries(ctx, userID, "")
	if err != nil {
		return nil, fmt.Errorf("Stats: %w", err)
	}
	stats := make(map[string]int)
	for _, sum := range all {
		if sum.Current != nil {
			stats[sum.Current.Stage]++
		}
	}
	return stats, nil
}

// StaleApplications returns applications whose current stage is strictly
// older than the day threshold. One touched exactly at the cutoff is not
// stale.
func (s *Service) StaleApplications(ctx context.Context, userID int64, daysThreshold int) ([]ApplicationSummary, error) {
	cutoff := s.now().Unix() - int64(daysThreshold)*86400

	all, err := s.summaries(ctx, userID, "")
	if err != nil {
		return nil, fmt.Errorf("StaleApplications: %w", err)
	}
	var stale []ApplicationSummary
	for _, sum := range all {
		if sum.Current != nil && sum.Current.Date.Int64() < cutoff {
			stale = append(stale, sum)
		}
	}
	return stale, nil
}

// ActiveCompanies lists the distinct companies the user still has in play,
// meaning the current stage is neither Rejected nor Ghosted. Sorted.
func (s *Service) ActiveCompanies(ctx context.Context, userID int64) ([]string, error) {
	all, err := s.summaries(ctx, userID, "")
	if err != nil {
		return nil, fmt.Errorf("ActiveCompanies: %w", err)
	}

	seen := make(map[string]bool)
	var companies []string
	for _, sum := range all {
		if sum.Current == nil || sum.Current.Stage == db.StageRejected || sum.Current.Stage == db.StageGhosted {
			continue
		}
		if !seen[sum.App.Company] {
			seen[sum.App.Company] = true
			companies = append(companies, sum.App.Company)
		}
	}
	sort.Strings(companies)
	return companies, nil
}

// ExportCSV renders all of the user's applications as CSV with normalized
// epoch timestamps.
func (s *Service) ExportCSV(ctx context.Context, userID int64) ([]byte, error) {
	all, err := s.summaries(ctx, userID, "")
	if err != nil {
		return nil, fmt.Errorf("ExportCSV: %w", err)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"Company", "Role", "Season", "Current Stage", "Created At", "Last Updated"})
	for _, sum := range all {
		stage := "Unknown"
		updated := sum.App.CreatedAt.Int64()
		if sum.Current != nil {
			stage = sum.Current.Stage
			updated = sum.Current.Date.Int64()
		}
		_ = w.Write([]string{
			sum.App.Company,
			sum.App.Role,
			sum.App.Season,
			stage,
			strconv.FormatInt(sum.App.CreatedAt.Int64(), 10),
			strconv.FormatInt(updated, 10),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("ExportCSV: %w", err)
	}
	return buf.Bytes(), nil
}

// AddReminder schedules a one-shot reminder for the company's application,
// due the given number of days from now.
func (s *Service) AddReminder(ctx context.Context, company string, userID int64, daysFromNow int) (*db.Reminder, error) {
	app, err := s.ApplicationByCompany(ctx, company, userID)
	if err != nil {
		return nil, fmt.Errorf("AddReminder: %w", err)
	}
	if app == nil {
		return nil, fmt.Errorf("%w for %s", ErrApplicationNotFound, company)
	}

	rem := &db.Reminder{
		AppID: app.ID,
		DueAt: timeutil.UnixTime(s.now().Unix() + int64(daysFromNow)*86400),
	}
	if err := s.db.WithContext(ctx).Create(rem).Error; err != nil {
		return nil, fmt.Errorf("AddReminder: %w", err)
	}

	s.log.Debug("reminder added", "company", company, "user", userID, "due_at", rem.DueAt.Int64())
	return rem, nil
}

// DueReminders returns every unsent reminder whose due time has passed,
// oldest first.
func (s *Service) DueReminders(ctx context.Context) ([]db.Reminder, error) {
	var due []db.Reminder
	err := s.db.WithContext(ctx).
		Where("sent = ? AND due_at <= ?", false, s.now().Unix()).
		Order("due_at").
		Find(&due).Error
	if err != nil {
		return nil, fmt.Errorf("DueReminders: %w", err)
	}
	return due, nil
}

// MarkReminderSent flips the reminder's sent flag. Marking an already sent
// or unknown reminder again is a no-op.
func (s *Service) MarkReminderSent(ctx context.Context, id uint) error {
	err := s.db.WithContext(ctx).Model(&db.Reminder{}).Where("id = ?", id).Update("sent", true).Error
	if err != nil {
		return fmt.Errorf("MarkReminderSent: %w", err)
	}
	return nil
}

// Reminder fetches one reminder by id.
func (s *Service) Reminder(ctx context.Context, id uint) (*db.Reminder, error) {
	var rem db.Reminder
	err := s.db.WithContext(ctx).First(&rem, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w with id %d", ErrReminderNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("Reminder: %w", err)
	}
	return &rem, nil
}

// SetSearchOptIn stores the user's cross-user search consent.
func (s *Service) SetSearchOptIn(ctx context.Context, userID int64, allow bool) error {
	pref := db.UserPreference{UserID: userID, AllowCrossUserSearch: allow}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"allow_cross_user_search"}),
	}).Create(&pref).Error
	if err != nil {
		return fmt.Errorf("SetSearchOptIn: %w", err)
	}
	return nil
}

// SearchOptIn reports whether the user allows cross-user search. Users with
// no stored preference are opted out.
func (s *Service) SearchOptIn(ctx context.Context, userID int64) (bool, error) {
	var pref db.UserPreference
	err := s.db.WithContext(ctx).First(&pref, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("SearchOptIn: %w", err)
	}
	return pref.AllowCrossUserSearch, nil
}

// OptedInUsers lists every user who allows their data in cross-user search.
func (s *Service) OptedInUsers(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := s.db.WithContext(ctx).Model(&db.UserPreference{}).
		Where("allow_cross_user_search = ?", true).
		Order("user_id").
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("OptedInUsers: %w", err)
	}
	return ids, nil
}
