package db

import (
	"strings"

	"hiretrack/internal/timeutil"
)

// Stage labels an application can move through. The set is fixed; anything
// else is rejected before it reaches the database.
const (
	StageApplied  = "Applied"
	StageOA       = "OA"
	StagePhone    = "Phone"
	StageOnSite   = "On-site"
	StageOffer    = "Offer"
	StageRejected = "Rejected"
	StageGhosted  = "Ghosted"
)

// ValidStages is the accepted stage set, in pipeline order.
var ValidStages = []string{
	StageApplied,
	StageOA,
	StagePhone,
	StageOnSite,
	StageOffer,
	StageRejected,
	StageGhosted,
}

// Season tags for an application.
const (
	SeasonSummer   = "Summer"
	SeasonFall     = "Fall"
	SeasonWinter   = "Winter"
	SeasonFullTime = "Full time"
)

// ValidSeasons is the accepted season set.
var ValidSeasons = []string{
	SeasonSummer,
	SeasonFall,
	SeasonWinter,
	SeasonFullTime,
}

// DefaultSeason is applied when /add omits the season option.
const DefaultSeason = SeasonSummer

// IsValidStage reports whether s is one of ValidStages.
func IsValidStage(s string) bool {
	for _, v := range ValidStages {
		if v == s {
			return true
		}
	}
	return false
}

// IsValidSeason reports whether s is one of ValidSeasons.
func IsValidSeason(s string) bool {
	for _, v := range ValidSeasons {
		if v == s {
			return true
		}
	}
	return false
}

// StageList renders the valid stage set for error messages.
func StageList() string {
	return strings.Join(ValidStages, ", ")
}

// SeasonList renders the valid season set for error messages.
func SeasonList() string {
	return strings.Join(ValidSeasons, ", ")
}

// Application is one tracked job application, owned by a single Discord user.
// It is immutable after creation except through its stage history; deleting it
// cascades to stages and reminders.
type Application struct {
	ID        uint              `gorm:"primaryKey"`
	Company   string            `gorm:"size:255;not null;index:idx_app_owner"`
	Role      string            `gorm:"size:255;not null"`
	Season    string            `gorm:"size:20;not null;default:Summer"`
	CreatedAt timeutil.UnixTime `gorm:"not null"`
	GuildID   *int64
	UserID    int64 `gorm:"not null;index:idx_app_owner"`

	Stages    []Stage    `gorm:"foreignKey:AppID;constraint:OnDelete:CASCADE"`
	Reminders []Reminder `gorm:"foreignKey:AppID;constraint:OnDelete:CASCADE"`
}

// Stage is one record in an application's append-only stage history. Records
// are never mutated; the "current" stage is derived as the record with the
// highest normalized date, ties broken by highest id.
type Stage struct {
	ID    uint              `gorm:"primaryKey"`
	AppID uint              `gorm:"not null;index"`
	Stage string            `gorm:"size:50;not null"`
	Date  timeutil.UnixTime `gorm:"not null"`
}

// Reminder is a single-fire due-dated flag on an application. Sent flips
// false→true exactly once; a sent reminder is never delivered again.
type Reminder struct {
	ID    uint              `gorm:"primaryKey"`
	AppID uint              `gorm:"not null;index"`
	DueAt timeutil.UnixTime `gorm:"not null;index"`
	Sent  bool              `gorm:"not null;default:false"`
}

// UserPreference holds per-user settings; today that is only the opt-in flag
// consumed by the cross-user search layer.
type UserPreference struct {
	UserID               int64 `gorm:"primaryKey"`
	AllowCrossUserSearch bool  `gorm:"not null;default:false"`
}
