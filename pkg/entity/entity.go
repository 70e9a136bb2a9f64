package entity

import (
	"time"
)

type SessionType string

const (
	SessionBaseline    SessionType = "baseline"
	SessionProgression SessionType = "progression"
)

const (
	DefaultTargetDuration = 30
	DefaultDailyIncrement = 3
	DefaultReminderTime   = "19:00"
	BaselineSessions      = 3
)

// Identity is the signed-in user as seen by the tracker. Everything else the
// identity provider knows about the user stays opaque.
type Identity struct {
	UserID  string `json:"user_id"`
	IsGuest bool   `json:"guest"`
}

type Session struct {
	ID             string      `json:"id"`
	UserID         string      `json:"user_id"`
	Date           string      `json:"date"`
	Duration       int         `json:"duration"`
	TargetDuration int         `json:"target_duration"`
	Type           SessionType `json:"type"`
	Completed      bool        `json:"completed"`
	Timestamp      time.Time   `json:"timestamp"`
}

type BaselineData struct {
	IsComplete  bool  `json:"is_complete"`
	Sessions    []int `json:"sessions"`
	AverageTime int   `json:"average_time"`
}

type StreakData struct {
	CurrentStreak     int     `json:"current_streak"`
	BestStreak        int     `json:"best_streak"`
	LastCompletedDate *string `json:"last_completed_date"`
}

type UserProgress struct {
	UserID                string       `json:"user_id"`
	BaselineData          BaselineData `json:"baseline_data"`
	StreakData            StreakData   `json:"streak_data"`
	CurrentTargetDuration int          `json:"current_target_duration"`
	TotalSessions         int          `json:"total_sessions"`
	TotalPlankTime        int          `json:"total_plank_time"`
	LastUpdated           time.Time    `json:"last_updated"`
}

type UserSettings struct {
	DailyIncrement         int    `json:"daily_increment"`
	ReminderEnabled        bool   `json:"reminder_enabled"`
	ReminderTime           string `json:"reminder_time"`
	StreakWarningEnabled   bool   `json:"streak_warning_enabled"`
	SoundEnabled           bool   `json:"sound_enabled"`
	VibrationEnabled       bool   `json:"vibration_enabled"`
	HasCompletedOnboarding bool   `json:"has_completed_onboarding"`
	DarkMode               bool   `json:"dark_mode"`
}

// ProgressPatch carries the fields of a partial progress update. Nil fields are left untouched.
type ProgressPatch struct {
	BaselineData          *BaselineData `json:"baseline_data,omitempty"`
	StreakData            *StreakData   `json:"streak_data,omitempty"`
	CurrentTargetDuration *int          `json:"current_target_duration,omitempty"`
	TotalSessions         *int          `json:"total_sessions,omitempty"`
	TotalPlankTime        *int          `json:"total_plank_time,omitempty"`
}

// SettingsPatch carries the fields of a partial settings update. Nil fields are left untouched.
type SettingsPatch struct {
	DailyIncrement         *int    `json:"daily_increment,omitempty" validate:"omitempty,min=0,max=300"`
	ReminderEnabled        *bool   `json:"reminder_enabled,omitempty"`
	ReminderTime           *string `json:"reminder_time,omitempty" validate:"omitempty,hhmm"`
	StreakWarningEnabled   *bool   `json:"streak_warning_enabled,omitempty"`
	SoundEnabled           *bool   `json:"sound_enabled,omitempty"`
	VibrationEnabled       *bool   `json:"vibration_enabled,omitempty"`
	HasCompletedOnboarding *bool   `json:"has_completed_onboarding,omitempty"`
	DarkMode               *bool   `json:"dark_mode,omitempty"`
}

// GuestBundle is the all-in-one local snapshot kept for guest accounts.
type GuestBundle struct {
	Progress UserProgress `json:"progress"`
	Sessions []Session    `json:"sessions"`
	Settings UserSettings `json:"settings"`
}

type DayDuration struct {
	Date       string `json:"date"`
	Duration   int    `json:"duration"`
	HasSession bool   `json:"has_session"`
}

type Stats struct {
	CompletedSessions int           `json:"completed_sessions"`
	AverageTime       int           `json:"average_time"`
	LongestPlank      int           `json:"longest_plank"`
	TotalPlankTime    int           `json:"total_plank_time"`
	Last7DaysAverage  int           `json:"last_7_days_average"`
	CompletionRate    int           `json:"completion_rate"`
	LastWeek          []DayDuration `json:"last_week"`
}

func DefaultProgress(userID string, now time.Time) UserProgress {
	return UserProgress{
		UserID: userID,
		BaselineData: BaselineData{
			Sessions: []int{},
		},
		CurrentTargetDuration: DefaultTargetDuration,
		LastUpdated:           now,
	}
}

func DefaultSettings() UserSettings {
	return UserSettings{
		DailyIncrement:       DefaultDailyIncrement,
		ReminderTime:         DefaultReminderTime,
		StreakWarningEnabled: true,
		SoundEnabled:         true,
		VibrationEnabled:     true,
	}
}

// Apply merges the non-nil fields of the patch into a copy of p.
func (p UserProgress) Apply(patch ProgressPatch) UserProgress {
	if patch.BaselineData != nil {
		p.BaselineData = patch.BaselineData.Clone()
	}
	if patch.StreakData != nil {
		p.StreakData = patch.StreakData.Clone()
	}
	if patch.CurrentTargetDuration != nil {
		p.CurrentTargetDuration = *patch.CurrentTargetDuration
	}
	if patch.TotalSessions != nil {
		p.TotalSessions = *patch.TotalSessions
	}
	if patch.TotalPlankTime != nil {
		p.TotalPlankTime = *patch.TotalPlankTime
	}
	return p
}

// Clone returns a deep copy so callers can't mutate shared slices or pointers.
func (p UserProgress) Clone() UserProgress {
	p.BaselineData = p.BaselineData.Clone()
	p.StreakData = p.StreakData.Clone()
	return p
}

func (b BaselineData) Clone() BaselineData {
	sessions := make([]int, len(b.Sessions))
	copy(sessions, b.Sessions)
	b.Sessions = sessions
	return b
}

func (s StreakData) Clone() StreakData {
	if s.LastCompletedDate != nil {
		date := *s.LastCompletedDate
		s.LastCompletedDate = &date
	}
	return s
}

func (s UserSettings) Apply(patch SettingsPatch) UserSettings {
	if patch.DailyIncrement != nil {
		s.DailyIncrement = *patch.DailyIncrement
	}
	if patch.ReminderEnabled != nil {
		s.ReminderEnabled = *patch.ReminderEnabled
	}
	if patch.ReminderTime != nil {
		s.ReminderTime = *patch.ReminderTime
	}
	if patch.StreakWarningEnabled != nil {
		s.StreakWarningEnabled = *patch.StreakWarningEnabled
	}
	if patch.SoundEnabled != nil {
		s.SoundEnabled = *patch.SoundEnabled
	}
	if patch.VibrationEnabled != nil {
		s.VibrationEnabled = *patch.VibrationEnabled
	}
	if patch.HasCompletedOnboarding != nil {
		s.HasCompletedOnboarding = *patch.HasCompletedOnboarding
	}
	if patch.DarkMode != nil {
		s.DarkMode = *patch.DarkMode
	}
	return s
}
