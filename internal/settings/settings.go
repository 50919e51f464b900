// Package settings normalizes the string-typed app_settings rows into typed
// values once, at the loading boundary. The rows are written by an admin UI
// that stores booleans as "true"/"false" text and numbers as decimal text.
package settings

import (
	"strconv"
	"strings"
)

type Settings struct {
	HospitalName             string
	AnnouncementTemplate     string
	EnableAnnouncements      bool
	EnableVoiceAnnouncements bool
	UseNativeVoice           bool
	VoiceRate                float64
	VoicePitch               float64
	VoiceVolume              float64
	StaffAccessOwnDepartment bool
	AllowCrossDeptTransfer   bool
	EnableAutoPrint          bool
	EnableSilentPrinting     bool
}

const DefaultTemplate = "Token {number}, please proceed to {department}"

func Defaults() Settings {
	return Settings{
		AnnouncementTemplate:     DefaultTemplate,
		EnableAnnouncements:      true,
		EnableVoiceAnnouncements: true,
		VoiceRate:                1,
		VoicePitch:               1,
		VoiceVolume:              1,
		AllowCrossDeptTransfer:   true,
	}
}

// FromRows builds Settings from raw key/value rows, falling back to defaults
// for missing or malformed values.
func FromRows(rows map[string]string) Settings {
	s := Defaults()
	s.HospitalName = text(rows, "hospital_name", s.HospitalName)
	s.AnnouncementTemplate = text(rows, "announcement_template", s.AnnouncementTemplate)
	s.EnableAnnouncements = boolean(rows, "enable_announcements", s.EnableAnnouncements)
	s.EnableVoiceAnnouncements = boolean(rows, "enable_voice_announcements", s.EnableVoiceAnnouncements)
	s.UseNativeVoice = boolean(rows, "use_native_voice", s.UseNativeVoice)
	s.VoiceRate = number(rows, "voice_rate", s.VoiceRate)
	s.VoicePitch = number(rows, "voice_pitch", s.VoicePitch)
	s.VoiceVolume = number(rows, "voice_volume", s.VoiceVolume)
	s.StaffAccessOwnDepartment = boolean(rows, "staff_access_own_department", s.StaffAccessOwnDepartment)
	s.AllowCrossDeptTransfer = boolean(rows, "allow_cross_department_transfer", s.AllowCrossDeptTransfer)
	s.EnableAutoPrint = boolean(rows, "enable_auto_print", s.EnableAutoPrint)
	s.EnableSilentPrinting = boolean(rows, "enable_silent_printing", s.EnableSilentPrinting)
	return s
}

func text(rows map[string]string, key, fallback string) string {
	raw, ok := rows[key]
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback
	}
	return strings.TrimSpace(raw)
}

func boolean(rows map[string]string, key string, fallback bool) bool {
	raw, ok := rows[key]
	if !ok {
		return fallback
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fallback
	}
	return value
}

func number(rows map[string]string, key string, fallback float64) float64 {
	raw, ok := rows[key]
	if !ok {
		return fallback
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return fallback
	}
	return value
}
