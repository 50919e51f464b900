package settings

import "testing"

func TestFromRowsTolerantBooleans(t *testing.T) {
	s := FromRows(map[string]string{
		"enable_announcements":        "false",
		"enable_voice_announcements":  "true",
		"use_native_voice":            "1",
		"staff_access_own_department": " true ",
		"enable_auto_print":           "yes", // malformed, keeps default
	})
	if s.EnableAnnouncements {
		t.Fatal("enable_announcements should parse false")
	}
	if !s.EnableVoiceAnnouncements {
		t.Fatal("enable_voice_announcements should parse true")
	}
	if !s.UseNativeVoice {
		t.Fatal("use_native_voice should accept 1")
	}
	if !s.StaffAccessOwnDepartment {
		t.Fatal("staff_access_own_department should tolerate whitespace")
	}
	if s.EnableAutoPrint {
		t.Fatal("malformed boolean must fall back to default (false)")
	}
}

func TestFromRowsNumbers(t *testing.T) {
	s := FromRows(map[string]string{
		"voice_rate":   "1.5",
		"voice_pitch":  "bogus",
		"voice_volume": "0.8",
	})
	if s.VoiceRate != 1.5 {
		t.Fatalf("rate=%v, want 1.5", s.VoiceRate)
	}
	if s.VoicePitch != 1 {
		t.Fatalf("pitch=%v, want default 1", s.VoicePitch)
	}
	if s.VoiceVolume != 0.8 {
		t.Fatalf("volume=%v, want 0.8", s.VoiceVolume)
	}
}

func TestFromRowsTextAndDefaults(t *testing.T) {
	s := FromRows(map[string]string{
		"hospital_name":         "City Clinic",
		"announcement_template": "  ",
	})
	if s.HospitalName != "City Clinic" {
		t.Fatalf("hospital=%q", s.HospitalName)
	}
	if s.AnnouncementTemplate != DefaultTemplate {
		t.Fatalf("blank template must fall back, got %q", s.AnnouncementTemplate)
	}
	if !s.AllowCrossDeptTransfer {
		t.Fatal("cross-department transfer defaults to enabled")
	}
}
