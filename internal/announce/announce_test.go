package announce

import (
	"errors"
	"testing"
	"time"

	"github.com/shamadu25/rave-queue-sub001/internal/models"
	"github.com/shamadu25/rave-queue-sub001/internal/settings"
)

type fakeSpeaker struct {
	announcements []Announcement
	err           error
}

func (f *fakeSpeaker) Announce(a Announcement) error {
	f.announcements = append(f.announcements, a)
	return f.err
}

func called(token, dept string, at time.Time) models.QueueEntry {
	return models.QueueEntry{
		ID:         token,
		Token:      token,
		Department: dept,
		Status:     models.StatusCalled,
		CalledAt:   &at,
	}
}

func TestObserveAnnouncesOncePerToken(t *testing.T) {
	speaker := &fakeSpeaker{}
	c := NewCoordinator(speaker, settings.Defaults(), Options{})

	at := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	entries := []models.QueueEntry{called("LAB-001", "Lab", at)}

	// Unrelated feed events recompute the same projection many times.
	for i := 0; i < 5; i++ {
		c.Observe(entries)
	}
	if len(speaker.announcements) != 1 {
		t.Fatalf("got %d announcements, want 1", len(speaker.announcements))
	}
	if speaker.announcements[0].Token != "LAB-001" {
		t.Fatalf("token=%q, want LAB-001", speaker.announcements[0].Token)
	}
}

func TestObserveAnnouncesEachDistinctChange(t *testing.T) {
	speaker := &fakeSpeaker{}
	c := NewCoordinator(speaker, settings.Defaults(), Options{})

	t1 := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Minute)
	t3 := t1.Add(2 * time.Minute)

	c.Observe([]models.QueueEntry{called("LAB-001", "Lab", t1)})
	c.Observe([]models.QueueEntry{called("LAB-002", "Lab", t2)})
	c.Observe([]models.QueueEntry{called("LAB-001", "Lab", t3)})

	if len(speaker.announcements) != 3 {
		t.Fatalf("got %d announcements, want 3 (one per distinct change)", len(speaker.announcements))
	}
	tokens := []string{speaker.announcements[0].Token, speaker.announcements[1].Token, speaker.announcements[2].Token}
	want := []string{"LAB-001", "LAB-002", "LAB-001"}
	for i := range want {
		if tokens[i] != want[i] {
			t.Fatalf("tokens=%v, want %v", tokens, want)
		}
	}
}

func TestObservePerDepartmentState(t *testing.T) {
	speaker := &fakeSpeaker{}
	c := NewCoordinator(speaker, settings.Defaults(), Options{})

	at := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	entries := []models.QueueEntry{
		called("LAB-001", "Lab", at),
		called("PHA-001", "Pharmacy", at),
	}
	c.Observe(entries)
	c.Observe(entries)

	if len(speaker.announcements) != 2 {
		t.Fatalf("got %d announcements, want one per department", len(speaker.announcements))
	}
}

func TestObserveRespectsDisabledSettings(t *testing.T) {
	s := settings.Defaults()
	s.EnableAnnouncements = false
	speaker := &fakeSpeaker{}
	c := NewCoordinator(speaker, s, Options{})

	at := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	c.Observe([]models.QueueEntry{called("LAB-001", "Lab", at)})
	if len(speaker.announcements) != 0 {
		t.Fatalf("got %d announcements, want 0 while disabled", len(speaker.announcements))
	}

	s.EnableAnnouncements = true
	s.EnableVoiceAnnouncements = false
	c.UpdateSettings(s)
	c.Observe([]models.QueueEntry{called("LAB-002", "Lab", at.Add(time.Minute))})
	if len(speaker.announcements) != 0 {
		t.Fatalf("voice disabled: got %d announcements, want 0", len(speaker.announcements))
	}
}

func TestObserveSpeakerErrorIsIsolated(t *testing.T) {
	speaker := &fakeSpeaker{err: errors.New("audio device gone")}
	c := NewCoordinator(speaker, settings.Defaults(), Options{})

	at := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	c.Observe([]models.QueueEntry{called("LAB-001", "Lab", at)})

	// The failed token stays recorded; the error does not force a retry.
	c.Observe([]models.QueueEntry{called("LAB-001", "Lab", at)})
	if len(speaker.announcements) != 1 {
		t.Fatalf("got %d announcements, want 1", len(speaker.announcements))
	}
}

func TestRender(t *testing.T) {
	entry := models.QueueEntry{Token: "LAB-007", Department: "Lab"}
	text := Render("{hospitalName}: token {prefix} {number}, go to {department} room {room}", entry, "City Clinic", "3B")
	want := "City Clinic: token LAB 007, go to Lab room 3B"
	if text != want {
		t.Fatalf("text=%q, want %q", text, want)
	}
}

func TestRenderUnknownPlaceholderUntouched(t *testing.T) {
	entry := models.QueueEntry{Token: "LAB-007", Department: "Lab"}
	text := Render("token {number} {counter}", entry, "", "")
	if text != "token 007 {counter}" {
		t.Fatalf("text=%q, unknown placeholder must stay verbatim", text)
	}
}
