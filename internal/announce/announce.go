// Package announce decides when a "now serving" announcement fires. The
// entry list is recomputed on every feed event, many of which concern other
// entries, so the coordinator keeps a per-department last-announced token and
// only speaks on a change.
package announce

import (
	"log"
	"strings"
	"sync"

	"github.com/shamadu25/rave-queue-sub001/internal/models"
	"github.com/shamadu25/rave-queue-sub001/internal/settings"
	"github.com/shamadu25/rave-queue-sub001/internal/store"
	"github.com/shamadu25/rave-queue-sub001/internal/view"
)

// Announcement is what a display speaks and shows for one called token.
type Announcement struct {
	Department     string  `json:"department"`
	Token          string  `json:"token"`
	Text           string  `json:"text"`
	UseNativeVoice bool    `json:"use_native_voice"`
	VoiceRate      float64 `json:"voice_rate"`
	VoicePitch     float64 `json:"voice_pitch"`
	VoiceVolume    float64 `json:"voice_volume"`
}

// Speaker delivers an announcement. Implementations must not block the
// coordinator; errors are logged here and never propagate to queue actions.
type Speaker interface {
	Announce(a Announcement) error
}

type Options struct {
	// Rooms maps a department name to the room text substituted for {room}.
	Rooms map[string]string
}

type Coordinator struct {
	mu            sync.Mutex
	speaker       Speaker
	settings      settings.Settings
	rooms         map[string]string
	lastAnnounced map[string]string
}

func NewCoordinator(speaker Speaker, s settings.Settings, options Options) *Coordinator {
	return &Coordinator{
		speaker:       speaker,
		settings:      s,
		rooms:         options.Rooms,
		lastAnnounced: make(map[string]string),
	}
}

// UpdateSettings swaps in a freshly loaded settings snapshot.
func (c *Coordinator) UpdateSettings(s settings.Settings) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.settings = s
}

// Observe recomputes the currently-serving projection per department and
// announces each token that differs from the last announced one. The compare
// and the record happen under one lock so a rapid double Observe with the
// same snapshot cannot double-announce.
func (c *Coordinator) Observe(entries []models.QueueEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, dept := range calledDepartments(entries) {
		current, ok := view.CurrentlyServing(entries, dept)
		if !ok {
			continue
		}
		if c.lastAnnounced[dept] == current.Token {
			continue
		}
		c.lastAnnounced[dept] = current.Token
		if !c.settings.EnableAnnouncements || !c.settings.EnableVoiceAnnouncements {
			continue
		}
		a := Announcement{
			Department:     dept,
			Token:          current.Token,
			Text:           Render(c.settings.AnnouncementTemplate, current, c.settings.HospitalName, c.rooms[dept]),
			UseNativeVoice: c.settings.UseNativeVoice,
			VoiceRate:      c.settings.VoiceRate,
			VoicePitch:     c.settings.VoicePitch,
			VoiceVolume:    c.settings.VoiceVolume,
		}
		if err := c.speaker.Announce(a); err != nil {
			log.Printf("announce error dept=%s token=%s: %v", dept, current.Token, err)
		}
	}
}

// Render substitutes the recognized placeholders into the template.
// Unrecognized placeholders are left untouched.
func Render(template string, entry models.QueueEntry, hospitalName, room string) string {
	prefix, number := store.TokenParts(entry.Token)
	result := template
	result = strings.ReplaceAll(result, "{number}", number)
	result = strings.ReplaceAll(result, "{prefix}", prefix)
	result = strings.ReplaceAll(result, "{department}", entry.Department)
	result = strings.ReplaceAll(result, "{hospitalName}", hospitalName)
	result = strings.ReplaceAll(result, "{room}", room)
	return result
}

func calledDepartments(entries []models.QueueEntry) []string {
	seen := make(map[string]bool)
	var depts []string
	for _, entry := range entries {
		if entry.Status != models.StatusCalled {
			continue
		}
		if seen[entry.Department] {
			continue
		}
		seen[entry.Department] = true
		depts = append(depts, entry.Department)
	}
	return depts
}
