package audio

import (
	"sort"

	"github.com/arach/vif-sub000/internal/media"
)

// EventType classifies timeline entries.
type EventType string

// Timeline event types.
const (
	EventPlay   EventType = "play"
	EventStop   EventType = "stop"
	EventVolume EventType = "volume"
	EventMic    EventType = "mic"
)

// Event is one timeline entry. At is seconds since the recording began.
type Event struct {
	Type    EventType `json:"type"`
	Channel int       `json:"channel"`
	File    string    `json:"file,omitempty"`
	At      float64   `json:"at"`

	FadeIn   float64 `json:"fadeIn,omitempty"`
	FadeOut  float64 `json:"fadeOut,omitempty"`
	StartAt  float64 `json:"startAt,omitempty"`
	Volume   float64 `json:"volume,omitempty"`
	Duration float64 `json:"duration,omitempty"`
	Loop     bool    `json:"loop,omitempty"`

	Device  string `json:"device,omitempty"`
	Enabled bool   `json:"enabled,omitempty"`

	// Live marks microphone events, which are captured by the recorder
	// itself and never mixed.
	Live bool `json:"live,omitempty"`
}

// BuildTracks converts a timeline into mix tracks.
//
// A play opens a track on its channel, closing any track already playing
// there. A stop closes the channel's track (every channel for channel 0),
// extended by its fade-out. Volume events become ramps on the open track.
// Live events are skipped.
func BuildTracks(events []Event) []media.Track {
	var tracks []media.Track
	open := make(map[int]int) // channel -> index into tracks

	closeTrack := func(ch int, at, fadeOut float64) {
		idx, ok := open[ch]
		if !ok {
			return
		}
		t := &tracks[idx]
		t.End = at + fadeOut
		if fadeOut > 0 {
			t.FadeOut = fadeOut
		}
		delete(open, ch)
	}

	for _, ev := range events {
		if ev.Live {
			continue
		}
		switch ev.Type {
		case EventPlay:
			closeTrack(ev.Channel, ev.At, 0)
			tracks = append(tracks, media.Track{
				File:       ev.File,
				Start:      ev.At,
				ClipOffset: ev.StartAt,
				FadeIn:     ev.FadeIn,
				FadeOut:    ev.FadeOut,
				Volume:     ev.Volume,
				Loop:       ev.Loop,
			})
			open[ev.Channel] = len(tracks) - 1

		case EventStop:
			if ev.Channel == 0 {
				channels := make([]int, 0, len(open))
				for ch := range open {
					channels = append(channels, ch)
				}
				sort.Ints(channels)
				for _, ch := range channels {
					closeTrack(ch, ev.At, ev.FadeOut)
				}
				continue
			}
			closeTrack(ev.Channel, ev.At, ev.FadeOut)

		case EventVolume:
			if idx, ok := open[ev.Channel]; ok {
				t := &tracks[idx]
				t.Ramps = append(t.Ramps, media.Ramp{
					At:       ev.At - t.Start,
					To:       ev.Volume,
					Duration: ev.Duration,
				})
			}
		}
	}
	return tracks
}
