package mqtt

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultTopicPrefix is used when the configured prefix is empty.
const DefaultTopicPrefix = "vif"

// Run lifecycle phases published under <prefix>/run/<scene>/<phase>.
const (
	PhaseStarted   = "started"
	PhaseCompleted = "completed"
	PhaseFailed    = "failed"
)

var slugUnsafe = regexp.MustCompile(`[^a-z0-9]+`)

// Topics builds vif MQTT topics under a common prefix.
//
//	topics := mqtt.Topics{Prefix: "vif"}
//	topics.Run("Notes Demo", mqtt.PhaseStarted)
//	// Returns: "vif/run/notes-demo/started"
type Topics struct {
	Prefix string
}

func (t Topics) prefix() string {
	if t.Prefix == "" {
		return DefaultTopicPrefix
	}
	return strings.TrimSuffix(t.Prefix, "/")
}

// Run returns the topic for a run lifecycle phase of the named scene.
func (t Topics) Run(scene, phase string) string {
	return fmt.Sprintf("%s/run/%s/%s", t.prefix(), Slug(scene), phase)
}

// Status returns the retained runner presence topic.
//
// Example: vif/runner/status
func (t Topics) Status() string {
	return t.prefix() + "/runner/status"
}

// AllRuns returns a pattern matching every run lifecycle message.
//
// Pattern: vif/run/+/+
func (t Topics) AllRuns() string {
	return t.prefix() + "/run/+/+"
}

// Slug lowercases name and collapses anything outside [a-z0-9] into single
// dashes so it is safe as one topic level (no '/', '+' or '#').
func Slug(name string) string {
	s := slugUnsafe.ReplaceAllString(strings.ToLower(name), "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return "unnamed"
	}
	return s
}
