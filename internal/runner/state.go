package runner

import (
	"context"
	"sort"

	"github.com/arach/vif-sub000/internal/agent"
)

// SetupState tracks what the run currently has on screen.
// Every flag a handler sets is cleared by teardown.
type SetupState struct {
	Backdrop        bool
	Cursor          bool
	Viewport        bool
	Recording       bool
	RecordIndicator bool
	Labels          map[string]struct{}
	Keys            bool
	Typer           bool
	Camera          bool
}

func newSetupState() *SetupState {
	return &SetupState{Labels: make(map[string]struct{})}
}

// Clean reports whether nothing is left to tear down.
func (s *SetupState) Clean() bool {
	return !s.Backdrop && !s.Cursor && !s.Viewport && !s.Recording &&
		!s.RecordIndicator && len(s.Labels) == 0 && !s.Keys && !s.Typer && !s.Camera
}

// sortedLabels returns the visible label ids in a stable order.
func (s *SetupState) sortedLabels() []string {
	ids := make([]string, 0, len(s.Labels))
	for id := range s.Labels {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// teardown hides everything the run showed. It is safe to call repeatedly;
// a second call sends nothing.
func (r *Runner) teardown(ctx context.Context, s *session) {
	st := s.state

	// recording
	if st.Recording {
		if path, err := r.recorder.Stop(ctx); err != nil {
			r.logger.Warn("teardown: stopping recording failed", "error", err)
		} else {
			s.outputs = append(s.outputs, path)
			r.logger.Info("partial recording kept", "path", path)
		}
		st.Recording = false
	}
	if st.RecordIndicator {
		r.hide(ctx, "record.indicator", agent.Params{"show": false})
		st.RecordIndicator = false
	}

	// audio
	if err := s.audio.StopAll(ctx); err != nil {
		r.logger.Warn("teardown: stopping audio failed", "error", err)
	}
	s.audio.Reset()

	if st.Typer {
		r.hide(ctx, "typer.hide", nil)
		st.Typer = false
	}
	if st.Keys {
		r.hide(ctx, "keys.hide", nil)
		st.Keys = false
	}
	for _, id := range st.sortedLabels() {
		r.hide(ctx, "label.hide", agent.Params{"id": id})
		delete(st.Labels, id)
	}
	if st.Cursor {
		r.hide(ctx, "cursor.hide", nil)
		st.Cursor = false
	}
	if st.Camera {
		r.hide(ctx, "camera.hide", nil)
		st.Camera = false
	}
	if st.Viewport {
		r.hide(ctx, "viewport.hide", nil)
		st.Viewport = false
	}
	if st.Backdrop {
		r.hide(ctx, "stage.backdrop", agent.Params{"show": false})
		st.Backdrop = false
	}

	// Safety net for a capture that outlived its stop.
	if r.recorder.IsRecording() {
		r.logger.Warn("teardown: recorder still active, force stopping")
		if err := r.recorder.ForceStop(); err != nil {
			r.logger.Warn("teardown: force stop failed", "error", err)
		}
	}
}

// hide sends one teardown command, logging instead of failing.
func (r *Runner) hide(ctx context.Context, action string, params agent.Params) {
	if _, err := r.agent.Send(ctx, action, params); err != nil {
		r.logger.Warn("teardown step failed", "action", action, "error", err)
	}
}
