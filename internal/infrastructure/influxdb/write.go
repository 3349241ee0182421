package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementAction = "scene_action"
	MeasurementRun    = "scene_run"
)

// ActionSample is the timing of one executed scene action.
type ActionSample struct {
	Scene   string
	Kind    string
	Index   int
	Elapsed time.Duration
	Err     error
	At      time.Time
}

// RunSample summarises a finished scene run.
type RunSample struct {
	Scene      string
	Mode       string
	Status     string
	Elapsed    time.Duration
	Actions    int
	Validated  int
	Unverified int
	At         time.Time
}

// WriteAction records one action timing. Non-blocking.
//
// Example:
//
//	client.WriteAction(influxdb.ActionSample{Scene: "notes", Kind: "click", Index: 3, Elapsed: 212 * time.Millisecond})
func (c *Client) WriteAction(s ActionSample) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(actionPoint(s))
}

// WriteRun records a run summary. Non-blocking.
func (c *Client) WriteRun(s RunSample) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(runPoint(s))
}

func actionPoint(s ActionSample) *write.Point {
	at := s.At
	if at.IsZero() {
		at = time.Now()
	}
	fields := map[string]interface{}{
		"duration_ms": float64(s.Elapsed.Microseconds()) / 1000,
		"index":       int64(s.Index),
		"ok":          s.Err == nil,
	}
	if s.Err != nil {
		fields["error"] = s.Err.Error()
	}
	return write.NewPoint(MeasurementAction,
		map[string]string{
			"scene": s.Scene,
			"kind":  s.Kind,
		},
		fields,
		at,
	)
}

func runPoint(s RunSample) *write.Point {
	at := s.At
	if at.IsZero() {
		at = time.Now()
	}
	return write.NewPoint(MeasurementRun,
		map[string]string{
			"scene":  s.Scene,
			"mode":   s.Mode,
			"status": s.Status,
		},
		map[string]interface{}{
			"duration_ms": s.Elapsed.Milliseconds(),
			"actions":     int64(s.Actions),
			"validated":   int64(s.Validated),
			"unverified":  int64(s.Unverified),
		},
		at,
	)
}
