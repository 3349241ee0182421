// Package validation confirms that UI actions performed during a scene
// actually took effect, by matching them against the application's
// telemetry events.
//
// Validation is advisory: a Service never fails a run. An action with no
// matching event is recorded as unverified, which is counted apart from
// passed and failed results.
package validation
