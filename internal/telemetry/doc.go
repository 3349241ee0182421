// Package telemetry is a client for the HTTP endpoint a target application
// exposes so vif can observe what its UI actually did.
//
// Endpoints (relative to the base URL):
//
//	GET    /vif/events    recent events ring buffer
//	DELETE /vif/events    clear the ring buffer
//	GET    /vif/state     free-form current state
//	POST   /vif/navigate  {"section": "..."} app-side navigation
//	GET    /vif/targets   clickable target registry
package telemetry
