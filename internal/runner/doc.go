// Package runner executes a scene against the Agent.
//
// A run connects to the Agent, prepares the stage (backdrop, app window,
// viewport, target registry, camera), then executes the scene's actions
// strictly in order. Whatever the run put on screen is tracked in a
// SetupState and torn down in a fixed order whether the run completes,
// fails, or is cancelled:
//
//	recording → audio → typer → keys → labels → cursor → camera → viewport → backdrop
//
// Each teardown step is isolated: a failure hiding one overlay is logged and
// the remaining steps still run. Teardown uses a context detached from the
// run's, so a cancelled run still cleans up.
//
// Handler errors abort the sequence. Validation results never do.
//
// Thread Safety:
//   - A Runner executes one scene at a time; concurrent Run calls return ErrBusy.
package runner
