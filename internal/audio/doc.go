// Package audio owns the multi-channel audio timeline of a scene run.
//
// The Manager issues audio.* commands to the Agent, records what was played
// and when during a recording, and renders the final mix against the raw
// capture once recording stops.
//
// Channel 1 carries narration and blocks the scene until the clip ends;
// other channels play in the background unless asked to wait.
package audio
