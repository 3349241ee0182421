// Package mqtt publishes vif run lifecycle events to an MQTT broker.
//
// A runner publishes three kinds of message:
//   - <prefix>/runner/status  retained online/offline presence (with LWT)
//   - <prefix>/run/<scene>/started
//   - <prefix>/run/<scene>/completed or .../failed
//
// Scene names are slugged into a single topic level. Publishing is
// best-effort from the runner's point of view: a missing broker never
// fails a scene.
//
// Usage:
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.PublishRunEvent(scene.Name, mqtt.PhaseStarted, payload)
package mqtt
