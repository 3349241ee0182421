// Package influxdb writes scene timing data to InfluxDB v2.
//
// Two measurements are produced:
//   - scene_action: one point per executed action (tags scene, kind)
//   - scene_run: one point per finished run (tags scene, mode, status)
//
// Writes go through the batched, non-blocking write API. Failures surface
// through SetOnError and never interrupt a run.
//
// Usage:
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteAction(influxdb.ActionSample{Scene: "notes", Kind: "click", Elapsed: d})
package influxdb
