// Package agent implements the command protocol spoken with the vif Agent,
// the process that draws overlays, synthesises input and captures the screen.
//
// Requests are JSON objects {id, action, ...params}; replies echo the id
// with ok and an optional error:
//
//	→ {"id": 7, "action": "cursor.moveTo", "x": 410, "y": 260, "duration": 0.4}
//	← {"id": 7, "ok": true}
//
// Usage:
//
//	client := agent.New(agent.Config{URL: "ws://127.0.0.1:7850"})
//	if err := client.Connect(ctx); err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	reply, err := client.Send(ctx, "stage.center", agent.Params{"app": "Notes", "width": 1200, "height": 800})
package agent
