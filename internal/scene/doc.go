// Package scene defines the parsed scene consumed by the runner and loads it
// from YAML.
//
// A scene file looks like:
//
//	name: notes-demo
//	mode: draft
//	app:
//	  name: Notes
//	  window: {width: 1200, height: 800}
//	stage:
//	  backdrop: true
//	  viewport: {padding: 10}
//	views:
//	  sidebar:
//	    items:
//	      home: {x: 40, y: 120}
//	sequence:
//	  - cursor.show
//	  - click: sidebar.home
//	  - wait: 1s
//	  - record: start
//
// Every sequence item is either a bare kind or a mapping with exactly one key
// (the kind) whose value is the payload. Kinds outside the known set still
// decode; the runner logs and skips them.
package scene
