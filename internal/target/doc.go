// Package target converts scene coordinates into absolute screen points.
//
// Scenes may give window-relative points, percentages of the window, or
// named view items ("sidebar.home"). Once stage setup knows where the app
// window sits, a Resolver turns any of these into screen coordinates.
//
// Items are plain points and follow the window-extent heuristic of
// ResolveCoordinates. Positions are always window-relative.
package target
