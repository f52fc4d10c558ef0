// Package logging constructs the process logger and provides typed slog
// attribute helpers plus context-carried job/stage fields so every component
// logs with a consistent shape.
package logging
