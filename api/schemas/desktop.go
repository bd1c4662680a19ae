// File: api/schemas/desktop.go
package schemas

import "time"

// WindowInfo is a snapshot of a top-level window as reported by the OS layer.
type WindowInfo struct {
	Handle      int64  `json:"handle"`
	Title       string `json:"title"`
	ProcessName string `json:"process_name"`
	PID         int    `json:"pid"`
	X           int    `json:"x"`
	Y           int    `json:"y"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	IsVisible   bool   `json:"is_visible"`
	IsMinimized bool   `json:"is_minimized"`
	IsMaximized bool   `json:"is_maximized"`
}

// ProcessInfo describes a running process.
type ProcessInfo struct {
	PID       int       `json:"pid"`
	Name      string    `json:"name"`
	Path      string    `json:"path,omitempty"`
	Status    string    `json:"status,omitempty"`
	MemoryMB  float64   `json:"memory_mb,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// BoundingBox is a screen rectangle in window-relative coordinates.
type BoundingBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Center returns the midpoint of the box.
func (b BoundingBox) Center() (int, int) {
	return b.X + b.Width/2, b.Y + b.Height/2
}

// ElementReference is a cached pointer to a UI element discovered during a
// run. Coordinates are relative to the window the element was found in, so a
// reference is only meaningful while that window stays current.
type ElementReference struct {
	Name        string      `json:"name"`
	Source      string      `json:"source"` // "ui_automation", "visual", ...
	BoundingBox BoundingBox `json:"bounding_box"`
	Confidence  float64     `json:"confidence"`
	FoundAt     time.Time   `json:"found_at"`
}

// Stale reports whether the reference has outlived maxAge or was discovered
// below minConfidence. Stale references must not be acted on; the element may
// have moved or disappeared.
func (r ElementReference) Stale(now time.Time, maxAge time.Duration, minConfidence float64) bool {
	if maxAge > 0 && now.Sub(r.FoundAt) > maxAge {
		return true
	}
	return r.Confidence < minConfidence
}
