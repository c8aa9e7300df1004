//go:build !ebiten

package ui

// HUD is a no-op placeholder for headless builds.
type HUD struct{}

// NewHUD returns nil in the headless build.
func NewHUD([]Material, int) *HUD { return nil }

// Selected returns the zero material in the headless build.
func (h *HUD) Selected() Material { return Material{} }

// Cycle is a no-op in the headless build.
func (h *HUD) Cycle(int) {}

// Update is a no-op in the headless build.
func (h *HUD) Update(int) bool { return false }

// Draw is a no-op in the headless build.
func (h *HUD) Draw(any, int, int, Status) {}
