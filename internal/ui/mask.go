package ui

import "stardust/internal/world"

// Debug views over the shared arrays.
const (
	MaskLocks = iota + 1
	MaskSettled
)

var (
	lockTint    = [4]byte{255, 64, 64, 200}
	settledTint = [4]byte{64, 220, 120, 110}
)

// FillMask writes an RGBA mask of the current window into buf and returns it,
// grown if needed. MaskLocks marks locked cells; MaskSettled marks cells that
// finished the current tick. Reads are unsynchronised like the renderer's.
func FillMask(w *world.World, kind int, buf []byte) []byte {
	r := w.Window()
	n := 4 * r.Area()
	if cap(buf) < n {
		buf = make([]byte, n)
	}
	buf = buf[:n]
	clear(buf)

	stamp := world.TickStamp(w.Tick())
	i := 0
	for y := r.Y1; y < r.Y2; y++ {
		for x := r.X1; x < r.X2; x++ {
			idx := w.Index(x, y)
			switch kind {
			case MaskLocks:
				if w.Cells.Lock[idx] != 0 {
					copy(buf[i:i+4], lockTint[:])
				}
			case MaskSettled:
				if w.Cells.TickParity[idx] == stamp && w.Cells.Stage[idx] == world.StageSettled {
					copy(buf[i:i+4], settledTint[:])
				}
			}
			i += 4
		}
	}
	return buf
}
