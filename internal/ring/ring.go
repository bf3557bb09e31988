// Package ring provides a fixed-capacity FIFO of float64 values with a mean.
package ring

// Window keeps the most recent Cap() values; pushing into a full window evicts the oldest.
type Window struct {
	buf  []float64
	head int // index of the oldest value
	n    int
}

// New returns an empty window. Capacities below 1 are raised to 1.
func New(capacity int) *Window {
	if capacity < 1 {
		capacity = 1
	}
	return &Window{buf: make([]float64, capacity)}
}

// Push appends v, evicting the oldest value when full.
func (w *Window) Push(v float64) {
	if w.n < len(w.buf) {
		w.buf[(w.head+w.n)%len(w.buf)] = v
		w.n++
		return
	}
	w.buf[w.head] = v
	w.head = (w.head + 1) % len(w.buf)
}

// Mean returns the arithmetic mean of the held values, 0 when empty.
func (w *Window) Mean() float64 {
	if w.n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < w.n; i++ {
		sum += w.buf[(w.head+i)%len(w.buf)]
	}
	return sum / float64(w.n)
}

// Values returns the held values, oldest first.
func (w *Window) Values() []float64 {
	out := make([]float64, w.n)
	for i := range out {
		out[i] = w.buf[(w.head+i)%len(w.buf)]
	}
	return out
}

// Len returns how many values are held.
func (w *Window) Len() int { return w.n }

// Cap returns the configured capacity.
func (w *Window) Cap() int { return len(w.buf) }

// Reset empties the window.
func (w *Window) Reset() {
	w.head, w.n = 0, 0
}
