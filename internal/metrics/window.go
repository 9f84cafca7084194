package metrics

import "time"

// window is a fixed-capacity ring of latency samples. The oldest sample is
// overwritten once the ring is full.
type window struct {
	buf   []time.Duration
	start int
	n     int
}

func newWindow(size int) window {
	return window{buf: make([]time.Duration, size)}
}

func (w *window) push(d time.Duration) {
	if len(w.buf) == 0 {
		return
	}
	if w.n < len(w.buf) {
		w.buf[(w.start+w.n)%len(w.buf)] = d
		w.n++
		return
	}
	w.buf[w.start] = d
	w.start = (w.start + 1) % len(w.buf)
}

func (w *window) len() int {
	return w.n
}

// values returns a copy ordered oldest to newest.
func (w *window) values() []time.Duration {
	out := make([]time.Duration, w.n)
	for i := 0; i < w.n; i++ {
		out[i] = w.buf[(w.start+i)%len(w.buf)]
	}
	return out
}
