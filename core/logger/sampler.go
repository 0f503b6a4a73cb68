package logger

import (
	"strconv"
	"strings"
	"sync/atomic"
)

// ratio is an immutable num-out-of-den setting. The zero value lets every event through.
type ratio struct {
	num, den uint64
}

// ratioSampler passes the first num events of every window of den events.
type ratioSampler struct {
	r    atomic.Pointer[ratio]
	seen atomic.Uint64
}

func newRatioSampler(num, den int) *ratioSampler {
	s := &ratioSampler{}
	s.Set(num, den)
	return s
}

// Set replaces the ratio and restarts the window. Non-positive values disable sampling.
func (s *ratioSampler) Set(num, den int) {
	r := &ratio{}
	if num > 0 && den > 0 {
		r.num, r.den = uint64(min(num, den)), uint64(den)
	}
	s.r.Store(r)
	s.seen.Store(0)
}

// Allow reports whether the next event passes.
func (s *ratioSampler) Allow() bool {
	r := s.r.Load()
	if r == nil || r.den == 0 {
		return true
	}
	n := s.seen.Add(1) - 1
	return n%r.den < r.num
}

// parseRatioSpec reads "num/den", a bare "den" meaning 1/den, or "all".
// Anything unparsable yields 0/0.
func parseRatioSpec(spec string) (int, int) {
	spec = strings.ToLower(strings.TrimSpace(spec))
	switch spec {
	case "", "all":
		return 0, 0
	}
	if left, right, ok := strings.Cut(spec, "/"); ok {
		num, errNum := strconv.Atoi(strings.TrimSpace(left))
		den, errDen := strconv.Atoi(strings.TrimSpace(right))
		if errNum != nil || errDen != nil {
			return 0, 0
		}
		return num, den
	}
	v, err := strconv.Atoi(spec)
	if err != nil || v <= 0 {
		return 0, 0
	}
	return 1, v
}
