package input

// Source produces this step's input given the previous step's sample.
type Source interface {
	Poll(prev Sample) Sample
}

// Device is a control device sampled once per step (a bot, a script, a pad).
type Device interface {
	Read() DeviceState
}

// ── Live ──────────────────────────────────────────────────────────

// Live samples a device every step and derives button edges from the
// previous step.
type Live struct {
	dev Device
}

func NewLive(dev Device) *Live { return &Live{dev: dev} }

func (l *Live) Poll(prev Sample) Sample {
	return FromDevice(l.dev.Read(), prev)
}

// ── Idle ──────────────────────────────────────────────────────────

// Idle always reports no input. Used for entities nobody controls right now.
type Idle struct{}

func (Idle) Poll(Sample) Sample { return Sample{} }

// ── Recording ─────────────────────────────────────────────────────

// Tape is a finished, immutable recording.
type Tape struct {
	samples []Sample
}

func NewTape(samples []Sample) *Tape {
	cp := make([]Sample, len(samples))
	copy(cp, samples)
	return &Tape{samples: cp}
}

func (t *Tape) Len() int {
	if t == nil {
		return 0
	}
	return len(t.samples)
}

func (t *Tape) At(i int) Sample { return t.samples[i] }

// Recording taps another source: every sample is appended to the tape and
// returned unchanged.
type Recording struct {
	src     Source
	samples []Sample
	stopped bool
}

func NewRecording(src Source) *Recording {
	return &Recording{src: src, samples: make([]Sample, 0, 256)}
}

func (r *Recording) Poll(prev Sample) Sample {
	s := r.src.Poll(prev)
	if !r.stopped {
		r.samples = append(r.samples, s)
	}
	return s
}

func (r *Recording) Len() int { return len(r.samples) }

// Stop freezes the recording and returns its tape. Later polls still pass
// through but are no longer recorded.
func (r *Recording) Stop() *Tape {
	r.stopped = true
	return &Tape{samples: r.samples}
}

// ── Replay ────────────────────────────────────────────────────────

// Replay plays a tape back one sample per step. Past the end it keeps
// returning the last sample's continuous values with no new edges, since a
// turn may run a few steps longer than it was recorded.
type Replay struct {
	tape *Tape
	pos  int
	last Sample
}

func NewReplay(tape *Tape) *Replay { return &Replay{tape: tape} }

func (r *Replay) Poll(prev Sample) Sample {
	if r.pos < r.tape.Len() {
		s := r.tape.At(r.pos)
		r.pos++
		r.last = s
		return s
	}
	if r.pos == 0 {
		return prev.Carry()
	}
	return r.last.Carry()
}

// Exhausted reports whether every recorded sample has been played.
func (r *Replay) Exhausted() bool { return r.pos >= r.tape.Len() }

// Rewind restarts playback from the first sample.
func (r *Replay) Rewind() {
	r.pos = 0
	r.last = Sample{}
}
