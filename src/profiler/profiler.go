package profiler

import (
	"log/slog"
	"runtime"
	"time"
)

// Stats is one reporting interval.
type Stats struct {
	FPS         float64
	Frames      int
	Skipped     int
	HeapMB      float64
	AllocRateMB float64
	SysMB       float64
	GCCount     uint32
	LastPauseUs uint64
	MaxPauseUs  uint64
	Elapsed     time.Duration
}

// Profiler tracks frame rate and memory statistics and logs them every
// interval. Skipped frames are ticks where the renderer produced no frame.
type Profiler struct {
	log            *slog.Logger
	now            func() time.Time
	frameCount     int
	skipped        int
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64
	last           Stats
}

// NewProfiler reports to log once per interval. A non-positive interval
// means one second.
func NewProfiler(log *slog.Logger, interval time.Duration) *Profiler {
	if interval <= 0 {
		interval = time.Second
	}
	p := &Profiler{log: log, now: time.Now, updateInterval: interval}
	p.lastTime = p.now()
	return p
}

// Skip records a tick that produced no frame.
func (p *Profiler) Skip() {
	p.skipped++
}

// Tick is called once per presented frame. It reports true when stats were
// logged on this call.
func (p *Profiler) Tick() bool {
	p.frameCount++
	currentTime := p.now()
	elapsed := currentTime.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return false
	}

	runtime.ReadMemStats(&p.memStats)
	s := Stats{
		FPS:         float64(p.frameCount) / elapsed.Seconds(),
		Frames:      p.frameCount,
		Skipped:     p.skipped,
		HeapMB:      float64(p.memStats.Alloc) / 1024 / 1024,
		SysMB:       float64(p.memStats.Sys) / 1024 / 1024,
		AllocRateMB: float64(p.memStats.TotalAlloc-p.lastTotalAlloc) / 1024 / 1024 / elapsed.Seconds(),
		GCCount:     p.memStats.NumGC,
		Elapsed:     elapsed,
	}
	if s.GCCount > 0 {
		// PauseNs is a ring of the last 256 pauses
		s.LastPauseUs = p.memStats.PauseNs[(s.GCCount-1)%256] / 1000
		start := p.lastGCCount
		if s.GCCount-start > 256 {
			start = s.GCCount - 256
		}
		for i := start; i < s.GCCount; i++ {
			if pause := p.memStats.PauseNs[i%256] / 1000; pause > s.MaxPauseUs {
				s.MaxPauseUs = pause
			}
		}
	}

	if p.log != nil {
		p.log.Info("frame stats",
			"fps", s.FPS,
			"skipped", s.Skipped,
			"heapMB", s.HeapMB,
			"allocRateMB", s.AllocRateMB,
			"gc", s.GCCount,
			"lastPauseUs", s.LastPauseUs,
			"maxPauseUs", s.MaxPauseUs,
			"sysMB", s.SysMB,
		)
	}

	p.last = s
	p.frameCount = 0
	p.skipped = 0
	p.lastTime = currentTime
	p.lastGCCount = s.GCCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return true
}

// Last returns the most recently reported interval.
func (p *Profiler) Last() Stats {
	return p.last
}
