package services

import (
	"log/slog"
	"time"

	"github.com/pazarly/reaper/internal/scanner"
)

// Sweeper runs a full detection scan on a fixed cadence. Each tick is the
// same bounded batch job the scan endpoint triggers; with interval <= 0 the
// sweeper never starts and scans stay operator-driven.
type Sweeper struct {
	scanner  *scanner.Scanner
	interval time.Duration
	stop     chan struct{}
	running  bool
}

func NewSweeper(s *scanner.Scanner, interval time.Duration) *Sweeper {
	return &Sweeper{
		scanner:  s,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

func (s *Sweeper) Start() {
	if s.interval <= 0 {
		slog.Info("Periodic sweep disabled")
		return
	}
	s.running = true
	go s.loop()
	slog.Info("Sweeper started", "interval", s.interval.String())
}

func (s *Sweeper) Stop() {
	if !s.running {
		return
	}
	s.running = false
	s.stop <- struct{}{}
	slog.Info("Sweeper stopped")
}

func (s *Sweeper) loop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Run an initial sweep on startup
	s.sweep()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stop:
			return
		}
	}
}

func (s *Sweeper) sweep() {
	report := s.scanner.Scan(nil, false)
	slog.Info("Periodic sweep finished",
		"found", report.TotalFound,
		"new_detections", report.TotalNewDetections,
	)
}
