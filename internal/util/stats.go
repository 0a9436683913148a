package util

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/pterm/pterm"
)

// ──────────────────────────────────────────────────────────────────────────────
// Global stats singleton
// ──────────────────────────────────────────────────────────────────────────────

// Stats is the process-wide connection and frame counter.
var Stats = &stats{}

type stats struct {
	TotalConns     atomic.Int64 // cumulative transport connections since process start
	ClosedConns    atomic.Int64 // cumulative closed transport connections
	Logins         atomic.Int64 // gateway logins accepted
	FramesIn       atomic.Int64 // app-data frames received
	FramesOut      atomic.Int64 // app-data frames sent
	FramesDropped  atomic.Int64 // frames dropped: malformed, rate limited or undecryptable
	TunnelBytesIn  atomic.Int64 // opaque tunnel payload bytes received
	TunnelBytesOut atomic.Int64 // opaque tunnel payload bytes sent
}

func (s *stats) AddConn()           { s.TotalConns.Add(1) }
func (s *stats) RemoveConn()        { s.ClosedConns.Add(1) }
func (s *stats) AddLogin()          { s.Logins.Add(1) }
func (s *stats) AddFrameIn()        { s.FramesIn.Add(1) }
func (s *stats) AddFrameOut()       { s.FramesOut.Add(1) }
func (s *stats) AddDropped()        { s.FramesDropped.Add(1) }
func (s *stats) AddTunnelIn(n int)  { s.TunnelBytesIn.Add(int64(n)) }
func (s *stats) AddTunnelOut(n int) { s.TunnelBytesOut.Add(int64(n)) }
func (s *stats) ActiveConns() int64 { return s.TotalConns.Load() - s.ClosedConns.Load() }

// Collectors exposes the counters as Prometheus metrics under namespace.
// The metrics read the atomics at scrape time.
func (s *stats) Collectors(namespace string) []prometheus.Collector {
	counter := func(name, help string, v *atomic.Int64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(v.Load()) })
	}
	return []prometheus.Collector{
		counter("connections_total", "Transport connections accepted.", &s.TotalConns),
		counter("disconnections_total", "Transport connections closed.", &s.ClosedConns),
		counter("logins_total", "Gateway logins accepted.", &s.Logins),
		counter("frames_in_total", "App-data frames received.", &s.FramesIn),
		counter("frames_out_total", "App-data frames sent.", &s.FramesOut),
		counter("frames_dropped_total", "Inbound frames dropped.", &s.FramesDropped),
		counter("tunnel_bytes_in_total", "Tunnel payload bytes received.", &s.TunnelBytesIn),
		counter("tunnel_bytes_out_total", "Tunnel payload bytes sent.", &s.TunnelBytesOut),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Transport connections currently open.",
		}, func() float64 { return float64(s.ActiveConns()) }),
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Periodic reporter
// ──────────────────────────────────────────────────────────────────────────────

// StartStatsReporter launches a goroutine that logs relay statistics every
// interval. It stops when ctx is cancelled.
func StartStatsReporter(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		secs := interval.Seconds()
		var prevIn, prevOut, prevTotal, prevClosed int64
		for {
			select {
			case <-ticker.C:
				total := Stats.TotalConns.Load()
				closed := Stats.ClosedConns.Load()
				in := Stats.TunnelBytesIn.Load()
				out := Stats.TunnelBytesOut.Load()

				inS := float64(in-prevIn) / secs
				outS := float64(out-prevOut) / secs
				inC := total - prevTotal
				outC := closed - prevClosed

				if inC > 0 || outC > 0 || inS > 10 || outS > 10 {
					pterm.DefaultLogger.Info(formatStats(inS, outS, inC, outC))
				}

				prevIn = in
				prevOut = out
				prevTotal = total
				prevClosed = closed

			case <-ctx.Done():
				return
			}
		}
	}()
}

// byteUnits defines the units for formatting byte counts in a human-readable way.
var byteUnits = []string{"B", "KiB", "MiB", "GiB", "TiB", "PiB"}

// formatBytes formats a byte count into a fixed-width (8 chars) string,
// e.g. "99.0   B", " 1.5 KiB", "98.9 GiB".
func formatBytes(b float64) string {
	unitIdx := 0

	// to prevent "100.0 KiB", which is 9 chars
	for b > 99 && unitIdx < 5 {
		b /= 1024
		unitIdx++
	}

	return fmt.Sprintf("%4.1f %3s", b, byteUnits[unitIdx])
}

// formatStats returns a formatted string of the current stats for display in the logger.
func formatStats(inS, outS float64, inC, outC int64) string {
	return fmt.Sprintf("Tunnel in: %s/s | out: %s/s | Conn: %2d↑ %2d↓ | Active: %d",
		formatBytes(inS),
		formatBytes(outS),
		inC,
		outC,
		Stats.ActiveConns(),
	)
}
