package observability

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/relay-labs/rumpbot/internal/domain"
	"github.com/relay-labs/rumpbot/internal/registry"
)

var startTime = time.Now()

// Dashboard renders a live terminal view of a Registry's current agents.
// Unlike the single mutable global status it replaces, the registry is
// the status source, not a second store duplicating it.
type Dashboard struct {
	reg *registry.Registry
}

// NewDashboard returns a Dashboard backed by reg.
func NewDashboard(reg *registry.Registry) *Dashboard {
	return &Dashboard{reg: reg}
}

// Print renders one frame of the live status line, per the teacher's
// single-line escape-sequence idiom (cursor save, move to the status row,
// clear it, write, cursor restore), synchronized with log output through
// termMu.
func (d *Dashboard) Print() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	uptime := time.Since(startTime).Round(time.Second)
	memMB := float64(m.Alloc) / 1024 / 1024

	entries := d.reg.Snapshot()
	var active, stalled int
	var orchLabel string
	for _, e := range entries {
		if e.Phase == domain.PhaseComplete {
			continue
		}
		active++
		if time.Since(e.LastActivityAt) > 120*time.Second {
			stalled++
		}
		if e.Role == domain.RoleOrchestrator && orchLabel == "" {
			orchLabel = truncateLabel(e.Description, 25)
		}
	}

	icon := "💤"
	roleColor := colorReset
	displayTask := "Waiting..."
	if active > 0 {
		icon = "🛰️"
		roleColor = colorNeonCyan
		if orchLabel != "" {
			displayTask = orchLabel
		} else {
			displayTask = "working"
		}
	}

	pulseIcon, pulseText, pulseColor := "🟢", "HEALTHY", colorNeonCyan
	if stalled > 0 {
		pulseIcon, pulseText, pulseColor = "🟡", "STALLED", colorPurple
	}

	radar := " "
	if active > 0 {
		radar = radarFrames[radarIdx]
		radarIdx = (radarIdx + 1) % len(radarFrames)
	}

	totalMB := float64(m.Sys) / 1024 / 1024
	memPercent := memMB / totalMB
	barWidth := 20
	filled := clamp(int(memPercent*float64(barWidth)), 0, barWidth)
	bar := strings.Repeat("█", filled) + strings.Repeat("▒", barWidth-filled)
	barColor := colorNeonCyan
	if memPercent > 0.7 {
		barColor = colorNeonMag
	}

	statusStr := fmt.Sprintf(
		"\033[s\033[10;1H\033[K%s[%s] %s%s %-10s%s | %s%s %-25s%s %s%s%s [%v] [%s%s %.1fMB%s]\033[u",
		colorReset,
		time.Now().Format("15:04:05"),
		pulseColor, pulseIcon, pulseText, colorReset,
		roleColor, icon, displayTask, colorReset,
		colorPurple, radar, colorReset,
		uptime,
		barColor, bar, memMB, colorReset,
	)

	termMu.Lock()
	fmt.Print(statusStr)
	termMu.Unlock()
}

func truncateLabel(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
