package hwcaps

import (
	"context"
	"log/slog"
	"sync"

	"github.com/pilebones/go-udev/netlink"

	"squish/internal/logging"
)

// HotplugMonitor listens for udev netlink events on the drm subsystem and
// forces a capability re-probe when a render device appears or disappears.
// GPU hotplug (eGPU docks, driver reloads) otherwise leaves the cached
// snapshot wrong until the TTL lapses.
type HotplugMonitor struct {
	detector *Detector
	logger   *slog.Logger

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	running bool
}

// NewHotplugMonitor creates a monitor bound to the detector.
func NewHotplugMonitor(detector *Detector, logger *slog.Logger) *HotplugMonitor {
	if detector == nil {
		return nil
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &HotplugMonitor{
		detector: detector,
		logger:   logger.With(logging.String(logging.FieldComponent, "hwcaps-hotplug")),
	}
}

// Start begins listening for drm uevents. A failure to open the netlink
// socket is non-fatal; capability staleness then falls back to the TTL.
func (m *HotplugMonitor) Start(ctx context.Context) error {
	if m == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		m.logger.Warn("failed to connect to netlink socket; hardware re-probe relies on TTL",
			logging.Error(err),
		)
		return nil
	}

	m.conn = conn
	m.quit = make(chan struct{})
	m.running = true

	quit := m.quit
	go m.monitorLoop(ctx, quit)

	m.logger.Info("drm hotplug monitor started")
	return nil
}

// Stop shuts down the monitor.
func (m *HotplugMonitor) Stop() {
	if m == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	if m.quit != nil {
		close(m.quit)
		m.quit = nil
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.running = false

	m.logger.Info("drm hotplug monitor stopped")
}

// Running reports whether the monitor is active.
func (m *HotplugMonitor) Running() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *HotplugMonitor) monitorLoop(ctx context.Context, quit <-chan struct{}) {
	queue := make(chan netlink.UEvent)
	errs := make(chan error)

	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return
	}

	monitorQuit := conn.Monitor(queue, errs, drmMatcher())

	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-queue:
			m.logger.Info("drm topology changed, re-probing hardware",
				logging.String("action", string(uevent.Action)),
				logging.String("kobj", uevent.KObj),
			)
			m.detector.Refresh(ctx)
		case err := <-errs:
			m.logger.Warn("drm hotplug monitor error", logging.Error(err))
		}
	}
}

// drmMatcher matches add, change, and remove events on the drm subsystem.
func drmMatcher() netlink.Matcher {
	action := "add|change|remove"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "drm",
		},
	})
	return rules
}
