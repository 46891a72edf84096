package led

import (
	"sync"

	"github.com/smazurov/camrecorder/internal/events"
	"github.com/smazurov/camrecorder/internal/logging"
)

// Manager lights an LED while a segment is being written and blinks it while
// the recording encoder runs without an open segment (pre-roll).
type Manager struct {
	controller Controller
	ledType    string
	eventBus   *events.Bus
	logger     logging.Logger
	unsubs     []func()

	mu        sync.Mutex
	recording bool
	segment   string
	applied   string
}

// NewManager creates a manager for ledType. If ledType is empty the first
// LED the board offers is used.
func NewManager(controller Controller, ledType string, eventBus *events.Bus, logger logging.Logger) *Manager {
	if ledType == "" {
		if available := controller.Available(); len(available) > 0 {
			ledType = available[0]
		}
	}
	return &Manager{
		controller: controller,
		ledType:    ledType,
		eventBus:   eventBus,
		logger:     logger,
	}
}

// Start subscribes to recording events and switches the LED off.
func (m *Manager) Start() {
	m.unsubs = append(m.unsubs,
		m.eventBus.Subscribe(func(e events.RecordingStateChangedEvent) {
			m.update(func() { m.recording = e.Active })
		}),
		m.eventBus.Subscribe(func(e events.SegmentOpenedEvent) {
			m.update(func() { m.segment = e.SegmentID })
		}),
		m.eventBus.Subscribe(func(e events.SegmentClosedEvent) {
			m.update(func() {
				if m.segment == e.SegmentID {
					m.segment = ""
				}
			})
		}),
	)
	m.update(func() {})
	m.logger.Info("LED manager started", "led", m.ledType)
}

// Stop unsubscribes and switches the LED off.
func (m *Manager) Stop() {
	for _, unsub := range m.unsubs {
		unsub()
	}
	m.unsubs = nil
	m.update(func() {
		m.recording = false
		m.segment = ""
	})
	m.logger.Info("LED manager stopped")
}

// LED returns the LED the manager drives, or "" when the board has none.
func (m *Manager) LED() string {
	return m.ledType
}

// Available lists the LEDs of the board.
func (m *Manager) Available() []string {
	return m.controller.Available()
}

// Pattern returns the pattern currently applied: solid, blink or off.
func (m *Manager) Pattern() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applied
}

func (m *Manager) update(change func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	change()

	pattern := "off"
	switch {
	case m.segment != "":
		pattern = PatternSolid
	case m.recording:
		pattern = PatternBlink
	}
	if pattern == m.applied {
		return
	}

	var err error
	if pattern == "off" {
		err = m.controller.Set(m.ledType, false, "")
	} else {
		err = m.controller.Set(m.ledType, true, pattern)
	}
	if err != nil {
		m.logger.Warn("Failed to set LED", "led", m.ledType, "pattern", pattern, "error", err)
		return
	}
	m.applied = pattern
	m.logger.Debug("LED updated", "led", m.ledType, "pattern", pattern)
}
