// Package aggregate manages OS-level aggregate output devices that mirror
// audio to two physical outputs. Every created device is tracked by its
// public UID until it is destroyed.
package aggregate

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/petems/micstream/internal/audio"
	"github.com/petems/micstream/internal/config"
)

var (
	// ErrUnknownAggregate is returned for public UIDs that are not tracked,
	// including ones already destroyed.
	ErrUnknownAggregate = errors.New("unknown aggregate device")
	// ErrDuplicate is returned when the public UID is already in use.
	ErrDuplicate = errors.New("aggregate device already exists")
	// ErrInvalidArgument is returned for empty UIDs.
	ErrInvalidArgument = errors.New("invalid aggregate device arguments")
)

// Handle identifies a created aggregate device.
type Handle struct {
	ID        audio.ObjectID `json:"id"`
	Master    string         `json:"masterUID"`
	Second    string         `json:"secondUID"`
	PublicUID string         `json:"publicUID"`
}

// Manager creates, tracks and destroys aggregate devices.
type Manager struct {
	backend audio.Aggregator
	devices audio.Registry
	name    string
	log     zerolog.Logger

	mu      sync.Mutex
	handles map[string]Handle
}

// New returns a manager. An empty name uses config.DefaultAggregateName.
// devices may be nil, in which case UID checks are left to the backend.
func New(backend audio.Aggregator, devices audio.Registry, name string, log zerolog.Logger) *Manager {
	if name == "" {
		name = config.DefaultAggregateName
	}
	return &Manager{
		backend: backend,
		devices: devices,
		name:    name,
		log:     log.With().Str("component", "aggregate").Logger(),
		handles: make(map[string]Handle),
	}
}

// Create registers a stacked aggregate whose members are exactly master
// and second, with master as the clock source.
func (m *Manager) Create(master, second, publicUID string) (Handle, error) {
	if master == "" || second == "" || publicUID == "" {
		return Handle{}, fmt.Errorf("%w: master, second and public UID are required", ErrInvalidArgument)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.handles[publicUID]; exists {
		return Handle{}, fmt.Errorf("%w: %s", ErrDuplicate, publicUID)
	}

	for _, uid := range []string{master, second} {
		if err := m.checkOutput(uid); err != nil {
			return Handle{}, err
		}
	}

	desc := audio.AggregateDescription{
		Name:       m.name,
		UID:        publicUID,
		Master:     master,
		SubDevices: []string{master, second},
		Stacked:    true,
	}
	id, err := m.backend.CreateAggregate(desc)
	if err != nil {
		m.log.Error().Err(err).Str("master", master).Str("second", second).Msg("Failed to create aggregate device")
		return Handle{}, fmt.Errorf("create aggregate device %s: %w", publicUID, err)
	}

	h := Handle{ID: id, Master: master, Second: second, PublicUID: publicUID}
	m.handles[publicUID] = h
	m.log.Info().
		Uint32("id", uint32(id)).
		Str("uid", publicUID).
		Str("master", master).
		Str("second", second).
		Msg("Created aggregate device")
	return h, nil
}

// checkOutput fails with StatusBadDevice when the registry can confirm
// that uid is not an output-capable device.
func (m *Manager) checkOutput(uid string) error {
	if m.devices == nil {
		return nil
	}
	_, ok, err := audio.FindOutput(m.devices, uid)
	if err != nil {
		// Let the hardware decide when the registry is unreadable.
		m.log.Warn().Err(err).Msg("Failed to enumerate devices before creating aggregate")
		return nil
	}
	if !ok {
		return fmt.Errorf("device %s is not an output device: %w", uid, audio.StatusBadDevice)
	}
	return nil
}

// SetDefaultOutput makes h the machine-wide default output device.
func (m *Manager) SetDefaultOutput(h Handle) error {
	if err := m.backend.SetDefaultOutput(h.ID); err != nil {
		return fmt.Errorf("set default output to %s: %w", h.PublicUID, err)
	}
	m.log.Info().Str("uid", h.PublicUID).Msg("System default output changed")
	return nil
}

// Destroy releases the aggregate registered under publicUID.
func (m *Manager) Destroy(publicUID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, ok := m.handles[publicUID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAggregate, publicUID)
	}
	return m.destroyLocked(h)
}

func (m *Manager) destroyLocked(h Handle) error {
	err := m.backend.DestroyAggregate(h.ID)
	if err != nil && !errors.Is(err, audio.StatusBadObject) {
		return fmt.Errorf("destroy aggregate device %s: %w", h.PublicUID, err)
	}
	// A bad object means the OS already dropped it; stop tracking either way.
	delete(m.handles, h.PublicUID)
	if err != nil {
		return fmt.Errorf("destroy aggregate device %s: %w", h.PublicUID, err)
	}
	m.log.Info().Str("uid", h.PublicUID).Msg("Destroyed aggregate device")
	return nil
}

// DestroyAll releases every tracked aggregate and joins the failures.
func (m *Manager) DestroyAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for _, h := range m.sortedLocked() {
		if err := m.destroyLocked(h); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Lookup returns the handle registered under publicUID.
func (m *Manager) Lookup(publicUID string) (Handle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.handles[publicUID]
	return h, ok
}

// List returns every tracked aggregate ordered by public UID.
func (m *Manager) List() []Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedLocked()
}

func (m *Manager) sortedLocked() []Handle {
	list := make([]Handle, 0, len(m.handles))
	for _, h := range m.handles {
		list = append(list, h)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].PublicUID < list[j].PublicUID })
	return list
}
