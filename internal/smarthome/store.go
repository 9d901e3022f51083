package smarthome

import (
	"context"
	"time"

	"github.com/hearthd/hearth/internal/resilience"
)

// Cache tuning. Rooms and groups use adaptive caches because control
// operations change their nested device state; devices use a plain TTL
// cache that control paths clear outright.
const (
	deviceCacheTTL     = 30 * time.Second
	listBaseTTL        = 30 * time.Second
	listShortTTL       = 5 * time.Second
	listActivityWindow = time.Minute
)

// Store layers read caches over a Client. Control paths call the
// Mark* methods after a successful state change so the next read sees
// fresh data.
type Store struct {
	client *Client

	devices *resilience.Cache[[]Device]
	rooms   *resilience.SmartCache[[]Room]
	groups  *resilience.SmartCache[[]Group]
}

// NewStore creates a caching store over client.
func NewStore(client *Client) *Store {
	return &Store{
		client:  client,
		devices: resilience.NewCache[[]Device](deviceCacheTTL),
		rooms:   resilience.NewSmartCache[[]Room](listBaseTTL, listShortTTL, listActivityWindow),
		groups:  resilience.NewSmartCache[[]Group](listBaseTTL, listShortTTL, listActivityWindow),
	}
}

// Client returns the underlying API client.
func (s *Store) Client() *Client { return s.client }

// Devices returns the device inventory, served from cache when fresh.
func (s *Store) Devices(ctx context.Context) ([]Device, error) {
	if cached, ok := s.devices.Get(); ok {
		return cached, nil
	}
	return s.RefreshDevices(ctx)
}

// RefreshDevices bypasses the cache and repopulates it.
func (s *Store) RefreshDevices(ctx context.Context) ([]Device, error) {
	devices, err := s.client.Devices(ctx)
	if err != nil {
		return nil, err
	}
	s.devices.Set(devices)
	return devices, nil
}

// Rooms returns all rooms, served from cache when fresh.
func (s *Store) Rooms(ctx context.Context) ([]Room, error) {
	if cached, ok := s.rooms.Get(); ok {
		return cached, nil
	}
	return s.RefreshRooms(ctx)
}

// RefreshRooms bypasses the cache and repopulates it.
func (s *Store) RefreshRooms(ctx context.Context) ([]Room, error) {
	rooms, err := s.client.Rooms(ctx)
	if err != nil {
		return nil, err
	}
	s.rooms.Set(rooms)
	return rooms, nil
}

// Groups returns all groups, served from cache when fresh.
func (s *Store) Groups(ctx context.Context) ([]Group, error) {
	if cached, ok := s.groups.Get(); ok {
		return cached, nil
	}
	return s.RefreshGroups(ctx)
}

// RefreshGroups bypasses the cache and repopulates it.
func (s *Store) RefreshGroups(ctx context.Context) ([]Group, error) {
	groups, err := s.client.Groups(ctx)
	if err != nil {
		return nil, err
	}
	s.groups.Set(groups)
	return groups, nil
}

// MarkDevicesModified clears the device cache after a state change.
func (s *Store) MarkDevicesModified() {
	s.devices.Clear()
}

// MarkRoomsModified clears the room cache and puts it on the short TTL
// while state is settling.
func (s *Store) MarkRoomsModified() {
	s.rooms.Clear()
}

// MarkGroupsModified clears the group cache and puts it on the short
// TTL while state is settling.
func (s *Store) MarkGroupsModified() {
	s.groups.Clear()
}

// InvalidateAll empties every cache without treating it as a local
// modification. Used when external changes are suspected.
func (s *Store) InvalidateAll() {
	s.devices.Clear()
	s.rooms.Invalidate()
	s.groups.Invalidate()
}
