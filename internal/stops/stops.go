// package stops holds the ordered, labeled stop collection that defines a route.
//
// Order is meaningful: the first stop is the origin and the last the destination.
// Labels are recomputed after every mutation so they always reflect position.
package stops

import (
	"errors"
	"fmt"
	"sync"

	"github.com/desertthunder/fleetroute/internal/models"
	"github.com/desertthunder/fleetroute/internal/shared"
)

var (
	ErrDuplicateStop   = errors.New("stop id already in collection")
	ErrStopNotFound    = errors.New("stop not found")
	ErrIndexOutOfRange = errors.New("stop index out of range")
)

// Patch carries optional field updates; nil fields are left unchanged.
type Patch struct {
	Latitude  *float64
	Longitude *float64
	Address   *string
	Priority  *int
	// ClearPriority removes the priority; it wins over Priority.
	ClearPriority bool
}

// Collection is safe for concurrent use.
type Collection struct {
	mu    sync.RWMutex
	stops []models.Stop
}

// New creates a collection seeded with stops. Missing ids are generated.
func New(initial ...models.Stop) (*Collection, error) {
	c := &Collection{}
	if err := c.Replace(initial); err != nil {
		return nil, err
	}
	return c, nil
}

// Add appends a stop and returns it as stored (with id and label).
func (c *Collection) Add(stop models.Stop) (models.Stop, error) {
	if err := stop.Validate(); err != nil {
		return models.Stop{}, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if stop.ID == "" {
		stop.ID = shared.GenerateID()
	} else if c.indexOf(stop.ID) >= 0 {
		return models.Stop{}, fmt.Errorf("%w: %s", ErrDuplicateStop, stop.ID)
	}

	c.stops = append(c.stops, stop)
	c.relabel()
	return c.stops[len(c.stops)-1], nil
}

// Remove deletes the stop with the given id.
func (c *Collection) Remove(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrStopNotFound, id)
	}

	c.stops = append(c.stops[:i], c.stops[i+1:]...)
	c.relabel()
	return nil
}

// Update applies p to the stop with the given id.
func (c *Collection) Update(id string, p Patch) (models.Stop, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexOf(id)
	if i < 0 {
		return models.Stop{}, fmt.Errorf("%w: %s", ErrStopNotFound, id)
	}

	s := c.stops[i]
	if p.Latitude != nil {
		s.Latitude = *p.Latitude
	}
	if p.Longitude != nil {
		s.Longitude = *p.Longitude
	}
	if p.Address != nil {
		s.Address = *p.Address
	}
	if p.ClearPriority {
		s.Priority = nil
	} else if p.Priority != nil {
		s.Priority = models.IntPtr(*p.Priority)
	}

	if err := s.Validate(); err != nil {
		return models.Stop{}, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	c.stops[i] = s
	return s, nil
}

// Reorder moves the stop at from so that it ends up at index to.
//
// This is a splice: the stops in between shift by one.
func (c *Collection) Reorder(from, to int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.stops)
	if from < 0 || from >= n || to < 0 || to >= n {
		return fmt.Errorf("%w: move %d -> %d with %d stops", ErrIndexOutOfRange, from, to, n)
	}
	if from == to {
		return nil
	}

	moved := c.stops[from]
	rest := append(c.stops[:from:from], c.stops[from+1:]...)

	out := make([]models.Stop, 0, n)
	out = append(out, rest[:to]...)
	out = append(out, moved)
	out = append(out, rest[to:]...)

	c.stops = out
	c.relabel()
	return nil
}

// Clear removes every stop.
func (c *Collection) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stops = nil
}

// Replace swaps the whole collection for stops, generating missing ids.
// The collection is unchanged when stops contains a duplicate id or invalid coordinates.
func (c *Collection) Replace(stops []models.Stop) error {
	next := make([]models.Stop, 0, len(stops))
	seen := make(map[string]struct{}, len(stops))

	for _, s := range stops {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
		}
		if s.ID == "" {
			s.ID = shared.GenerateID()
		}
		if _, ok := seen[s.ID]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateStop, s.ID)
		}
		seen[s.ID] = struct{}{}
		next = append(next, s)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.stops = next
	c.relabel()
	return nil
}

// Stops returns a copy of the ordered stops.
func (c *Collection) Stops() []models.Stop {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]models.Stop, len(c.stops))
	copy(out, c.stops)
	return out
}

// Payload returns the outbound form of every stop, in order.
func (c *Collection) Payload() []models.StopPayload {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]models.StopPayload, len(c.stops))
	for i, s := range c.stops {
		out[i] = s.Payload()
	}
	return out
}

// Len returns the number of stops.
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.stops)
}

// Get returns the stop with the given id.
func (c *Collection) Get(id string) (models.Stop, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if i := c.indexOf(id); i >= 0 {
		return c.stops[i], true
	}
	return models.Stop{}, false
}

// indexOf must be called with the lock held.
func (c *Collection) indexOf(id string) int {
	for i, s := range c.stops {
		if s.ID == id {
			return i
		}
	}
	return -1
}

// relabel must be called with the write lock held.
func (c *Collection) relabel() {
	n := len(c.stops)
	for i := range c.stops {
		c.stops[i].Label = models.StopLabel(i, n)
	}
}
