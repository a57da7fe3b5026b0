// Package events carries domain events between the API and the worker over Redis Streams.
package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event names
const (
	TaskAssigned = "app/task.assigned"

	ClerkUserCreated         = "clerk/user.created"
	ClerkUserUpdated         = "clerk/user.updated"
	ClerkUserDeleted         = "clerk/user.deleted"
	ClerkOrganizationCreated = "clerk/organization.created"
	ClerkOrganizationUpdated = "clerk/organization.updated"
	ClerkOrganizationDeleted = "clerk/organization.deleted"
	ClerkInvitationAccepted  = "clerk/organizationInvitation.accepted"
)

var ErrInvalidEvent = errors.New("invalid event")

// Event is the envelope shared by inbound webhooks and internally emitted events.
type Event struct {
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"ts,omitempty"`
}

// New builds an event with a fresh id and the current timestamp.
func New(name string, data interface{}) (Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Event{}, fmt.Errorf("encoding %s data: %w", name, err)
	}
	return Event{
		ID:        uuid.NewString(),
		Name:      name,
		Data:      raw,
		Timestamp: time.Now().UnixMilli(),
	}, nil
}

// Decode unmarshals the event data into v.
func (e Event) Decode(v interface{}) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("%w: %s has no data", ErrInvalidEvent, e.Name)
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("%w: decoding %s: %v", ErrInvalidEvent, e.Name, err)
	}
	return nil
}

// Normalize fills in a missing id and timestamp and checks the name.
func (e *Event) Normalize(now time.Time) error {
	if e.Name == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidEvent)
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp == 0 {
		e.Timestamp = now.UnixMilli()
	}
	if len(e.Data) == 0 {
		e.Data = json.RawMessage("{}")
	}
	return nil
}

// DecodeBatch accepts either a single event object or an array of events.
func DecodeBatch(body []byte) ([]Event, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrInvalidEvent)
	}

	if trimmed[0] == '[' {
		var batch []Event
		if err := json.Unmarshal(trimmed, &batch); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
		}
		return batch, nil
	}

	var single Event
	if err := json.Unmarshal(trimmed, &single); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	return []Event{single}, nil
}

// Publisher sends events to the worker side.
type Publisher interface {
	Send(ctx context.Context, events ...Event) error
}
