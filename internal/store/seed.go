package store

import (
	"context"
	"fmt"
	"time"
)

// SeedSpec describes a starter organization and event.
type SeedSpec struct {
	OrganizationName    string
	OrganizationAddress string
	EventTitle          string
	EventType           string
	StartDate           time.Time
	EndDate             time.Time
}

// Seed creates an organization and one event for it.
func (s *Store) Seed(ctx context.Context, spec SeedSpec) (*Organization, *Event, error) {
	org := &Organization{Name: spec.OrganizationName, Address: spec.OrganizationAddress}
	if err := s.CreateOrganization(ctx, org); err != nil {
		return nil, nil, fmt.Errorf("seed organization: %w", err)
	}
	ev := &Event{
		OrganizationID: org.ID,
		Title:          spec.EventTitle,
		EventType:      spec.EventType,
		StartDate:      spec.StartDate,
		EndDate:        spec.EndDate,
	}
	if err := s.CreateEvent(ctx, ev); err != nil {
		return nil, nil, fmt.Errorf("seed event: %w", err)
	}
	s.logger.Info("seeded organization and event", "organization_id", org.ID, "event_id", ev.ID)
	return org, ev, nil
}
