// Package dispatch places outbound emergency voice calls and reports
// their status back onto the message bus.
package dispatch

import (
	"sort"
	"strings"

	"github.com/yegors/skywatch/internal/config"
)

// Contact is one reachable emergency contact.
type Contact struct {
	Name           string
	Phone          string
	EmergencyTypes []string
	Priority       int // lower is higher priority
}

// ContactBook selects the contact to call for a given emergency.
type ContactBook struct {
	contacts []Contact
}

// NewContactBook builds a contact book from configuration, ordered by
// ascending priority.
func NewContactBook(configs []config.ContactConfig) *ContactBook {
	contacts := make([]Contact, 0, len(configs))
	for _, c := range configs {
		contacts = append(contacts, Contact{
			Name:           c.Name,
			Phone:          c.Phone,
			EmergencyTypes: c.EmergencyTypes,
			Priority:       c.Priority,
		})
	}
	sort.SliceStable(contacts, func(i, j int) bool {
		return contacts[i].Priority < contacts[j].Priority
	})
	return &ContactBook{contacts: contacts}
}

// Select returns the best contact for the emergency type and urgency,
// or nil if the book is empty. Critical and high urgency prefer an
// emergency-services contact when one handles the type.
func (b *ContactBook) Select(emergencyType, urgencyLevel string) *Contact {
	if len(b.contacts) == 0 {
		return nil
	}

	var suitable []Contact
	for _, c := range b.contacts {
		for _, t := range c.EmergencyTypes {
			if t == emergencyType {
				suitable = append(suitable, c)
				break
			}
		}
	}
	if len(suitable) == 0 {
		// No type match: fall back to the highest-priority contact.
		first := b.contacts[0]
		return &first
	}

	if urgencyLevel == "critical" || urgencyLevel == "high" {
		for _, c := range suitable {
			if strings.Contains(c.Name, "Emergency Services") {
				contact := c
				return &contact
			}
		}
	}

	best := suitable[0]
	return &best
}

// Contacts returns the full ordered contact list.
func (b *ContactBook) Contacts() []Contact {
	out := make([]Contact, len(b.contacts))
	copy(out, b.contacts)
	return out
}
