package dispatch

import (
	"testing"

	"github.com/yegors/skywatch/internal/config"
)

func testContacts() []config.ContactConfig {
	return []config.ContactConfig{
		{
			Name:           "Airport Operations",
			Phone:          "+15550000003",
			EmergencyTypes: []string{"mechanical", "fuel"},
			Priority:       3,
		},
		{
			Name:           "Emergency Services",
			Phone:          "+15550000001",
			EmergencyTypes: []string{"mayday", "fire", "medical", "pan_pan"},
			Priority:       1,
		},
		{
			Name:           "Medical Dispatch",
			Phone:          "+15550000002",
			EmergencyTypes: []string{"medical"},
			Priority:       2,
		},
	}
}

func TestContactBookOrderedByPriority(t *testing.T) {
	book := NewContactBook(testContacts())

	contacts := book.Contacts()
	if len(contacts) != 3 {
		t.Fatalf("Expected 3 contacts, got %d", len(contacts))
	}
	if contacts[0].Name != "Emergency Services" {
		t.Errorf("Expected highest-priority contact first, got %s", contacts[0].Name)
	}
}

func TestSelectPrefersEmergencyServicesForHighUrgency(t *testing.T) {
	book := NewContactBook(testContacts())

	contact := book.Select("medical", "critical")
	if contact == nil || contact.Name != "Emergency Services" {
		t.Errorf("Expected Emergency Services for critical medical, got %+v", contact)
	}

	contact = book.Select("medical", "high")
	if contact == nil || contact.Name != "Emergency Services" {
		t.Errorf("Expected Emergency Services for high medical, got %+v", contact)
	}
}

func TestSelectByTypeAndPriority(t *testing.T) {
	book := NewContactBook(testContacts())

	// Medium urgency picks the highest-priority suitable contact, not
	// necessarily emergency services.
	contact := book.Select("medical", "medium")
	if contact == nil || contact.Name != "Emergency Services" {
		t.Errorf("Expected priority-1 medical handler, got %+v", contact)
	}

	contact = book.Select("mechanical", "medium")
	if contact == nil || contact.Name != "Airport Operations" {
		t.Errorf("Expected Airport Operations for mechanical, got %+v", contact)
	}
}

func TestSelectFallsBackToFirstContact(t *testing.T) {
	book := NewContactBook(testContacts())

	contact := book.Select("weather", "low")
	if contact == nil || contact.Name != "Emergency Services" {
		t.Errorf("Expected fallback to highest-priority contact, got %+v", contact)
	}
}

func TestSelectEmptyBook(t *testing.T) {
	book := NewContactBook(nil)
	if contact := book.Select("mayday", "critical"); contact != nil {
		t.Errorf("Expected nil from empty book, got %+v", contact)
	}
}
