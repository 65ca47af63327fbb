package model

import (
	"strings"
	"time"
)

// Tool represents a single physical tool in the shared family pool.
// IDs are minted once at creation and never change.
type Tool struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Brand        string     `json:"brand,omitempty"`
	ModelNo      string     `json:"model_no,omitempty"`
	PowerSource  string     `json:"power_source"`
	Owner        string     `json:"owner"`
	Household    string     `json:"household"`
	BinLocation  string     `json:"bin_location,omitempty"`
	IsStationary bool       `json:"is_stationary"`
	Status       string     `json:"status"`
	Borrower     *string    `json:"borrower,omitempty"`
	ReturnDate   *time.Time `json:"return_date,omitempty"`
	Capabilities string     `json:"capabilities,omitempty"`
	SafetyRating string     `json:"safety_rating"`
}

// Tool statuses. Retired is terminal: the row persists but the tool
// never re-enters circulation.
const (
	StatusAvailable = "Available"
	StatusBorrowed  = "Borrowed"
	StatusRetired   = "Retired"
)

// Safety ratings.
const (
	SafetyOpen       = "Open"
	SafetySupervised = "Supervised"
	SafetyAdultOnly  = "Adult Only"
)

// Power sources.
const (
	PowerManual    = "Manual"
	PowerCorded    = "Corded"
	PowerBattery   = "Battery"
	PowerGas       = "Gas"
	PowerPneumatic = "Pneumatic"
	PowerHydraulic = "Hydraulic"
)

// RetiredPrefix marks the retirement reason encoded into bin_location.
const RetiredPrefix = "Retired: "

// ValidPowerSource reports whether s is a known power source.
func ValidPowerSource(s string) bool {
	switch s {
	case PowerManual, PowerCorded, PowerBattery, PowerGas, PowerPneumatic, PowerHydraulic:
		return true
	}
	return false
}

// ValidSafetyRating reports whether s is a known safety rating.
func ValidSafetyRating(s string) bool {
	switch s {
	case SafetyOpen, SafetySupervised, SafetyAdultOnly:
		return true
	}
	return false
}

// RetirementReason extracts the reason encoded in bin_location for a
// retired tool, or "" if none is present.
func (t *Tool) RetirementReason() string {
	if t.Status != StatusRetired {
		return ""
	}
	return strings.TrimPrefix(t.BinLocation, RetiredPrefix)
}

// OwnedBy reports whether the tool counts as the given person's own,
// either directly or through a shared household.
func (t *Tool) OwnedBy(name, household string) bool {
	return t.Owner == name || (household != "" && t.Household == household)
}
