package model

import "time"

// TelemetrySample is one tick of simulator state. Samples carry no identity;
// each one supersedes the last. A sample with Connected=false must be ignored
// by all consumers.
type TelemetrySample struct {
	Altitude      float64 `json:"altitude"`      // feet
	GroundSpeed   float64 `json:"groundSpeed"`   // knots
	VerticalSpeed float64 `json:"verticalSpeed"` // feet per minute, negative descending
	TotalFuel     float64 `json:"totalFuel"`     // pounds
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
	OnGround      bool    `json:"onGround"`
	EnginesOn     bool    `json:"enginesRunning"`
	ParkingBrake  bool    `json:"parkingBrake"`
	GearDown      bool    `json:"gearDown"`
	Connected     bool    `json:"connected"`
}

// LegStatus tracks a roster leg through its lifecycle. At most one leg in a
// roster is Current at any time; legs advance strictly in insertion order.
// Completed and Cancelled are terminal.
type LegStatus string

const (
	LegPending   LegStatus = "pending"
	LegCurrent   LegStatus = "current"
	LegCompleted LegStatus = "completed"
	LegCancelled LegStatus = "cancelled"
)

// LicenseCategory is an unlockable pilot rating.
type LicenseCategory string

const (
	LicenseLight       LicenseCategory = "Light"
	LicenseTurboprop   LicenseCategory = "Turboprop"
	LicenseSingleAisle LicenseCategory = "SingleAisle"
	LicenseWidebody    LicenseCategory = "Widebody"
)

// RosterLeg is one scheduled flight segment. Created by the roster generator
// (or flight-plan import), moved to completed only by settlement and to
// cancelled only by an explicit pre-departure cancellation, never deleted.
type RosterLeg struct {
	ID           string          `json:"id"`
	FlightNumber string          `json:"flightNumber"`
	Origin       string          `json:"origin"`
	Destination  string          `json:"destination"`
	DistanceNM   float64         `json:"distance"`
	Departure    time.Time       `json:"departureTime"`
	Status       LegStatus       `json:"status"`
	Pax          int             `json:"pax"`
	CargoLbs     float64         `json:"cargoWeight"`
	MinFuelLbs   float64         `json:"minFuel"`
	AircraftID   string          `json:"aircraftId"`
	Checkride    bool            `json:"checkride,omitempty"`
	License      LicenseCategory `json:"license,omitempty"`
}

// AircraftStatus is the availability state of a fleet aircraft.
type AircraftStatus string

const (
	AircraftActive      AircraftStatus = "active"
	AircraftMaintenance AircraftStatus = "maintenance"
)

// Aircraft is a fleet member. Location must equal the destination of the last
// completed leg it flew, except for the deliberate pre-positioning performed
// at roster-generation time.
type Aircraft struct {
	ID           string          `json:"id"`
	Model        string          `json:"model"`
	ICAOType     string          `json:"icaoType"`
	Registration string          `json:"registration"`
	Category     LicenseCategory `json:"category"`
	Location     string          `json:"location"`
	TotalHours   float64         `json:"totalHours"`
	TotalCycles  int             `json:"totalCycles"`
	Condition    float64         `json:"condition"` // percent, 100 is factory fresh
	MaxPax       int             `json:"maxPax"`
	Status       AircraftStatus  `json:"status"`
}

// PilotStats is the career record. Rank is derived from TotalHours via a
// fixed threshold table; licenses are unlocked by checkride settlements.
type PilotStats struct {
	TotalHours float64           `json:"totalHours"`
	TotalLegs  int               `json:"totalFlights"`
	Rank       string            `json:"rank"`
	Licenses   []LicenseCategory `json:"licenses"`
}

// HasLicense reports whether the category has been unlocked.
func (p PilotStats) HasLicense(c LicenseCategory) bool {
	for _, l := range p.Licenses {
		if l == c {
			return true
		}
	}
	return false
}

// TransactionType tags the sign of a ledger entry.
type TransactionType string

const (
	Credit TransactionType = "credit"
	Debit  TransactionType = "debit"
)

// TransactionCategory classifies ledger entries for reporting.
type TransactionCategory string

const (
	CatFlightRevenue TransactionCategory = "flight_revenue"
	CatFuel          TransactionCategory = "fuel"
	CatAirportFees   TransactionCategory = "airport_fees"
	CatPenalty       TransactionCategory = "penalty"
	CatMaintenance   TransactionCategory = "maintenance"
	CatPurchase      TransactionCategory = "purchase"
	CatTraining      TransactionCategory = "training"
)

// Transaction is an immutable, append-only ledger entry. Amount is always
// positive; Type carries the sign.
type Transaction struct {
	ID          string              `json:"id"`
	Timestamp   time.Time           `json:"timestamp"`
	Description string              `json:"description"`
	Amount      float64             `json:"amount"`
	Type        TransactionType     `json:"type"`
	Category    TransactionCategory `json:"category"`
}

// Signed returns the amount with the sign implied by the type tag.
func (t Transaction) Signed() float64 {
	if t.Type == Debit {
		return -t.Amount
	}
	return t.Amount
}

// CompanyConfig is the airline identity and running financial state. Balance
// is the derived sum of transactions, stored redundantly for display.
// DutyStart marks the beginning of the current continuous work period; zero
// means no duty period is open.
type CompanyConfig struct {
	Name       string    `json:"name"`
	Hub        string    `json:"hub"`
	Balance    float64   `json:"balance"`
	Reputation float64   `json:"reputation"`
	DutyStart  time.Time `json:"dutyStartTime"`
}

// FlightPlan is the shape of an externally fetched Operational Flight Plan.
// The fetcher itself lives outside this module; the plan is an alternative
// leg source for users who want a specific real-world route.
type FlightPlan struct {
	Origin       string    `json:"origin"`
	Destination  string    `json:"destination"`
	Pax          int       `json:"paxCount"`
	BlockFuelLbs float64   `json:"blockFuel"`
	Callsign     string    `json:"callsign"`
	ETE          float64   `json:"plannedEte"` // seconds
	Departure    time.Time `json:"plannedDeparture"`
}

// NotificationKind is the closed severity set for user-facing notices.
type NotificationKind string

const (
	NoticeInfo    NotificationKind = "info"
	NoticeSuccess NotificationKind = "success"
	NoticeWarning NotificationKind = "warning"
	NoticeError   NotificationKind = "error"
)

// Notification is a typed, delivery-agnostic user-facing message.
type Notification struct {
	Kind    NotificationKind `json:"kind"`
	Message string           `json:"message"`
}
