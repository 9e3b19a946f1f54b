// Package settlement converts a completed leg's telemetry baselines into
// financial and career record updates. It performs no I/O and raises no
// user-facing errors; the session applies its results atomically.
package settlement

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/curbz/skylink/internal/model"
	"github.com/curbz/skylink/pkg/util"
)

// Business constants. Tunable policy, not correctness invariants.
const (
	TicketPrice          = 165.0  // USD per passenger
	FuelPricePerLb       = 0.88   // USD
	FeePerNM             = 4.5    // USD, distance-based airport fee policy
	InspectionFee        = 5000.0 // USD, hard-landing damage inspection
	CancellationPenalty  = 5000.0 // USD, passenger reallocation
	CheckrideFee         = 3500.0 // USD, charged at booking
	HardLandingThreshold = -500.0 // fpm
	GentleLandingLimit   = -400.0 // fpm, checkride pass threshold
	FatiguePenalty       = 0.20   // revenue reduction past the duty limit
	DutyLimit            = 12 * time.Hour
)

// rankTable maps cumulative hours to rank, highest threshold met wins.
// Ordered descending so ties break toward the higher rank.
var rankTable = []struct {
	Hours float64
	Rank  string
}{
	{1500, "Senior Captain"},
	{500, "Captain"},
	{150, "Senior First Officer"},
	{50, "First Officer"},
	{0, "Cadet"},
}

// RankFor returns the rank for a cumulative-hours figure.
func RankFor(hours float64) string {
	for _, r := range rankTable {
		if hours >= r.Hours {
			return r.Rank
		}
	}
	return rankTable[len(rankTable)-1].Rank
}

// Input is the full economic context of one completed leg.
type Input struct {
	Leg      model.RosterLeg
	Aircraft model.Aircraft
	Pilot    model.PilotStats

	DutyStart time.Time // zero when no duty period is open
	Now       time.Time

	InitialFuel float64 // pounds, latched at takeoff
	FinalFuel   float64 // pounds, sampled at shutdown
	TouchdownVS float64 // fpm, latched at ground contact
	Takeoff     time.Time
	Shutdown    time.Time
}

// Result is everything the session must apply. Transactions are recorded in
// a fixed order for auditability: revenue, fuel, fees, penalties.
type Result struct {
	Transactions []model.Transaction
	Aircraft     model.Aircraft
	Pilot        model.PilotStats
	Notices      []model.Notification

	Profit          float64
	FuelUsed        float64
	Fatigued        bool
	HardLanding     bool
	LicenseUnlocked model.LicenseCategory
}

// Settle computes the consequences of one completed leg. Pure: the caller's
// structs are copied, never mutated.
func Settle(in Input) Result {
	res := Result{Aircraft: in.Aircraft, Pilot: in.Pilot}
	leg := in.Leg

	// Telemetry refueling mid-flight must not produce negative cost.
	res.FuelUsed = in.InitialFuel - in.FinalFuel
	if res.FuelUsed < 0 {
		res.FuelUsed = 0
	}

	duration := in.Shutdown.Sub(in.Takeoff).Hours()
	if duration < 0 {
		duration = 0
	}

	revenue := 0.0
	if !leg.Checkride {
		revenue = float64(leg.Pax) * TicketPrice
		if !in.DutyStart.IsZero() && in.Now.Sub(in.DutyStart) > DutyLimit {
			revenue *= 1 - FatiguePenalty
			res.Fatigued = true
			res.Notices = append(res.Notices, model.Notification{
				Kind:    model.NoticeWarning,
				Message: fmt.Sprintf("Crew over the %v duty limit: revenue reduced by %.0f%%", DutyLimit, FatiguePenalty*100),
			})
		}
	}

	fuelCost := res.FuelUsed * FuelPricePerLb
	fees := leg.DistanceNM * FeePerNM
	res.HardLanding = in.TouchdownVS < HardLandingThreshold

	add := func(desc string, amount float64, typ model.TransactionType, cat model.TransactionCategory) {
		if amount <= 0 {
			return
		}
		res.Transactions = append(res.Transactions, model.Transaction{
			ID:          uuid.NewString(),
			Timestamp:   in.Now,
			Description: desc,
			Amount:      amount,
			Type:        typ,
			Category:    cat,
		})
	}

	route := fmt.Sprintf("%s %s-%s", leg.FlightNumber, leg.Origin, leg.Destination)
	add("Ticket revenue "+route, revenue, model.Credit, model.CatFlightRevenue)
	add(fmt.Sprintf("Fuel %.0f lb %s", res.FuelUsed, route), fuelCost, model.Debit, model.CatFuel)
	add("Airport fees "+route, fees, model.Debit, model.CatAirportFees)
	if res.HardLanding {
		add("Hard landing inspection "+route, InspectionFee, model.Debit, model.CatPenalty)
		res.Notices = append(res.Notices, model.Notification{
			Kind:    model.NoticeWarning,
			Message: fmt.Sprintf("Hard landing at %s (%.0f fpm): %s inspection fee applied", leg.Destination, in.TouchdownVS, util.FormatMoney(InspectionFee)),
		})
	}

	for _, tx := range res.Transactions {
		res.Profit += tx.Signed()
	}

	// Checkride outcome: a clean touchdown unlocks the rating; a failure is
	// recorded with no unlock and no monetary consequence beyond the fee
	// already charged at booking time.
	if leg.Checkride {
		if in.TouchdownVS > GentleLandingLimit {
			res.LicenseUnlocked = leg.License
			if !res.Pilot.HasLicense(leg.License) {
				res.Pilot.Licenses = append(res.Pilot.Licenses, leg.License)
			}
			res.Notices = append(res.Notices, model.Notification{
				Kind:    model.NoticeSuccess,
				Message: fmt.Sprintf("Checkride passed: %s rating unlocked", leg.License),
			})
		} else {
			res.Notices = append(res.Notices, model.Notification{
				Kind:    model.NoticeWarning,
				Message: fmt.Sprintf("Checkride failed: touchdown %.0f fpm exceeds the %.0f fpm limit", in.TouchdownVS, GentleLandingLimit),
			})
		}
	}

	res.Pilot.TotalHours += duration
	res.Pilot.TotalLegs++
	res.Pilot.Rank = RankFor(res.Pilot.TotalHours)

	res.Aircraft.Location = leg.Destination
	res.Aircraft.TotalCycles++
	res.Aircraft.TotalHours += duration
	res.Aircraft.Condition -= cycleWear(duration, res.HardLanding)
	if res.Aircraft.Condition < 0 {
		res.Aircraft.Condition = 0
	}

	return res
}

// cycleWear is the condition decrement per settled leg.
func cycleWear(hours float64, hardLanding bool) float64 {
	wear := 0.2 + 0.05*hours
	if hardLanding {
		wear += 1.5
	}
	return wear
}
