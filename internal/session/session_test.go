package session

import (
	"errors"
	"testing"
	"time"

	"github.com/curbz/skylink/internal/airports"
	"github.com/curbz/skylink/internal/model"
	"github.com/curbz/skylink/internal/roster"
	"github.com/curbz/skylink/internal/settlement"
)

// fakeClock advances by a fixed step on every read, so flight durations and
// duty periods come out deterministic.
type fakeClock struct {
	now  time.Time
	step time.Duration
}

func (c *fakeClock) Now() time.Time {
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestService(t *testing.T) (*Service, *fakeClock) {
	t.Helper()
	db, err := airports.Load("")
	if err != nil {
		t.Fatal(err)
	}
	clk := &fakeClock{now: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC), step: time.Minute}
	svc := New(Config{
		Company: model.CompanyConfig{Name: "SkyLink Test", Hub: "SBGR", Balance: 100000},
		Fleet: []model.Aircraft{{
			ID: "ac-1", Model: "A320neo", Registration: "PR-XBI",
			Location: "SBGR", Condition: 100, MaxPax: 180,
			Category: model.LicenseSingleAisle, Status: model.AircraftActive,
		}},
		Airports: db,
		Roster:   roster.NewSeeded(db, "SKY", 42),
		Clock:    clk,
	})
	return svc, clk
}

func parked(fuel float64) model.TelemetrySample {
	return model.TelemetrySample{
		Connected: true, OnGround: true, EnginesOn: false, ParkingBrake: true,
		TotalFuel: fuel,
	}
}

func taxiing(fuel float64) model.TelemetrySample {
	return model.TelemetrySample{
		Connected: true, OnGround: true, EnginesOn: true,
		TotalFuel: fuel, GroundSpeed: 15,
	}
}

func airborne(fuel float64) model.TelemetrySample {
	return model.TelemetrySample{
		Connected: true, EnginesOn: true,
		TotalFuel: fuel, Altitude: 12000, GroundSpeed: 320, VerticalSpeed: 1200,
	}
}

func landed(fuel, vs float64) model.TelemetrySample {
	return model.TelemetrySample{
		Connected: true, OnGround: true, EnginesOn: true,
		TotalFuel: fuel, GroundSpeed: 90, VerticalSpeed: vs,
	}
}

// flyCurrentLeg runs a full scripted flight through SubmitTelemetry.
func flyCurrentLeg(svc *Service, initialFuel, finalFuel, touchdownVS float64) {
	svc.SubmitTelemetry(taxiing(initialFuel))
	svc.SubmitTelemetry(airborne(initialFuel))
	svc.SubmitTelemetry(airborne(initialFuel - 2000))
	svc.SubmitTelemetry(landed(finalFuel+50, touchdownVS))
	svc.SubmitTelemetry(parked(finalFuel))
}

func TestFlightSettlesExactlyOnce(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.GenerateRoster("ac-1", 3); err != nil {
		t.Fatal(err)
	}

	flyCurrentLeg(svc, 20000, 15000, -180)

	// More qualifying shutdown samples must not settle again.
	svc.SubmitTelemetry(parked(15000))
	svc.SubmitTelemetry(parked(15000))

	legs := svc.Roster()
	completed := 0
	current := 0
	for _, l := range legs {
		switch l.Status {
		case model.LegCompleted:
			completed++
		case model.LegCurrent:
			current++
		}
	}
	if completed != 1 {
		t.Errorf("completed legs = %d, want 1", completed)
	}
	if current != 1 {
		t.Errorf("current legs = %d, want exactly one (next leg promoted)", current)
	}

	pilot := svc.Pilot()
	if pilot.TotalLegs != 1 {
		t.Errorf("pilot legs = %d, want 1", pilot.TotalLegs)
	}

	// Revenue credit and fuel debit landed in the ledger.
	var credits, debits int
	for _, tx := range svc.Ledger() {
		switch tx.Type {
		case model.Credit:
			credits++
		case model.Debit:
			debits++
		}
	}
	if credits == 0 || debits == 0 {
		t.Errorf("ledger has %d credits / %d debits, want both nonzero", credits, debits)
	}
}

func TestDutyStartLatchedAtFirstTakeoff(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.GenerateRoster("ac-1", 2); err != nil {
		t.Fatal(err)
	}

	if !svc.Company().DutyStart.IsZero() {
		t.Fatal("duty start set before any takeoff")
	}
	svc.SubmitTelemetry(taxiing(20000))
	svc.SubmitTelemetry(airborne(20000))
	first := svc.Company().DutyStart
	if first.IsZero() {
		t.Fatal("takeoff did not latch duty start")
	}

	// Complete the leg and fly the next one: the latch must not move.
	svc.SubmitTelemetry(landed(18000, -200))
	svc.SubmitTelemetry(parked(18000))
	flyCurrentLeg(svc, 18000, 15000, -150)
	if got := svc.Company().DutyStart; !got.Equal(first) {
		t.Errorf("duty start moved from %v to %v within one duty period", first, got)
	}

	svc.EndDuty()
	if !svc.Company().DutyStart.IsZero() {
		t.Error("EndDuty did not clear the latch")
	}
}

func TestDisconnectedStreamSettlesNothing(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.GenerateRoster("ac-1", 1); err != nil {
		t.Fatal(err)
	}

	s := parked(20000)
	s.Connected = false
	for i := 0; i < 5; i++ {
		svc.SubmitTelemetry(s)
	}
	if len(svc.Ledger()) != 0 {
		t.Error("disconnected samples produced ledger entries")
	}
}

func TestCancellationScenario(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.GenerateRoster("ac-1", 2); err != nil {
		t.Fatal(err)
	}

	if err := svc.CancelCurrentLeg(); err != nil {
		t.Fatal(err)
	}

	legs := svc.Roster()
	if legs[0].Status != model.LegCancelled {
		t.Errorf("cancelled leg status = %s, want cancelled", legs[0].Status)
	}
	for _, l := range legs {
		if l.Status == model.LegCurrent {
			t.Error("a leg is still current after cancellation")
		}
		if l.Status == model.LegCompleted {
			t.Error("cancellation completed a leg")
		}
	}

	ledger := svc.Ledger()
	if len(ledger) != 1 {
		t.Fatalf("ledger has %d entries, want exactly the penalty", len(ledger))
	}
	tx := ledger[0]
	if tx.Type != model.Debit || tx.Amount != settlement.CancellationPenalty || tx.Category != model.CatPenalty {
		t.Errorf("penalty transaction = %+v", tx)
	}
	if got := svc.Company().Balance; got != 100000-settlement.CancellationPenalty {
		t.Errorf("balance = %v after cancellation", got)
	}

	if err := svc.CancelCurrentLeg(); !errors.Is(err, ErrNoCurrentLeg) {
		t.Errorf("second cancel = %v, want ErrNoCurrentLeg", err)
	}
}

func TestCancelledLegNeverPromoted(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.GenerateRoster("ac-1", 1); err != nil {
		t.Fatal(err)
	}
	if err := svc.CancelCurrentLeg(); err != nil {
		t.Fatal(err)
	}

	// Fresh chain after the cancellation, then settle its first leg. The
	// promoted leg must be the chain's own follow-on, not the cancelled one.
	chain, err := svc.GenerateRoster("ac-1", 2)
	if err != nil {
		t.Fatal(err)
	}
	flyCurrentLeg(svc, 20000, 17000, -150)

	legs := svc.Roster()
	if legs[0].Status != model.LegCancelled {
		t.Errorf("cancelled leg resurrected to %s", legs[0].Status)
	}
	var currentID string
	for _, l := range legs {
		if l.Status == model.LegCurrent {
			currentID = l.ID
		}
	}
	if currentID != chain[1].ID {
		t.Errorf("promoted leg %s, want the chain follow-on %s", currentID, chain[1].ID)
	}
}

func TestCancelRejectedAfterDeparture(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.GenerateRoster("ac-1", 1); err != nil {
		t.Fatal(err)
	}
	svc.SubmitTelemetry(airborne(20000))

	if err := svc.CancelCurrentLeg(); !errors.Is(err, ErrFlightInProgress) {
		t.Errorf("cancel mid-flight = %v, want ErrFlightInProgress", err)
	}
}

func TestBuyAircraftInsufficientFunds(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.BuyAircraft(model.Aircraft{Model: "B738"}, 500000)
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}
	if len(svc.Fleet()) != 1 {
		t.Error("rejected purchase changed the fleet")
	}
	if len(svc.Ledger()) != 0 {
		t.Error("rejected purchase left a ledger entry")
	}

	found := false
	for _, n := range svc.Notifications() {
		if n.Kind == model.NoticeError {
			found = true
		}
	}
	if !found {
		t.Error("no error notification for the rejected purchase")
	}
}

func TestBuyAircraftDefaults(t *testing.T) {
	svc, _ := newTestService(t)
	ac, err := svc.BuyAircraft(model.Aircraft{Model: "B738", Registration: "PR-NEW"}, 60000)
	if err != nil {
		t.Fatal(err)
	}
	if ac.ID == "" || ac.Location != "SBGR" || ac.Condition != 100 || ac.Status != model.AircraftActive {
		t.Errorf("purchase defaults not applied: %+v", ac)
	}
	if got := svc.Company().Balance; got != 40000 {
		t.Errorf("balance = %v, want 40000", got)
	}
}

func TestBookCheckride(t *testing.T) {
	svc, _ := newTestService(t)

	leg, err := svc.BookCheckride(model.LicenseWidebody, "ac-1")
	if err != nil {
		t.Fatal(err)
	}
	if !leg.Checkride || leg.License != model.LicenseWidebody || leg.Status != model.LegCurrent {
		t.Errorf("checkride leg = %+v", leg)
	}
	if leg.Pax != 0 {
		t.Error("checkride leg carries passengers")
	}
	if got := svc.Company().Balance; got != 100000-settlement.CheckrideFee {
		t.Errorf("balance = %v, fee not charged at booking", got)
	}

	// A second booking is blocked by the current leg.
	if _, err := svc.BookCheckride(model.LicenseTurboprop, "ac-1"); !errors.Is(err, ErrLegInProgress) {
		t.Errorf("err = %v, want ErrLegInProgress", err)
	}
}

func TestBookCheckrideAlreadyHeld(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.BookCheckride(model.LicenseLight, "ac-1"); !errors.Is(err, ErrLicenseHeld) {
		t.Errorf("err = %v, want ErrLicenseHeld", err)
	}
}

func TestCheckrideFlightUnlocksLicense(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.BookCheckride(model.LicenseWidebody, "ac-1"); err != nil {
		t.Fatal(err)
	}

	flyCurrentLeg(svc, 20000, 17000, -150)

	if !svc.Pilot().HasLicense(model.LicenseWidebody) {
		t.Error("gentle checkride landing did not unlock the license")
	}
	for _, tx := range svc.Ledger() {
		if tx.Category == model.CatFlightRevenue {
			t.Error("checkride flight recorded revenue")
		}
	}
}

func TestImportFlightPlan(t *testing.T) {
	svc, _ := newTestService(t)

	leg, err := svc.ImportFlightPlan(model.FlightPlan{
		Origin: "SBGR", Destination: "SBGL", Pax: 140, BlockFuelLbs: 18000, Callsign: "TAM3456",
	})
	if err != nil {
		t.Fatal(err)
	}
	if leg.Status != model.LegCurrent || leg.FlightNumber != "TAM3456" {
		t.Errorf("imported leg = %+v", leg)
	}
	if leg.DistanceNM <= 0 {
		t.Error("imported leg has no computed distance")
	}
	if leg.AircraftID != "ac-1" {
		t.Errorf("imported leg assigned aircraft %s", leg.AircraftID)
	}
}

func TestImportFlightPlanInvalid(t *testing.T) {
	svc, _ := newTestService(t)

	cases := []model.FlightPlan{
		{Destination: "SBGL"},
		{Origin: "SBGR"},
		{Origin: "SBGR", Destination: "SBGR"},
	}
	for _, fp := range cases {
		if _, err := svc.ImportFlightPlan(fp); !errors.Is(err, ErrInvalidPlan) {
			t.Errorf("plan %+v: err = %v, want ErrInvalidPlan", fp, err)
		}
	}
}

func TestGenerateRosterPrePositionsAircraft(t *testing.T) {
	svc, _ := newTestService(t)
	legs, err := svc.GenerateRoster("ac-1", 3)
	if err != nil {
		t.Fatal(err)
	}

	fleet := svc.Fleet()
	if fleet[0].Location != legs[len(legs)-1].Destination {
		t.Errorf("aircraft at %s, want chain end %s", fleet[0].Location, legs[len(legs)-1].Destination)
	}
	if legs[0].Origin != "SBGR" {
		t.Errorf("first leg origin = %s, want the aircraft's parking spot", legs[0].Origin)
	}
}

func TestGenerateRosterKeepsSingleCurrent(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.GenerateRoster("ac-1", 2); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.GenerateRoster("ac-1", 2); err != nil {
		t.Fatal(err)
	}

	current := 0
	for _, l := range svc.Roster() {
		if l.Status == model.LegCurrent {
			current++
		}
	}
	if current != 1 {
		t.Errorf("current legs = %d, want 1 across repeated generations", current)
	}
}

func TestGenerateRosterUnknownAircraft(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.GenerateRoster("nope", 2); !errors.Is(err, ErrUnknownAircraft) {
		t.Errorf("err = %v, want ErrUnknownAircraft", err)
	}
}

func TestNotificationsDrain(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.GenerateRoster("ac-1", 1); err != nil {
		t.Fatal(err)
	}
	if err := svc.CancelCurrentLeg(); err != nil {
		t.Fatal(err)
	}

	if n := svc.Notifications(); len(n) == 0 {
		t.Fatal("expected pending notifications")
	}
	if n := svc.Notifications(); len(n) != 0 {
		t.Error("drain did not clear notifications")
	}
}

func TestFatiguePathThroughSession(t *testing.T) {
	svc, clk := newTestService(t)
	if _, err := svc.GenerateRoster("ac-1", 2); err != nil {
		t.Fatal(err)
	}

	// First flight opens the duty period.
	flyCurrentLeg(svc, 20000, 17000, -150)

	// Thirteen hours later the second flight settles fatigued.
	clk.advance(13 * time.Hour)
	flyCurrentLeg(svc, 17000, 14000, -160)

	drained := svc.Notifications()
	fatigued := false
	for _, n := range drained {
		if n.Kind == model.NoticeWarning {
			fatigued = true
		}
	}
	if !fatigued {
		t.Error("no fatigue warning after a 13 h duty period")
	}
}
