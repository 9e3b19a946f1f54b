// Package session owns the live airline state: company, pilot, fleet,
// roster, ledger, and notifications. Every mutation entry point runs to
// completion under one mutex, so a settlement is never interleaved with a
// cancellation or purchase.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mohae/deepcopy"
	"github.com/sirupsen/logrus"

	"github.com/curbz/skylink/internal/airports"
	"github.com/curbz/skylink/internal/clock"
	"github.com/curbz/skylink/internal/model"
	"github.com/curbz/skylink/internal/phase"
	"github.com/curbz/skylink/internal/roster"
	"github.com/curbz/skylink/internal/settlement"
	"github.com/curbz/skylink/pkg/util"
)

// Synchronous rejections. Everything else that can go wrong mid-stream
// (no current leg at shutdown, unknown aircraft) is logged and swallowed;
// the telemetry loop must never see an error.
var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrLegInProgress     = errors.New("a leg is already in progress")
	ErrNoCurrentLeg      = errors.New("no current leg")
	ErrFlightInProgress  = errors.New("cannot cancel after departure")
	ErrUnknownAircraft   = errors.New("unknown aircraft")
	ErrInvalidPlan       = errors.New("flight plan is missing required fields")
	ErrLicenseHeld       = errors.New("license already held")
)

// Config assembles a Service. Clock defaults to the wall clock; a zero
// Pilot starts as a Cadet holding the Light rating.
type Config struct {
	Company  model.CompanyConfig
	Pilot    model.PilotStats
	Fleet    []model.Aircraft
	Airports *airports.DB
	Roster   *roster.Generator
	Clock    clock.Clock
}

// Service is the single mutation authority over the airline aggregate.
type Service struct {
	mu sync.Mutex

	clk clock.Clock
	db  *airports.DB
	gen *roster.Generator
	det *phase.Detector

	company model.CompanyConfig
	pilot   model.PilotStats
	fleet   []model.Aircraft
	roster  []model.RosterLeg
	ledger  []model.Transaction
	notices []model.Notification

	lastSample model.TelemetrySample
}

// New builds a Service from the starting state.
func New(cfg Config) *Service {
	if cfg.Clock == nil {
		cfg.Clock = clock.RealClock{}
	}
	if cfg.Pilot.Rank == "" {
		cfg.Pilot.Rank = settlement.RankFor(cfg.Pilot.TotalHours)
	}
	if len(cfg.Pilot.Licenses) == 0 {
		cfg.Pilot.Licenses = []model.LicenseCategory{model.LicenseLight}
	}
	return &Service{
		clk:     cfg.Clock,
		db:      cfg.Airports,
		gen:     cfg.Roster,
		det:     phase.New(),
		company: cfg.Company,
		pilot:   cfg.Pilot,
		fleet:   cfg.Fleet,
	}
}

// SubmitTelemetry feeds one simulator sample into the phase detector and
// applies whatever events fall out. It never returns an error: transient
// problems (no current leg, unknown aircraft) are logged and the stream
// keeps flowing.
func (s *Service) SubmitTelemetry(sample model.TelemetrySample) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sample.Connected {
		s.lastSample = sample
	}

	now := s.clk.Now()
	ev := s.det.Submit(sample, now)

	if ev.TookOff && s.company.DutyStart.IsZero() {
		s.company.DutyStart = now
		s.notify(model.NoticeInfo, "Duty period started")
	}
	if ev.Completed != nil {
		s.settle(ev.Completed, now)
	}
}

// settle applies the consequences of one completed flight. The leg flips to
// completed before the engine runs so a panic mid-settlement can never leave
// the same physical flight eligible for settlement twice.
func (s *Service) settle(done *phase.LegCompleted, now time.Time) {
	idx := s.currentLegIndex()
	if idx < 0 {
		logrus.Warn("flight completed with no current leg, discarding")
		return
	}
	leg := s.roster[idx]

	acIdx := s.aircraftIndex(leg.AircraftID)
	if acIdx < 0 {
		logrus.WithField("aircraftId", leg.AircraftID).
			Error("current leg references an unknown aircraft, leg left open")
		return
	}

	s.roster[idx].Status = model.LegCompleted

	res := settlement.Settle(settlement.Input{
		Leg:         leg,
		Aircraft:    s.fleet[acIdx],
		Pilot:       s.pilot,
		DutyStart:   s.company.DutyStart,
		Now:         now,
		InitialFuel: done.InitialFuel,
		FinalFuel:   done.FinalFuel,
		TouchdownVS: done.TouchdownVS,
		Takeoff:     done.Takeoff,
		Shutdown:    done.Shutdown,
	})

	for _, tx := range res.Transactions {
		s.apply(tx)
	}
	s.fleet[acIdx] = res.Aircraft
	s.pilot = res.Pilot
	s.notices = append(s.notices, res.Notices...)

	s.promoteNextLeg(idx)

	s.notify(model.NoticeSuccess, fmt.Sprintf("%s %s-%s settled: %s",
		leg.FlightNumber, leg.Origin, leg.Destination, util.FormatMoney(res.Profit)))

	logrus.WithFields(logrus.Fields{
		"leg":         leg.FlightNumber,
		"profit":      res.Profit,
		"fuelUsed":    res.FuelUsed,
		"touchdownVS": done.TouchdownVS,
		"hardLanding": res.HardLanding,
	}).Info("leg settled")
}

// GenerateRoster appends n chained legs for the aircraft, starting where it
// is parked (or at the hub for an empty log). The first new leg becomes
// current when nothing else is, and the aircraft is pre-positioned at the
// chain's final destination so a follow-up generation continues from there.
func (s *Service) GenerateRoster(aircraftID string, n int) ([]model.RosterLeg, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acIdx := s.aircraftIndex(aircraftID)
	if acIdx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAircraft, aircraftID)
	}
	ac := s.fleet[acIdx]

	origin := ac.Location
	if origin == "" {
		origin = s.company.Hub
	}

	legs := s.gen.Generate(origin, n, ac, s.clk.Now())
	if len(legs) == 0 {
		return nil, fmt.Errorf("no destinations reachable from %s", origin)
	}

	if s.currentLegIndex() < 0 {
		legs[0].Status = model.LegCurrent
	}
	s.roster = append(s.roster, legs...)
	s.fleet[acIdx].Location = legs[len(legs)-1].Destination

	logrus.WithFields(logrus.Fields{
		"aircraft": ac.Registration,
		"origin":   origin,
		"legs":     len(legs),
	}).Info("roster generated")

	return deepcopy.Copy(legs).([]model.RosterLeg), nil
}

// BookCheckride schedules a non-revenue evaluation flight for a license
// category. The fee is charged up front and is not refunded on failure.
func (s *Service) BookCheckride(category model.LicenseCategory, aircraftID string) (model.RosterLeg, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.currentLegIndex() >= 0 {
		return model.RosterLeg{}, ErrLegInProgress
	}
	if s.pilot.HasLicense(category) {
		return model.RosterLeg{}, fmt.Errorf("%w: %s", ErrLicenseHeld, category)
	}
	if s.company.Balance < settlement.CheckrideFee {
		s.notify(model.NoticeError, fmt.Sprintf("Checkride requires %s", util.FormatMoney(settlement.CheckrideFee)))
		return model.RosterLeg{}, ErrInsufficientFunds
	}
	acIdx := s.aircraftIndex(aircraftID)
	if acIdx < 0 {
		return model.RosterLeg{}, fmt.Errorf("%w: %s", ErrUnknownAircraft, aircraftID)
	}
	ac := s.fleet[acIdx]

	origin := ac.Location
	if origin == "" {
		origin = s.company.Hub
	}
	legs := s.gen.Generate(origin, 1, ac, s.clk.Now())
	if len(legs) == 0 {
		return model.RosterLeg{}, fmt.Errorf("no destinations reachable from %s", origin)
	}

	leg := legs[0]
	leg.Status = model.LegCurrent
	leg.Checkride = true
	leg.License = category
	leg.FlightNumber = fmt.Sprintf("CHK%03d", len(s.roster)+1)
	leg.Pax = 0
	leg.CargoLbs = 0
	s.roster = append(s.roster, leg)

	s.apply(model.Transaction{
		ID:          uuid.NewString(),
		Timestamp:   s.clk.Now(),
		Description: fmt.Sprintf("Checkride booking: %s rating", category),
		Amount:      settlement.CheckrideFee,
		Type:        model.Debit,
		Category:    model.CatTraining,
	})
	s.notify(model.NoticeInfo, fmt.Sprintf("Checkride booked: land at %s gentler than %.0f fpm", leg.Destination, settlement.GentleLandingLimit))

	return leg, nil
}

// ImportFlightPlan builds one current leg from an externally produced OFP.
// The caller fetched the plan; a payload missing its essentials is rejected
// with a retryable error rather than half-imported.
func (s *Service) ImportFlightPlan(fp model.FlightPlan) (model.RosterLeg, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if fp.Origin == "" || fp.Destination == "" || fp.Origin == fp.Destination {
		return model.RosterLeg{}, fmt.Errorf("%w: origin %q destination %q", ErrInvalidPlan, fp.Origin, fp.Destination)
	}
	if s.currentLegIndex() >= 0 {
		return model.RosterLeg{}, ErrLegInProgress
	}

	acIdx := s.aircraftAt(fp.Origin)
	if acIdx < 0 {
		return model.RosterLeg{}, fmt.Errorf("%w: none positioned at %s", ErrUnknownAircraft, fp.Origin)
	}

	flightNumber := fp.Callsign
	if flightNumber == "" {
		flightNumber = "SKY000"
	}
	departure := fp.Departure
	if departure.IsZero() {
		departure = s.clk.Now()
	}

	leg := model.RosterLeg{
		ID:           uuid.NewString(),
		FlightNumber: flightNumber,
		Origin:       fp.Origin,
		Destination:  fp.Destination,
		DistanceNM:   s.db.DistanceNM(fp.Origin, fp.Destination),
		Departure:    departure,
		Status:       model.LegCurrent,
		Pax:          fp.Pax,
		MinFuelLbs:   fp.BlockFuelLbs,
		AircraftID:   s.fleet[acIdx].ID,
	}
	s.roster = append(s.roster, leg)
	s.fleet[acIdx].Location = fp.Destination

	logrus.WithFields(logrus.Fields{
		"flight": flightNumber,
		"route":  fp.Origin + "-" + fp.Destination,
	}).Info("flight plan imported")

	return leg, nil
}

// CancelCurrentLeg marks the current leg cancelled before departure and
// charges the fixed passenger-reallocation penalty. Cancelled is terminal:
// the leg is never promoted again, a later generation starts a fresh chain.
// After departure there is nothing to cancel: either the flight settles or
// it is abandoned.
func (s *Service) CancelCurrentLeg() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.det.Flying() {
		return ErrFlightInProgress
	}
	idx := s.currentLegIndex()
	if idx < 0 {
		return ErrNoCurrentLeg
	}

	leg := s.roster[idx]
	s.roster[idx].Status = model.LegCancelled
	s.apply(model.Transaction{
		ID:          uuid.NewString(),
		Timestamp:   s.clk.Now(),
		Description: fmt.Sprintf("Cancellation penalty %s %s-%s", leg.FlightNumber, leg.Origin, leg.Destination),
		Amount:      settlement.CancellationPenalty,
		Type:        model.Debit,
		Category:    model.CatPenalty,
	})
	s.notify(model.NoticeWarning, fmt.Sprintf("%s cancelled: %s penalty",
		leg.FlightNumber, util.FormatMoney(settlement.CancellationPenalty)))
	return nil
}

// BuyAircraft adds a new airframe to the fleet after a synchronous funds
// check. The aircraft is delivered to the hub unless a location is given.
func (s *Service) BuyAircraft(candidate model.Aircraft, price float64) (model.Aircraft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.company.Balance < price {
		s.notify(model.NoticeError, fmt.Sprintf("Purchase requires %s, balance is %s",
			util.FormatMoney(price), util.FormatMoney(s.company.Balance)))
		return model.Aircraft{}, ErrInsufficientFunds
	}

	if candidate.ID == "" {
		candidate.ID = uuid.NewString()
	}
	if candidate.Location == "" {
		candidate.Location = s.company.Hub
	}
	if candidate.Condition == 0 {
		candidate.Condition = 100
	}
	if candidate.Status == "" {
		candidate.Status = model.AircraftActive
	}
	s.fleet = append(s.fleet, candidate)

	s.apply(model.Transaction{
		ID:          uuid.NewString(),
		Timestamp:   s.clk.Now(),
		Description: fmt.Sprintf("Aircraft purchase: %s %s", candidate.Model, candidate.Registration),
		Amount:      price,
		Type:        model.Debit,
		Category:    model.CatPurchase,
	})
	s.notify(model.NoticeSuccess, fmt.Sprintf("%s delivered to %s", candidate.Model, candidate.Location))

	return candidate, nil
}

// EndDuty closes the current duty period. The next takeoff opens a new one.
func (s *Service) EndDuty() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.company.DutyStart.IsZero() {
		return
	}
	s.company.DutyStart = time.Time{}
	s.notify(model.NoticeInfo, "Duty period ended")
}

// Snapshot is a consistent copy of the whole aggregate for read-side
// consumers. Mutating it has no effect on the session.
type Snapshot struct {
	Company   model.CompanyConfig   `json:"company"`
	Pilot     model.PilotStats      `json:"pilot"`
	Fleet     []model.Aircraft      `json:"fleet"`
	Roster    []model.RosterLeg     `json:"roster"`
	Ledger    []model.Transaction   `json:"ledger"`
	Telemetry model.TelemetrySample `json:"telemetry"`
	Flying    bool                  `json:"flying"`
}

// State returns a deep copy of the full aggregate.
func (s *Service) State() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Company:   s.company,
		Pilot:     deepcopy.Copy(s.pilot).(model.PilotStats),
		Fleet:     copySlice(s.fleet),
		Roster:    copySlice(s.roster),
		Ledger:    copySlice(s.ledger),
		Telemetry: s.lastSample,
		Flying:    s.det.Flying(),
	}
}

// Company returns a copy of the company record.
func (s *Service) Company() model.CompanyConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.company
}

// Pilot returns a copy of the career record.
func (s *Service) Pilot() model.PilotStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deepcopy.Copy(s.pilot).(model.PilotStats)
}

// Fleet returns a copy of the fleet.
func (s *Service) Fleet() []model.Aircraft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copySlice(s.fleet)
}

// Roster returns a copy of all legs in insertion order.
func (s *Service) Roster() []model.RosterLeg {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copySlice(s.roster)
}

// Ledger returns a copy of the transaction log in recording order.
func (s *Service) Ledger() []model.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copySlice(s.ledger)
}

// Notifications drains and returns the pending notices.
func (s *Service) Notifications() []model.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.notices
	s.notices = nil
	return out
}

func copySlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	return deepcopy.Copy(in).([]T)
}

// apply records a ledger entry and keeps the derived balance in step.
func (s *Service) apply(tx model.Transaction) {
	s.ledger = append(s.ledger, tx)
	s.company.Balance += tx.Signed()
}

func (s *Service) notify(kind model.NotificationKind, msg string) {
	s.notices = append(s.notices, model.Notification{Kind: kind, Message: msg})
}

func (s *Service) currentLegIndex() int {
	for i := range s.roster {
		if s.roster[i].Status == model.LegCurrent {
			return i
		}
	}
	return -1
}

// promoteNextLeg makes the first pending leg after the settled one current,
// so the chain continues from where the aircraft now is. Legs before the
// settled index (an abandoned earlier chain) are never resurrected. No-op
// when nothing qualifies.
func (s *Service) promoteNextLeg(settled int) {
	for i := settled + 1; i < len(s.roster); i++ {
		if s.roster[i].Status == model.LegPending {
			s.roster[i].Status = model.LegCurrent
			return
		}
	}
}

func (s *Service) aircraftIndex(id string) int {
	for i := range s.fleet {
		if s.fleet[i].ID == id {
			return i
		}
	}
	return -1
}

// aircraftAt finds an active aircraft parked at the airport, preferring
// fleet order.
func (s *Service) aircraftAt(icao string) int {
	for i := range s.fleet {
		if s.fleet[i].Location == icao && s.fleet[i].Status == model.AircraftActive {
			return i
		}
	}
	return -1
}
