package bbbpool

import (
	"context"
	"math"
	"time"

	"github.com/dariubs/percent"

	"github.com/bbbpool/bbbpool/bbbpool/structs"
	"github.com/bbbpool/bbbpool/helper"
	"github.com/bbbpool/bbbpool/logging"
)

// trendValidity is the number of run intervals after which the recorded
// load trend is considered stale.
const trendValidity = 1.8

// LoadPredictor sizes the pool after the current load and its variation
// since the previous cycle.
type LoadPredictor struct {
	config *structs.Config
	state  structs.StateStore
	logger *logging.Logger
	now    func() time.Time
}

// NewLoadPredictor returns a predictor keeping its trend in state.
func NewLoadPredictor(config *structs.Config, state structs.StateStore, logger *logging.Logger) *LoadPredictor {
	return &LoadPredictor{config: config, state: state, logger: logger, now: time.Now}
}

// Predict returns the number of active servers the load asks for. The
// current load is persisted as the trend of the next cycle.
func (p *LoadPredictor) Predict(ctx context.Context, snapshot *structs.PoolSnapshot) int {
	p.logger.Info("core/load: evaluating the next active servers count from load")

	now := p.now()
	current := CurrentLoad(snapshot)
	current.UpdatedAt = now

	var previous structs.LoadTrend
	found, err := p.state.ReadState(ctx, structs.StateKeyLoadTrend, &previous)
	if err != nil {
		p.logger.Warning("core/load: unable to read the past load: %v", err)
		found = false
	}

	maxAge := time.Duration(float64(p.config.RunIntervalDuration()) * trendValidity)
	if !found || now.Sub(previous.UpdatedAt) >= maxAge || previous.Participants < 1 || previous.Meetings < 1 {
		p.logger.Info("core/load: past load is missing or too old, using current load as past load")
		previous = current
	}

	p.logger.Info("core/load: past load is %d participants in %d meetings, current load is "+
		"%d participants in %d meetings", previous.Participants, previous.Meetings,
		current.Participants, current.Meetings)

	if err := p.state.PersistState(ctx, structs.StateKeyLoadTrend, current); err != nil {
		p.logger.Error("core/load: unable to persist the current load: %v", err)
	}

	potential := snapshot.Count(structs.ListOptions{IncludeBareMetal: true}, structs.IsEnabled)
	p.logLoadRatios(current, potential)

	return PredictFromLoad(current, previous, p.config, p.logger)
}

// CurrentLoad sums the counters of the running slots, bare metal included
// and maintenance excluded. Both sums are at least one so they can be used
// as divisors.
func CurrentLoad(snapshot *structs.PoolSnapshot) structs.LoadTrend {
	var load structs.LoadTrend
	for _, r := range snapshot.List(structs.ListOptions{IncludeBareMetal: true}, structs.IsRunning) {
		load.Participants += r.Users
		load.Meetings += r.Meetings
	}
	if load.Participants == 0 {
		load.Participants = 1
	}
	if load.Meetings == 0 {
		load.Meetings = 1
	}
	return load
}

// PredictFromLoad computes the next active servers count from the current
// and previous load. The growth factor of participants switches when the
// variation reaches the threshold while the one of meetings switches only
// once it exceeds it.
func PredictFromLoad(current, previous structs.LoadTrend, config *structs.Config, logger *logging.Logger) int {
	c := config.Load

	participantsVariation := helper.Round(float64(current.Participants)/float64(previous.Participants), 2)
	meetingsVariation := helper.Round(float64(current.Meetings)/float64(previous.Meetings), 2)

	logger.Info("core/load: variation ratios are %v for participants and %v for meetings",
		participantsVariation, meetingsVariation)

	participantsFactor := c.ParticipantsFactorHigh
	if participantsVariation < c.ParticipantsThreshold {
		participantsFactor = c.ParticipantsFactorLow
	}
	meetingsFactor := c.MeetingsFactorHigh
	if meetingsVariation <= c.MeetingsThreshold {
		meetingsFactor = c.MeetingsFactorLow
	}

	nextParticipants := nextServersCount(participantsFactor, current.Participants, c.ParticipantsCapacity)
	nextMeetings := nextServersCount(meetingsFactor, current.Meetings, c.MeetingsCapacity)
	floor := MinimumActiveServers(config.Pool)

	next := int(helper.Max(float64(nextParticipants), float64(nextMeetings), float64(floor)))

	logger.Info("core/load: next active servers count from load: %d (participants %d, meetings %d, minimum %d)",
		next, nextParticipants, nextMeetings, floor)
	return next
}

func nextServersCount(factor float64, current, perServer int) int {
	capacity := math.Round(factor * float64(current))
	return int(math.Ceil(capacity / float64(perServer)))
}

// MinimumActiveServers is the smallest active capacity the load predictor
// asks for: the bare metal servers when there are any, a share of the pool
// otherwise.
func MinimumActiveServers(pool *structs.Pool) int {
	if pool.BareMetalCount > 0 {
		return pool.BareMetalCount
	}
	return int(math.Ceil(float64(pool.Size) * pool.MinimumRatio))
}

func (p *LoadPredictor) logLoadRatios(current structs.LoadTrend, potential int) {
	minimum := MinimumActiveServers(p.config.Pool)
	if potential < minimum {
		p.logger.Warning("core/load: potential active servers count %d is less than the minimum %d",
			potential, minimum)
	}
	if potential == 0 {
		return
	}

	participants := percent.PercentOf(current.Participants, potential*p.config.Load.ParticipantsCapacity)
	meetings := percent.PercentOf(current.Meetings, potential*p.config.Load.MeetingsCapacity)

	p.logger.Info("core/load: load ratios are %v%% of participants capacity and %v%% of meetings capacity",
		helper.Round(participants, 1), helper.Round(meetings, 1))
}
