package bbbpool

import (
	"time"

	"github.com/bbbpool/bbbpool/client"
	"github.com/bbbpool/bbbpool/logging"
)

const leaderLockTTL = 30 * time.Second

// CycleLocker hands out the lock allowing a single replica to run cycles.
type CycleLocker interface {
	AcquireCycleLock(ttl time.Duration) (*client.CycleLock, error)
}

// LeaderCandidate runs the leader election.
type LeaderCandidate struct {
	locker CycleLocker
	ttl    time.Duration
	lock   *client.CycleLock
	logger *logging.Logger
}

// newLeaderCandidate creates a new LeaderCandidate.
func newLeaderCandidate(locker CycleLocker, ttl time.Duration, logger *logging.Logger) *LeaderCandidate {
	return &LeaderCandidate{
		locker: locker,
		ttl:    ttl,
		logger: logger,
	}
}

// isLeader returns true if the candidate currently holds a lock that has
// not been revoked.
func (l *LeaderCandidate) isLeader() bool {
	if l.lock == nil {
		return false
	}
	select {
	case <-l.lock.Lost:
		l.logger.Warning("core/leader: the leadership lock has been lost")
		l.lock = nil
		return false
	default:
		return true
	}
}

// leaderElection is the main entry in to the leadership locking process.
// It tries once to obtain the lock when the candidate does not hold it.
func (l *LeaderCandidate) leaderElection() (isLeader bool) {
	if l.isLeader() {
		return true
	}

	lock, err := l.locker.AcquireCycleLock(l.ttl)
	if err != nil {
		l.logger.Error("core/leader: %v", err)
		return false
	}
	if lock == nil {
		l.logger.Debug("core/leader: failed to acquire leadership lock")
		return false
	}

	l.logger.Info("core/leader: currently running as bbbpool leader")
	l.lock = lock
	return true
}

// endCampaign releases the lock, allowing other agents to pick it up
// without having to wait for the TTL to expire.
func (l *LeaderCandidate) endCampaign() {
	if l.lock == nil {
		return
	}

	l.logger.Info("core/leader: gracefully releasing the leadership lock")
	if err := l.lock.Release(); err != nil {
		l.logger.Error("core/leader: unable to release the leadership lock: %v", err)
	}
	l.lock = nil
}
