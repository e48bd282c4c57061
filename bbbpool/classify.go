package bbbpool

import (
	"github.com/bbbpool/bbbpool/bbbpool/structs"
	"github.com/bbbpool/bbbpool/logging"
)

const (
	// unresponsiveAfter is the number of seconds a running slot may stay
	// offline in the inventory before it is tagged.
	unresponsiveAfter = 240

	// malfunctioningAfter is the number of seconds a running slot may report
	// failed services before it is tagged.
	malfunctioningAfter = 120
)

// Classify returns the custom state of a record. Only the first matching
// rule applies. Every tag is logged at warning level or above so operators
// get notified; bare metal servers are never tagged for recycling since
// only a human can replace them.
func Classify(r *structs.ServerRecord, maxUptime int64, logger *logging.Logger) structs.CustomState {
	switch {
	case r.Running() && !r.Online() && r.HosterStateDuration >= unresponsiveAfter:
		if r.IsBareMetal() {
			logger.Error("core/classify: unresponsive bare metal server %v detected, "+
				"tagging it as unresponsive. MANUAL INTERVENTION REQUIRED", r.Domain)
		} else {
			logger.Error("core/classify: unresponsive virtual machine %v detected, "+
				"tagging it as unresponsive (health %v, pool state %v)", r.Domain, r.Health, r.PoolState)
		}
		return structs.CustomUnresponsive

	case r.Running() && r.Health == structs.HealthKO && r.HosterStateDuration >= malfunctioningAfter:
		if r.IsBareMetal() {
			logger.Error("core/classify: service malfunction detected on bare metal server %v, "+
				"tagging it as malfunctioning. MANUAL INTERVENTION REQUIRED", r.Domain)
		} else {
			logger.Error("core/classify: service malfunction detected on virtual machine %v, "+
				"tagging it as malfunctioning (inventory status %v)", r.Domain, r.InventoryStatus)
		}
		return structs.CustomMalfunctioning

	case maxUptime > 0 && r.Uptime >= maxUptime:
		if r.IsBareMetal() {
			logger.Error("core/classify: uptime of bare metal server %v is above the limit (%v), "+
				"MANUAL INTERVENTION REQUIRED", r.Domain, uptimeString(r.Uptime))
			return structs.CustomNone
		}
		logger.Warning("core/classify: uptime of virtual machine %v is above the limit (%v), "+
			"tagging it for recycling", r.Domain, uptimeString(r.Uptime))
		return structs.CustomToRecycle
	}

	return structs.CustomNone
}
