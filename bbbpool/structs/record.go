package structs

import "net"

// ServerRecord is the merged view of one pool slot, keyed by its domain.
type ServerRecord struct {
	Number int    `json:"number"`
	Domain string `json:"domain"`

	HosterID            string      `json:"hoster_id,omitempty"`
	HosterState         HosterState `json:"hoster_state"`
	HosterStateDuration int64       `json:"hoster_state_duration"`
	Maintenances        []string    `json:"maintenances,omitempty"`
	PublicIP            string      `json:"public_ip,omitempty"`
	PrivateIP           string      `json:"private_ip,omitempty"`
	ServerType          ServerType  `json:"server_type"`

	InventoryID     string          `json:"inventory_id"`
	Secret          string          `json:"-"`
	InventoryState  InventoryState  `json:"inventory_state"`
	InventoryStatus InventoryStatus `json:"inventory_status"`
	Load            float64         `json:"load"`
	LoadMultiplier  float64         `json:"load_multiplier"`

	PoolState   PoolState   `json:"pool_state"`
	CustomState CustomState `json:"custom_state"`

	Meetings       int `json:"meetings"`
	Users          int `json:"users"`
	LargestMeeting int `json:"largest_meeting"`
	Videos         int `json:"videos"`

	// Uptime is expressed in seconds, -1 when the host could not be queried.
	Uptime int64         `json:"uptime"`
	CPUs   int           `json:"cpus"`
	Health ServiceHealth `json:"health"`

	Telemetry *Telemetry `json:"telemetry,omitempty"`
}

// Telemetry holds what the diagnostics script reported about a host.
type Telemetry struct {
	// LoadAverages are the 1, 5 and 15 minute load averages as a percentage
	// of the host CPU count.
	LoadAverages [3]float64 `json:"load_averages"`
	RxAvg1       float64    `json:"rx_avg1"`
	TxAvg1       float64    `json:"tx_avg1"`
	InternalIPv4 string     `json:"internal_ipv4,omitempty"`
	ExternalIPv4 string     `json:"external_ipv4,omitempty"`
	ExternalIPv6 string     `json:"external_ipv6,omitempty"`
}

// Copy returns a deep copy of the record.
func (r *ServerRecord) Copy() *ServerRecord {
	c := *r
	if r.Maintenances != nil {
		c.Maintenances = append([]string(nil), r.Maintenances...)
	}
	if r.Telemetry != nil {
		t := *r.Telemetry
		c.Telemetry = &t
	}
	return &c
}

// Tagged reports whether the controller considers the slot unhealthy or due
// for replacement.
func (r *ServerRecord) Tagged() bool {
	return r.CustomState != CustomNone
}

// Enabled reports whether the load balancer dispatches meetings to the slot.
func (r *ServerRecord) Enabled() bool {
	return r.InventoryState == InventoryEnabled
}

// Online reports whether the load balancer sees the slot as online.
func (r *ServerRecord) Online() bool {
	return r.InventoryStatus == InventoryOnline
}

// Running reports whether the hoster reports the slot as running.
func (r *ServerRecord) Running() bool {
	return r.HosterState == HosterRunning
}

// InMaintenance reports whether an operator has excluded the slot.
func (r *ServerRecord) InMaintenance() bool {
	return r.PoolState == PoolInMaintenance
}

// IsBareMetal reports whether the slot is a bare metal server.
func (r *ServerRecord) IsBareMetal() bool {
	return r.ServerType == BareMetal
}

// HostIPv4 returns the public IPv4 known for the slot, preferring what the
// host itself reported.
func (r *ServerRecord) HostIPv4() string {
	if r.Telemetry != nil && net.ParseIP(r.Telemetry.ExternalIPv4) != nil {
		return r.Telemetry.ExternalIPv4
	}
	return r.PublicIP
}
