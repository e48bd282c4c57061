package structs

import (
	"fmt"
	"strings"
)

// HosterState is the lifecycle state of a slot as reported by the hoster.
type HosterState int

const (
	HosterNonexistent HosterState = iota
	HosterRunning
	HosterStarting
	HosterStopping
	HosterStopped
	HosterStoppedInPlace
	HosterLocked
	HosterUnreachable
)

var hosterStateNames = []string{
	"nonexistent", "running", "starting", "stopping", "stopped",
	"stopped in place", "locked", "unreachable",
}

func (s HosterState) String() string {
	if int(s) < 0 || int(s) >= len(hosterStateNames) {
		return fmt.Sprintf("HosterState(%d)", int(s))
	}
	return hosterStateNames[s]
}

// MarshalText implements encoding.TextMarshaler.
func (s HosterState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *HosterState) UnmarshalText(b []byte) error {
	v, err := ParseHosterState(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseHosterState accepts both the canonical names and the underscore form
// returned by hoster APIs, such as "stopped_in_place".
func ParseHosterState(s string) (HosterState, error) {
	return parseEnum[HosterState]("hoster state", hosterStateNames, s)
}

// Stopped reports whether the slot is stopped, in place or not.
func (s HosterState) Stopped() bool {
	return s == HosterStopped || s == HosterStoppedInPlace
}

// InventoryState is the load balancer admission state of a slot.
type InventoryState int

const (
	InventoryDisabled InventoryState = iota
	InventoryEnabled
	InventoryCordoned
)

var inventoryStateNames = []string{"disabled", "enabled", "cordoned"}

func (s InventoryState) String() string {
	if int(s) < 0 || int(s) >= len(inventoryStateNames) {
		return fmt.Sprintf("InventoryState(%d)", int(s))
	}
	return inventoryStateNames[s]
}

func (s InventoryState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *InventoryState) UnmarshalText(b []byte) error {
	v, err := ParseInventoryState(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

func ParseInventoryState(s string) (InventoryState, error) {
	return parseEnum[InventoryState]("inventory state", inventoryStateNames, s)
}

// InventoryStatus is the load balancer's view of the slot liveness.
type InventoryStatus int

const (
	InventoryOffline InventoryStatus = iota
	InventoryOnline
)

var inventoryStatusNames = []string{"offline", "online"}

func (s InventoryStatus) String() string {
	if int(s) < 0 || int(s) >= len(inventoryStatusNames) {
		return fmt.Sprintf("InventoryStatus(%d)", int(s))
	}
	return inventoryStatusNames[s]
}

func (s InventoryStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *InventoryStatus) UnmarshalText(b []byte) error {
	v, err := ParseInventoryStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

func ParseInventoryStatus(s string) (InventoryStatus, error) {
	return parseEnum[InventoryStatus]("inventory status", inventoryStatusNames, s)
}

// PoolState is the operator override of a slot.
type PoolState int

const (
	PoolActive PoolState = iota
	PoolInMaintenance
)

var poolStateNames = []string{"active", "in maintenance"}

func (s PoolState) String() string {
	if int(s) < 0 || int(s) >= len(poolStateNames) {
		return fmt.Sprintf("PoolState(%d)", int(s))
	}
	return poolStateNames[s]
}

func (s PoolState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *PoolState) UnmarshalText(b []byte) error {
	v, err := parseEnum[PoolState]("pool state", poolStateNames, string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// CustomState is the health tag the controller derives for a slot.
type CustomState int

const (
	CustomNone CustomState = iota
	CustomUnresponsive
	CustomMalfunctioning
	CustomToRecycle
)

var customStateNames = []string{"none", "unresponsive", "malfunctioning", "to recycle"}

func (s CustomState) String() string {
	if int(s) < 0 || int(s) >= len(customStateNames) {
		return fmt.Sprintf("CustomState(%d)", int(s))
	}
	return customStateNames[s]
}

func (s CustomState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *CustomState) UnmarshalText(b []byte) error {
	v, err := parseEnum[CustomState]("custom state", customStateNames, string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ServerType distinguishes hoster managed machines from bare metal.
type ServerType int

const (
	VirtualMachine ServerType = iota
	BareMetal
)

var serverTypeNames = []string{"virtual machine", "bare metal"}

func (s ServerType) String() string {
	if int(s) < 0 || int(s) >= len(serverTypeNames) {
		return fmt.Sprintf("ServerType(%d)", int(s))
	}
	return serverTypeNames[s]
}

func (s ServerType) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *ServerType) UnmarshalText(b []byte) error {
	v, err := parseEnum[ServerType]("server type", serverTypeNames, string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ServiceHealth is the BigBlueButton service status reported by the host.
type ServiceHealth int

const (
	HealthUnknown ServiceHealth = iota
	HealthOK
	HealthKO
)

var serviceHealthNames = []string{"unknown", "OK", "KO"}

func (s ServiceHealth) String() string {
	if int(s) < 0 || int(s) >= len(serviceHealthNames) {
		return fmt.Sprintf("ServiceHealth(%d)", int(s))
	}
	return serviceHealthNames[s]
}

func (s ServiceHealth) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *ServiceHealth) UnmarshalText(b []byte) error {
	v, err := ParseServiceHealth(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

func ParseServiceHealth(s string) (ServiceHealth, error) {
	return parseEnum[ServiceHealth]("service health", serviceHealthNames, s)
}

// parseEnum matches s case-insensitively against names, treating underscores
// as spaces.
func parseEnum[T ~int](kind string, names []string, s string) (T, error) {
	norm := strings.ToLower(strings.TrimSpace(strings.ReplaceAll(s, "_", " ")))
	for i, name := range names {
		if strings.ToLower(name) == norm {
			return T(i), nil
		}
	}
	return T(0), fmt.Errorf("unknown %s %q", kind, s)
}
