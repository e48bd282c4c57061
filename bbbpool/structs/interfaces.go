package structs

import (
	"context"
	"time"
)

// Machine is a hoster instance as returned by a HosterProvider.
type Machine struct {
	ID           string
	Name         string
	State        HosterState
	ModifiedAt   time.Time
	PublicIP     string
	PrivateIP    string
	Maintenances []string
}

// MachineSpec describes an instance to create.
type MachineSpec struct {
	Name           string
	Image          string
	CommercialType string
	Project        string
	EnableIPv6     bool
}

// MachineAction is a lifecycle transition requested from the hoster.
type MachineAction int

const (
	ActionPowerOn MachineAction = iota
	ActionPowerOff
	ActionTerminate
)

func (a MachineAction) String() string {
	switch a {
	case ActionPowerOn:
		return "poweron"
	case ActionPowerOff:
		return "poweroff"
	case ActionTerminate:
		return "terminate"
	default:
		return "unknown"
	}
}

// HosterProvider provides a standardized interface for driving the
// instances of the pool across different hosters.
type HosterProvider interface {
	// Name returns the registry name of the provider.
	Name() string

	// ListMachines returns every machine whose name contains pattern.
	ListMachines(ctx context.Context, pattern string) ([]Machine, error)

	// FindImage returns the identifier of the most recent image named name.
	FindImage(ctx context.Context, name string) (string, error)

	// CreateMachine creates a stopped machine and returns its identifier.
	CreateMachine(ctx context.Context, spec MachineSpec) (string, error)

	// SetMachineState requests a lifecycle transition. It returns once the
	// hoster has accepted the request.
	SetMachineState(ctx context.Context, id string, action MachineAction) error

	// GetAddress returns the identifier of the reserved public address ip.
	GetAddress(ctx context.Context, ip string) (string, error)

	// AttachAddress moves a reserved public address onto a machine.
	AttachAddress(ctx context.Context, addressID, machineID string) error
}

// RunOptions tune a remote command execution.
type RunOptions struct {
	MaxTries int
	Timeout  time.Duration
	Backoff  time.Duration
	Stdin    []byte
}

// RunResult is the outcome of the last try of a remote command.
type RunResult struct {
	Stdout   string
	ExitCode int
	Tries    int
}

// RemoteExecutor runs shell commands on pool and load balancer hosts.
type RemoteExecutor interface {
	// Run executes command on host. A non-zero exit status is retried and
	// reported as an error once the tries are exhausted.
	Run(ctx context.Context, host, command string, opts RunOptions) (RunResult, error)
}

// InventoryStatusRow is one row of the load balancer status table.
type InventoryStatusRow struct {
	Hostname       string
	State          InventoryState
	Status         InventoryStatus
	Meetings       int
	Users          int
	LargestMeeting int
	Videos         int
}

// InventoryServer is one entry of the load balancer server list.
type InventoryServer struct {
	ID             string
	URL            string
	Domain         string
	Secret         string
	State          InventoryState
	Status         InventoryStatus
	Load           float64
	LoadMultiplier float64
}

// InventoryClient reads and drives the load balancer inventory.
type InventoryClient interface {
	Status(ctx context.Context) ([]InventoryStatusRow, error)
	Servers(ctx context.Context) ([]InventoryServer, error)
	Enable(ctx context.Context, id string) error
	Cordon(ctx context.Context, id string) error
}

// RecordingState is the processing state of a recording.
type RecordingState string

const (
	RecordingProcessing  RecordingState = "processing"
	RecordingProcessed   RecordingState = "processed"
	RecordingPublished   RecordingState = "published"
	RecordingUnpublished RecordingState = "unpublished"
)

// Meeting is a running conference on a slot.
type Meeting struct {
	ID           string
	Name         string
	ModeratorPW  string
	CreateTime   time.Time
	Participants int
}

// Recording is a recording known by a slot.
type Recording struct {
	ID        string
	MeetingID string
	State     RecordingState
	StartTime time.Time
	EndTime   time.Time
}

// SessionAPI is the conferencing API of a single slot.
type SessionAPI interface {
	ListMeetings(ctx context.Context) ([]Meeting, error)
	EndMeeting(ctx context.Context, id, password string) error
	ListRecordings(ctx context.Context, states ...RecordingState) ([]Recording, error)
}

// SessionAPIFactory returns the SessionAPI of the slot served at domain.
type SessionAPIFactory func(domain, secret string) SessionAPI

// CalendarSource returns the raw iCal feed describing scheduled sessions.
type CalendarSource interface {
	Load(ctx context.Context) ([]byte, error)
}

// StateStore persists small JSON documents between cycles.
type StateStore interface {
	// ReadState decodes the document stored under key into v. It returns
	// false when no document exists.
	ReadState(ctx context.Context, key string, v interface{}) (bool, error)

	// PersistState replaces the document stored under key.
	PersistState(ctx context.Context, key string, v interface{}) error
}
