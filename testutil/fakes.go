package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/bbbpool/bbbpool/bbbpool/structs"
)

// ExecCall is a command received by the fake executor.
type ExecCall struct {
	Host    string
	Command string
	Opts    structs.RunOptions
}

// Executor answers remote commands through Handler and records them.
type Executor struct {
	Handler func(host, command string) (string, error)

	lock  sync.Mutex
	calls []ExecCall
}

// Run implements structs.RemoteExecutor.
func (e *Executor) Run(_ context.Context, host, command string, opts structs.RunOptions) (structs.RunResult, error) {
	e.lock.Lock()
	e.calls = append(e.calls, ExecCall{Host: host, Command: command, Opts: opts})
	e.lock.Unlock()

	if e.Handler == nil {
		return structs.RunResult{Tries: 1}, nil
	}
	out, err := e.Handler(host, command)
	if err != nil {
		return structs.RunResult{Stdout: out, ExitCode: 1, Tries: 1}, err
	}
	return structs.RunResult{Stdout: out, Tries: 1}, nil
}

// Calls returns the commands received so far.
func (e *Executor) Calls() []ExecCall {
	e.lock.Lock()
	defer e.lock.Unlock()
	return append([]ExecCall(nil), e.calls...)
}

// Hoster is an in-memory hoster provider.
type Hoster struct {
	Machines []structs.Machine
	ListErr  error
	Images   map[string]string

	// Addresses maps reserved IPv4 addresses to their identifier.
	Addresses map[string]string

	// Fail makes every action on these machine ids fail.
	Fail map[string]bool

	// CreateErr makes machine creation fail.
	CreateErr error

	lock     sync.Mutex
	actions  []string
	created  []structs.MachineSpec
	attached map[string]string
}

// Name implements structs.HosterProvider.
func (h *Hoster) Name() string { return "fake" }

// ListMachines implements structs.HosterProvider.
func (h *Hoster) ListMachines(_ context.Context, pattern string) ([]structs.Machine, error) {
	if h.ListErr != nil {
		return nil, h.ListErr
	}
	var out []structs.Machine
	for _, m := range h.Machines {
		if strings.Contains(m.Name, pattern) {
			out = append(out, m)
		}
	}
	return out, nil
}

// FindImage implements structs.HosterProvider.
func (h *Hoster) FindImage(_ context.Context, name string) (string, error) {
	id, ok := h.Images[name]
	if !ok {
		return "", fmt.Errorf("image %v not found", name)
	}
	return id, nil
}

// CreateMachine implements structs.HosterProvider.
func (h *Hoster) CreateMachine(_ context.Context, spec structs.MachineSpec) (string, error) {
	if h.CreateErr != nil {
		return "", h.CreateErr
	}
	h.lock.Lock()
	defer h.lock.Unlock()
	h.created = append(h.created, spec)
	return "new-" + spec.Name, nil
}

// SetMachineState implements structs.HosterProvider.
func (h *Hoster) SetMachineState(_ context.Context, id string, action structs.MachineAction) error {
	if h.Fail[id] {
		return fmt.Errorf("%v of %v refused", action, id)
	}
	h.lock.Lock()
	defer h.lock.Unlock()
	h.actions = append(h.actions, action.String()+" "+id)
	return nil
}

// GetAddress implements structs.HosterProvider.
func (h *Hoster) GetAddress(_ context.Context, ip string) (string, error) {
	id, ok := h.Addresses[ip]
	if !ok {
		return "", fmt.Errorf("no reserved address %v", ip)
	}
	return id, nil
}

// AttachAddress implements structs.HosterProvider.
func (h *Hoster) AttachAddress(_ context.Context, addressID, machineID string) error {
	if h.Fail[machineID] {
		return fmt.Errorf("attach to %v refused", machineID)
	}
	h.lock.Lock()
	defer h.lock.Unlock()
	if h.attached == nil {
		h.attached = make(map[string]string)
	}
	h.attached[addressID] = machineID
	return nil
}

// Actions returns the accepted state changes as "action id" strings.
func (h *Hoster) Actions() []string {
	h.lock.Lock()
	defer h.lock.Unlock()
	return append([]string(nil), h.actions...)
}

// Created returns the specs of the machines created.
func (h *Hoster) Created() []structs.MachineSpec {
	h.lock.Lock()
	defer h.lock.Unlock()
	return append([]structs.MachineSpec(nil), h.created...)
}

// Attached returns the machine each address was attached to.
func (h *Hoster) Attached() map[string]string {
	h.lock.Lock()
	defer h.lock.Unlock()
	out := make(map[string]string, len(h.attached))
	for k, v := range h.attached {
		out[k] = v
	}
	return out
}

// Inventory is an in-memory load balancer.
type Inventory struct {
	Rows      []structs.InventoryStatusRow
	List      []structs.InventoryServer
	StatusErr error

	// Fail makes every action on these server ids fail.
	Fail map[string]bool

	lock     sync.Mutex
	enabled  []string
	cordoned []string
}

// Status implements structs.InventoryClient.
func (i *Inventory) Status(context.Context) ([]structs.InventoryStatusRow, error) {
	return i.Rows, i.StatusErr
}

// Servers implements structs.InventoryClient.
func (i *Inventory) Servers(context.Context) ([]structs.InventoryServer, error) {
	return i.List, nil
}

// Enable implements structs.InventoryClient.
func (i *Inventory) Enable(_ context.Context, id string) error {
	if i.Fail[id] {
		return fmt.Errorf("enable %v refused", id)
	}
	i.lock.Lock()
	defer i.lock.Unlock()
	i.enabled = append(i.enabled, id)
	return nil
}

// Cordon implements structs.InventoryClient.
func (i *Inventory) Cordon(_ context.Context, id string) error {
	if i.Fail[id] {
		return fmt.Errorf("cordon %v refused", id)
	}
	i.lock.Lock()
	defer i.lock.Unlock()
	i.cordoned = append(i.cordoned, id)
	return nil
}

// Enabled returns the ids enabled so far.
func (i *Inventory) Enabled() []string {
	i.lock.Lock()
	defer i.lock.Unlock()
	return append([]string(nil), i.enabled...)
}

// Cordoned returns the ids cordoned so far.
func (i *Inventory) Cordoned() []string {
	i.lock.Lock()
	defer i.lock.Unlock()
	return append([]string(nil), i.cordoned...)
}

// SessionAPI is the conferencing API of one fake slot.
type SessionAPI struct {
	Meetings   []structs.Meeting
	Recordings []structs.Recording
	Err        error

	lock  sync.Mutex
	ended []string
}

// ListMeetings implements structs.SessionAPI.
func (s *SessionAPI) ListMeetings(context.Context) ([]structs.Meeting, error) {
	return s.Meetings, s.Err
}

// EndMeeting implements structs.SessionAPI.
func (s *SessionAPI) EndMeeting(_ context.Context, id, _ string) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.ended = append(s.ended, id)
	return nil
}

// ListRecordings implements structs.SessionAPI.
func (s *SessionAPI) ListRecordings(_ context.Context, states ...structs.RecordingState) ([]structs.Recording, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	var out []structs.Recording
	for _, r := range s.Recordings {
		for _, state := range states {
			if r.State == state {
				out = append(out, r)
				break
			}
		}
	}
	return out, nil
}

// Ended returns the meetings ended so far.
func (s *SessionAPI) Ended() []string {
	s.lock.Lock()
	defer s.lock.Unlock()
	return append([]string(nil), s.ended...)
}

// Sessions holds the fake APIs by domain.
type Sessions map[string]*SessionAPI

// Factory implements structs.SessionAPIFactory. Unknown domains get an
// empty API.
func (s Sessions) Factory(domain, _ string) structs.SessionAPI {
	if api, ok := s[domain]; ok {
		return api
	}
	return &SessionAPI{}
}

// MemoryStore keeps state documents as JSON in memory.
type MemoryStore struct {
	ReadErr    error
	PersistErr error

	lock sync.Mutex
	docs map[string][]byte
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string][]byte)}
}

// ReadState implements structs.StateStore.
func (m *MemoryStore) ReadState(_ context.Context, key string, v interface{}) (bool, error) {
	if m.ReadErr != nil {
		return false, m.ReadErr
	}
	m.lock.Lock()
	defer m.lock.Unlock()
	doc, ok := m.docs[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(doc, v)
}

// PersistState implements structs.StateStore.
func (m *MemoryStore) PersistState(_ context.Context, key string, v interface{}) error {
	if m.PersistErr != nil {
		return m.PersistErr
	}
	doc, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.lock.Lock()
	defer m.lock.Unlock()
	m.docs[key] = doc
	return nil
}

// Resolver resolves domains from a static table.
type Resolver map[string]string

// LookupIPv4 resolves host.
func (r Resolver) LookupIPv4(_ context.Context, host string) (string, error) {
	ip, ok := r[host]
	if !ok {
		return "", fmt.Errorf("no such host %v", host)
	}
	return ip, nil
}

// Calendar serves a static iCal feed.
type Calendar struct {
	Data []byte
	Err  error
}

// Load implements structs.CalendarSource.
func (c *Calendar) Load(context.Context) ([]byte, error) {
	return c.Data, c.Err
}
