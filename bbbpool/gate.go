package bbbpool

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	metrics "github.com/armon/go-metrics"

	"github.com/bbbpool/bbbpool/bbbpool/structs"
	"github.com/bbbpool/bbbpool/logging"
)

const sizeCheckTries = 3

// recordingIDRE restricts the recording identifiers interpolated in remote
// commands.
var recordingIDRE = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// TerminationGate decides whether cordoned slots can be terminated without
// losing a meeting or a recording.
type TerminationGate struct {
	sessions      structs.SessionAPIFactory
	exec          structs.RemoteExecutor
	opts          structs.RunOptions
	namer         *structs.SlotNamer
	scaleliteHost string
	sourcePath    string
	targetPath    string
	meetingsMax   time.Duration
	recordingsMax time.Duration
	workers       int
	logger        *logging.Logger
	now           func() time.Time
}

// NewTerminationGate returns the gate of the pool described by config.
func NewTerminationGate(config *structs.Config, namer *structs.SlotNamer, clients *Clients,
	logger *logging.Logger) *TerminationGate {

	opts := runOptions(config)
	opts.MaxTries = sizeCheckTries

	return &TerminationGate{
		sessions:      clients.Sessions,
		exec:          clients.Exec,
		opts:          opts,
		namer:         namer,
		scaleliteHost: config.Scalelite.Host,
		sourcePath:    config.Termination.RecordingsPath,
		targetPath:    config.Scalelite.RecordingsPath,
		meetingsMax:   time.Duration(config.Termination.MeetingsMaxDuration) * time.Minute,
		recordingsMax: time.Duration(config.Termination.RecordingsMaxProcessingDuration) * time.Minute,
		workers:       config.ActionMaxWorkers,
		logger:        logger,
		now:           time.Now,
	}
}

// Evaluate returns the domains of the candidates that may be terminated.
// Any error while checking a slot keeps it for the next cycle.
func (g *TerminationGate) Evaluate(ctx context.Context, snapshot *structs.PoolSnapshot,
	candidates []structs.TerminateCandidate) []string {

	defer metrics.MeasureSince([]string{"gate", "evaluate"}, time.Now())

	results := Fanout(ctx, g.logger, candidates, g.workers,
		func(ctx context.Context, c structs.TerminateCandidate) (bool, error) {
			if c.Requirement == structs.GateImmediate {
				return true, nil
			}
			r, ok := snapshot.Get(c.Domain)
			if !ok {
				return false, fmt.Errorf("unknown server %v", c.Domain)
			}
			return g.drained(ctx, r)
		})

	var ready []string
	for i, c := range candidates {
		if err := results[i].Err; err != nil {
			g.logger.Error("core/gate: can not check server %v before terminating it: %v", c.Domain, err)
			continue
		}
		if results[i].Value {
			ready = append(ready, c.Domain)
		}
	}

	metrics.IncrCounter([]string{"gate", "blocked"}, float32(len(candidates)-len(ready)))
	return ready
}

// drained reports whether the slot hosts no meeting and has transferred
// every recording to the load balancer storage.
func (g *TerminationGate) drained(ctx context.Context, r *structs.ServerRecord) (bool, error) {
	g.logger.Info("core/gate: trying to terminate online and %v server %v, checking meetings "+
		"and recordings first", r.InventoryState, r.Domain)

	api := g.sessions(r.Domain, r.Secret)

	if ok, err := g.noMeetings(ctx, api, r.Domain); err != nil || !ok {
		return false, err
	}
	if ok, err := g.noPendingRecordings(ctx, api, r.Domain); err != nil || !ok {
		return false, err
	}
	if ok, err := g.recordingsTransferred(ctx, api, r); err != nil || !ok {
		return false, err
	}

	g.logger.Info("core/gate: adding running and online server %v to the terminate list", r.Domain)
	return true, nil
}

// noMeetings ends the meetings running past their maximum duration. The
// slot stays blocked this cycle as long as any meeting was found.
func (g *TerminationGate) noMeetings(ctx context.Context, api structs.SessionAPI, domain string) (bool, error) {
	meetings, err := api.ListMeetings(ctx)
	if err != nil {
		return false, fmt.Errorf("unable to list meetings: %v", err)
	}
	if len(meetings) == 0 {
		g.logger.Debug("core/gate: server %v has no remaining meetings", domain)
		return true, nil
	}

	g.logger.Info("core/gate: server %v still hosts %d meetings, can not terminate", domain, len(meetings))

	now := g.now()
	for _, m := range meetings {
		age := now.Sub(m.CreateTime)
		if age < g.meetingsMax {
			continue
		}
		g.logger.Warning("core/gate: meeting %v (%v) on %v has been running for %v, forcing its end",
			m.ID, m.Name, domain, age.Round(time.Minute))
		if err := api.EndMeeting(ctx, m.ID, m.ModeratorPW); err != nil {
			g.logger.Error("core/gate: ending meeting %v on %v failed: %v", m.ID, domain, err)
			continue
		}
		metrics.IncrCounter([]string{"gate", "meetings_ended"}, 1)
	}
	return false, nil
}

// noPendingRecordings blocks while recordings are processing. Recordings
// processing for too long are alerted on.
func (g *TerminationGate) noPendingRecordings(ctx context.Context, api structs.SessionAPI, domain string) (bool, error) {
	recordings, err := api.ListRecordings(ctx, structs.RecordingProcessing, structs.RecordingProcessed)
	if err != nil {
		return false, fmt.Errorf("unable to list processing recordings: %v", err)
	}
	if len(recordings) == 0 {
		return true, nil
	}

	g.logger.Info("core/gate: server %v has %d recordings processing, can not terminate",
		domain, len(recordings))

	now := g.now()
	for _, rec := range recordings {
		if age := now.Sub(rec.EndTime); age >= g.recordingsMax {
			g.logger.Warning("core/gate: recording %v of meeting %v on %v has been %v for %v",
				rec.ID, rec.MeetingID, domain, rec.State, age.Round(time.Minute))
		}
	}
	return false, nil
}

// recordingsTransferred compares the size of every published recording on
// the slot with its copy on the load balancer host.
func (g *TerminationGate) recordingsTransferred(ctx context.Context, api structs.SessionAPI,
	r *structs.ServerRecord) (bool, error) {

	recordings, err := api.ListRecordings(ctx, structs.RecordingPublished)
	if err != nil {
		return false, fmt.Errorf("unable to list published recordings: %v", err)
	}
	if len(recordings) == 0 {
		g.logger.Debug("core/gate: server %v has no published recording", r.Domain)
		return true, nil
	}

	g.logger.Info("core/gate: server %v has %d published recordings, checking their transfer",
		r.Domain, len(recordings))

	host := g.namer.FQDN(r.Number)
	for _, rec := range recordings {
		if !recordingIDRE.MatchString(rec.ID) {
			return false, fmt.Errorf("unexpected recording identifier %q", rec.ID)
		}

		source, err := g.folderSize(ctx, host, g.sourcePath, rec.ID)
		if err != nil {
			return false, fmt.Errorf("unable to size recording %v on the server: %v", rec.ID, err)
		}
		if source == 0 {
			g.logger.Warning("core/gate: recording %v on %v is empty, can not terminate", rec.ID, r.Domain)
			return false, nil
		}

		target, err := g.folderSize(ctx, g.scaleliteHost, g.targetPath, rec.ID)
		if err != nil {
			return false, fmt.Errorf("unable to size recording %v on the load balancer: %v", rec.ID, err)
		}
		if target != source {
			g.logger.Warning("core/gate: recording %v sizes do not match between %v (%d) and the "+
				"load balancer (%d), can not terminate", rec.ID, r.Domain, source, target)
			return false, nil
		}
	}

	g.logger.Info("core/gate: all recordings of %v are transferred", r.Domain)
	return true, nil
}

func (g *TerminationGate) folderSize(ctx context.Context, host, path, id string) (int64, error) {
	cmd := fmt.Sprintf("sudo find %s/%s -type f -print0 | du --files0-from=- -bc | tail -1 | cut -f1",
		strings.TrimRight(path, "/"), id)

	res, err := g.exec.Run(ctx, host, cmd, g.opts)
	if err != nil {
		return 0, err
	}

	size, err := strconv.ParseInt(strings.TrimSpace(res.Stdout), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size output %q", res.Stdout)
	}
	return size, nil
}
