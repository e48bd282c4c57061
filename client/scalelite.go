package client

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/bbbpool/bbbpool/bbbpool/structs"
)

// serverBlockLines is the number of lines describing one server in the
// output of the servers rake task.
const serverBlockLines = 7

var serverDomainRE = regexp.MustCompile(`https://([^/]+)`)

// Scalelite drives the load balancer inventory through the rake tasks of its
// API container, run over SSH.
type Scalelite struct {
	exec      structs.RemoteExecutor
	host      string
	container string
	opts      structs.RunOptions
}

// NewScalelite returns an inventory client running rake tasks on host.
func NewScalelite(exec structs.RemoteExecutor, config *structs.Scalelite, opts structs.RunOptions) *Scalelite {
	opts.MaxTries = 3
	return &Scalelite{
		exec:      exec,
		host:      config.Host,
		container: config.Container,
		opts:      opts,
	}
}

// Status runs the status rake task. COLUMNS is raised so the table is not
// wrapped by docker.
func (s *Scalelite) Status(ctx context.Context) ([]structs.InventoryStatusRow, error) {
	cmd := fmt.Sprintf("sudo docker exec -e COLUMNS=1000 %s ./bin/rake status", s.container)
	res, err := s.exec.Run(ctx, s.host, cmd, s.opts)
	if err != nil {
		return nil, fmt.Errorf("client/scalelite: unable to run the status task: %v", err)
	}
	return ParseStatusTable(res.Stdout)
}

// Servers runs the servers rake task.
func (s *Scalelite) Servers(ctx context.Context) ([]structs.InventoryServer, error) {
	cmd := fmt.Sprintf("sudo docker exec %s ./bin/rake servers", s.container)
	res, err := s.exec.Run(ctx, s.host, cmd, s.opts)
	if err != nil {
		return nil, fmt.Errorf("client/scalelite: unable to run the servers task: %v", err)
	}
	return ParseServerBlocks(res.Stdout)
}

// Enable lets the load balancer dispatch new meetings to the server.
func (s *Scalelite) Enable(ctx context.Context, id string) error {
	return s.act(ctx, "enable", id)
}

// Cordon stops new meetings from being dispatched to the server while
// letting the running ones finish.
func (s *Scalelite) Cordon(ctx context.Context, id string) error {
	return s.act(ctx, "cordon", id)
}

func (s *Scalelite) act(ctx context.Context, action, id string) error {
	cmd := fmt.Sprintf("sudo docker exec %s ./bin/rake servers:%s[%s]", s.container, action, id)
	if _, err := s.exec.Run(ctx, s.host, cmd, s.opts); err != nil {
		return fmt.Errorf("client/scalelite: unable to %s server %v: %v", action, id, err)
	}
	return nil
}

// ParseStatusTable parses the fixed width table printed by the status task.
// The first line is the header; every following non empty line describes a
// server as hostname, state, status, meetings, users, largest meeting and
// videos.
func ParseStatusTable(out string) ([]structs.InventoryStatusRow, error) {
	lines := nonEmptyLines(out)
	if len(lines) == 0 {
		return nil, fmt.Errorf("client/scalelite: empty status output")
	}

	var rows []structs.InventoryStatusRow
	for i, line := range lines[1:] {
		fields := strings.Fields(line)
		if len(fields) != 7 {
			return nil, fmt.Errorf("client/scalelite: malformed status line %d: %q", i+2, line)
		}

		state, err := structs.ParseInventoryState(fields[1])
		if err != nil {
			return nil, fmt.Errorf("client/scalelite: status line %d: %v", i+2, err)
		}
		status, err := structs.ParseInventoryStatus(fields[2])
		if err != nil {
			return nil, fmt.Errorf("client/scalelite: status line %d: %v", i+2, err)
		}

		var counters [4]int
		for j := range counters {
			if counters[j], err = strconv.Atoi(fields[3+j]); err != nil {
				return nil, fmt.Errorf("client/scalelite: status line %d: invalid counter %q", i+2, fields[3+j])
			}
		}

		rows = append(rows, structs.InventoryStatusRow{
			Hostname:       fields[0],
			State:          state,
			Status:         status,
			Meetings:       counters[0],
			Users:          counters[1],
			LargestMeeting: counters[2],
			Videos:         counters[3],
		})
	}
	return rows, nil
}

// ParseServerBlocks parses the seven line blocks printed by the servers task:
//
//	id: 8204fdb0-de87-484c-b708-9f990d4ee561
//	    url: https://bbb-w29.example.com/bigbluebutton/api
//	    secret: 0123456789abcdef
//	    enabled
//	    load: unavailable
//	    load multiplier: 1.0
//	    offline
func ParseServerBlocks(out string) ([]structs.InventoryServer, error) {
	lines := nonEmptyLines(out)
	if len(lines)%serverBlockLines != 0 {
		return nil, fmt.Errorf("client/scalelite: servers output has %d lines, "+
			"not a multiple of %d", len(lines), serverBlockLines)
	}

	var servers []structs.InventoryServer
	for i := 0; i < len(lines); i += serverBlockLines {
		block := lines[i : i+serverBlockLines]

		id, ok := field(block[0], "id:")
		if !ok || id == "" {
			return nil, fmt.Errorf("client/scalelite: block at line %d has no id", i+1)
		}

		url, _ := field(block[1], "url:")
		m := serverDomainRE.FindStringSubmatch(url)
		if m == nil {
			return nil, fmt.Errorf("client/scalelite: server %v has no https url", id)
		}

		secret, _ := field(block[2], "secret:")

		state, err := structs.ParseInventoryState(block[3])
		if err != nil {
			return nil, fmt.Errorf("client/scalelite: server %v: %v", id, err)
		}

		load := -1.0
		if raw, _ := field(block[4], "load:"); raw != "unavailable" {
			if load, err = strconv.ParseFloat(raw, 64); err != nil {
				return nil, fmt.Errorf("client/scalelite: server %v: invalid load %q", id, raw)
			}
		}

		raw, _ := field(block[5], "load multiplier:")
		multiplier, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("client/scalelite: server %v: invalid load multiplier %q", id, raw)
		}

		status, err := structs.ParseInventoryStatus(block[6])
		if err != nil {
			return nil, fmt.Errorf("client/scalelite: server %v: %v", id, err)
		}

		servers = append(servers, structs.InventoryServer{
			ID:             id,
			URL:            url,
			Domain:         m[1],
			Secret:         secret,
			State:          state,
			Status:         status,
			Load:           load,
			LoadMultiplier: multiplier,
		})
	}
	return servers, nil
}

func nonEmptyLines(out string) []string {
	var lines []string
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func field(line, prefix string) (string, bool) {
	if !strings.HasPrefix(line, prefix) {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(line, prefix)), true
}
