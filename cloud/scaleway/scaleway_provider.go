package scaleway

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	metrics "github.com/armon/go-metrics"
	"github.com/scaleway/scaleway-sdk-go/api/instance/v1"
	"github.com/scaleway/scaleway-sdk-go/scw"

	"github.com/bbbpool/bbbpool/bbbpool/structs"
	"github.com/bbbpool/bbbpool/logging"
)

// instanceAPI is the subset of the Scaleway instance API used by the
// provider.
type instanceAPI interface {
	ListServers(req *instance.ListServersRequest, opts ...scw.RequestOption) (*instance.ListServersResponse, error)
	ListImages(req *instance.ListImagesRequest, opts ...scw.RequestOption) (*instance.ListImagesResponse, error)
	CreateServer(req *instance.CreateServerRequest, opts ...scw.RequestOption) (*instance.CreateServerResponse, error)
	ServerAction(req *instance.ServerActionRequest, opts ...scw.RequestOption) (*instance.ServerActionResponse, error)
	GetIP(req *instance.GetIPRequest, opts ...scw.RequestOption) (*instance.GetIPResponse, error)
	UpdateIP(req *instance.UpdateIPRequest, opts ...scw.RequestOption) (*instance.UpdateIPResponse, error)
}

// HosterProvider implements the HosterProvider interface on top of the
// Scaleway instance API.
type HosterProvider struct {
	api     instanceAPI
	zone    scw.Zone
	project string
	logger  *logging.Logger
}

// NewHosterProvider is a factory function that generates a new instance of
// the HosterProvider.
func NewHosterProvider(config *structs.Config, logger *logging.Logger) (structs.HosterProvider, error) {
	c := config.Scaleway
	if c == nil || c.AccessKey == "" || c.SecretKey == "" || c.ProjectID == "" {
		return nil, fmt.Errorf("scaleway access_key, secret_key and project_id are required")
	}

	zone, err := scw.ParseZone(c.Zone)
	if err != nil {
		return nil, fmt.Errorf("invalid scaleway zone %q: %v", c.Zone, err)
	}

	client, err := scw.NewClient(
		scw.WithAuth(c.AccessKey, c.SecretKey),
		scw.WithDefaultProjectID(c.ProjectID),
		scw.WithDefaultZone(zone),
		scw.WithHTTPClient(&http.Client{Timeout: 5 * time.Second}),
	)
	if err != nil {
		return nil, err
	}

	return newHosterProvider(instance.NewAPI(client), zone, c.ProjectID, logger), nil
}

func newHosterProvider(api instanceAPI, zone scw.Zone, project string, logger *logging.Logger) *HosterProvider {
	return &HosterProvider{api: api, zone: zone, project: project, logger: logger}
}

// Name returns the registry name of the provider.
func (p *HosterProvider) Name() string {
	return "scaleway"
}

// ListMachines returns the servers of the project whose name contains
// pattern.
func (p *HosterProvider) ListMachines(ctx context.Context, pattern string) ([]structs.Machine, error) {
	defer metrics.MeasureSince([]string{"hoster", "scaleway", "list"}, time.Now())

	resp, err := p.api.ListServers(&instance.ListServersRequest{
		Zone:    p.zone,
		Name:    scw.StringPtr(pattern),
		Project: scw.StringPtr(p.project),
	}, scw.WithAllPages(), scw.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("provider/scaleway: unable to list servers: %v", err)
	}

	machines := make([]structs.Machine, 0, len(resp.Servers))
	for _, s := range resp.Servers {
		state, err := structs.ParseHosterState(string(s.State))
		if err != nil {
			p.logger.Warning("provider/scaleway: server %v has unexpected state %q", s.Name, s.State)
			state = structs.HosterLocked
		}

		m := structs.Machine{
			ID:    s.ID,
			Name:  s.Name,
			State: state,
		}
		if s.ModificationDate != nil {
			m.ModifiedAt = *s.ModificationDate
		}
		if s.PublicIP != nil {
			m.PublicIP = s.PublicIP.Address.String()
		}
		if s.PrivateIP != nil {
			m.PrivateIP = *s.PrivateIP
		}
		for _, maintenance := range s.Maintenances {
			if maintenance != nil {
				m.Maintenances = append(m.Maintenances, fmt.Sprintf("%+v", *maintenance))
			}
		}

		machines = append(machines, m)
	}

	return machines, nil
}

// FindImage returns the most recent image named name.
func (p *HosterProvider) FindImage(ctx context.Context, name string) (string, error) {
	resp, err := p.api.ListImages(&instance.ListImagesRequest{
		Zone: p.zone,
		Name: scw.StringPtr(name),
	}, scw.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("provider/scaleway: unable to list images: %v", err)
	}
	if len(resp.Images) == 0 {
		return "", fmt.Errorf("provider/scaleway: no image named %v", name)
	}

	images := resp.Images
	sort.SliceStable(images, func(i, j int) bool {
		a, b := images[i].CreationDate, images[j].CreationDate
		return a != nil && (b == nil || a.After(*b))
	})
	return images[0].ID, nil
}

// CreateMachine creates a stopped server booting from image. Dynamic IPs
// are disabled since slots keep their reserved address.
func (p *HosterProvider) CreateMachine(ctx context.Context, spec structs.MachineSpec) (string, error) {
	project := p.project
	if spec.Project != "" {
		project = spec.Project
	}

	resp, err := p.api.CreateServer(&instance.CreateServerRequest{
		Zone:              p.zone,
		Name:              spec.Name,
		DynamicIPRequired: scw.BoolPtr(false),
		CommercialType:    spec.CommercialType,
		Image:             spec.Image,
		EnableIPv6:        spec.EnableIPv6,
		Project:           scw.StringPtr(project),
		Volumes: map[string]*instance.VolumeServerTemplate{
			"0": {Boot: scw.BoolPtr(true)},
		},
	}, scw.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("provider/scaleway: unable to create server %v: %v", spec.Name, err)
	}

	metrics.IncrCounter([]string{"hoster", "scaleway", "server_creations"}, 1)
	return resp.Server.ID, nil
}

var serverActions = map[structs.MachineAction]instance.ServerAction{
	structs.ActionPowerOn:   instance.ServerActionPoweron,
	structs.ActionPowerOff:  instance.ServerActionPoweroff,
	structs.ActionTerminate: instance.ServerActionTerminate,
}

// SetMachineState runs a server action. The action is accepted once
// Scaleway reports its task as pending.
func (p *HosterProvider) SetMachineState(ctx context.Context, id string, action structs.MachineAction) error {
	scwAction, ok := serverActions[action]
	if !ok {
		return fmt.Errorf("provider/scaleway: unsupported action %v", action)
	}

	resp, err := p.api.ServerAction(&instance.ServerActionRequest{
		Zone:     p.zone,
		ServerID: id,
		Action:   scwAction,
	}, scw.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("provider/scaleway: unable to %v server %v: %v", action, id, err)
	}
	if resp.Task == nil || resp.Task.Status != instance.TaskStatusPending {
		return fmt.Errorf("provider/scaleway: %v of server %v was not accepted", action, id)
	}

	p.logger.Info("provider/scaleway: requested %v of server %v", action, id)
	return nil
}

// GetAddress returns the identifier of the flexible IP ip.
func (p *HosterProvider) GetAddress(ctx context.Context, ip string) (string, error) {
	resp, err := p.api.GetIP(&instance.GetIPRequest{Zone: p.zone, IP: ip}, scw.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("provider/scaleway: unable to get ip %v: %v", ip, err)
	}
	return resp.IP.ID, nil
}

// AttachAddress moves a flexible IP onto a server.
func (p *HosterProvider) AttachAddress(ctx context.Context, addressID, machineID string) error {
	_, err := p.api.UpdateIP(&instance.UpdateIPRequest{
		Zone:   p.zone,
		IP:     addressID,
		Server: &instance.NullableStringValue{Value: machineID},
	}, scw.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("provider/scaleway: unable to attach ip %v to %v: %v", addressID, machineID, err)
	}
	return nil
}
