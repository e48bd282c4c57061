package aws

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	metrics "github.com/armon/go-metrics"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/ec2"
	"github.com/aws/aws-sdk-go/service/ec2/ec2iface"

	"github.com/bbbpool/bbbpool/bbbpool/structs"
	"github.com/bbbpool/bbbpool/logging"
)

// HosterProvider implements the HosterProvider interface on top of EC2.
// Pool slots are individual instances identified by their Name tag.
type HosterProvider struct {
	ec2    ec2iface.EC2API
	config *structs.AWS
	clone  *structs.Clone
	logger *logging.Logger
}

// NewHosterProvider is a factory function that generates a new instance of
// the HosterProvider.
func NewHosterProvider(config *structs.Config, logger *logging.Logger) (structs.HosterProvider, error) {
	if config.AWS == nil || config.AWS.Region == "" {
		return nil, fmt.Errorf("aws.region is required for the aws hoster provider")
	}

	sess, err := session.NewSession(&aws.Config{
		Region:     aws.String(config.AWS.Region),
		HTTPClient: &http.Client{Timeout: 5 * time.Second},
	})
	if err != nil {
		return nil, err
	}

	return NewHosterProviderWithClient(ec2.New(sess), config, logger), nil
}

// NewHosterProviderWithClient wraps an existing EC2 client.
func NewHosterProviderWithClient(svc ec2iface.EC2API, config *structs.Config, logger *logging.Logger) *HosterProvider {
	return &HosterProvider{ec2: svc, config: config.AWS, clone: config.Clone, logger: logger}
}

// Name returns the registry name of the provider.
func (p *HosterProvider) Name() string {
	return "aws"
}

// ListMachines returns the instances whose Name tag starts with pattern.
// Terminated instances are left out.
func (p *HosterProvider) ListMachines(ctx context.Context, pattern string) ([]structs.Machine, error) {
	defer metrics.MeasureSince([]string{"hoster", "aws", "list"}, time.Now())

	params := &ec2.DescribeInstancesInput{
		Filters: []*ec2.Filter{
			{
				Name:   aws.String("tag:Name"),
				Values: []*string{aws.String(pattern + "*")},
			},
		},
	}

	var machines []structs.Machine
	err := p.ec2.DescribeInstancesPagesWithContext(ctx, params,
		func(page *ec2.DescribeInstancesOutput, _ bool) bool {
			for _, r := range page.Reservations {
				for _, i := range r.Instances {
					if m, ok := toMachine(i); ok {
						machines = append(machines, m)
					}
				}
			}
			return true
		})
	if err != nil {
		return nil, fmt.Errorf("provider/aws: unable to describe instances: %v", err)
	}

	return machines, nil
}

// toMachine converts an instance, returning false for terminated ones.
func toMachine(i *ec2.Instance) (structs.Machine, bool) {
	m := structs.Machine{
		ID:        aws.StringValue(i.InstanceId),
		PublicIP:  aws.StringValue(i.PublicIpAddress),
		PrivateIP: aws.StringValue(i.PrivateIpAddress),
	}

	for _, tag := range i.Tags {
		if aws.StringValue(tag.Key) == "Name" {
			m.Name = aws.StringValue(tag.Value)
		}
	}

	if i.State == nil {
		return m, false
	}

	switch aws.StringValue(i.State.Name) {
	case ec2.InstanceStateNamePending:
		m.State = structs.HosterStarting
	case ec2.InstanceStateNameRunning:
		m.State = structs.HosterRunning
	case ec2.InstanceStateNameStopping, ec2.InstanceStateNameShuttingDown:
		m.State = structs.HosterStopping
	case ec2.InstanceStateNameStopped:
		m.State = structs.HosterStopped
	default:
		return m, false
	}

	m.ModifiedAt = aws.TimeValue(i.LaunchTime)
	if t, ok := transitionTime(aws.StringValue(i.StateTransitionReason)); ok {
		m.ModifiedAt = t
	}

	return m, true
}

// transitionTime extracts the timestamp EC2 embeds in state transition
// reasons such as "User initiated (2024-03-01 10:00:00 GMT)".
func transitionTime(reason string) (time.Time, bool) {
	start := strings.LastIndex(reason, "(")
	end := strings.LastIndex(reason, ")")
	if start < 0 || end <= start {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02 15:04:05 MST", reason[start+1:end])
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// FindImage returns the most recent image owned by the account named name.
func (p *HosterProvider) FindImage(ctx context.Context, name string) (string, error) {
	resp, err := p.ec2.DescribeImagesWithContext(ctx, &ec2.DescribeImagesInput{
		Owners: []*string{aws.String("self")},
		Filters: []*ec2.Filter{
			{Name: aws.String("name"), Values: []*string{aws.String(name)}},
		},
	})
	if err != nil {
		return "", fmt.Errorf("provider/aws: unable to describe images: %v", err)
	}
	if len(resp.Images) == 0 {
		return "", fmt.Errorf("provider/aws: no image named %v", name)
	}

	sort.Slice(resp.Images, func(i, j int) bool {
		return aws.StringValue(resp.Images[i].CreationDate) > aws.StringValue(resp.Images[j].CreationDate)
	})
	return aws.StringValue(resp.Images[0].ImageId), nil
}

// CreateMachine launches an instance tagged with the slot hostname.
func (p *HosterProvider) CreateMachine(ctx context.Context, spec structs.MachineSpec) (string, error) {
	input := &ec2.RunInstancesInput{
		ImageId:      aws.String(spec.Image),
		InstanceType: aws.String(spec.CommercialType),
		MinCount:     aws.Int64(1),
		MaxCount:     aws.Int64(1),
		TagSpecifications: []*ec2.TagSpecification{
			{
				ResourceType: aws.String(ec2.ResourceTypeInstance),
				Tags:         []*ec2.Tag{{Key: aws.String("Name"), Value: aws.String(spec.Name)}},
			},
		},
	}
	if p.config.SubnetID != "" {
		input.SubnetId = aws.String(p.config.SubnetID)
	}
	if len(p.config.SecurityGroupIDs) > 0 {
		input.SecurityGroupIds = aws.StringSlice(p.config.SecurityGroupIDs)
	}
	if p.config.KeyName != "" {
		input.KeyName = aws.String(p.config.KeyName)
	}
	if spec.EnableIPv6 {
		input.Ipv6AddressCount = aws.Int64(1)
	}

	resp, err := p.ec2.RunInstancesWithContext(ctx, input)
	if err != nil {
		return "", fmt.Errorf("provider/aws: unable to run instance %v: %v", spec.Name, err)
	}
	if len(resp.Instances) == 0 {
		return "", fmt.Errorf("provider/aws: no instance returned for %v", spec.Name)
	}

	metrics.IncrCounter([]string{"hoster", "aws", "instance_creations"}, 1)
	return aws.StringValue(resp.Instances[0].InstanceId), nil
}

// SetMachineState starts, stops or terminates an instance.
func (p *HosterProvider) SetMachineState(ctx context.Context, id string, action structs.MachineAction) error {
	ids := []*string{aws.String(id)}

	var err error
	switch action {
	case structs.ActionPowerOn:
		_, err = p.ec2.StartInstancesWithContext(ctx, &ec2.StartInstancesInput{InstanceIds: ids})
	case structs.ActionPowerOff:
		_, err = p.ec2.StopInstancesWithContext(ctx, &ec2.StopInstancesInput{InstanceIds: ids})
	case structs.ActionTerminate:
		_, err = p.ec2.TerminateInstancesWithContext(ctx, &ec2.TerminateInstancesInput{InstanceIds: ids})
	default:
		return fmt.Errorf("provider/aws: unsupported action %v", action)
	}

	if err != nil {
		return fmt.Errorf("provider/aws: unable to %v instance %v: %v", action, id, err)
	}

	p.logger.Info("provider/aws: requested %v of instance %v", action, id)
	return nil
}

// GetAddress returns the allocation id of the elastic IP ip.
func (p *HosterProvider) GetAddress(ctx context.Context, ip string) (string, error) {
	resp, err := p.ec2.DescribeAddressesWithContext(ctx, &ec2.DescribeAddressesInput{
		PublicIps: []*string{aws.String(ip)},
	})
	if err != nil {
		return "", fmt.Errorf("provider/aws: unable to describe address %v: %v", ip, err)
	}
	if len(resp.Addresses) == 0 {
		return "", fmt.Errorf("provider/aws: no elastic ip %v", ip)
	}
	return aws.StringValue(resp.Addresses[0].AllocationId), nil
}

// AttachAddress associates an elastic IP with an instance.
func (p *HosterProvider) AttachAddress(ctx context.Context, addressID, machineID string) error {
	_, err := p.ec2.AssociateAddressWithContext(ctx, &ec2.AssociateAddressInput{
		AllocationId:       aws.String(addressID),
		InstanceId:         aws.String(machineID),
		AllowReassociation: aws.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("provider/aws: unable to associate %v with %v: %v", addressID, machineID, err)
	}
	return nil
}
