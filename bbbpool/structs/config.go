package structs

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/go-multierror"
)

// Capacity policies.
const (
	PolicySchedule = "schedule"
	PolicyLoad     = "load"
	PolicyBoth     = "both"
)

// Config is the main configuration struct used to configure the bbbpool
// application.
type Config struct {
	// Project is a friendly name used to prefix persisted state and
	// notifications for easy human identification.
	Project string `mapstructure:"project" validate:"required"`

	// LogLevel is the level at which the application should log from.
	LogLevel string `mapstructure:"log_level" validate:"oneof=DEBUG INFO WARN WARNING ERROR"`

	// LogFile is an optional file receiving a copy of the logs.
	LogFile string `mapstructure:"log_file"`

	// LogJSON switches the log encoder from console to JSON.
	LogJSON bool `mapstructure:"log_json"`

	// DataDir holds the calendar cache and the file state store.
	DataDir string `mapstructure:"data_dir" validate:"required"`

	// Hoster is the name of the hoster provider driving the virtual machines.
	Hoster string `mapstructure:"hoster" validate:"required"`

	// CapacityPolicy selects the predictors used to compute the target
	// capacity: schedule, load or both.
	CapacityPolicy string `mapstructure:"capacity_policy" validate:"oneof=schedule load both"`

	// RunInterval is the number of minutes between two cycles.
	RunInterval int `mapstructure:"run_interval" validate:"min=1"`

	// PollMaxWorkers bounds the concurrency of the fleet probe.
	PollMaxWorkers int `mapstructure:"poll_max_workers" validate:"min=1"`

	// ActionMaxWorkers bounds the concurrency of inventory and hoster
	// actions.
	ActionMaxWorkers int `mapstructure:"action_max_workers" validate:"min=1,max=5"`

	// CloneMaxWorkers bounds the number of machines cloned in parallel.
	CloneMaxWorkers int `mapstructure:"clone_max_workers" validate:"min=1"`

	// DryRun computes and reports plans without acting on the pool.
	DryRun bool `mapstructure:"dry_run"`

	// FailsafeThreshold is the number of consecutive cycles with clone
	// failures after which failsafe mode is entered.
	FailsafeThreshold int `mapstructure:"failsafe_threshold" validate:"min=1"`

	// LeaderLock makes agents hold a Consul lock while running cycles so
	// only one replica acts on the pool.
	LeaderLock bool `mapstructure:"leader_lock"`

	Pool         *Pool            `mapstructure:"pool" validate:"required"`
	Scalelite    *Scalelite       `mapstructure:"scalelite" validate:"required"`
	SSH          *SSH             `mapstructure:"ssh" validate:"required"`
	Schedule     *Schedule        `mapstructure:"schedule" validate:"required"`
	Load         *Load            `mapstructure:"load" validate:"required"`
	Termination  *Termination     `mapstructure:"termination" validate:"required"`
	Clone        *Clone           `mapstructure:"clone" validate:"required"`
	Scaleway     *Scaleway        `mapstructure:"scaleway"`
	AWS          *AWS             `mapstructure:"aws"`
	State        *State           `mapstructure:"state" validate:"required"`
	Telemetry    *TelemetryConfig `mapstructure:"telemetry"`
	Notification *Notification    `mapstructure:"notification"`
	Report       *Report          `mapstructure:"report"`
}

// Pool describes the slots of the pool and their capacity.
type Pool struct {
	// DomainTemplate is the load balancer domain of a slot, X standing for
	// the slot number. Example: bbb-wX.example.com
	DomainTemplate string `mapstructure:"domain_template" validate:"required"`

	// HostnameTemplate is the hoster machine name of a slot.
	HostnameTemplate string `mapstructure:"hostname_template" validate:"required"`

	// DNSSubdomain and DNSZone complete the hostname into the FQDN used to
	// reach a slot over SSH.
	DNSSubdomain string `mapstructure:"dns_subdomain"`
	DNSZone      string `mapstructure:"dns_zone"`

	// Size is the number of slots known by the load balancer.
	Size int `mapstructure:"size" validate:"min=1"`

	// Capacity is the number of participants the whole pool can host.
	Capacity int `mapstructure:"capacity" validate:"min=1"`

	// BareMetalCount is the number of leading slots served by bare metal
	// servers.
	BareMetalCount int `mapstructure:"bare_metal_count" validate:"min=0,ltefield=Size"`

	// MaxRecyclingUptime is the uptime in seconds above which a virtual
	// machine is replaced. Zero disables recycling.
	MaxRecyclingUptime int64 `mapstructure:"max_recycling_uptime" validate:"min=0"`

	// MinimumRatio is the share of the pool always kept active when no bare
	// metal server is configured.
	MinimumRatio float64 `mapstructure:"minimum_ratio" validate:"min=0,max=1"`
}

// Scalelite locates the load balancer.
type Scalelite struct {
	Host      string `mapstructure:"host" validate:"required"`
	Container string `mapstructure:"container" validate:"required"`

	// RecordingsPath is where the load balancer stores transferred
	// recordings.
	RecordingsPath string `mapstructure:"recordings_path" validate:"required"`
}

// SSH configures the remote executor.
type SSH struct {
	User    string `mapstructure:"user" validate:"required"`
	Port    int    `mapstructure:"port" validate:"min=1,max=65535"`
	KeyFile string `mapstructure:"key_file"`

	// Timeout in seconds of a single remote command.
	Timeout int `mapstructure:"timeout" validate:"min=1"`

	MaxTries int `mapstructure:"max_tries" validate:"min=1"`

	// SleepTime in seconds between two tries.
	SleepTime int `mapstructure:"sleep_time" validate:"min=0"`
}

// Schedule configures the calendar predictor.
type Schedule struct {
	ICalURL   string `mapstructure:"ical_url"`
	CacheFile string `mapstructure:"cache_file"`

	// WindowDays is how far back events are searched.
	WindowDays int `mapstructure:"window_days" validate:"min=1"`
}

// Load configures the load predictor.
type Load struct {
	ParticipantsCapacity int `mapstructure:"participants_capacity" validate:"min=1"`
	MeetingsCapacity     int `mapstructure:"meetings_capacity" validate:"min=1"`

	ParticipantsFactorLow  float64 `mapstructure:"participants_factor_low" validate:"gt=0"`
	ParticipantsFactorHigh float64 `mapstructure:"participants_factor_high" validate:"gt=0"`
	ParticipantsThreshold  float64 `mapstructure:"participants_threshold" validate:"gt=0"`

	MeetingsFactorLow  float64 `mapstructure:"meetings_factor_low" validate:"gt=0"`
	MeetingsFactorHigh float64 `mapstructure:"meetings_factor_high" validate:"gt=0"`
	MeetingsThreshold  float64 `mapstructure:"meetings_threshold" validate:"gt=0"`
}

// Termination tunes the safety gate applied before terminating a slot.
type Termination struct {
	// MeetingsMaxDuration is the age in minutes above which meetings are
	// forcibly ended.
	MeetingsMaxDuration int `mapstructure:"meetings_max_duration" validate:"min=1"`

	// RecordingsMaxProcessingDuration is the age in minutes above which a
	// recording still processing is alerted on.
	RecordingsMaxProcessingDuration int `mapstructure:"recordings_max_processing_duration" validate:"min=1"`

	// RecordingsPath is where slots store published recordings.
	RecordingsPath string `mapstructure:"recordings_path" validate:"required"`
}

// Clone describes the machines created for nonexistent slots.
type Clone struct {
	ImageName      string `mapstructure:"image_name"`
	CommercialType string `mapstructure:"commercial_type"`
	EnableIPv6     bool   `mapstructure:"enable_ipv6"`
}

// Scaleway holds the credentials and location of the Scaleway account.
type Scaleway struct {
	AccessKey string `mapstructure:"access_key" envconfig:"SCW_ACCESS_KEY"`
	SecretKey string `mapstructure:"secret_key" envconfig:"SCW_SECRET_KEY"`
	ProjectID string `mapstructure:"project_id" envconfig:"SCW_PROJECT_ID"`
	Zone      string `mapstructure:"zone"`
}

// AWS holds the location of the EC2 machines.
type AWS struct {
	Region           string   `mapstructure:"region"`
	SubnetID         string   `mapstructure:"subnet_id"`
	SecurityGroupIDs []string `mapstructure:"security_group_ids"`
	KeyName          string   `mapstructure:"key_name"`
}

// State selects and configures the state store backend.
type State struct {
	Backend string `mapstructure:"backend" validate:"oneof=file consul redis"`

	// Path is the directory of the file backend.
	Path string `mapstructure:"path"`

	ConsulAddress string `mapstructure:"consul_address"`
	ConsulToken   string `mapstructure:"consul_token" envconfig:"CONSUL_TOKEN"`
	ConsulKeyRoot string `mapstructure:"consul_key_root"`

	RedisAddress  string `mapstructure:"redis_address"`
	RedisPassword string `mapstructure:"redis_password" envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"redis_db"`
}

// TelemetryConfig is the struct that controls the telemetry configuration.
// If a value is present then telemetry is enabled. Currently statsd is only
// supported for sending telemetry.
type TelemetryConfig struct {
	// StatsdAddress specifies the address of a statsd server to forward
	// metrics to and should include the port.
	StatsdAddress string `mapstructure:"statsd_address"`
}

// Notification is the control struct for operator notifications.
type Notification struct {
	// PagerDutyRoutingKey is the PD integration key for the Events API v2.
	PagerDutyRoutingKey string `mapstructure:"pagerduty_routing_key" envconfig:"PAGERDUTY_ROUTING_KEY"`

	// OpsGenieAPIKey is the API key of an OpsGenie API integration.
	OpsGenieAPIKey string `mapstructure:"opsgenie_api_key" envconfig:"OPSGENIE_API_KEY"`

	// WarningInterval and ErrorInterval are the minimum number of seconds
	// between two notifications of the same alert.
	WarningInterval int `mapstructure:"warning_interval" validate:"min=0"`
	ErrorInterval   int `mapstructure:"error_interval" validate:"min=0"`

	Email *Email `mapstructure:"email" ignored:"true"`
}

// Email configures the SMTP notifier.
type Email struct {
	Host     string   `mapstructure:"host"`
	Port     int      `mapstructure:"port"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password" envconfig:"SMTP_PASSWORD"`
	From     string   `mapstructure:"from"`
	To       []string `mapstructure:"to"`
}

// Report configures the publication of cycle reports.
type Report struct {
	KafkaBrokers []string `mapstructure:"kafka_brokers"`
	KafkaTopic   string   `mapstructure:"kafka_topic"`
}

// RunIntervalDuration returns the time between two cycles.
func (c *Config) RunIntervalDuration() time.Duration {
	return time.Duration(c.RunInterval) * time.Minute
}

// Namer returns the slot namer described by the pool block.
func (c *Config) Namer() (*SlotNamer, error) {
	return NewSlotNamer(c.Pool.DomainTemplate, c.Pool.HostnameTemplate,
		c.Pool.DNSSubdomain, c.Pool.DNSZone)
}

// Finalize derives the values depending on other settings. It must be called
// once every source has been merged.
func (c *Config) Finalize() {
	c.LogLevel = strings.ToUpper(c.LogLevel)
	c.CapacityPolicy = strings.ToLower(c.CapacityPolicy)
	c.Hoster = strings.ToLower(c.Hoster)

	if c.Schedule != nil && c.Schedule.CacheFile == "" {
		c.Schedule.CacheFile = filepath.Join(c.DataDir, c.Project+"_calendar.ics")
	}
	if c.State != nil && c.State.Path == "" {
		c.State.Path = filepath.Join(c.DataDir, "state")
	}
	if c.State != nil && c.State.ConsulKeyRoot == "" {
		c.State.ConsulKeyRoot = "bbbpool/" + c.Project
	}
	if c.Notification == nil {
		c.Notification = &Notification{}
	}
	if c.Telemetry == nil {
		c.Telemetry = &TelemetryConfig{}
	}
	if c.Report == nil {
		c.Report = &Report{}
	}
}

// Validate checks the configuration, returning every problem found.
func (c *Config) Validate() error {
	var result error

	if err := validator.New().Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, e := range verrs {
				result = multierror.Append(result, fmt.Errorf(
					"%s: failed on the '%s' rule", e.Namespace(), e.Tag()))
			}
		} else {
			result = multierror.Append(result, err)
		}
		return result
	}

	if _, err := c.Namer(); err != nil {
		result = multierror.Append(result, multierror.Prefix(err, "pool:"))
	}

	if c.CapacityPolicy != PolicyLoad && c.Schedule.ICalURL == "" {
		result = multierror.Append(result, fmt.Errorf(
			"schedule: ical_url is required with the %q capacity policy", c.CapacityPolicy))
	}

	switch c.State.Backend {
	case "consul":
		if c.State.ConsulAddress == "" {
			result = multierror.Append(result, fmt.Errorf("state: consul_address is required"))
		}
	case "redis":
		if c.State.RedisAddress == "" {
			result = multierror.Append(result, fmt.Errorf("state: redis_address is required"))
		}
	}

	if c.LeaderLock && c.State.ConsulAddress == "" {
		result = multierror.Append(result, fmt.Errorf("leader_lock requires state.consul_address"))
	}

	if c.Notification != nil && c.Notification.Email != nil {
		e := c.Notification.Email
		if e.Host == "" || e.From == "" || len(e.To) == 0 {
			result = multierror.Append(result, fmt.Errorf(
				"notification -> email: host, from and to are required"))
		}
	}

	if c.Report != nil && len(c.Report.KafkaBrokers) > 0 && c.Report.KafkaTopic == "" {
		result = multierror.Append(result, fmt.Errorf("report: kafka_topic is required"))
	}

	return result
}
