package structs

import (
	"reflect"
	"strings"
	"testing"
)

func TestStructs_Merge(t *testing.T) {
	c := &Config{
		Project:        "bbb",
		LogLevel:       "INFO",
		CapacityPolicy: PolicyBoth,
		RunInterval:    5,
		PollMaxWorkers: 100,
		Pool: &Pool{
			DomainTemplate:   "bbb-wX.example.com",
			HostnameTemplate: "bbb-wX",
			Size:             10,
			MinimumRatio:     0.01,
		},
		Notification: &Notification{
			WarningInterval: 86400,
		},
	}

	partialConfig := &Config{
		LogLevel:    "ERROR",
		RunInterval: 10,
		Pool: &Pool{
			Size:           20,
			BareMetalCount: 2,
		},
		Notification: &Notification{
			PagerDutyRoutingKey: "onlyopsoncall",
			Email: &Email{
				Host: "smtp.example.com",
				To:   []string{"ops@example.com"},
			},
		},
		Report: &Report{
			KafkaTopic: "bbbpool.cycles",
		},
	}

	expected := &Config{
		Project:        "bbb",
		LogLevel:       "ERROR",
		CapacityPolicy: PolicyBoth,
		RunInterval:    10,
		PollMaxWorkers: 100,
		Pool: &Pool{
			DomainTemplate:   "bbb-wX.example.com",
			HostnameTemplate: "bbb-wX",
			Size:             20,
			BareMetalCount:   2,
			MinimumRatio:     0.01,
		},
		Notification: &Notification{
			PagerDutyRoutingKey: "onlyopsoncall",
			WarningInterval:     86400,
			Email: &Email{
				Host: "smtp.example.com",
				To:   []string{"ops@example.com"},
			},
		},
		Report: &Report{
			KafkaTopic: "bbbpool.cycles",
		},
	}

	actual := c.Merge(partialConfig)
	if !reflect.DeepEqual(actual, expected) {
		t.Fatalf("expected \n%#v\n\n, got \n\n%#v\n\n", expected, actual)
	}

	// The receiver must not be modified by the merge.
	if c.Pool.Size != 10 {
		t.Fatalf("expected original pool size 10 got %v", c.Pool.Size)
	}
}

func validConfig() *Config {
	c := &Config{
		Project:           "bbb",
		LogLevel:          "info",
		DataDir:           "/var/lib/bbbpool",
		Hoster:            "scaleway",
		CapacityPolicy:    "load",
		RunInterval:       5,
		PollMaxWorkers:    100,
		ActionMaxWorkers:  5,
		CloneMaxWorkers:   5,
		FailsafeThreshold: 3,
		Pool: &Pool{
			DomainTemplate:   "bbb-wX.example.com",
			HostnameTemplate: "bbb-wX",
			Size:             10,
			Capacity:         2500,
			MinimumRatio:     0.01,
		},
		Scalelite:   &Scalelite{Host: "scalelite.example.com", Container: "scalelite-api", RecordingsPath: "/mnt/recordings"},
		SSH:         &SSH{User: "root", Port: 22, Timeout: 10, MaxTries: 3, SleepTime: 1},
		Schedule:    &Schedule{WindowDays: 7},
		Load:        &Load{ParticipantsCapacity: 250, MeetingsCapacity: 15, ParticipantsFactorLow: 2, ParticipantsFactorHigh: 3, ParticipantsThreshold: 1.2, MeetingsFactorLow: 2, MeetingsFactorHigh: 3, MeetingsThreshold: 1.2},
		Termination: &Termination{MeetingsMaxDuration: 600, RecordingsMaxProcessingDuration: 300, RecordingsPath: "/var/bigbluebutton/published/presentation"},
		Clone:       &Clone{},
		State:       &State{Backend: "file"},
	}
	c.Finalize()
	return c
}

func TestStructs_FinalizeAndValidate(t *testing.T) {
	c := validConfig()
	if err := c.Validate(); err != nil {
		t.Fatalf("err: %v", err)
	}
	if c.LogLevel != "INFO" {
		t.Fatalf("expected INFO got %v", c.LogLevel)
	}
	if c.State.Path != "/var/lib/bbbpool/state" {
		t.Fatalf("expected derived state path got %v", c.State.Path)
	}
	if c.Schedule.CacheFile != "/var/lib/bbbpool/bbb_calendar.ics" {
		t.Fatalf("expected derived cache file got %v", c.Schedule.CacheFile)
	}
}

func TestStructs_ValidateErrors(t *testing.T) {
	type validateTest struct {
		name   string
		modify func(*Config)
		expect string
	}

	var validateTests = []validateTest{
		{"policy", func(c *Config) { c.CapacityPolicy = "guess" }, "CapacityPolicy"},
		{"workers", func(c *Config) { c.ActionMaxWorkers = 8 }, "ActionMaxWorkers"},
		{"bare metal", func(c *Config) { c.Pool.BareMetalCount = 11 }, "BareMetalCount"},
		{"template", func(c *Config) { c.Pool.DomainTemplate = "bbb.example.com" }, "placeholder"},
		{"ical", func(c *Config) { c.CapacityPolicy = "both" }, "ical_url"},
		{"redis", func(c *Config) { c.State.Backend = "redis" }, "redis_address"},
		{"kafka", func(c *Config) { c.Report.KafkaBrokers = []string{"localhost:9092"} }, "kafka_topic"},
	}

	for _, test := range validateTests {
		c := validConfig()
		test.modify(c)

		err := c.Validate()
		if err == nil {
			t.Fatalf("%s: expected error", test.name)
		}
		if !strings.Contains(err.Error(), test.expect) {
			t.Fatalf("%s: expected error mentioning %q got %v", test.name, test.expect, err)
		}
	}
}
