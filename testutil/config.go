package testutil

import (
	"github.com/bbbpool/bbbpool/bbbpool/structs"
)

// MakeConfig returns a valid configuration of a six slots pool without
// bare metal servers, driven by the load policy.
func MakeConfig() *structs.Config {
	config := &structs.Config{
		Project:           "demo",
		LogLevel:          "INFO",
		DataDir:           "/tmp/bbbpool",
		Hoster:            "scaleway",
		CapacityPolicy:    structs.PolicyLoad,
		RunInterval:       5,
		PollMaxWorkers:    4,
		ActionMaxWorkers:  2,
		CloneMaxWorkers:   2,
		FailsafeThreshold: 3,
		Pool: &structs.Pool{
			DomainTemplate:   "bbb-wX.example.com",
			HostnameTemplate: "bbb-wX",
			DNSSubdomain:     "pool",
			DNSZone:          "example.net",
			Size:             6,
			Capacity:         600,
			MinimumRatio:     0.2,
		},
		Scalelite: &structs.Scalelite{
			Host:           "scalelite.example.com",
			Container:      "scalelite-api",
			RecordingsPath: "/mnt/scalelite-recordings/var/bigbluebutton/published/presentation",
		},
		SSH: &structs.SSH{
			User:     "bbbpool",
			Port:     22,
			Timeout:  30,
			MaxTries: 1,
		},
		Schedule: &structs.Schedule{WindowDays: 7},
		Load: &structs.Load{
			ParticipantsCapacity:   100,
			MeetingsCapacity:       20,
			ParticipantsFactorLow:  1.2,
			ParticipantsFactorHigh: 1.5,
			ParticipantsThreshold:  1.1,
			MeetingsFactorLow:      1.2,
			MeetingsFactorHigh:     1.5,
			MeetingsThreshold:      1.1,
		},
		Termination: &structs.Termination{
			MeetingsMaxDuration:             720,
			RecordingsMaxProcessingDuration: 1440,
			RecordingsPath:                  "/var/bigbluebutton/published/presentation",
		},
		Clone: &structs.Clone{
			ImageName:      "bbb-template",
			CommercialType: "GP1-XS",
		},
		State: &structs.State{Backend: "file"},
	}
	config.Finalize()
	return config
}
