package structs

// Merge merges two configurations, values set in b taking precedence.
func (c *Config) Merge(b *Config) *Config {
	config := *c

	if b.Project != "" {
		config.Project = b.Project
	}
	if b.LogLevel != "" {
		config.LogLevel = b.LogLevel
	}
	if b.LogFile != "" {
		config.LogFile = b.LogFile
	}
	if b.LogJSON {
		config.LogJSON = b.LogJSON
	}
	if b.DataDir != "" {
		config.DataDir = b.DataDir
	}
	if b.Hoster != "" {
		config.Hoster = b.Hoster
	}
	if b.CapacityPolicy != "" {
		config.CapacityPolicy = b.CapacityPolicy
	}
	if b.RunInterval > 0 {
		config.RunInterval = b.RunInterval
	}
	if b.PollMaxWorkers > 0 {
		config.PollMaxWorkers = b.PollMaxWorkers
	}
	if b.ActionMaxWorkers > 0 {
		config.ActionMaxWorkers = b.ActionMaxWorkers
	}
	if b.CloneMaxWorkers > 0 {
		config.CloneMaxWorkers = b.CloneMaxWorkers
	}
	if b.DryRun {
		config.DryRun = b.DryRun
	}
	if b.FailsafeThreshold > 0 {
		config.FailsafeThreshold = b.FailsafeThreshold
	}
	if b.LeaderLock {
		config.LeaderLock = b.LeaderLock
	}

	// Apply the sub blocks.
	if config.Pool == nil && b.Pool != nil {
		pool := *b.Pool
		config.Pool = &pool
	} else if b.Pool != nil {
		config.Pool = config.Pool.Merge(b.Pool)
	}

	if config.Scalelite == nil && b.Scalelite != nil {
		scalelite := *b.Scalelite
		config.Scalelite = &scalelite
	} else if b.Scalelite != nil {
		config.Scalelite = config.Scalelite.Merge(b.Scalelite)
	}

	if config.SSH == nil && b.SSH != nil {
		ssh := *b.SSH
		config.SSH = &ssh
	} else if b.SSH != nil {
		config.SSH = config.SSH.Merge(b.SSH)
	}

	if config.Schedule == nil && b.Schedule != nil {
		schedule := *b.Schedule
		config.Schedule = &schedule
	} else if b.Schedule != nil {
		config.Schedule = config.Schedule.Merge(b.Schedule)
	}

	if config.Load == nil && b.Load != nil {
		load := *b.Load
		config.Load = &load
	} else if b.Load != nil {
		config.Load = config.Load.Merge(b.Load)
	}

	if config.Termination == nil && b.Termination != nil {
		termination := *b.Termination
		config.Termination = &termination
	} else if b.Termination != nil {
		config.Termination = config.Termination.Merge(b.Termination)
	}

	if config.Clone == nil && b.Clone != nil {
		clone := *b.Clone
		config.Clone = &clone
	} else if b.Clone != nil {
		config.Clone = config.Clone.Merge(b.Clone)
	}

	if config.Scaleway == nil && b.Scaleway != nil {
		scaleway := *b.Scaleway
		config.Scaleway = &scaleway
	} else if b.Scaleway != nil {
		config.Scaleway = config.Scaleway.Merge(b.Scaleway)
	}

	if config.AWS == nil && b.AWS != nil {
		aws := *b.AWS
		config.AWS = &aws
	} else if b.AWS != nil {
		config.AWS = config.AWS.Merge(b.AWS)
	}

	if config.State == nil && b.State != nil {
		state := *b.State
		config.State = &state
	} else if b.State != nil {
		config.State = config.State.Merge(b.State)
	}

	if config.Telemetry == nil && b.Telemetry != nil {
		telemetry := *b.Telemetry
		config.Telemetry = &telemetry
	} else if b.Telemetry != nil {
		config.Telemetry = config.Telemetry.Merge(b.Telemetry)
	}

	if config.Notification == nil && b.Notification != nil {
		notification := *b.Notification
		config.Notification = &notification
	} else if b.Notification != nil {
		config.Notification = config.Notification.Merge(b.Notification)
	}

	if config.Report == nil && b.Report != nil {
		report := *b.Report
		config.Report = &report
	} else if b.Report != nil {
		config.Report = config.Report.Merge(b.Report)
	}

	return &config
}

// Merge is used to merge two Pool configurations together.
func (p *Pool) Merge(b *Pool) *Pool {
	config := *p

	if b.DomainTemplate != "" {
		config.DomainTemplate = b.DomainTemplate
	}
	if b.HostnameTemplate != "" {
		config.HostnameTemplate = b.HostnameTemplate
	}
	if b.DNSSubdomain != "" {
		config.DNSSubdomain = b.DNSSubdomain
	}
	if b.DNSZone != "" {
		config.DNSZone = b.DNSZone
	}
	if b.Size != 0 {
		config.Size = b.Size
	}
	if b.Capacity != 0 {
		config.Capacity = b.Capacity
	}
	if b.BareMetalCount != 0 {
		config.BareMetalCount = b.BareMetalCount
	}
	if b.MaxRecyclingUptime != 0 {
		config.MaxRecyclingUptime = b.MaxRecyclingUptime
	}
	if b.MinimumRatio != 0 {
		config.MinimumRatio = b.MinimumRatio
	}

	return &config
}

// Merge is used to merge two Scalelite configurations together.
func (s *Scalelite) Merge(b *Scalelite) *Scalelite {
	config := *s

	if b.Host != "" {
		config.Host = b.Host
	}
	if b.Container != "" {
		config.Container = b.Container
	}
	if b.RecordingsPath != "" {
		config.RecordingsPath = b.RecordingsPath
	}

	return &config
}

// Merge is used to merge two SSH configurations together.
func (s *SSH) Merge(b *SSH) *SSH {
	config := *s

	if b.User != "" {
		config.User = b.User
	}
	if b.Port != 0 {
		config.Port = b.Port
	}
	if b.KeyFile != "" {
		config.KeyFile = b.KeyFile
	}
	if b.Timeout != 0 {
		config.Timeout = b.Timeout
	}
	if b.MaxTries != 0 {
		config.MaxTries = b.MaxTries
	}
	if b.SleepTime != 0 {
		config.SleepTime = b.SleepTime
	}

	return &config
}

// Merge is used to merge two Schedule configurations together.
func (s *Schedule) Merge(b *Schedule) *Schedule {
	config := *s

	if b.ICalURL != "" {
		config.ICalURL = b.ICalURL
	}
	if b.CacheFile != "" {
		config.CacheFile = b.CacheFile
	}
	if b.WindowDays != 0 {
		config.WindowDays = b.WindowDays
	}

	return &config
}

// Merge is used to merge two Load configurations together.
func (l *Load) Merge(b *Load) *Load {
	config := *l

	if b.ParticipantsCapacity != 0 {
		config.ParticipantsCapacity = b.ParticipantsCapacity
	}
	if b.MeetingsCapacity != 0 {
		config.MeetingsCapacity = b.MeetingsCapacity
	}
	if b.ParticipantsFactorLow != 0 {
		config.ParticipantsFactorLow = b.ParticipantsFactorLow
	}
	if b.ParticipantsFactorHigh != 0 {
		config.ParticipantsFactorHigh = b.ParticipantsFactorHigh
	}
	if b.ParticipantsThreshold != 0 {
		config.ParticipantsThreshold = b.ParticipantsThreshold
	}
	if b.MeetingsFactorLow != 0 {
		config.MeetingsFactorLow = b.MeetingsFactorLow
	}
	if b.MeetingsFactorHigh != 0 {
		config.MeetingsFactorHigh = b.MeetingsFactorHigh
	}
	if b.MeetingsThreshold != 0 {
		config.MeetingsThreshold = b.MeetingsThreshold
	}

	return &config
}

// Merge is used to merge two Termination configurations together.
func (t *Termination) Merge(b *Termination) *Termination {
	config := *t

	if b.MeetingsMaxDuration != 0 {
		config.MeetingsMaxDuration = b.MeetingsMaxDuration
	}
	if b.RecordingsMaxProcessingDuration != 0 {
		config.RecordingsMaxProcessingDuration = b.RecordingsMaxProcessingDuration
	}
	if b.RecordingsPath != "" {
		config.RecordingsPath = b.RecordingsPath
	}

	return &config
}

// Merge is used to merge two Clone configurations together.
func (c *Clone) Merge(b *Clone) *Clone {
	config := *c

	if b.ImageName != "" {
		config.ImageName = b.ImageName
	}
	if b.CommercialType != "" {
		config.CommercialType = b.CommercialType
	}
	if b.EnableIPv6 {
		config.EnableIPv6 = b.EnableIPv6
	}

	return &config
}

// Merge is used to merge two Scaleway configurations together.
func (s *Scaleway) Merge(b *Scaleway) *Scaleway {
	config := *s

	if b.AccessKey != "" {
		config.AccessKey = b.AccessKey
	}
	if b.SecretKey != "" {
		config.SecretKey = b.SecretKey
	}
	if b.ProjectID != "" {
		config.ProjectID = b.ProjectID
	}
	if b.Zone != "" {
		config.Zone = b.Zone
	}

	return &config
}

// Merge is used to merge two AWS configurations together.
func (a *AWS) Merge(b *AWS) *AWS {
	config := *a

	if b.Region != "" {
		config.Region = b.Region
	}
	if b.SubnetID != "" {
		config.SubnetID = b.SubnetID
	}
	if len(b.SecurityGroupIDs) > 0 {
		config.SecurityGroupIDs = b.SecurityGroupIDs
	}
	if b.KeyName != "" {
		config.KeyName = b.KeyName
	}

	return &config
}

// Merge is used to merge two State configurations together.
func (s *State) Merge(b *State) *State {
	config := *s

	if b.Backend != "" {
		config.Backend = b.Backend
	}
	if b.Path != "" {
		config.Path = b.Path
	}
	if b.ConsulAddress != "" {
		config.ConsulAddress = b.ConsulAddress
	}
	if b.ConsulToken != "" {
		config.ConsulToken = b.ConsulToken
	}
	if b.ConsulKeyRoot != "" {
		config.ConsulKeyRoot = b.ConsulKeyRoot
	}
	if b.RedisAddress != "" {
		config.RedisAddress = b.RedisAddress
	}
	if b.RedisPassword != "" {
		config.RedisPassword = b.RedisPassword
	}
	if b.RedisDB != 0 {
		config.RedisDB = b.RedisDB
	}

	return &config
}

// Merge is used to merge two Telemetry configurations together.
func (t *TelemetryConfig) Merge(b *TelemetryConfig) *TelemetryConfig {
	config := *t

	if b.StatsdAddress != "" {
		config.StatsdAddress = b.StatsdAddress
	}

	return &config
}

// Merge is used to merge two Notification configurations together.
func (n *Notification) Merge(b *Notification) *Notification {
	config := *n

	if b.PagerDutyRoutingKey != "" {
		config.PagerDutyRoutingKey = b.PagerDutyRoutingKey
	}
	if b.OpsGenieAPIKey != "" {
		config.OpsGenieAPIKey = b.OpsGenieAPIKey
	}
	if b.WarningInterval != 0 {
		config.WarningInterval = b.WarningInterval
	}
	if b.ErrorInterval != 0 {
		config.ErrorInterval = b.ErrorInterval
	}

	if config.Email == nil && b.Email != nil {
		email := *b.Email
		config.Email = &email
	} else if b.Email != nil {
		config.Email = config.Email.Merge(b.Email)
	}

	return &config
}

// Merge is used to merge two Email configurations together.
func (e *Email) Merge(b *Email) *Email {
	config := *e

	if b.Host != "" {
		config.Host = b.Host
	}
	if b.Port != 0 {
		config.Port = b.Port
	}
	if b.Username != "" {
		config.Username = b.Username
	}
	if b.Password != "" {
		config.Password = b.Password
	}
	if b.From != "" {
		config.From = b.From
	}
	if len(b.To) > 0 {
		config.To = b.To
	}

	return &config
}

// Merge is used to merge two Report configurations together.
func (r *Report) Merge(b *Report) *Report {
	config := *r

	if len(b.KafkaBrokers) > 0 {
		config.KafkaBrokers = b.KafkaBrokers
	}
	if b.KafkaTopic != "" {
		config.KafkaTopic = b.KafkaTopic
	}

	return &config
}
