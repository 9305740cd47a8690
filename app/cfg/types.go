package cfg

import "time"

type Cfg struct {
	// Server configuration
	Port         string
	BaseUrl      string
	APIAccessKey string

	// Upstream content API
	CMSURL     string
	CMSTimeout int // seconds
	UserAgent  string

	// Feed configuration
	PageSize        int
	OverfetchFactor int
	AliasesFile     string

	// Resolution log
	DBPath              string
	WorkerCount         int
	SchedulerInterval   int // seconds
	ResolutionRetention int // hours

	// Application metadata
	Timezone string
	Debug    bool
	Version  string
}

func (c *Cfg) CMSTimeoutDuration() time.Duration {
	return time.Duration(c.CMSTimeout) * time.Second
}

func (c *Cfg) ResolutionRetentionDuration() time.Duration {
	return time.Duration(c.ResolutionRetention) * time.Hour
}
