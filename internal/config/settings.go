package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Rebalance-date rules a strategy can declare.
const (
	RuleWeeklyMonday   = "weekly-monday"
	RuleMonthly1st15th = "monthly-1st-15th"
)

// Roles a broker connection can carry in the gateway pool.
const (
	RoleQuote = "quote"
	RoleTrade = "trade"
)

// Broker is one broker endpoint of the gateway pool.
type Broker struct {
	Name     string `yaml:"name"`
	BaseURL  string `yaml:"base_url"`
	ClientID int    `yaml:"client_id"`
	Role     string `yaml:"role"` // "quote" or "trade"
}

// Strategy is the immutable per-strategy profile: when to run, which dates to
// look for, how much capital to deploy, and where the data source lives.
type Strategy struct {
	Name             string   `yaml:"name"`
	Rule             string   `yaml:"rule"`
	TriggerTimes     []string `yaml:"trigger_times"`   // "HH:MM:SS", local to Settings.Timezone
	LiveCheckpoint   string   `yaml:"live_checkpoint"` // the publish time we race against
	LiveWindowSecs   int      `yaml:"live_window_secs"`
	LiveDeadlineSecs int      `yaml:"live_deadline_secs"`
	SimDeadlineSecs  int      `yaml:"sim_deadline_secs"`
	LiveSleepMs      int      `yaml:"live_sleep_ms"`
	SimSleepMs       int      `yaml:"sim_sleep_ms"`
	BuyCapital       float64  `yaml:"buy_capital"`
	SellCapital      float64  `yaml:"sell_capital"`
	MaxEvents        int      `yaml:"max_events"`
	TransactionsURL  string   `yaml:"transactions_url"`
	ArticlesURL      string   `yaml:"articles_url"`
}

// Settings is the YAML-sourced part of the configuration.
type Settings struct {
	DataDir        string     `yaml:"data_dir"`
	CookieFile     string     `yaml:"cookie_file"`
	Timezone       string     `yaml:"timezone"`
	LimitOffsetPct float64    `yaml:"limit_offset_pct"`
	Brokers        []Broker   `yaml:"brokers"`
	Strategies     []Strategy `yaml:"strategies"`
}

// LoadSettings reads and validates the strategies YAML file, applying
// defaults for omitted fields.
func LoadSettings(path string) (Settings, error) {
	var s Settings
	b, err := os.ReadFile(path)
	if err != nil {
		return s, err
	}
	if err := yaml.Unmarshal(b, &s); err != nil {
		return s, err
	}

	if s.DataDir == "" {
		s.DataDir = "data"
	}
	if s.CookieFile == "" {
		s.CookieFile = "data/session_cookie.txt"
	}
	if s.Timezone == "" {
		s.Timezone = "America/New_York"
	}
	if s.LimitOffsetPct == 0 {
		s.LimitOffsetPct = 2.1
	}
	if _, err := time.LoadLocation(s.Timezone); err != nil {
		return s, fmt.Errorf("invalid timezone %q: %w", s.Timezone, err)
	}

	for i, b := range s.Brokers {
		if b.BaseURL == "" {
			return s, fmt.Errorf("broker %d (%s): base_url is required", i, b.Name)
		}
		if b.Role != "" && b.Role != RoleQuote && b.Role != RoleTrade {
			return s, fmt.Errorf("broker %s: unknown role %q", b.Name, b.Role)
		}
	}

	for i := range s.Strategies {
		st := &s.Strategies[i]
		if st.Name == "" {
			return s, fmt.Errorf("strategy %d: name is required", i)
		}
		if st.Rule != RuleWeeklyMonday && st.Rule != RuleMonthly1st15th {
			return s, fmt.Errorf("strategy %s: unknown rule %q", st.Name, st.Rule)
		}
		if len(st.TriggerTimes) == 0 {
			return s, fmt.Errorf("strategy %s: at least one trigger time is required", st.Name)
		}
		if st.TransactionsURL == "" && st.ArticlesURL == "" {
			return s, fmt.Errorf("strategy %s: a transactions or articles endpoint is required", st.Name)
		}
		if st.LiveCheckpoint == "" {
			st.LiveCheckpoint = "12:00:00"
		}
		if st.LiveWindowSecs == 0 {
			st.LiveWindowSecs = 55
		}
		if st.LiveDeadlineSecs == 0 {
			st.LiveDeadlineSecs = 4*60 + 30
		}
		if st.SimDeadlineSecs == 0 {
			st.SimDeadlineSecs = 30
		}
		if st.SimSleepMs == 0 {
			st.SimSleepMs = 3750
		}
		if st.LiveSleepMs == 0 {
			st.LiveSleepMs = 250
		}
		if st.MaxEvents == 0 {
			st.MaxEvents = 14
		}
	}

	return s, nil
}

// Location resolves the configured timezone. Validity is checked at load
// time, so a failure here means the tz database changed underneath us.
func (s Settings) Location() (*time.Location, error) {
	return time.LoadLocation(s.Timezone)
}
