package config

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleSettings = `
timezone: America/New_York
strategies:
  - name: SA_PQP
    rule: weekly-monday
    trigger_times: ["09:45:30", "11:01:30", "11:59:30"]
    buy_capital: 140000
    sell_capital: 60000
    transactions_url: https://example.com/api/v3/transactions
    articles_url: https://example.com/api/v3/articles
  - name: SA_AP
    rule: monthly-1st-15th
    trigger_times: ["09:50:30"]
    buy_capital: 200000
    articles_url: https://example.com/api/v3/ap_articles
`

func writeSettings(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "strategies.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing settings file: %v", err)
	}
	return path
}

func TestLoadSettings_Defaults(t *testing.T) {
	s, err := LoadSettings(writeSettings(t, sampleSettings))
	if err != nil {
		t.Fatalf("LoadSettings failed: %v", err)
	}

	if s.DataDir != "data" {
		t.Errorf("Expected DataDir 'data', got %q", s.DataDir)
	}
	if s.LimitOffsetPct != 2.1 {
		t.Errorf("Expected LimitOffsetPct 2.1, got %v", s.LimitOffsetPct)
	}
	if len(s.Strategies) != 2 {
		t.Fatalf("Expected 2 strategies, got %d", len(s.Strategies))
	}

	pqp := s.Strategies[0]
	if pqp.SimDeadlineSecs != 30 {
		t.Errorf("Expected SimDeadlineSecs 30, got %d", pqp.SimDeadlineSecs)
	}
	if pqp.LiveDeadlineSecs != 270 {
		t.Errorf("Expected LiveDeadlineSecs 270, got %d", pqp.LiveDeadlineSecs)
	}
	if pqp.SimSleepMs != 3750 {
		t.Errorf("Expected SimSleepMs 3750, got %d", pqp.SimSleepMs)
	}
	if pqp.MaxEvents != 14 {
		t.Errorf("Expected MaxEvents 14, got %d", pqp.MaxEvents)
	}
	if pqp.LiveCheckpoint != "12:00:00" {
		t.Errorf("Expected LiveCheckpoint '12:00:00', got %q", pqp.LiveCheckpoint)
	}

	if _, err := s.Location(); err != nil {
		t.Errorf("Location() failed: %v", err)
	}
}

func TestLoadSettings_RejectsUnknownRule(t *testing.T) {
	bad := `
strategies:
  - name: BAD
    rule: quarterly
    trigger_times: ["10:00:00"]
    transactions_url: https://example.com/api
`
	if _, err := LoadSettings(writeSettings(t, bad)); err == nil {
		t.Fatal("Expected error for unknown rule, got nil")
	}
}

func TestLoadSettings_RequiresEndpoint(t *testing.T) {
	bad := `
strategies:
  - name: NOURL
    rule: weekly-monday
    trigger_times: ["10:00:00"]
`
	if _, err := LoadSettings(writeSettings(t, bad)); err == nil {
		t.Fatal("Expected error for missing endpoints, got nil")
	}
}
