package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
database:
  path: "test.db"
payment:
  base_url: "https://api.sandbox.example.com"
  client_id: "cid"
  client_secret: "secret"
settlement:
  commission_rate: 0.1
  success_url: "https://didauday.test/booking/paid"
  failure_url: "https://didauday.test/booking/failed"
api:
  enabled: true
  auth:
    enabled: true
    api_keys:
      - key: "k1"
        extra: "e1"
        name: "web"
        role: "member"
        profile_id: 7
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Database.Path != "test.db" {
		t.Errorf("expected database path test.db, got %s", cfg.Database.Path)
	}
	if cfg.API.HTTP.Port != 8080 {
		t.Errorf("expected default http port 8080, got %d", cfg.API.HTTP.Port)
	}
	if !cfg.API.HTTP.Enabled {
		t.Errorf("expected http enabled when api enabled")
	}
	if cfg.Payment.Currency != "USD" {
		t.Errorf("expected default currency USD, got %s", cfg.Payment.Currency)
	}
	if len(cfg.API.Auth.APIKeys) != 1 || cfg.API.Auth.APIKeys[0].ProfileID != 7 {
		t.Errorf("expected one api key bound to profile 7")
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "valid config",
			cfg: Config{
				Database: DatabaseConfig{Path: "path"},
				Payment:  PaymentConfig{BaseURL: "https://gw"},
				Settlement: SettlementConfig{
					CommissionRate: 0.1,
					SuccessURL:     "https://ok",
					FailureURL:     "https://fail",
				},
			},
			wantErr: false,
		},
		{
			name: "missing database path",
			cfg: Config{
				Payment: PaymentConfig{BaseURL: "https://gw"},
				Settlement: SettlementConfig{
					SuccessURL: "https://ok",
					FailureURL: "https://fail",
				},
			},
			wantErr: true,
		},
		{
			name: "commission out of range",
			cfg: Config{
				Database: DatabaseConfig{Path: "path"},
				Payment:  PaymentConfig{BaseURL: "https://gw"},
				Settlement: SettlementConfig{
					CommissionRate: 1.5,
					SuccessURL:     "https://ok",
					FailureURL:     "https://fail",
				},
			},
			wantErr: true,
		},
		{
			name: "missing redirect urls",
			cfg: Config{
				Database: DatabaseConfig{Path: "path"},
				Payment:  PaymentConfig{BaseURL: "https://gw"},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
