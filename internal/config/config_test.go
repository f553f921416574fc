package config

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("TOKEN_TTL", "2h")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.StoreDriver != StoreMemory || cfg.AuthProvider != AuthJWT {
		t.Fatalf("driver/provider = %s/%s", cfg.StoreDriver, cfg.AuthProvider)
	}
	if cfg.TokenTTL != 2*time.Hour || cfg.SweepInterval != time.Minute {
		t.Fatalf("durations = %s/%s", cfg.TokenTTL, cfg.SweepInterval)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestLoadConfigRejectsBadDuration(t *testing.T) {
	t.Setenv("SWEEP_INTERVAL", "soon")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected a parse error")
	}
}

func TestValidate(t *testing.T) {
	valid := Config{
		StoreDriver:   StoreMemory,
		AuthProvider:  AuthJWT,
		JWTSecret:     "s",
		TokenTTL:      time.Hour,
		SweepInterval: time.Minute,
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "unknown driver", mutate: func(c *Config) { c.StoreDriver = "sqlite" }, wantErr: true},
		{name: "postgres without url", mutate: func(c *Config) { c.StoreDriver = StorePostgres }, wantErr: true},
		{name: "mongo without uri", mutate: func(c *Config) { c.StoreDriver = StoreMongo }, wantErr: true},
		{name: "jwt without secret", mutate: func(c *Config) { c.JWTSecret = "" }, wantErr: true},
		{name: "firebase without credentials", mutate: func(c *Config) { c.AuthProvider = AuthFirebase }, wantErr: true},
		{name: "firebase with credentials", mutate: func(c *Config) {
			c.AuthProvider = AuthFirebase
			c.FirebaseCredentialsPath = "/etc/firebase.json"
		}},
		{name: "unknown provider", mutate: func(c *Config) { c.AuthProvider = "saml" }, wantErr: true},
		{name: "zero sweep interval", mutate: func(c *Config) { c.SweepInterval = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Fatalf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadConfigPoolSizes(t *testing.T) {
	t.Setenv("DB_MAX_CONNS", "40")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DBMaxConns != 40 || cfg.DBMinConns != 0 {
		t.Fatalf("pool = %d/%d", cfg.DBMaxConns, cfg.DBMinConns)
	}

	t.Setenv("DB_MIN_CONNS", "-1")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected an error for a negative pool size")
	}
}
