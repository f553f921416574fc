package observ

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		env, level string
		wantErr    bool
		enabled    zapcore.Level
	}{
		{env: "production", level: "warn", enabled: zapcore.WarnLevel},
		{env: "development", level: "debug", enabled: zapcore.DebugLevel},
		{env: "development", level: "loud", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.env+"/"+tt.level, func(t *testing.T) {
			logger, err := NewLogger(tt.env, tt.level)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if !logger.Core().Enabled(tt.enabled) {
				t.Fatalf("%s not enabled", tt.enabled)
			}
			if logger.Core().Enabled(tt.enabled - 1) {
				t.Fatalf("%s should be filtered", tt.enabled-1)
			}
		})
	}
}
