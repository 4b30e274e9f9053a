package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/framegraph/internal/config"
)

func TestNewLoggerLevels(t *testing.T) {
	tests := []struct {
		name    string
		level   log.Level
		logFunc func(*log.Logger)
		wantLog bool
	}{
		{"info at info level", log.InfoLevel, func(l *log.Logger) { l.Info("pass") }, true},
		{"debug at info level", log.InfoLevel, func(l *log.Logger) { l.Debug("pass") }, false},
		{"debug at debug level", log.DebugLevel, func(l *log.Logger) { l.Debug("pass") }, true},
		{"warn at info level", log.InfoLevel, func(l *log.Logger) { l.Warn("pass") }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.logFunc(newLogger(&buf, tt.level))
			if got := buf.Len() > 0; got != tt.wantLog {
				t.Errorf("got log output = %v, want %v", got, tt.wantLog)
			}
		})
	}
}

func TestProgressDone(t *testing.T) {
	var buf bytes.Buffer
	prog := newProgress(newLogger(&buf, log.InfoLevel))
	prog.done("rendered 2 viewers")

	out := buf.String()
	if !strings.Contains(out, "rendered 2 viewers (") {
		t.Errorf("progress output %q lacks message with elapsed time", out)
	}
}

func TestLoggerFromContext(t *testing.T) {
	if loggerFromContext(context.Background()) != log.Default() {
		t.Error("empty context should yield the default logger")
	}

	var buf bytes.Buffer
	custom := newLogger(&buf, log.InfoLevel)
	ctx := withLogger(context.Background(), custom)
	if loggerFromContext(ctx) != custom {
		t.Fatal("loggerFromContext should return the attached logger")
	}
}

func TestSetupAppliesConfig(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		verbose   bool
		wantLevel log.Level
		wantWarn  bool
	}{
		{"configured level", "warn", false, log.WarnLevel, false},
		{"verbose wins", "warn", true, log.DebugLevel, false},
		{"unknown level falls back", "loud", false, log.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			c := New(&buf, LogInfo)
			c.verbose = tt.verbose
			c.Config = &config.Config{
				Log:   config.LogConfig{Level: tt.level},
				Store: config.StoreConfig{Backend: config.BackendFile, Format: "yaml"},
			}

			cmd := &cobra.Command{}
			cmd.SetContext(context.Background())
			if err := c.setup(cmd); err != nil {
				t.Fatalf("setup() error = %v", err)
			}

			if got := c.Logger.GetLevel(); got != tt.wantLevel {
				t.Errorf("level = %v, want %v", got, tt.wantLevel)
			}
			if got := strings.Contains(buf.String(), "loud"); got != tt.wantWarn {
				t.Errorf("warning logged = %v, want %v (output %q)", got, tt.wantWarn, buf.String())
			}
			if loggerFromContext(cmd.Context()) != c.Logger {
				t.Error("setup should attach the CLI logger to the command context")
			}
		})
	}
}
