package main

import (
	"bytes"
	"context"
	"log"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/zoobzio/capitan"

	"github.com/mimipynb/agentDial/internal/trial"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	flags := log.Flags()
	log.SetOutput(&buf)
	log.SetFlags(0)
	t.Cleanup(func() {
		log.SetOutput(os.Stderr)
		log.SetFlags(flags)
	})
	return &buf
}

func TestLogEvent_PrintsSignalName(t *testing.T) {
	buf := captureLog(t)

	e := capitan.NewEvent(trial.PersistFailed, capitan.SeverityError, time.Now(),
		trial.TrialIDKey.Field("t-1"),
		trial.ErrorKey.Field("disk full"),
	)
	logEvent(context.Background(), e)

	got := buf.String()
	if got != "[t-1] tuner.persist.failed: disk full\n" {
		t.Fatalf("unexpected log line %q", got)
	}

	buf.Reset()
	logEvent(context.Background(), capitan.NewEvent(trial.TrialEnded, capitan.SeverityInfo, time.Now(),
		trial.TrialIDKey.Field("t-1"),
	))
	if got := buf.String(); !strings.Contains(got, "tuner.trial.ended") || strings.Contains(got, "{") {
		t.Fatalf("unexpected log line %q", got)
	}
}
