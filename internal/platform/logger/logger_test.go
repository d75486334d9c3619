package logger

import (
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func observed(r redaction) (*Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	return &Logger{SugaredLogger: zap.New(core).Sugar(), redact: r}, logs
}

func TestSanitizeRedactsAndHashes(t *testing.T) {
	l, logs := observed(redaction{enabled: true, hashSalt: "salt"})
	l.Info("validated",
		"user_id", "4f9c1a52-3f7e-4c1e-9a7b-2d9d6c0e8f11",
		"jwt_token", "abc",
		"approved", true,
	)
	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if got, _ := fields["jwt_token"].(string); got != "[REDACTED]" {
		t.Fatalf("token not redacted: %v", fields["jwt_token"])
	}
	if got, _ := fields["user_id"].(string); !strings.HasPrefix(got, "hash:") || len(got) != len("hash:")+12 {
		t.Fatalf("user_id not hashed: %v", fields["user_id"])
	}
	if fields["approved"] != true {
		t.Fatalf("plain field changed: %v", fields["approved"])
	}
}

func TestSanitizeDisabled(t *testing.T) {
	l, logs := observed(redaction{enabled: false})
	l.With("user_id", "u-1").Warn("w", "secret", "s")
	fields := logs.All()[0].ContextMap()
	if fields["user_id"] != "u-1" || fields["secret"] != "s" {
		t.Fatalf("redaction should be off: %v", fields)
	}
}

func TestHashIsStableForSameSalt(t *testing.T) {
	a := (&Logger{redact: redaction{enabled: true, hashSalt: "x"}}).hashValue("id")
	b := (&Logger{redact: redaction{enabled: true, hashSalt: "x"}}).hashValue("id")
	c := (&Logger{redact: redaction{enabled: true, hashSalt: "y"}}).hashValue("id")
	if a != b {
		t.Fatalf("hash not stable: %s vs %s", a, b)
	}
	if a == c {
		t.Fatalf("salt ignored")
	}
}
