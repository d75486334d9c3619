package ctxutil

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

func TestRequestDataRoundTrip(t *testing.T) {
	if GetRequestData(context.Background()) != nil {
		t.Fatalf("expected nil on empty context")
	}
	id := uuid.New()
	ctx := WithRequestData(context.Background(), &RequestData{UserID: id})
	if rd := GetRequestData(ctx); rd == nil || rd.UserID != id {
		t.Fatalf("got %+v", rd)
	}
}

func TestLogFields(t *testing.T) {
	if f := LogFields(context.Background()); f != nil {
		t.Fatalf("expected no fields, got %v", f)
	}
	ctx := WithTraceData(context.Background(), &TraceData{TraceID: "t1", RequestID: "r1"})
	f := LogFields(ctx)
	if len(f) != 4 || f[1] != "t1" || f[3] != "r1" {
		t.Fatalf("got %v", f)
	}
}
