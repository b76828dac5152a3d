package mq

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

type recordingPublisher struct {
	messages []*Message
	ctxErrs  []error
	err      error
}

func (r *recordingPublisher) Publish(ctx context.Context, msg *Message) error {
	r.messages = append(r.messages, msg)
	r.ctxErrs = append(r.ctxErrs, ctx.Err())
	return r.err
}

// --- Notifier Tests ---

func TestNotifier_Nil(t *testing.T) {
	var n *Notifier

	// не должно паниковать
	n.EndpointPublished(context.Background(), EndpointPublishedPayload{Endpoint: "ep"})
	n.RunSubmitted(context.Background(), RunSubmittedPayload{RunID: "r"})
	n.RunFinished(context.Background(), RunFinishedPayload{RunID: "r"})
	n.RunCancelled(context.Background(), RunCancelledPayload{RunID: "r"})
}

func TestNotifier_SendsTypedMessages(t *testing.T) {
	rec := &recordingPublisher{}
	n := &Notifier{pub: rec, logger: slog.New(slog.DiscardHandler)}
	ctx := context.Background()

	n.EndpointPublished(ctx, EndpointPublishedPayload{Endpoint: "ep", Op: "create", Version: 1})
	n.RunSubmitted(ctx, RunSubmittedPayload{RunID: "r1", Experiment: "exp"})
	n.RunFinished(ctx, RunFinishedPayload{RunID: "r1", Status: "Completed"})
	n.RunCancelled(ctx, RunCancelledPayload{RunID: "r1", Reason: "timeout"})

	want := []MessageType{
		MessageTypeEndpointPublished,
		MessageTypeRunSubmitted,
		MessageTypeRunFinished,
		MessageTypeRunCancelled,
	}
	if len(rec.messages) != len(want) {
		t.Fatalf("expected %d messages, got %d", len(want), len(rec.messages))
	}
	for i, msg := range rec.messages {
		if msg.Type != want[i] {
			t.Errorf("message %d: expected %s, got %s", i, want[i], msg.Type)
		}
		if msg.ID == "" {
			t.Errorf("message %d: empty id", i)
		}
		if msg.Timestamp.IsZero() {
			t.Errorf("message %d: zero timestamp", i)
		}
	}
}

func TestNotifier_IgnoresCancelledContext(t *testing.T) {
	rec := &recordingPublisher{}
	n := &Notifier{pub: rec, logger: slog.New(slog.DiscardHandler)}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n.RunCancelled(ctx, RunCancelledPayload{RunID: "r1", Reason: "interrupted"})

	if len(rec.ctxErrs) != 1 || rec.ctxErrs[0] != nil {
		t.Errorf("publish should get a live context, got %v", rec.ctxErrs)
	}
}

func TestNotifier_LogsPublishError(t *testing.T) {
	var buf bytes.Buffer
	rec := &recordingPublisher{err: errors.New("channel closed")}
	n := &Notifier{pub: rec, logger: slog.New(slog.NewTextHandler(&buf, nil))}

	n.RunFinished(context.Background(), RunFinishedPayload{RunID: "r1"})

	if !strings.Contains(buf.String(), "failed to publish event") {
		t.Errorf("expected warning in log, got %q", buf.String())
	}
}

// --- Decode Tests ---

func TestDecodeMessage_RoundTripPayload(t *testing.T) {
	body, err := json.Marshal(&Message{
		ID:   "m1",
		Type: MessageTypeRunFinished,
		Payload: RunFinishedPayload{
			RunID:      "r1",
			Experiment: "DemandForecastGeneration_TriggerScript",
			Status:     "Failed",
			Error:      "step failed",
		},
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	msg, err := DecodeMessage(body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	payload, err := ParsePayload[RunFinishedPayload](msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payload.Status != "Failed" || payload.Error != "step failed" {
		t.Errorf("unexpected payload %+v", payload)
	}
}

func TestDecodeMessage_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", "{"},
		{"no type", `{"id":"m1","payload":{}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeMessage([]byte(tt.body)); err == nil {
				t.Error("expected error")
			}
		})
	}
}
