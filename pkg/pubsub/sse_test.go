package pubsub

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestEventBufferReplayAll(t *testing.T) {
	pub := NewSSEPublisher()
	defer pub.Close()

	pub.ConfigureTopic(TopicAuditStatus, TopicConfig{
		BufferSize: 3,
		ReplayAll:  true,
	})

	for i := 1; i <= 5; i++ {
		err := pub.Publish(TopicAuditStatus, "auditing", AuditStatus{Step: i, Total: 5})
		if err != nil {
			t.Fatalf("Failed to publish event %d: %v", i, err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	sub, err := pub.Subscribe(ctx, TopicAuditStatus)
	if err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}
	defer sub.Close()

	// The buffer keeps the most recent 3 of 5, versions 3..5.
	for want := 3; want <= 5; want++ {
		select {
		case event := <-sub.Events():
			if event.Version != want {
				t.Errorf("Expected version %d, got %d", want, event.Version)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("Timeout waiting for replayed event %d", want)
		}
	}
}

func TestReplayLastOnly(t *testing.T) {
	pub := NewSSEPublisher()
	defer pub.Close()

	pub.ConfigureTopic(TopicAuditReport, TopicConfig{
		BufferSize: 5,
		ReplayAll:  false,
	})

	for i := 1; i <= 3; i++ {
		if err := pub.Publish(TopicAuditReport, "report", ReportSummary{Total: i}); err != nil {
			t.Fatalf("Failed to publish event %d: %v", i, err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	sub, err := pub.Subscribe(ctx, TopicAuditReport)
	if err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}
	defer sub.Close()

	select {
	case event := <-sub.Events():
		if event.Version != 3 {
			t.Errorf("Expected only the latest event (version 3), got %d", event.Version)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Timeout waiting for event")
	}

	select {
	case event := <-sub.Events():
		t.Errorf("Received unexpected extra event version %d", event.Version)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestNoBufferNoReplay(t *testing.T) {
	pub := NewSSEPublisher()
	defer pub.Close()

	for i := 1; i <= 3; i++ {
		if err := pub.Publish(TopicAuditStatus, "auditing", AuditStatus{Step: i}); err != nil {
			t.Fatalf("Failed to publish event %d: %v", i, err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	sub, err := pub.Subscribe(ctx, TopicAuditStatus)
	if err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}
	defer sub.Close()

	select {
	case event := <-sub.Events():
		t.Errorf("Received unexpected replayed event version %d", event.Version)
	case <-time.After(50 * time.Millisecond):
	}

	// Live events still flow.
	if err := pub.Publish(TopicAuditStatus, "ready", AuditStatus{State: "ready"}); err != nil {
		t.Fatal(err)
	}
	select {
	case event := <-sub.Events():
		if event.Type != "ready" {
			t.Errorf("Expected the live event, got %+v", event)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Timeout waiting for live event")
	}
}

func TestWriteSSEFormat(t *testing.T) {
	var sb strings.Builder
	event := Event{Topic: TopicAuditReport, Type: "report", Data: json.RawMessage(`{"total":1}`), Version: 7}

	if err := WriteSSE(&sb, event); err != nil {
		t.Fatal(err)
	}

	out := sb.String()
	if !strings.HasPrefix(out, "data: ") || !strings.HasSuffix(out, "\n\n") {
		t.Errorf("SSE frame malformed: %q", out)
	}
	var decoded Event
	if err := json.Unmarshal([]byte(strings.TrimSuffix(strings.TrimPrefix(out, "data: "), "\n\n")), &decoded); err != nil {
		t.Fatalf("SSE payload is not valid JSON: %v", err)
	}
	if decoded.Version != 7 {
		t.Errorf("Expected version 7, got %d", decoded.Version)
	}
}
