package bus

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/beaverai/beaver/internal/common/logger"
)

func newTestLogger(t *testing.T) *logger.Logger {
	log, err := logger.NewLogger(logger.LoggingConfig{
		Level:      "error",
		Format:     "console",
		OutputPath: "stdout",
	})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	return log
}

func TestNewMemoryEventBus(t *testing.T) {
	log := newTestLogger(t)
	bus := NewMemoryEventBus(log)

	if bus == nil {
		t.Fatal("Expected non-nil bus")
	}
	if !bus.IsConnected() {
		t.Error("Expected bus to be connected")
	}
}

func TestMemoryEventBus_PublishSubscribe(t *testing.T) {
	log := newTestLogger(t)
	bus := NewMemoryEventBus(log)
	defer bus.Close()

	ctx := context.Background()
	received := make(chan *Event, 1)

	sub, err := bus.Subscribe("task.completed.proj-1", func(ctx context.Context, event *Event) error {
		received <- event
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer func() {
		_ = sub.Unsubscribe()
	}()

	event := NewEvent("task.completed", "orchestrator", map[string]interface{}{"task_id": "t-1"})
	if err := bus.Publish(ctx, "task.completed.proj-1", event); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	select {
	case e := <-received:
		if e.ID != event.ID {
			t.Errorf("Expected event ID %s, got %s", event.ID, e.ID)
		}
		if e.Type != event.Type {
			t.Errorf("Expected event type %s, got %s", event.Type, e.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for event")
	}
}

func TestMemoryEventBus_WildcardSubscription(t *testing.T) {
	log := newTestLogger(t)
	bus := NewMemoryEventBus(log)
	defer bus.Close()

	ctx := context.Background()
	received := make(chan string, 2)

	sub, err := bus.Subscribe("agent.typing.*", func(ctx context.Context, event *Event) error {
		received <- event.Type
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer func() {
		_ = sub.Unsubscribe()
	}()

	if err := bus.Publish(ctx, "agent.typing.proj-1", NewEvent("agent.typing", "planner", nil)); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if err := bus.Publish(ctx, "agent.typing.proj-2", NewEvent("agent.typing", "main", nil)); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		select {
		case <-received:
		case <-time.After(time.Second):
			t.Fatal("Timeout waiting for wildcard event")
		}
	}

	// A non-matching subject must not be delivered
	if err := bus.Publish(ctx, "task.completed.proj-1", NewEvent("task.completed", "main", nil)); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	select {
	case <-received:
		t.Fatal("Wildcard subscription received non-matching subject")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryEventBus_QueueGroupDeliversOnce(t *testing.T) {
	log := newTestLogger(t)
	bus := NewMemoryEventBus(log)
	defer bus.Close()

	ctx := context.Background()
	var count int32

	for i := 0; i < 3; i++ {
		_, err := bus.QueueSubscribe("message.added", "persisters", func(ctx context.Context, event *Event) error {
			atomic.AddInt32(&count, 1)
			return nil
		})
		if err != nil {
			t.Fatalf("QueueSubscribe failed: %v", err)
		}
	}

	if err := bus.Publish(ctx, "message.added", NewEvent("message.added", "gateway", nil)); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	time.Sleep(100 * time.Millisecond)
	if got := atomic.LoadInt32(&count); got != 1 {
		t.Errorf("Expected exactly 1 delivery across the queue group, got %d", got)
	}
}

func TestMemoryEventBus_UnsubscribeStopsDelivery(t *testing.T) {
	log := newTestLogger(t)
	bus := NewMemoryEventBus(log)
	defer bus.Close()

	ctx := context.Background()
	var count int32

	sub, err := bus.Subscribe("project.updated", func(ctx context.Context, event *Event) error {
		atomic.AddInt32(&count, 1)
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	if err := sub.Unsubscribe(); err != nil {
		t.Fatalf("Unsubscribe failed: %v", err)
	}
	if sub.IsValid() {
		t.Error("Expected subscription to be invalid after Unsubscribe")
	}

	if err := bus.Publish(ctx, "project.updated", NewEvent("project.updated", "service", nil)); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	if got := atomic.LoadInt32(&count); got != 0 {
		t.Errorf("Expected no deliveries after unsubscribe, got %d", got)
	}
}

func TestMemoryEventBus_PublishAfterClose(t *testing.T) {
	log := newTestLogger(t)
	bus := NewMemoryEventBus(log)
	bus.Close()

	if bus.IsConnected() {
		t.Error("Expected bus to be disconnected after Close")
	}
	if err := bus.Publish(context.Background(), "task.created", NewEvent("task.created", "test", nil)); err == nil {
		t.Error("Expected Publish on a closed bus to fail")
	}
}
