package counter

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"time"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"

	"github.com/example/socket-playground-demo/domain/identity"
	"github.com/example/socket-playground-demo/events"
)

// CounterModule owns the process-wide shared counter. Every successful
// mutation publishes a CounterUpdated event carrying the full new state.
type CounterModule struct {
	service  *Service
	eventBus mono.EventBus
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*CounterModule)(nil)
	_ mono.ServiceProviderModule = (*CounterModule)(nil)
	_ mono.EventBusAwareModule   = (*CounterModule)(nil)
	_ mono.EventEmitterModule    = (*CounterModule)(nil)
	_ mono.HealthCheckableModule = (*CounterModule)(nil)
)

// NewModule creates a new CounterModule.
func NewModule() *CounterModule {
	return &CounterModule{
		service: NewService(),
	}
}

// Name returns the module name.
func (m *CounterModule) Name() string {
	return "counter"
}

// SetEventBus receives the EventBus from the framework.
func (m *CounterModule) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
}

// EmitEvents declares the events this module can emit.
func (m *CounterModule) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.CounterUpdatedV1.ToBase(),
	}
}

// Start initializes the counter module.
func (m *CounterModule) Start(_ context.Context) error {
	log.Println("[counter] Module started")
	return nil
}

// Stop shuts down the module.
func (m *CounterModule) Stop(_ context.Context) error {
	count, _ := m.service.Snapshot()
	log.Printf("[counter] Module stopped (final count: %d)", count)
	return nil
}

// Health returns the health status.
func (m *CounterModule) Health(_ context.Context) mono.HealthStatus {
	count, _ := m.service.Snapshot()
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"count": count,
		},
	}
}

// RegisterServices registers request-reply services in the service container.
func (m *CounterModule) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container,
		"counter-increment",
		json.Unmarshal,
		json.Marshal,
		m.handleIncrement,
	); err != nil {
		return fmt.Errorf("failed to register counter-increment service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container,
		"counter-decrement",
		json.Unmarshal,
		json.Marshal,
		m.handleDecrement,
	); err != nil {
		return fmt.Errorf("failed to register counter-decrement service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container,
		"counter-reset",
		json.Unmarshal,
		json.Marshal,
		m.handleReset,
	); err != nil {
		return fmt.Errorf("failed to register counter-reset service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container,
		"counter-set",
		json.Unmarshal,
		json.Marshal,
		m.handleSet,
	); err != nil {
		return fmt.Errorf("failed to register counter-set service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container,
		"counter-get",
		json.Unmarshal,
		json.Marshal,
		m.handleGet,
	); err != nil {
		return fmt.Errorf("failed to register counter-get service: %w", err)
	}

	log.Println("[counter] Registered services: counter-increment, counter-decrement, counter-reset, counter-set, counter-get")
	return nil
}

// handleIncrement adds one to the counter.
func (m *CounterModule) handleIncrement(_ context.Context, req MutateRequest, _ *mono.Msg) (MutateResponse, error) {
	count := m.service.Increment(req.Actor)
	m.publishUpdate(count, req.Actor)
	return MutateResponse{Count: count, UpdatedBy: req.Actor}, nil
}

// handleDecrement subtracts one from the counter.
func (m *CounterModule) handleDecrement(_ context.Context, req MutateRequest, _ *mono.Msg) (MutateResponse, error) {
	count := m.service.Decrement(req.Actor)
	m.publishUpdate(count, req.Actor)
	return MutateResponse{Count: count, UpdatedBy: req.Actor}, nil
}

// handleReset sets the counter back to zero.
func (m *CounterModule) handleReset(_ context.Context, req MutateRequest, _ *mono.Msg) (MutateResponse, error) {
	count := m.service.Reset(req.Actor)
	m.publishUpdate(count, req.Actor)
	return MutateResponse{Count: count, UpdatedBy: req.Actor}, nil
}

// handleSet assigns an explicit value.
func (m *CounterModule) handleSet(_ context.Context, req SetRequest, _ *mono.Msg) (MutateResponse, error) {
	count := m.service.Set(req.Actor, req.Value)
	m.publishUpdate(count, req.Actor)
	return MutateResponse{Count: count, UpdatedBy: req.Actor}, nil
}

// handleGet returns the current counter state without side effects.
func (m *CounterModule) handleGet(_ context.Context, _ GetRequest, _ *mono.Msg) (GetResponse, error) {
	count, last := m.service.Snapshot()
	return GetResponse{Count: count, LastUpdatedBy: last}, nil
}

// publishUpdate emits the full counter state to the event bus.
func (m *CounterModule) publishUpdate(count int64, actor identity.Identity) {
	event := events.CounterUpdatedEvent{
		Count:     count,
		UpdatedBy: actor,
		Timestamp: time.Now(),
	}
	if err := events.CounterUpdatedV1.Publish(m.eventBus, event, nil); err != nil {
		slog.Warn("Failed to publish CounterUpdated event", "error", err)
	}
}
