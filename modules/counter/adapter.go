package counter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"

	"github.com/example/socket-playground-demo/domain/identity"
)

// CounterPort defines the interface other modules use to access the
// shared counter.
type CounterPort interface {
	Increment(ctx context.Context, actor identity.Identity) (MutateResponse, error)
	Decrement(ctx context.Context, actor identity.Identity) (MutateResponse, error)
	Reset(ctx context.Context, actor identity.Identity) (MutateResponse, error)
	Set(ctx context.Context, actor identity.Identity, value int64) (MutateResponse, error)
	Get(ctx context.Context) (GetResponse, error)
}

// CounterAdapter implements CounterPort using the service container.
type CounterAdapter struct {
	container mono.ServiceContainer
}

// NewCounterAdapter creates a new CounterAdapter.
func NewCounterAdapter(container mono.ServiceContainer) *CounterAdapter {
	return &CounterAdapter{
		container: container,
	}
}

// Increment adds one to the counter.
func (a *CounterAdapter) Increment(ctx context.Context, actor identity.Identity) (MutateResponse, error) {
	return a.mutate(ctx, "counter-increment", actor)
}

// Decrement subtracts one from the counter.
func (a *CounterAdapter) Decrement(ctx context.Context, actor identity.Identity) (MutateResponse, error) {
	return a.mutate(ctx, "counter-decrement", actor)
}

// Reset sets the counter back to zero.
func (a *CounterAdapter) Reset(ctx context.Context, actor identity.Identity) (MutateResponse, error) {
	return a.mutate(ctx, "counter-reset", actor)
}

// Set assigns an explicit value to the counter.
func (a *CounterAdapter) Set(ctx context.Context, actor identity.Identity, value int64) (MutateResponse, error) {
	req := SetRequest{Actor: actor, Value: value}
	var resp MutateResponse

	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		"counter-set",
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return MutateResponse{}, fmt.Errorf("counter-set request failed: %w", err)
	}

	return resp, nil
}

// Get returns the current counter state.
func (a *CounterAdapter) Get(ctx context.Context) (GetResponse, error) {
	req := GetRequest{}
	var resp GetResponse

	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		"counter-get",
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return GetResponse{}, fmt.Errorf("counter-get request failed: %w", err)
	}

	return resp, nil
}

// mutate calls one of the payload-free mutation services.
func (a *CounterAdapter) mutate(ctx context.Context, service string, actor identity.Identity) (MutateResponse, error) {
	req := MutateRequest{Actor: actor}
	var resp MutateResponse

	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		service,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return MutateResponse{}, fmt.Errorf("%s request failed: %w", service, err)
	}

	return resp, nil
}
