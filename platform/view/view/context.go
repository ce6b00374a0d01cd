/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package view

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// RunViewOptions collects how Context.RunView runs a view
type RunViewOptions struct {
	// Session makes the child context answer on this session
	Session Session
	// AsInitiator makes the child view the initiator of the sessions it opens
	AsInitiator bool
	// Call replaces the view argument of RunView
	Call func(Context) (interface{}, error)
	// SameContext runs the view in the calling context instead of a child
	SameContext bool
	Ctx         context.Context
}

type RunViewOption func(*RunViewOptions) error

func CompileRunViewOptions(opts ...RunViewOption) (*RunViewOptions, error) {
	o := &RunViewOptions{}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	return o, nil
}

func AsResponder(session Session) RunViewOption {
	return func(o *RunViewOptions) error {
		o.Session = session
		return nil
	}
}

func AsInitiator() RunViewOption {
	return func(o *RunViewOptions) error {
		o.AsInitiator = true
		return nil
	}
}

func WithViewCall(f func(Context) (interface{}, error)) RunViewOption {
	return func(o *RunViewOptions) error {
		o.Call = f
		return nil
	}
}

func WithSameContext() RunViewOption {
	return func(o *RunViewOptions) error {
		o.SameContext = true
		return nil
	}
}

// WithContext runs the view in the calling context, bound to ctx
func WithContext(ctx context.Context) RunViewOption {
	return func(o *RunViewOptions) error {
		o.SameContext = true
		o.Ctx = ctx
		return nil
	}
}

// ServiceProvider looks services up by type
type ServiceProvider interface {
	GetService(v interface{}) (interface{}, error)
}

// Context is what a view sees of the party it runs at
type Context interface {
	ServiceProvider

	ID() string

	// StartSpanFrom starts a child span of the span carried by ctx
	StartSpanFrom(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span)

	RunView(view View, opts ...RunViewOption) (interface{}, error)

	Me() Identity

	IsMe(id Identity) bool

	// Initiator is the view that opened the sessions of this context, nil for responders
	Initiator() View

	// GetSession returns the session with party opened on behalf of caller.
	// Sessions are cached per caller and party until closed.
	GetSession(caller View, party Identity) (Session, error)

	// Session is the session this context answers on, nil if the run was initiated locally
	Session() Session

	Context() context.Context

	// OnError registers a callback run when the view fails or panics
	OnError(callback func())
}
