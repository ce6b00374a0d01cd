/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package view

import (
	"context"
	"runtime/debug"
	"sync"

	"github.com/hyperledger-labs/license-ledger/pkg/utils/errors"
	"github.com/hyperledger-labs/license-ledger/platform/view/services/tracing"
	"github.com/hyperledger-labs/license-ledger/platform/view/view"
	"go.opentelemetry.io/otel/trace"
)

const (
	SuccessLabel       tracing.LabelName = "success"
	ViewLabel          tracing.LabelName = "view"
	InitiatorViewLabel tracing.LabelName = "initiator_view"
)

// SessionFactory opens sessions towards remote parties
type SessionFactory interface {
	NewSession(contextID, callerViewID string, party view.Identity) (view.Session, error)
}

// LocalIdentityChecker tells whether an identity belongs to the local party
type LocalIdentityChecker interface {
	IsMe(id view.Identity) bool
}

// DisposableContext extends view.Context with additional functions
type DisposableContext interface {
	view.Context
	Dispose()
}

// rootContext holds what the views run in the same context share: identity, sessions and services
type rootContext struct {
	id             string
	sp             view.ServiceProvider
	me             view.Identity
	sessionFactory SessionFactory
	checker        LocalIdentityChecker
	tracer         trace.Tracer

	sessionsMu sync.Mutex
	sessions   map[string]view.Session
	// session is the one opened by the remote initiator, nil for contexts started locally
	session view.Session
}

func newRootContext(id string, sp view.ServiceProvider, me view.Identity, sf SessionFactory, checker LocalIdentityChecker, tracer trace.Tracer, session view.Session) *rootContext {
	return &rootContext{
		id:             id,
		sp:             sp,
		me:             me,
		sessionFactory: sf,
		checker:        checker,
		tracer:         tracer,
		sessions:       map[string]view.Session{},
		session:        session,
	}
}

func sessionKey(viewID string, party view.Identity) string {
	return viewID + "@" + party.UniqueID()
}

func (r *rootContext) getSession(caller view.View, party view.Identity) (view.Session, error) {
	if party.IsNone() {
		return nil, errors.New("no party specified")
	}
	viewID := GetIdentifier(caller)

	r.sessionsMu.Lock()
	defer r.sessionsMu.Unlock()

	key := sessionKey(viewID, party)
	if s, ok := r.sessions[key]; ok && !s.Info().Closed {
		logger.Debugf("[%s] reusing session [%s:%s]", r.me, viewID, party)
		return s, nil
	}
	if caller == nil {
		return nil, errors.Errorf("a session should already exist, passed nil view")
	}

	s, err := r.sessionFactory.NewSession(r.id, viewID, party)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed opening session to [%s]", party)
	}
	r.sessions[key] = s
	return s, nil
}

func (r *rootContext) putSession(caller view.View, party view.Identity, s view.Session) {
	r.sessionsMu.Lock()
	defer r.sessionsMu.Unlock()
	r.sessions[sessionKey(GetIdentifier(caller), party)] = s
}

func (r *rootContext) isMe(id view.Identity) bool {
	if id.Equal(r.me) {
		return true
	}
	return r.checker != nil && r.checker.IsMe(id)
}

// dispose closes every session opened in this context together with the one it responds on
func (r *rootContext) dispose() {
	r.sessionsMu.Lock()
	defer r.sessionsMu.Unlock()

	for key, s := range r.sessions {
		logger.Debugf("[%s] close session [%s]", r.me, key)
		s.Close()
	}
	clear(r.sessions)
	if r.session != nil {
		r.session.Close()
	}
}

// childContext is the view.Context a single view runs in.
// It overrides session and initiator of the views it nests in and collects error callbacks.
type childContext struct {
	root      *rootContext
	goContext context.Context
	session   view.Session
	initiator view.View

	callbacksMu        sync.Mutex
	errorCallbackFuncs []func()
}

func (c *childContext) StartSpanFrom(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return c.root.tracer.Start(ctx, name, opts...)
}

func (c *childContext) GetService(v interface{}) (interface{}, error) {
	return c.root.sp.GetService(v)
}

func (c *childContext) ID() string {
	return c.root.id
}

func (c *childContext) RunView(v view.View, opts ...view.RunViewOption) (interface{}, error) {
	return runViewOn(c, v, opts...)
}

func (c *childContext) Me() view.Identity {
	return c.root.me
}

func (c *childContext) IsMe(id view.Identity) bool {
	return c.root.isMe(id)
}

func (c *childContext) Initiator() view.View {
	return c.initiator
}

func (c *childContext) GetSession(caller view.View, party view.Identity) (view.Session, error) {
	return c.root.getSession(caller, party)
}

func (c *childContext) Session() view.Session {
	return c.session
}

func (c *childContext) Context() context.Context {
	return c.goContext
}

func (c *childContext) OnError(callback func()) {
	c.callbacksMu.Lock()
	defer c.callbacksMu.Unlock()
	c.errorCallbackFuncs = append(c.errorCallbackFuncs, callback)
}

func (c *childContext) Dispose() {
	c.root.dispose()
}

func (c *childContext) cleanup() {
	c.callbacksMu.Lock()
	callbacks := c.errorCallbackFuncs
	c.errorCallbackFuncs = nil
	c.callbacksMu.Unlock()

	logger.Debugf("cleaning up context [%s][%d]", c.ID(), len(callbacks))
	for _, callback := range callbacks {
		safeInvoke(callback)
	}
}

func safeInvoke(f func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Debugf("error callback panicked [%s]", r)
		}
	}()
	f()
}

// runViewOn invokes the Call function of the given view in a child of parent.
// Panics are turned into errors, and the error callbacks registered by the view run when it fails.
func runViewOn(parent *childContext, v view.View, opts ...view.RunViewOption) (res interface{}, err error) {
	options, err := view.CompileRunViewOptions(opts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed compiling options")
	}
	if v == nil && options.Call == nil {
		return nil, errors.Errorf("no view passed")
	}

	goContext := parent.goContext
	if options.Ctx != nil {
		goContext = options.Ctx
	}
	initiator := parent.initiator
	if options.AsInitiator {
		initiator = v
	}

	logger.Debugf("start view [%s]", GetName(v))
	newCtx, span := parent.StartSpanFrom(goContext, GetName(v), tracing.WithAttributes(
		tracing.String(ViewLabel, GetIdentifier(v)),
		tracing.String(InitiatorViewLabel, GetIdentifier(initiator)),
	), trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	cc := &childContext{
		root:      parent.root,
		goContext: newCtx,
		session:   parent.session,
		initiator: initiator,
	}
	if options.Session != nil {
		cc.session = options.Session
	}
	if options.AsInitiator {
		// the session opened by the remote party becomes the initiator's session towards it
		if cc.session == nil {
			return nil, errors.Errorf("cannot convert a non-responder context to an initiator context")
		}
		parent.root.putSession(initiator, cc.session.Info().Caller, cc.session)
	}

	defer func() {
		if r := recover(); r != nil {
			cc.cleanup()
			res = nil

			logger.Errorf("caught panic while running view with [%v][%s]", r, debug.Stack())

			switch e := r.(type) {
			case error:
				err = errors.WithMessage(e, "caught panic")
			case string:
				err = errors.New(e)
			default:
				err = errors.Errorf("caught panic [%v]", e)
			}
		}
	}()

	if options.Call != nil {
		res, err = options.Call(cc)
	} else {
		res, err = v.Call(cc)
	}
	span.SetAttributes(tracing.Bool(SuccessLabel, err == nil))
	if err != nil {
		cc.cleanup()
		return nil, err
	}
	return res, nil
}
