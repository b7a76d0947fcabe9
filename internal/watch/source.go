/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package watch turns ingress informer notifications into an ordered event
// stream consumed by a single goroutine.
package watch

import (
	"context"
	"fmt"

	networkingv1 "k8s.io/api/networking/v1"
	toolscache "k8s.io/client-go/tools/cache"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/cache"
	"sigs.k8s.io/controller-runtime/pkg/client"
	logf "sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/golgoth31/gateway-autodns/internal/metrics"
)

// Kind is the ingress change kind.
type Kind string

const (
	KindAdd    Kind = "Add"
	KindUpdate Kind = "Update"
	KindDelete Kind = "Delete"
)

// Event is one ingress change. Object is the new state for Add and Update and
// the last known state for Delete; Old is only set for Update.
type Event struct {
	Kind   Kind
	Object *networkingv1.Ingress
	Old    *networkingv1.Ingress
}

// Handler consumes events. It is never called concurrently.
type Handler interface {
	Handle(ctx context.Context, ev Event)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, ev Event)

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, ev Event) {
	f(ctx, ev)
}

// InformerSource is satisfied by the manager cache.
type InformerSource interface {
	GetInformer(ctx context.Context, obj client.Object, opts ...cache.InformerGetOption) (cache.Informer, error)
}

// Source registers on the ingress informer and feeds Handler one event at a time.
// It runs only on the elected leader.
type Source struct {
	informers InformerSource
	handler   Handler
	events    chan Event
}

// NewSource returns a Source buffering up to bufferSize pending events.
func NewSource(informers InformerSource, handler Handler, bufferSize int) *Source {
	return &Source{
		informers: informers,
		handler:   handler,
		events:    make(chan Event, bufferSize),
	}
}

// NeedLeaderElection implements manager.LeaderElectionRunnable.
func (s *Source) NeedLeaderElection() bool {
	return true
}

// Start implements manager.Runnable.
func (s *Source) Start(ctx context.Context) error {
	log := ctrl.Log.WithName("ingress-events")

	informer, err := s.informers.GetInformer(ctx, &networkingv1.Ingress{})
	if err != nil {
		return fmt.Errorf("get ingress informer: %w", err)
	}
	registration, err := informer.AddEventHandler(s.handlerFuncs(ctx))
	if err != nil {
		return fmt.Errorf("register ingress event handler: %w", err)
	}
	defer func() {
		if err := informer.RemoveEventHandler(registration); err != nil {
			log.Error(err, "failed to remove ingress event handler")
		}
	}()

	log.Info("consuming ingress events", "buffer", cap(s.events))
	return s.consume(ctx)
}

func (s *Source) handlerFuncs(ctx context.Context) toolscache.ResourceEventHandlerFuncs {
	return toolscache.ResourceEventHandlerFuncs{
		AddFunc: func(obj any) {
			if ing, ok := obj.(*networkingv1.Ingress); ok {
				s.enqueue(ctx, Event{Kind: KindAdd, Object: ing})
			}
		},
		UpdateFunc: func(oldObj, newObj any) {
			oldIng, ok1 := oldObj.(*networkingv1.Ingress)
			newIng, ok2 := newObj.(*networkingv1.Ingress)
			if ok1 && ok2 {
				s.enqueue(ctx, Event{Kind: KindUpdate, Object: newIng, Old: oldIng})
			}
		},
		DeleteFunc: func(obj any) {
			if tombstone, ok := obj.(toolscache.DeletedFinalStateUnknown); ok {
				obj = tombstone.Obj
			}
			if ing, ok := obj.(*networkingv1.Ingress); ok {
				s.enqueue(ctx, Event{Kind: KindDelete, Object: ing})
			}
		},
	}
}

// enqueue blocks while the buffer is full so no event is dropped.
func (s *Source) enqueue(ctx context.Context, ev Event) {
	select {
	case s.events <- ev:
	case <-ctx.Done():
	}
}

func (s *Source) consume(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-s.events:
			metrics.RecordIngressEvent(string(ev.Kind))
			evCtx := logf.IntoContext(ctx, ctrl.Log.WithName("ingress-events").WithValues(
				"kind", ev.Kind, "ingress", client.ObjectKeyFromObject(ev.Object).String()))
			s.handler.Handle(evCtx, ev)
		}
	}
}
