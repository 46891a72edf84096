package events

import (
	"reflect"

	"github.com/kelindar/event"

	"github.com/smazurov/camrecorder/internal/logging"
)

// Bus broadcasts node events to in-process subscribers.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates an event bus.
func New() *Bus {
	return &Bus{dispatcher: event.NewDispatcher()}
}

// route binds one event type to the generic dispatcher calls, which need the
// static type.
type route struct {
	publish   func(d *event.Dispatcher, ev Event)
	subscribe func(d *event.Dispatcher, handler any) (func(), bool)
}

func routeFor[T Event]() route {
	return route{
		publish: func(d *event.Dispatcher, ev Event) { event.Publish(d, ev.(T)) },
		subscribe: func(d *event.Dispatcher, handler any) (func(), bool) {
			fn, ok := handler.(func(T))
			if !ok {
				return nil, false
			}
			return event.Subscribe(d, fn), true
		},
	}
}

var routes = map[uint32]route{
	TypeViewerCountChanged:    routeFor[ViewerCountChangedEvent](),
	TypeRecordingStateChanged: routeFor[RecordingStateChangedEvent](),
	TypeScheduleChanged:       routeFor[ScheduleChangedEvent](),
	TypeSegmentOpened:         routeFor[SegmentOpenedEvent](),
	TypeSegmentClosed:         routeFor[SegmentClosedEvent](),
	TypeSegmentFinalized:      routeFor[SegmentFinalizedEvent](),
	TypeClockChanged:          routeFor[ClockChangedEvent](),
	TypeEncoderStateChanged:   routeFor[EncoderStateChangedEvent](),
	TypeEncoderMetrics:        routeFor[EncoderMetricsEvent](),
	TypeLogEntry:              routeFor[LogEntryEvent](),
}

// Publish delivers ev to every subscriber of its type.
func (b *Bus) Publish(ev Event) {
	if r, ok := routes[ev.Type()]; ok {
		r.publish(b.dispatcher, ev)
	}
}

// Subscribe registers handler, a func taking one event type by value, e.g.
//
//	unsub := bus.Subscribe(func(e SegmentClosedEvent) { ... })
//
// It returns the function that removes the subscription. Handlers of any
// other shape are ignored.
func (b *Bus) Subscribe(handler any) func() {
	if ev, ok := handlerEvent(handler); ok {
		if unsub, ok := routes[ev.Type()].subscribe(b.dispatcher, handler); ok {
			return unsub
		}
	}
	logging.GetLogger("events").Warn("Ignoring subscription with unsupported handler", "handler", reflect.TypeOf(handler))
	return func() {}
}

// handlerEvent returns the zero value of the event type handler accepts.
func handlerEvent(handler any) (Event, bool) {
	t := reflect.TypeOf(handler)
	if t == nil || t.Kind() != reflect.Func || t.NumIn() != 1 || t.NumOut() != 0 {
		return nil, false
	}
	if t.In(0).Kind() != reflect.Struct {
		return nil, false
	}
	ev, ok := reflect.Zero(t.In(0)).Interface().(Event)
	if !ok {
		return nil, false
	}
	_, known := routes[ev.Type()]
	return ev, known
}
