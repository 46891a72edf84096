package events

import (
	"reflect"

	"github.com/kelindar/event"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/smazurov/camrecorder/internal/metrics"
)

var droppedEvents = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: metrics.Namespace,
	Subsystem: "events",
	Name:      "dropped_total",
	Help:      "Events not delivered to a slow channel subscriber",
}, []string{"event"})

// SubscribeToChannel delivers events of type T to ch for select-based
// consumers such as SSE handlers. Publishing never blocks: when ch is full the
// event is dropped and counted.
func SubscribeToChannel[T Event](bus *Bus, ch chan<- any) func() {
	dropped := droppedEvents.WithLabelValues(reflect.TypeFor[T]().Name())
	return event.Subscribe(bus.dispatcher, func(e T) {
		select {
		case ch <- e:
		default:
			dropped.Inc()
		}
	})
}
