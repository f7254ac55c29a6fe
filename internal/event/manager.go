package event

import (
	"sync"

	"go.uber.org/zap"
)

const bufferSize = 256

var (
	mu        sync.RWMutex
	listeners = make([]*Listener, 0)
)

type Listener struct {
	eventType Type
	channel   chan interface{}
}

// AddEventListener runs callback for every event of eventType, one message at
// a time and in emit order, on a goroutine owned by the listener.
func AddEventListener(eventType Type, callback func(msg interface{})) {
	zap.L().With(zap.String("type", string(eventType))).Debug("EventManager: AddListener")

	listener := Listener{
		eventType: eventType,
		channel:   make(chan interface{}, bufferSize),
	}

	mu.Lock()
	listeners = append(listeners, &listener)
	mu.Unlock()

	go func() {
		for msg := range listener.channel {
			callback(msg)
		}
	}()
}

// EmitEvent queues msg on every matching listener. It blocks while a
// listener's buffer is full, so a listener never sees events out of order.
func EmitEvent(eventType Type, msg interface{}) {
	mu.RLock()
	defer mu.RUnlock()

	if len(listeners) == 0 {
		zap.L().Debug("EventManager: No event listeners available")
	}
	for _, listener := range listeners {
		if listener.eventType == eventType {
			zap.L().With(zap.String("type", string(eventType))).Debug("EventManager: Emitting event")
			listener.channel <- msg
		}
	}
}

// RemoveAllListeners stops every listener goroutine.
func RemoveAllListeners() {
	mu.Lock()
	defer mu.Unlock()

	for _, listener := range listeners {
		close(listener.channel)
	}
	listeners = make([]*Listener, 0)
}
