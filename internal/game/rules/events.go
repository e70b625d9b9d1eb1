package rules

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType indicates the category of a game event.
type EventType string

const (
	// Session events
	EventGameStarted EventType = "GAME_STARTED"
	EventGameEnded   EventType = "GAME_ENDED"
	EventTick        EventType = "TICK"

	// Card events
	EventCardDrawn       EventType = "CARD_DRAWN"
	EventCardPlayed      EventType = "CARD_PLAYED"
	EventCardSelected    EventType = "CARD_SELECTED"
	EventSelectionClear  EventType = "SELECTION_CLEARED"
	EventHandRepaired    EventType = "HAND_REPAIRED"
	EventDeckRegenerated EventType = "DECK_REGENERATED"

	// Scoring events
	EventMoveRecorded EventType = "MOVE_RECORDED"
	EventScoreChanged EventType = "SCORE_CHANGED"
	EventHighScore    EventType = "HIGH_SCORE"

	// Progression events
	EventFeatureUnlocked    EventType = "FEATURE_UNLOCKED"
	EventCardInjected       EventType = "CARD_INJECTED"
	EventCardDropped        EventType = "CARD_DROPPED"
	EventHandCapacityRaised EventType = "HAND_CAPACITY_RAISED"

	// Algebra events
	EventAlgebraActivated EventType = "ALGEBRA_ACTIVATED"
	EventAlgebraUpdated   EventType = "ALGEBRA_UPDATED"
	EventAlgebraApplied   EventType = "ALGEBRA_APPLIED"
	EventTargetChanged    EventType = "TARGET_CHANGED"
)

// Event is a single notification published by an engine.
type Event struct {
	Type        EventType         `json:"type"`
	ID          string            `json:"id"`
	GameID      string            `json:"game_id"`
	CardIDs     []string          `json:"card_ids,omitempty"`
	Value       float64           `json:"value,omitempty"`
	Data        string            `json:"data,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Description string            `json:"description,omitempty"`
}

// Listener defines a callback that reacts to incoming events.
type Listener func(Event)

// TypedListener defines a callback that reacts to a specific event type.
type TypedListener struct {
	Handle    int
	EventType EventType
	Callback  func(Event)
}

// EventBus provides a synchronous publish/subscribe implementation with type filtering.
type EventBus struct {
	mu             sync.RWMutex
	listeners      map[int]Listener
	typedListeners map[EventType][]TypedListener
	nextHandle     int
}

// NewEventBus constructs a fresh event bus instance.
func NewEventBus() *EventBus {
	return &EventBus{
		listeners:      make(map[int]Listener),
		typedListeners: make(map[EventType][]TypedListener),
	}
}

// Subscribe registers a listener for all events and returns a handle.
func (bus *EventBus) Subscribe(listener Listener) int {
	if listener == nil {
		return -1
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	handle := bus.nextHandle
	bus.nextHandle++
	bus.listeners[handle] = listener
	return handle
}

// SubscribeTyped registers a listener for a specific event type.
func (bus *EventBus) SubscribeTyped(eventType EventType, callback func(Event)) int {
	if callback == nil {
		return -1
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	handle := bus.nextHandle
	bus.nextHandle++
	bus.typedListeners[eventType] = append(bus.typedListeners[eventType], TypedListener{
		Handle:    handle,
		EventType: eventType,
		Callback:  callback,
	})
	return handle
}

// Unsubscribe removes the listener identified by the provided handle, whether
// it was registered with Subscribe or SubscribeTyped.
func (bus *EventBus) Unsubscribe(handle int) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	delete(bus.listeners, handle)
	for eventType, listeners := range bus.typedListeners {
		for i := len(listeners) - 1; i >= 0; i-- {
			if listeners[i].Handle == handle {
				bus.typedListeners[eventType] = append(listeners[:i], listeners[i+1:]...)
				break
			}
		}
	}
}

// Publish delivers the event to all registered listeners synchronously.
// Listeners must not publish or subscribe from inside the callback.
func (bus *EventBus) Publish(event Event) {
	bus.mu.RLock()
	defer bus.mu.RUnlock()

	for _, listener := range bus.listeners {
		listener(event)
	}
	for _, listener := range bus.typedListeners[event.Type] {
		listener.Callback(event)
	}
}

// PublishBatch publishes events in order.
func (bus *EventBus) PublishBatch(events []Event) {
	for _, event := range events {
		bus.Publish(event)
	}
}

// NewEvent creates a new event with common fields populated.
func NewEvent(eventType EventType, gameID string, cardIDs ...string) Event {
	return Event{
		Type:      eventType,
		ID:        uuid.NewString(),
		GameID:    gameID,
		CardIDs:   cardIDs,
		Timestamp: time.Now(),
		Metadata:  make(map[string]string),
	}
}

// NewEventWithValue creates a new event carrying a numeric value.
func NewEventWithValue(eventType EventType, gameID string, value float64, cardIDs ...string) Event {
	evt := NewEvent(eventType, gameID, cardIDs...)
	evt.Value = value
	return evt
}
