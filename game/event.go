package game

// Event is an outbound message produced by a manager operation. Managers never
// write to the network; the arena hands events to its emitter.
type Event struct {
	Name   string
	Data   any
	To     string // deliver only to this player when set
	Except string // skip this player when set
}

// Broadcast builds an event for every connected client
func Broadcast(name string, data any) Event {
	return Event{Name: name, Data: data}
}

// BroadcastExcept builds an event for everyone but one player
func BroadcastExcept(except, name string, data any) Event {
	return Event{Name: name, Data: data, Except: except}
}

// SendTo builds an event for a single player
func SendTo(playerID, name string, data any) Event {
	return Event{Name: name, Data: data, To: playerID}
}
