package core

// eventBuffer bounds how many undelivered events a connection may hold.
// Overflow drops the oldest event so a slow reader never stalls a broadcaster.
const eventBuffer = 32

// Client is a live connection as seen by the core layer. It is ephemeral:
// created when the realtime channel opens, destroyed on disconnect.
type Client struct {
	ID        string
	Username  string // display name from the authenticated identity
	AccountID int64
	Events    chan Event
}

// NewClient constructs a client with an initialized event channel.
func NewClient(id, username string, accountID int64) *Client {
	if username == "" {
		username = "Anonymous"
	}
	return &Client{
		ID:        id,
		Username:  username,
		AccountID: accountID,
		Events:    make(chan Event, eventBuffer),
	}
}

// push queues an event for delivery without ever blocking. When the buffer is
// full the oldest pending event is evicted to make room.
func (c *Client) push(ev Event) {
	select {
	case c.Events <- ev:
		return
	default:
	}
	select {
	case <-c.Events:
	default:
	}
	select {
	case c.Events <- ev:
	default:
	}
}
