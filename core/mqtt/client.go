package mqtt

import "context"

// Publisher sends sample lines to the response topic. Implementations retry
// transient failures and only return an error once the sample is given up.
type Publisher interface {
	Publish(ctx context.Context, payload []byte) error
}

// CommandHandler receives raw payloads delivered on the command topic. It is
// invoked from the transport's delivery goroutine and must not block on
// sampling work.
type CommandHandler interface {
	HandleCommand(topic string, payload []byte)
}

// CommandHandlerFunc adapts a function to a CommandHandler.
type CommandHandlerFunc func(topic string, payload []byte)

func (f CommandHandlerFunc) HandleCommand(topic string, payload []byte) { f(topic, payload) }
