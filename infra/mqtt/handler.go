package mqtt

import (
	paho "github.com/eclipse/paho.mqtt.golang"

	coremqtt "github.com/kilianp07/sampler/core/mqtt"
)

// CommandMessageHandler adapts a CommandHandler to a paho.MessageHandler.
func CommandMessageHandler(h coremqtt.CommandHandler) paho.MessageHandler {
	return func(_ paho.Client, msg paho.Message) {
		h.HandleCommand(msg.Topic(), msg.Payload())
	}
}
