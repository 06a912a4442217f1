package main

import (
	"time"

	"github.com/charmbracelet/log"
	"github.com/eclipse/paho.golang/paho"
	"github.com/hubertat/ledkit/mqtt"
)

const clientID = "mq-ledkit-probe" // Change this to something random if using a public test server
const topic = "ledkit/mode"

type Handler struct {
	topic string
}

func (h *Handler) MqttSubscribeTopic() string {
	return h.topic
}

func (h *Handler) MqttHandle(pub *paho.Publish) {
	log.Info("received mqtt message", "topic", pub.Topic, "payload", string(pub.Payload))
}

// Probe for the ledkit mqtt surface: subscribes to the mode topic and
// injects one remote trigger, printing everything that comes back.
func main() {
	broker := "mqtt://127.0.0.1:1883"

	log.SetLevel(log.DebugLevel)

	mc, err := mqtt.NewMqttClient(broker, clientID)
	if err != nil {
		log.Error("failed to create mqtt client", "error", err)
		return
	}

	mqttHandlers := []mqtt.MqttHandler{
		&Handler{topic: topic},
	}

	err = mc.Connect(mqttHandlers)
	if err != nil {
		log.Error("failed to connect to mqtt broker", "error", err)
		return
	}

	err = mc.Publish("ledkit/trigger", []byte("0"))
	if err != nil {
		log.Error("failed to publish trigger", "error", err)
	}

	log.Info("listening for mode transitions")
	time.Sleep(time.Minute)
}
