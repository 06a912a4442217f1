package ledkit

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/eclipse/paho.golang/paho"

	"github.com/hubertat/ledkit/mqtt"
)

const defaultMqttTopicPrefix = "ledkit"

// MqttBridge publishes every mode transition as JSON on
// <prefix>/mode and accepts remote trigger injection on
// <prefix>/trigger (payload: switch id digit). Remote triggers share
// the dispatcher with physical edges but skip the debounce filter.
type MqttBridge struct {
	publisher mqtt.Publisher
	prefix    string
	engine    *Engine
	logger    *log.Logger
}

func NewMqttBridge(publisher mqtt.Publisher, prefix string, engine *Engine, logger *log.Logger) *MqttBridge {
	if len(prefix) == 0 {
		prefix = defaultMqttTopicPrefix
	}
	if logger == nil {
		logger = log.Default()
	}
	return &MqttBridge{
		publisher: publisher,
		prefix:    prefix,
		engine:    engine,
		logger:    logger,
	}
}

func (mb *MqttBridge) ModeChanged(status EngineStatus) {
	payload, err := json.Marshal(status)
	if err != nil {
		mb.logger.Error("failed to marshal engine status", "err", err)
		return
	}

	err = mb.publisher.Publish(mb.prefix+"/mode", payload)
	if err != nil {
		mb.logger.Warn("failed to publish mode transition", "err", err)
	}
}

func (mb *MqttBridge) MqttSubscribeTopic() string {
	return mb.prefix + "/trigger"
}

func (mb *MqttBridge) MqttHandle(pub *paho.Publish) {
	switchId, err := strconv.Atoi(strings.TrimSpace(string(pub.Payload)))
	if err != nil {
		mb.logger.Warn("ignoring malformed trigger payload", "payload", string(pub.Payload))
		return
	}

	mb.engine.HandleTrigger(switchId)
}
