// Package mqtt provides MQTT broker connectivity for the fluxline live feed.
//
// It wraps paho.mqtt.golang with fluxline-specific patterns for connection
// management and subscription handling. Only the consume side is exposed:
// fluxline subscribes to a telemetry topic and writes what arrives to
// InfluxDB; it never publishes.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe("fluxline/metrics", 1,
//	    func(topic string, payload []byte) error {
//	        return consumer.HandleMessage(topic, payload)
//	    })
//
// # Reconnection
//
// The client auto-reconnects with exponential backoff and restores all
// tracked subscriptions when the broker comes back. Handler errors and
// panics are logged via the optional Logger but never crash the feed.
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// Handlers run in paho's goroutines and must be safe themselves.
package mqtt
