// Package feed implements the live MQTT-to-InfluxDB telemetry feed.
//
// A Consumer subscribes (via the infrastructure mqtt client) to a topic
// carrying JSON telemetry payloads, decodes each into a point under the
// same invariant as the CSV pipeline (non-empty measurement, at least one
// field), and writes points in batches.
//
// # Batching
//
// Batches flush when full or when the flush interval elapses, so points
// never sit unwritten for long on a quiet topic. The feed is long-running:
// a failed flush is logged and counted, the batch is dropped, and the feed
// keeps consuming — unlike the one-shot pipeline, aborting would lose more
// data than it protects.
//
// # Usage
//
//	consumer, err := feed.New(feed.Options{Measurement: "telemetry"}, influxClient)
//	if err != nil {
//	    return err
//	}
//	consumer.Start()
//	defer consumer.Close()
//
//	err = mqttClient.Subscribe(topic, qos, consumer.HandleMessage)
package feed
