// Package mqtt connects coopd to the local MQTT broker.
//
// The broker is the link between coopd and the platform input layer:
//
//	platform input layer ↔ broker ↔ coopd ↔ broker ↔ game/UI subscribers
//
// The package manages:
//   - Connection with auto-reconnect and LWT offline status
//   - Publishing with QoS and payload limits
//   - Subscriptions restored after reconnect
//   - Topic builders for the coop/ hierarchy
//
// Message handlers are delivered in order on a single goroutine, which makes
// the broker the single delivering thread for the gamepad registry. A handler
// must not block on a QoS 1/2 publish; queue the publish instead.
//
// Usage:
//
//	client, err := mqtt.Connect(ctx, cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllInputConnections(), 1,
//	    func(topic string, payload []byte) error {
//	        return handleConnection(topic, payload)
//	    })
package mqtt
