// Package influxdb records co-op session telemetry in InfluxDB v2.
//
// Two measurements are written:
//
//	gamepad_events  tags: kind, device_id, session_id   fields: user_id
//	coop_session    tags: session_id                    fields: gamepads, users
//
// The client satisfies gamepad.MetricsWriter, so wiring it is one call:
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB, cfg.Session.ID)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//	gamepad.AttachMetrics(registry, client)
//
// Writes never block; failures are reported through SetOnError.
package influxdb
