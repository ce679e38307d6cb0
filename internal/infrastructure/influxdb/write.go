package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurements written by coopd.
const (
	MeasurementGamepadEvents = "gamepad_events"
	MeasurementSession       = "coop_session"
)

// WriteGamepadEvent records one registry notification.
//
// kind and device_id are tags; user_id is a field because remaps change it
// for the same device.
func (c *Client) WriteGamepadEvent(kind string, deviceID, userID int) {
	c.WritePoint(MeasurementGamepadEvents,
		map[string]string{
			"kind":      kind,
			"device_id": strconv.Itoa(deviceID),
		},
		map[string]interface{}{
			"user_id": userID,
		},
	)
}

// WriteSessionGauge records how many gamepads and users are active.
func (c *Client) WriteSessionGauge(connected, users int) {
	c.WritePoint(MeasurementSession,
		nil,
		map[string]interface{}{
			"gamepads": connected,
			"users":    users,
		},
	)
}

// WritePoint writes a point stamped with the current time.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime writes a point with an explicit timestamp.
// Points written while disconnected are dropped.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, timestamp))
}
