package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/gamepad-coop/internal/gamepad"
	"github.com/nerrad567/gamepad-coop/internal/infrastructure/mqtt"
)

// PushUserMapping asks the platform to bind deviceID to newUser and waits
// for its answer. It implements gamepad.Authority.
//
// A refusal wraps gamepad.ErrMappingRejected. A missing answer within the
// request timeout wraps ErrRequestTimeout.
func (b *Bridge) PushUserMapping(ctx context.Context, deviceID gamepad.DeviceID, newUser, oldUser gamepad.UserID) error {
	b.mappingRequests.Add(1)

	raw, err := b.request(ctx, mqtt.RequestMapping, func(requestID string) any {
		return MappingRequest{
			RequestID: requestID,
			DeviceID:  deviceID,
			NewUserID: newUser,
			OldUserID: oldUser,
			Timestamp: time.Now().UTC(),
		}
	})
	if err != nil {
		b.mappingFailures.Add(1)
		return fmt.Errorf("pushing mapping for device %d: %w", deviceID, err)
	}

	var resp MappingResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		b.mappingFailures.Add(1)
		return fmt.Errorf("%w: decoding mapping response: %w", ErrInvalidMessage, err)
	}

	if !resp.Accepted {
		b.mappingRejected.Add(1)
		reason := resp.Reason
		if reason == "" {
			reason = "no reason given"
		}
		return fmt.Errorf("%w: device %d to user %d: %s", gamepad.ErrMappingRejected, deviceID, newUser, reason)
	}

	b.logDebug("platform accepted mapping",
		"device_id", deviceID,
		"new_user_id", newUser,
		"old_user_id", oldUser,
	)
	return nil
}
