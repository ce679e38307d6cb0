package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/gamepad-coop/internal/infrastructure/mqtt"
)

// request publishes a request of the given kind and waits for the matching
// response payload. build receives the generated request id.
//
// The response is delivered on the MQTT router goroutine, so request must not
// be called from an MQTT handler or from a registry observer.
func (b *Bridge) request(ctx context.Context, kind string, build func(requestID string) any) ([]byte, error) {
	if !b.listening.Load() {
		select {
		case <-b.done:
			return nil, ErrBridgeStopped
		default:
			return nil, ErrNotStarted
		}
	}

	requestID := newRequestID()
	payload, err := json.Marshal(build(requestID))
	if err != nil {
		return nil, fmt.Errorf("marshalling %s request: %w", kind, err)
	}

	ch := make(chan []byte, 1)
	b.pendingMu.Lock()
	b.pending[requestID] = pendingRequest{kind: kind, response: ch}
	b.pendingMu.Unlock()

	defer func() {
		b.pendingMu.Lock()
		delete(b.pending, requestID)
		b.pendingMu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(ctx, b.requestTimeout)
	defer cancel()

	if err := b.mqtt.Publish(b.topics.InputRequest(kind, requestID), payload, b.qos, false); err != nil {
		return nil, fmt.Errorf("publishing %s request: %w", kind, err)
	}

	b.logDebug("platform request sent", "kind", kind, "request_id", requestID)

	select {
	case resp := <-ch:
		return resp, nil
	case <-b.done:
		return nil, ErrBridgeStopped
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s request %s", ErrRequestTimeout, kind, requestID)
		}
		return nil, ctx.Err()
	}
}

// handleResponse routes a coop/input/response/{kind}/{id} message to the
// waiting request. Responses nobody waits for are dropped.
func (b *Bridge) handleResponse(topic string, payload []byte) error {
	kind, requestID, err := responseTopicParts(topic)
	if err != nil {
		b.messagesDropped.Add(1)
		return err
	}

	b.pendingMu.Lock()
	req, ok := b.pending[requestID]
	b.pendingMu.Unlock()

	if !ok {
		b.logDebug("dropping response for unknown request",
			"kind", kind,
			"request_id", requestID,
		)
		return nil
	}
	if req.kind != kind {
		b.messagesDropped.Add(1)
		return fmt.Errorf("%w: %s response for %s request %s", ErrInvalidMessage, kind, req.kind, requestID)
	}
	b.messagesReceived.Add(1)

	// The payload buffer belongs to the MQTT client.
	buf := make([]byte, len(payload))
	copy(buf, payload)

	select {
	case req.response <- buf:
	default:
		b.logDebug("dropping duplicate response", "kind", kind, "request_id", requestID)
	}
	return nil
}

// enumerate asks the platform for every connected device.
func (b *Bridge) enumerate(ctx context.Context) (EnumerateResponse, error) {
	raw, err := b.request(ctx, mqtt.RequestEnumerate, func(requestID string) any {
		return EnumerateRequest{
			RequestID: requestID,
			Timestamp: time.Now().UTC(),
		}
	})
	if err != nil {
		return EnumerateResponse{}, err
	}

	var resp EnumerateResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return EnumerateResponse{}, fmt.Errorf("%w: decoding enumerate response: %w", ErrInvalidMessage, err)
	}
	if resp.Error != "" {
		return EnumerateResponse{}, fmt.Errorf("%w: %s", ErrRequestFailed, resp.Error)
	}

	b.logDebug("platform enumeration received", "devices", len(resp.Devices))
	return resp, nil
}
