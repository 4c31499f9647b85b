package connreg

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// InboundMessage is a client->server frame. Only Type is guaranteed present;
// the remaining fields are populated depending on Type.
type InboundMessage struct {
	Type      string  `json:"type"`
	Latitude  float64 `json:"latitude,omitempty"`
	Longitude float64 `json:"longitude,omitempty"`
	PackageID int64   `json:"package_id,omitempty"`
	Status    string  `json:"status,omitempty"`
}

// LocationHandler persists a driver's location_update frame.
type LocationHandler interface {
	RecordLocation(ctx context.Context, driverID int64, latitude, longitude float64) error
}

// DeliveryStatusHandler persists a driver's delivery_status frame.
type DeliveryStatusHandler interface {
	RecordDeliveryStatus(ctx context.Context, driverID, packageID int64, status string) error
}

// Serve runs the read loop for one driver's connection until it closes or
// ctx is cancelled. Every inbound frame is routed by its type field; unknown
// types are logged and ignored.
func Serve(ctx context.Context, conn *websocket.Conn, driverID int64, registry *Registry, location LocationHandler, delivery DeliveryStatusHandler, log zerolog.Logger) {
	registry.Connect(driverID, NewSocket(conn))
	defer registry.Disconnect(driverID)

	for {
		var msg InboundMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			return
		}

		switch msg.Type {
		case "ping":
			registry.Send(driverID, map[string]interface{}{
				"type":      "pong",
				"timestamp": time.Now().UTC(),
			})
		case "location_update":
			status := "ok"
			if location != nil {
				if err := location.RecordLocation(ctx, driverID, msg.Latitude, msg.Longitude); err != nil {
					log.Warn().Err(err).Int64("driver_id", driverID).Msg("record location failed")
					status = "error"
				}
			}
			registry.Send(driverID, map[string]interface{}{
				"type":   "location_received",
				"status": status,
			})
		case "delivery_status":
			if delivery != nil {
				if err := delivery.RecordDeliveryStatus(ctx, driverID, msg.PackageID, msg.Status); err != nil {
					log.Warn().Err(err).Int64("driver_id", driverID).Msg("record delivery status failed")
				}
			}
			registry.Send(driverID, map[string]interface{}{
				"type":       "status_received",
				"package_id": msg.PackageID,
			})
		default:
			log.Info().Str("type", msg.Type).Int64("driver_id", driverID).Msg("ignoring unknown message type")
		}
	}
}
