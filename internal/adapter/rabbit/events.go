package rabbit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"github.com/eboda/ride-hail-realtime/internal/domain/models"
	wrap "github.com/eboda/ride-hail-realtime/pkg/logger/wrapper"
	"github.com/eboda/ride-hail-realtime/pkg/rabbit"
)

// RideExchange is the topic exchange carrying ride lifecycle events.
const RideExchange = "ride_events"

// RideEventProducer publishes ride lifecycle events for downstream
// consumers (billing, analytics, notifications).
type RideEventProducer struct {
	client *rabbit.RabbitMQ
}

func NewRideEventProducer(client *rabbit.RabbitMQ) *RideEventProducer {
	return &RideEventProducer{client: client}
}

// Setup declares the topic exchange. Called once during wiring.
func (r *RideEventProducer) Setup(ctx context.Context) error {
	const op = "RideEventProducer.Setup"

	if err := r.client.Channel.ExchangeDeclare(
		RideExchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		ctx = wrap.WithAction(ctx, "declare_exchange")
		return wrap.Error(ctx, fmt.Errorf("%s: failed to declare exchange: %w", op, err))
	}
	return nil
}

// rideEventMessage is the broker payload for every lifecycle event.
type rideEventMessage struct {
	RideID        string   `json:"ride_id"`
	RiderID       string   `json:"rider_id"`
	DriverID      *string  `json:"driver_id,omitempty"`
	Status        string   `json:"status"`
	DistanceKm    float64  `json:"distance_km"`
	EstimatedFare float64  `json:"estimated_fare"`
	FinalFare     *float64 `json:"final_fare,omitempty"`
	Reason        *string  `json:"reason,omitempty"`
	OccurredAt    string   `json:"occurred_at"`
}

// PublishRideEvent publishes the ride's current state under the given
// routing key, reconnecting first if the connection dropped.
func (r *RideEventProducer) PublishRideEvent(ctx context.Context, routingKey string, ride *models.Ride) error {
	const op = "RideEventProducer.PublishRideEvent"

	if err := r.client.EnsureConnection(ctx); err != nil {
		return wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
	}

	msg := rideEventMessage{
		RideID:        ride.ID.String(),
		RiderID:       ride.RiderID.String(),
		Status:        ride.Status.String(),
		DistanceKm:    ride.DistanceKm,
		EstimatedFare: ride.EstimatedFare,
		FinalFare:     ride.FinalFare,
		Reason:        ride.CancellationReason,
		OccurredAt:    time.Now().UTC().Format(time.RFC3339),
	}
	if ride.DriverID != nil {
		id := ride.DriverID.String()
		msg.DriverID = &id
	}

	body, err := json.Marshal(msg)
	if err != nil {
		ctx = wrap.WithAction(ctx, "marshal_ride_event")
		return wrap.Error(ctx, fmt.Errorf("%s: failed to marshal message: %w", op, err))
	}

	if err := r.client.Channel.PublishWithContext(
		ctx,
		RideExchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp091.Publishing{
			ContentType: "application/json",
			Body:        body,
			Timestamp:   time.Now(),
		},
	); err != nil {
		ctx = wrap.WithAction(ctx, "publish_message")
		return wrap.Error(ctx, fmt.Errorf("%s: failed to publish with context: %w", op, err))
	}

	return nil
}
