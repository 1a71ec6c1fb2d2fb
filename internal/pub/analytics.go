// monetize-service/internal/pub/analytics.go
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"monetize-service/internal/domain"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
)

// AnalyticsPublisher streams settled distributions to Kafka for the
// recommendation and reporting pipeline. Consumers are read-only: nothing
// downstream can touch wallets.
type AnalyticsPublisher struct {
	writer *kafka.Writer
}

func NewAnalyticsPublisher(brokers []string, topic string) *AnalyticsPublisher {
	return &AnalyticsPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			Async:        false,
		},
	}
}

type DistributionSettledEvent struct {
	EventType     string          `json:"event_type"`
	Ref           string          `json:"ref"`
	ReelID        string          `json:"reel_id"`
	CreatorID     string          `json:"creator_id"`
	ViewerID      string          `json:"viewer_id"`
	TotalRevenue  decimal.Decimal `json:"total_revenue"`
	CreatorAmount decimal.Decimal `json:"creator_amount"`
	ViewerAmount  decimal.Decimal `json:"viewer_amount"`
	AppAmount     decimal.Decimal `json:"app_amount"`
	Timestamp     time.Time       `json:"timestamp"`
}

// PublishDistributionSettled streams one settled distribution. Keyed by reel
// so per-reel consumers see their settlements in order.
func (p *AnalyticsPublisher) PublishDistributionSettled(ctx context.Context, reelID string, dist *domain.RevenueDistribution) error {
	event := DistributionSettledEvent{
		EventType:     "distribution.settled",
		Ref:           dist.Ref,
		ReelID:        reelID,
		CreatorID:     dist.Creator.UserID,
		ViewerID:      dist.Viewer.UserID,
		TotalRevenue:  dist.TotalRevenue,
		CreatorAmount: dist.Creator.Amount,
		ViewerAmount:  dist.Viewer.Amount,
		AppAmount:     dist.App.Amount,
		Timestamp:     time.Now(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal analytics event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(reelID),
		Value: payload,
	})
	if err != nil {
		return fmt.Errorf("failed to write analytics event: %w", err)
	}

	log.Printf("[Analytics] Published distribution.settled ref=%s reel=%s", dist.Ref, reelID)
	return nil
}

// Close flushes and closes the underlying Kafka writer
func (p *AnalyticsPublisher) Close() error {
	return p.writer.Close()
}
