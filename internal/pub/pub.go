// monetize-service/internal/pub/pub.go
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"monetize-service/internal/domain"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const (
	EarningEventsChannel = "earning_events"
)

// EarningEventPublisher pushes wallet-affecting events onto the platform's
// Redis fan-out channel so notification and feed services can react live
type EarningEventPublisher struct {
	rdb *redis.Client
}

func NewEarningEventPublisher(rdb *redis.Client) *EarningEventPublisher {
	return &EarningEventPublisher{rdb: rdb}
}

type EarningEvent struct {
	EventType     string                 `json:"event_type"` // earning.credited, withdrawal.requested, withdrawal.completed
	UserID        string                 `json:"user_id"`
	Ref           string                 `json:"ref"`
	TransactionID int64                  `json:"transaction_id"`
	SubType       string                 `json:"sub_type"`
	Amount        decimal.Decimal        `json:"amount"`
	ReelID        string                 `json:"reel_id,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
	Timestamp     time.Time              `json:"timestamp"`
}

// PublishEarningEvent publishes an earning event to Redis
func (p *EarningEventPublisher) PublishEarningEvent(ctx context.Context, event *EarningEvent) error {
	event.Timestamp = time.Now()

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := p.rdb.Publish(ctx, EarningEventsChannel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	log.Printf("[EarningEvent] Published: %s for user=%s, ref=%s",
		event.EventType, event.UserID, event.Ref)

	return nil
}

// PublishEarningCredited publishes a completed earning credit
func (p *EarningEventPublisher) PublishEarningCredited(ctx context.Context, txn *domain.LedgerTransaction) error {
	event := &EarningEvent{
		EventType:     "earning.credited",
		UserID:        txn.UserID,
		Ref:           txn.Ref,
		TransactionID: txn.ID,
		SubType:       string(txn.SubType),
		Amount:        txn.Amount,
	}
	if txn.ReelID != nil {
		event.ReelID = *txn.ReelID
	}
	return p.PublishEarningEvent(ctx, event)
}

// PublishWithdrawalRequested publishes a new pending withdrawal
func (p *EarningEventPublisher) PublishWithdrawalRequested(ctx context.Context, txn *domain.LedgerTransaction) error {
	return p.PublishEarningEvent(ctx, &EarningEvent{
		EventType:     "withdrawal.requested",
		UserID:        txn.UserID,
		Ref:           txn.Ref,
		TransactionID: txn.ID,
		SubType:       string(txn.SubType),
		Amount:        txn.Amount,
	})
}

// PublishWithdrawalCompleted publishes a settled withdrawal
func (p *EarningEventPublisher) PublishWithdrawalCompleted(ctx context.Context, txn *domain.LedgerTransaction) error {
	return p.PublishEarningEvent(ctx, &EarningEvent{
		EventType:     "withdrawal.completed",
		UserID:        txn.UserID,
		Ref:           txn.Ref,
		TransactionID: txn.ID,
		SubType:       string(txn.SubType),
		Amount:        txn.Amount,
	})
}
