// Package event publishes the bridge's domain events to Kafka.
package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/adiwena/gobiz-bridge/internal/domain"
	pkgkafka "github.com/adiwena/gobiz-bridge/pkg/kafka"
)

// Kafka topic constants for bridge domain events.
const (
	TopicTransactionDiscovered = "gobiz.transaction.discovered"
	TopicSessionRevoked        = "gobiz.session.revoked"
)

// Aggregate type constant.
const AggregateTypeUser = "user"

// Source identifier for events originating from the bridge.
const SourceBridge = "gobiz-bridge"

// TransactionDiscoveredData is the payload for a transaction.discovered
// event.
type TransactionDiscoveredData struct {
	UserID     string              `json:"userId"`
	MerchantID string              `json:"merchantId"`
	Tx         *domain.Transaction `json:"tx"`
}

// SessionRevokedData is the payload for a session.revoked event.
type SessionRevokedData struct {
	UserID string `json:"userId"`
	Reason string `json:"reason"`
}

// Producer publishes bridge domain events to Kafka. A nil Producer is valid
// and publishes nothing, for deployments without brokers.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates an event producer.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{kafka: kafka, logger: logger}
}

// PublishTransactionDiscovered publishes a transaction.discovered event.
func (p *Producer) PublishTransactionDiscovered(ctx context.Context, userID, merchantID string, tx *domain.Transaction) error {
	if p == nil || p.kafka == nil {
		return nil
	}

	data := TransactionDiscoveredData{UserID: userID, MerchantID: merchantID, Tx: tx}

	event, err := pkgkafka.NewEvent(TopicTransactionDiscovered, userID, AggregateTypeUser, SourceBridge, data)
	if err != nil {
		return fmt.Errorf("create transaction.discovered event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicTransactionDiscovered, event); err != nil {
		return fmt.Errorf("publish transaction.discovered event: %w", err)
	}

	p.logger.DebugContext(ctx, "published transaction.discovered event",
		slog.String("user_id", userID),
		slog.String("merchant_id", merchantID),
		slog.String("tx_id", tx.ID),
	)
	return nil
}

// PublishSessionRevoked publishes a session.revoked event.
func (p *Producer) PublishSessionRevoked(ctx context.Context, userID, reason string) error {
	if p == nil || p.kafka == nil {
		return nil
	}

	event, err := pkgkafka.NewEvent(TopicSessionRevoked, userID, AggregateTypeUser, SourceBridge, SessionRevokedData{
		UserID: userID,
		Reason: reason,
	})
	if err != nil {
		return fmt.Errorf("create session.revoked event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicSessionRevoked, event); err != nil {
		return fmt.Errorf("publish session.revoked event: %w", err)
	}

	p.logger.InfoContext(ctx, "published session.revoked event",
		slog.String("user_id", userID),
		slog.String("reason", reason),
	)
	return nil
}
