package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cloud-wave-best-zizon/pharmacy-pos/internal/domain"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	publishTimeout        = 10 * time.Second
	saleRecordedEventType = "pos.sale_recorded"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaProducer struct {
	writer messageWriter
	logger *zap.Logger
	now    func() time.Time
}

func NewKafkaProducer(brokers []string, topic string, logger *zap.Logger) *KafkaProducer {
	if topic == "" {
		topic = DefaultSalesTopic
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}

	return newKafkaProducer(writer, logger)
}

func newKafkaProducer(w messageWriter, logger *zap.Logger) *KafkaProducer {
	return &KafkaProducer{
		writer: w,
		logger: logger,
		now:    time.Now,
	}
}

// PublishSaleRecorded publishes the committed lines of a sale, keyed by sale id.
func (p *KafkaProducer) PublishSaleRecorded(ctx context.Context, sale *domain.Sale) error {
	event := newSaleRecordedEvent(sale, uuid.NewString(), p.now().UTC())
	if len(event.Lines) == 0 {
		p.logger.Debug("Sale has no committed lines, skipping event", zap.String("sale_id", sale.SaleID))
		return nil
	}

	eventBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(sale.SaleID),
		Value: eventBytes,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(saleRecordedEventType)},
			{Key: "event_id", Value: []byte(event.EventID)},
		},
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish message",
			zap.String("event_id", event.EventID),
			zap.String("sale_id", sale.SaleID),
			zap.Error(err))
		return fmt.Errorf("failed to publish sale event: %w", err)
	}

	p.logger.Info("Event published successfully",
		zap.String("event_id", event.EventID),
		zap.String("sale_id", sale.SaleID),
		zap.Int("lines_count", len(event.Lines)))

	return nil
}

func (p *KafkaProducer) Close() error {
	if p.writer != nil {
		return p.writer.Close()
	}
	return nil
}

func newSaleRecordedEvent(sale *domain.Sale, eventID string, ts time.Time) SaleRecordedEvent {
	event := SaleRecordedEvent{
		EventType:      saleRecordedEventType,
		EventID:        eventID,
		SaleID:         sale.SaleID,
		SellerID:       sale.SellerID,
		PatientID:      sale.PatientID,
		Total:          sale.Total,
		FullyCommitted: sale.FullyCommitted,
		Lines:          make([]DispensedLine, 0, len(sale.Lines)),
		Timestamp:      ts,
	}
	for _, l := range sale.Lines {
		if l.Status != domain.LineCommitted {
			continue
		}
		event.Lines = append(event.Lines, DispensedLine{
			ProductID:      l.ProductID,
			Quantity:       l.Quantity,
			DispensationID: l.DispensationID,
		})
	}
	return event
}
