package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// SnapshotRefresher reloads the product snapshot.
type SnapshotRefresher interface {
	RefreshSnapshot(ctx context.Context) error
}

// RefreshFunc adapts a plain function to SnapshotRefresher.
type RefreshFunc func(ctx context.Context) error

func (f RefreshFunc) RefreshSnapshot(ctx context.Context) error {
	return f(ctx)
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// InventoryConsumer refreshes the snapshot whenever the inventory
// collaborator announces a change.
type InventoryConsumer struct {
	reader    messageReader
	refresher SnapshotRefresher
	logger    *zap.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

func NewInventoryConsumer(brokers []string, groupID, topic string, refresher SnapshotRefresher, logger *zap.Logger) *InventoryConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        groupID,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		MaxWait:        500 * time.Millisecond,
		StartOffset:    kafka.LastOffset,
		CommitInterval: 0,
	})
	return newInventoryConsumer(reader, refresher, logger)
}

func newInventoryConsumer(r messageReader, refresher SnapshotRefresher, logger *zap.Logger) *InventoryConsumer {
	ctx, cancel := context.WithCancel(context.Background())
	return &InventoryConsumer{
		reader:    r,
		refresher: refresher,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (c *InventoryConsumer) Start() {
	c.logger.Info("Kafka consumer started")
	c.wg.Add(1)
	go c.consume()
}

func (c *InventoryConsumer) consume() {
	defer c.wg.Done()

	for {
		msg, err := c.reader.FetchMessage(c.ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				c.logger.Info("Kafka consumer stopped")
				return
			}
			c.logger.Error("Error reading message", zap.Error(err))
			select {
			case <-c.ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		if err := c.processMessage(msg); err != nil {
			c.logger.Error("Error processing message",
				zap.Error(err),
				zap.String("topic", msg.Topic),
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset))
		}

		// a failed refresh keeps the last snapshot; the next event retries
		if err := c.reader.CommitMessages(c.ctx, msg); err != nil && !errors.Is(err, context.Canceled) {
			c.logger.Error("Error committing message", zap.Error(err))
		}
	}
}

func (c *InventoryConsumer) processMessage(msg kafka.Message) error {
	var event InventoryChangedEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		c.logger.Warn("Unrecognized inventory event, refreshing anyway",
			zap.Int64("offset", msg.Offset),
			zap.Error(err))
	}

	fields := []zap.Field{
		zap.String("event_type", event.EventType),
		zap.Int64("offset", msg.Offset),
	}
	if event.ProductID != nil {
		fields = append(fields, zap.Int64("product_id", *event.ProductID))
	}
	c.logger.Info("Inventory changed, refreshing snapshot", fields...)

	if err := c.refresher.RefreshSnapshot(c.ctx); err != nil {
		return fmt.Errorf("failed to refresh snapshot: %w", err)
	}
	return nil
}

// Stop cancels the read loop, waits for it and closes the reader.
func (c *InventoryConsumer) Stop() error {
	c.logger.Info("Stopping Kafka consumer")
	c.cancel()
	c.wg.Wait()
	return c.reader.Close()
}
