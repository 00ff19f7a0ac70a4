package rabbitmq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/PiyushRaj472100/Chemical-Equipment-Analyzer/internal/domain/entity"
	"github.com/PiyushRaj472100/Chemical-Equipment-Analyzer/pkg/utils"
)

type IngestedHandler interface {
	HandleIngested(ctx context.Context, msg entity.DatasetIngestedMessage) error
}

// ReportConsumer feeds dataset.ingested events to a handler, one at a time.
type ReportConsumer struct {
	channel     *amqp.Channel
	queue       string
	handler     IngestedHandler
	prefetchCnt int
	log         *logrus.Entry
}

func NewReportConsumer(conn *amqp.Connection, exchange, routingKey, queue string, h IngestedHandler) (*ReportConsumer, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}

	consumer := &ReportConsumer{
		channel:     ch,
		queue:       queue,
		handler:     h,
		prefetchCnt: 1,
		log:         logrus.WithField("component", "report-consumer"),
	}

	if err := declareExchange(ch, exchange); err != nil {
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	_, err = ch.QueueDeclare(
		queue,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}

	if err := ch.QueueBind(
		queue,
		routingKey,
		exchange,
		false,
		nil,
	); err != nil {
		return nil, fmt.Errorf("bind queue %s: %w", queue, err)
	}

	if err := ch.Qos(consumer.prefetchCnt, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}

	return consumer, nil
}

func (c *ReportConsumer) Start(ctx context.Context) error {
	msgs, err := c.channel.Consume(
		c.queue,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.queue, err)
	}

	for {
		select {
		case <-ctx.Done():
			c.log.Info("shutting down")
			return nil
		case msg, ok := <-msgs:
			if !ok {
				c.log.Warn("delivery channel closed")
				return nil
			}
			c.handle(ctx, msg)
		}
	}
}

func (c *ReportConsumer) handle(ctx context.Context, msg amqp.Delivery) {
	event, err := utils.FromRawMessage[entity.DatasetIngestedMessage](msg.Body)
	if err != nil {
		c.log.WithError(err).Error("dropping undecodable message")
		_ = msg.Nack(false, false)
		return
	}

	log := c.log.WithFields(logrus.Fields{"dataset_id": event.DatasetID, "owner": event.Owner})
	if err := c.handler.HandleIngested(ctx, event); err != nil {
		log.WithError(err).Error("failed to handle dataset event")
		_ = msg.Nack(false, !msg.Redelivered)
		return
	}
	_ = msg.Ack(false)
	log.Debug("dataset event handled")
}

func (c *ReportConsumer) Close() error {
	return c.channel.Close()
}
