package database

import (
	"context"
	"fmt"

	"github.com/segmentio/kafka-go"
)

// NewKafkaWriterWithRetry 確認 broker 可連線後建立 Kafka Writer
func NewKafkaWriterWithRetry(ctx context.Context, k KafkaConnection) (*kafka.Writer, error) {
	if len(k.Brokers) == 0 {
		return nil, fmt.Errorf("kafka: no brokers configured")
	}

	err := WithRetry(ctx, Connection{
		ConnectStr:    k.Brokers[0],
		RetryCount:    k.RetryCount,
		RetryInterval: k.RetryInterval,
	}, fmt.Sprintf("Kafka[%s]", k.Brokers[0]), func() error {
		conn, err := kafka.DialContext(ctx, "tcp", k.Brokers[0])
		if err != nil {
			return err
		}
		return conn.Close()
	})
	if err != nil {
		return nil, err
	}

	// messages with the same key land on the same partition
	return &kafka.Writer{
		Addr:         kafka.TCP(k.Brokers...),
		Topic:        k.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}, nil
}
