package kafka

import (
	"context"
	"errors"
	"sync"

	"github.com/Shopify/sarama"
	"github.com/golang/glog"
)

// Config for the Kafka-backed bus. Subjects map 1:1 onto topics.
type Config struct {
	Brokers []string
	GroupID string
}

// Bus implements broker.Bus with a sync producer and one consumer group.
type Bus struct {
	cfg      Config
	client   sarama.Client
	producer sarama.SyncProducer

	mu       sync.Mutex
	handlers map[string]func([]byte)

	cancel   context.CancelFunc
	stopOnce sync.Once
}

func New(cfg Config) (*Bus, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers missing")
	}
	if cfg.GroupID == "" {
		cfg.GroupID = "prelay-gateway"
	}
	sc := sarama.NewConfig()
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Return.Successes = true
	sc.Consumer.Offsets.Initial = sarama.OffsetNewest

	client, err := sarama.NewClient(cfg.Brokers, sc)
	if err != nil {
		return nil, err
	}
	producer, err := sarama.NewSyncProducerFromClient(client)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return &Bus{
		cfg:      cfg,
		client:   client,
		producer: producer,
		handlers: make(map[string]func([]byte)),
	}, nil
}

func (b *Bus) Publish(_ context.Context, subject string, data []byte) error {
	_, _, err := b.producer.SendMessage(&sarama.ProducerMessage{
		Topic: subject,
		Value: sarama.ByteEncoder(data),
	})
	return err
}

// Subscribe registers a handler and (re)starts the consumer group over
// the registered topic set. Per-partition delivery is serial, which is
// enough because each subject here is a single-partition event feed.
func (b *Bus) Subscribe(subject string, h func(data []byte)) error {
	b.mu.Lock()
	b.handlers[subject] = h
	topics := make([]string, 0, len(b.handlers))
	for t := range b.handlers {
		topics = append(topics, t)
	}
	if b.cancel != nil {
		b.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	b.mu.Unlock()

	group, err := sarama.NewConsumerGroupFromClient(b.cfg.GroupID, b.client)
	if err != nil {
		return err
	}
	go func() {
		defer func() { _ = group.Close() }()
		for {
			if err := group.Consume(ctx, topics, &groupHandler{bus: b}); err != nil {
				glog.Infof("[kafka] consume error: %v", err)
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()
	return nil
}

func (b *Bus) Close() error {
	b.stopOnce.Do(func() {
		b.mu.Lock()
		if b.cancel != nil {
			b.cancel()
		}
		b.mu.Unlock()
		_ = b.producer.Close()
		_ = b.client.Close()
	})
	return nil
}

type groupHandler struct {
	bus *Bus
}

func (*groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (*groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (g *groupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		g.bus.mu.Lock()
		h := g.bus.handlers[msg.Topic]
		g.bus.mu.Unlock()
		if h != nil {
			h(msg.Value)
		}
		sess.MarkMessage(msg, "")
	}
	return nil
}
