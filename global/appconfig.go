package global

type AppConfig struct {
	GatewayID string
	Port      int

	// Broker selects the domain-event transport: memory, nats or kafka.
	Broker       string
	NatsServers  []string
	KafkaBrokers []string

	AllowOpenRoomJoin bool
	MirrorPresence    bool
}

var GatewayConfig = AppConfig{
	GatewayID:    "gateway_01",
	Port:         8080,
	Broker:       "memory",
	NatsServers:  []string{"nats://127.0.0.1:4222"},
	KafkaBrokers: []string{"127.0.0.1:9092"},
}
