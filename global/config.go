package global

import (
	"context"
	"fmt"
	"os"
	"strings"

	"PRelay/service/broker"
	"PRelay/service/broker/kafka"
	"PRelay/service/broker/natsx"
	"PRelay/service/mgo"
	redis "PRelay/service/storage/redis"
	ids "PRelay/tools/ids"
)

func ConfigAll() error {
	ConfigIds()
	if err := ConfigRedis(); err != nil {
		return err
	}
	return ConfigMgo()
}

func ConfigIds() {
	ids.SetNodeID(100)
}

func GetJwtSecret() []byte {
	if s := os.Getenv("JWT_SECRET"); s != "" {
		return []byte(s)
	}
	return []byte("mN9b1f8zPq+W2xjX/45sKcVd0TfyoG+3Hp5Z8q9Rj1o=")
}

func ConfigRedis() error {
	cfg := redis.Config{
		Addr: env("REDIS_ADDR", "127.0.0.1:6379"), Password: os.Getenv("REDIS_PASSWORD"), DB: 0,
	}
	return redis.InitRedis(cfg)
}

func ConfigMgo() error {
	cfg := &mgo.Config{
		Uri:         env("MONGO_URI", "mongodb://localhost:27017"),
		Database:    env("MONGO_DB", "agentChat"),
		Username:    os.Getenv("MONGO_USER"),
		Password:    os.Getenv("MONGO_PASSWORD"),
		MaxPoolSize: 20,
	}
	return mgo.Init(context.Background(), cfg)
}

// NewBus builds the domain-event bus the gateway runs on.
func NewBus() (broker.Bus, error) {
	switch GatewayConfig.Broker {
	case "", "memory":
		return broker.NewMemoryBus(0), nil
	case "nats":
		return natsx.New(natsx.Config{
			Servers: splitEnv("NATS_SERVERS", GatewayConfig.NatsServers),
			Name:    GatewayConfig.GatewayID,
		})
	case "kafka":
		return kafka.New(kafka.Config{
			Brokers: splitEnv("KAFKA_BROKERS", GatewayConfig.KafkaBrokers),
			GroupID: GatewayConfig.GatewayID,
		})
	}
	return nil, fmt.Errorf("unknown broker %q", GatewayConfig.Broker)
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func splitEnv(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		return strings.Split(v, ",")
	}
	return def
}
