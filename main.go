package main

import (
	"fmt"
	"os"

	"PRelay/global"
	"PRelay/logger"
	"PRelay/module/chat/message"
	chatservice "PRelay/module/chat/service"
	chat "PRelay/service/chat"
	"PRelay/service/chat/handlers"
	"PRelay/tools/security"

	"github.com/gin-gonic/gin"
)

func main() {
	if b := os.Getenv("BROKER"); b != "" {
		global.GatewayConfig.Broker = b
	}

	if err := global.ConfigAll(); err != nil {
		logger.Errorf("[main] bootstrap: %v", err)
		os.Exit(1)
	}

	bus, err := global.NewBus()
	if err != nil {
		logger.Errorf("[main] broker: %v", err)
		os.Exit(1)
	}
	defer func() { _ = bus.Close() }()

	store := message.NewStore()
	jwtOpts := security.DefaultOptions(global.GetJwtSecret())

	srv := chat.NewServer(chat.Config{
		GatewayID:         global.GatewayConfig.GatewayID,
		AllowOpenRoomJoin: global.GatewayConfig.AllowOpenRoomJoin,
		MirrorPresence:    global.GatewayConfig.MirrorPresence,
		VerifyToken: func(token string) (*security.Identity, error) {
			return security.Verify(jwtOpts, token)
		},
	}, store)
	defer srv.Close()

	if err := handlers.RegisterAll(srv); err != nil {
		logger.Errorf("[main] handlers: %v", err)
		os.Exit(1)
	}
	if err := srv.AttachBus(bus); err != nil {
		logger.Errorf("[main] attach bus: %v", err)
		os.Exit(1)
	}

	r := gin.Default()
	r.GET("/ws", srv.HandleWS)
	chatservice.NewChatAPI(store, bus).RegisterRoutes(r, jwtOpts)

	addr := fmt.Sprintf(":%d", global.GatewayConfig.Port)
	logger.Infof("[main] gateway %s listening on %s broker=%s",
		global.GatewayConfig.GatewayID, addr, global.GatewayConfig.Broker)
	if err := r.Run(addr); err != nil {
		logger.Errorf("[main] serve: %v", err)
		os.Exit(1)
	}
}
