package main

import (
	"context"
	"log"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"

	"github.com/example/socket-playground-demo/modules/auth"
	"github.com/example/socket-playground-demo/modules/broadcast"
	"github.com/example/socket-playground-demo/modules/chat"
	"github.com/example/socket-playground-demo/modules/counter"
	"github.com/example/socket-playground-demo/modules/gateway"
)

const shutdownTimeout = 30 * time.Second

func main() {
	log.Println("=== Socket Playground Demo - Realtime Rooms, Broadcasts & Shared Counter ===")

	// Create mono application
	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(shutdownTimeout),
		mono.WithLogLevel(mono.LogLevelInfo),
		mono.WithLogFormat(mono.LogFormatText),
	)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	// Create modules
	authModule := auth.NewModule()
	chatModule := chat.NewModule()
	counterModule := counter.NewModule()
	broadcastModule := broadcast.NewModule()
	gatewayModule := gateway.NewModule()

	// Inject the hub into the gateway module
	// (This is done manually because the hub is not exposed via ServiceContainer)
	gatewayModule.SetHub(broadcastModule.GetHub())

	// Register modules with the framework.
	// Order: independent modules first, then modules with dependencies
	// - auth: handshake token validation (ServiceProviderModule)
	// - chat: message history + validation (services + event emitter)
	// - counter: shared counter state (services + event emitter)
	// - broadcast: WebSocket hub + event consumer for fan-out
	// - gateway: Fiber HTTP/WebSocket server (depends on auth, chat, counter)
	app.Register(authModule)
	app.Register(chatModule)
	app.Register(counterModule)
	app.Register(broadcastModule)
	app.Register(gatewayModule)

	// Start application
	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	printStartupInfo()

	// Graceful shutdown
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				log.Println("Graceful shutdown initiated...")
				return app.Stop(ctx)
			},
		},
	)

	exitCode := <-wait
	log.Printf("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
}

func printStartupInfo() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "3001"
	}

	log.Println("")
	log.Println("Application started successfully!")
	log.Println("")
	log.Println("Architecture:")
	log.Println("  - HTTP Framework: Fiber with WebSocket support")
	log.Println("  - Event Bus: NATS JetStream (internal pubsub)")
	log.Println("  - Auth: JWT handshake tokens (HS256 shared secret)")
	log.Println("")
	log.Println("Event-Driven Fan-out:")
	log.Println("  - ChatMessage events -> broadcast module -> room members")
	log.Println("  - CounterUpdated events -> broadcast module -> all clients")
	log.Println("  - UserConnected/UserDisconnected -> broadcast module -> presence sync")
	log.Println("")
	log.Printf("WebSocket Endpoint (ws://localhost:%s/ws?token=<jwt>):", port)
	log.Println("  Rooms:      join-room, leave-room, send-message, typing-start, typing-stop")
	log.Println("  Presence:   get-online-users")
	log.Println("  Broadcasts: broadcast-to-all, broadcast-to-user, broadcast-to-users, broadcast-to-room")
	log.Println("  Counter:    counter-increment, counter-decrement, counter-reset, counter-set, get-counter")
	log.Println("")
	log.Printf("REST Endpoint (http://localhost:%s):", port)
	log.Println("  GET    /health                 - Health check")
	log.Println("")
	log.Println("Press Ctrl+C to shutdown gracefully")
}
