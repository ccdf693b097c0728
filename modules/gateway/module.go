package gateway

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/go-monolith/mono"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/example/socket-playground-demo/events"
	"github.com/example/socket-playground-demo/modules/auth"
	"github.com/example/socket-playground-demo/modules/broadcast"
	"github.com/example/socket-playground-demo/modules/chat"
	"github.com/example/socket-playground-demo/modules/counter"
)

// userContextKey is the key used to store the authenticated identity in
// the Fiber context between the upgrade middleware and the WS handler.
const userContextKey = "user"

// GatewayModule is the Fiber HTTP/WebSocket server: it authenticates
// handshakes and pumps socket events into the rest of the application.
type GatewayModule struct {
	app          *fiber.App
	handlers     *Handlers
	hub          *broadcast.Hub
	authAdapter  auth.AuthPort
	chatAdapter  chat.ChatPort
	counterPort  counter.CounterPort
	eventBus     mono.EventBus
	port         string
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*GatewayModule)(nil)
	_ mono.DependentModule       = (*GatewayModule)(nil)
	_ mono.EventBusAwareModule   = (*GatewayModule)(nil)
	_ mono.EventEmitterModule    = (*GatewayModule)(nil)
	_ mono.HealthCheckableModule = (*GatewayModule)(nil)
)

// NewModule creates a new GatewayModule.
func NewModule() *GatewayModule {
	port := os.Getenv("PORT")
	if port == "" {
		port = "3001"
	}
	return &GatewayModule{
		port: port,
	}
}

// Name returns the module name.
func (m *GatewayModule) Name() string {
	return "gateway"
}

// Dependencies returns the list of module dependencies.
func (m *GatewayModule) Dependencies() []string {
	return []string{"auth", "chat", "counter"}
}

// SetDependencyServiceContainer receives service containers from dependencies.
func (m *GatewayModule) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	switch dependency {
	case "auth":
		m.authAdapter = auth.NewAuthAdapter(container)
	case "chat":
		m.chatAdapter = chat.NewChatAdapter(container)
	case "counter":
		m.counterPort = counter.NewCounterAdapter(container)
	}
}

// SetEventBus receives the EventBus from the framework.
func (m *GatewayModule) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
}

// EmitEvents declares the events this module can emit.
func (m *GatewayModule) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.UserConnectedV1.ToBase(),
		events.UserDisconnectedV1.ToBase(),
	}
}

// SetHub sets the broadcast hub (called from main.go).
func (m *GatewayModule) SetHub(hub *broadcast.Hub) {
	m.hub = hub
}

// Start initializes and starts the WebSocket server.
func (m *GatewayModule) Start(_ context.Context) error {
	if m.authAdapter == nil || m.chatAdapter == nil || m.counterPort == nil {
		return fmt.Errorf("gateway dependencies not set")
	}
	if m.hub == nil {
		return fmt.Errorf("broadcast hub dependency not set")
	}

	m.app = fiber.New(fiber.Config{
		AppName:               "Socket Playground Demo",
		DisableStartupMessage: true,
		ErrorHandler:          m.errorHandler,
	})

	m.app.Use(recover.New())
	m.app.Use(loggerMiddleware())

	allowedOrigins := os.Getenv("CORS_ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:5173"
	}
	m.app.Use(cors.New(cors.Config{
		AllowOrigins: allowedOrigins,
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Content-Type,Authorization",
	}))

	m.handlers = NewHandlers(m.hub, m.chatAdapter, m.counterPort, m.eventBus)
	m.registerRoutes()

	// Start server in goroutine with startup error detection
	errCh := make(chan error, 1)
	go func() {
		if err := m.app.Listen(":" + m.port); err != nil {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("gateway failed to start: %w", err)
	case <-time.After(100 * time.Millisecond):
		// Server started successfully
	}

	log.Printf("[gateway] WebSocket server started on :%s", m.port)
	return nil
}

// Stop gracefully shuts down the WebSocket server.
func (m *GatewayModule) Stop(ctx context.Context) error {
	if m.app != nil {
		if err := m.app.ShutdownWithContext(ctx); err != nil {
			return fmt.Errorf("failed to shutdown server: %w", err)
		}
	}
	log.Println("[gateway] WebSocket server stopped")
	return nil
}

// Health returns the health status.
func (m *GatewayModule) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: m.app != nil,
		Message: "operational",
		Details: map[string]any{
			"port":              m.port,
			"connected_clients": m.hub.ClientCount(),
		},
	}
}

// registerRoutes sets up the HTTP and WebSocket routes.
func (m *GatewayModule) registerRoutes() {
	m.app.Get("/health", m.handleHealthCheck)

	// WebSocket upgrade middleware: authenticate the handshake before
	// the connection is ever established.
	m.app.Use("/ws", m.authenticateUpgrade)
	m.app.Get("/ws", websocket.New(m.handlers.HandleWebSocket))
}

// authenticateUpgrade validates the handshake token. Failure rejects
// the connection before the upgrade; no state is mutated.
func (m *GatewayModule) authenticateUpgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	token := c.Query("token")
	if token == "" {
		authHeader := c.Get("Authorization")
		if strings.HasPrefix(authHeader, "Bearer ") {
			token = strings.TrimPrefix(authHeader, "Bearer ")
		}
	}
	if token == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":   "unauthorized",
			"message": "Authentication error: No token provided",
		})
	}

	user, err := m.authAdapter.ValidateToken(c.UserContext(), token)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":   "unauthorized",
			"message": "Authentication error",
		})
	}

	c.Locals(userContextKey, user)
	return c.Next()
}

// handleHealthCheck handles health check requests (GET /health).
func (m *GatewayModule) handleHealthCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":            "healthy",
		"service":           "socket-playground-demo",
		"connected_clients": m.hub.ClientCount(),
	})
}

// errorHandler handles errors globally.
func (m *GatewayModule) errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	log.Printf("[gateway] HTTP error: %d %s (%v)", code, message, err)

	return c.Status(code).JSON(fiber.Map{
		"error": message,
	})
}

// loggerMiddleware returns a Fiber middleware for request logging.
func loggerMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Skip logging for WebSocket upgrade requests
		if c.Get("Upgrade") == "websocket" {
			return c.Next()
		}
		err := c.Next()
		log.Printf("[gateway] %s %s %d", c.Method(), c.Path(), c.Response().StatusCode())
		return err
	}
}
