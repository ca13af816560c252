// Package push fans completed candles and trade intents out to browser
// clients over websocket, bridging from the NATS subjects the pipeline
// publishes on.
package push

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/endevs/ZerodhaKiteCopy-sub001/internal/infrastructure"

	"github.com/gorilla/websocket"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Client struct {
	conn *websocket.Conn
	send chan []byte
}

// Gateway maintains one NATS subscription per subscribed topic and fans
// messages out to every websocket client on that topic. Topics are the
// pipeline's own subjects, e.g. "candles.5m.256265" or "intents.256265".
type Gateway struct {
	logger        *zap.Logger
	js            nats.JetStreamContext
	mu            sync.RWMutex
	clients       map[*Client]bool
	subscriptions map[string]map[*Client]bool
	natsSubs      map[string]*nats.Subscription
}

func NewGateway(js nats.JetStreamContext, logger *zap.Logger) *Gateway {
	return &Gateway{
		logger:        logger,
		js:            js,
		clients:       make(map[*Client]bool),
		subscriptions: make(map[string]map[*Client]bool),
		natsSubs:      make(map[string]*nats.Subscription),
	}
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Error("failed to upgrade websocket", zap.Error(err))
		return
	}

	client := &Client{
		conn: conn,
		send: make(chan []byte, 256),
	}

	g.mu.Lock()
	g.clients[client] = true
	g.mu.Unlock()
	infrastructure.WSConnections.Inc()

	go g.writePump(client)
	g.readPump(client)
}

func (g *Gateway) readPump(c *Client) {
	defer func() {
		g.dropClient(c)
		infrastructure.WSConnections.Dec()
		c.conn.Close()
	}()

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			break
		}

		var req struct {
			Action string `json:"action"` // "subscribe", "unsubscribe"
			Topic  string `json:"topic"`
		}
		if err := json.Unmarshal(message, &req); err != nil {
			continue
		}

		switch req.Action {
		case "subscribe":
			g.subscribe(c, req.Topic)
		case "unsubscribe":
			g.unsubscribe(c, req.Topic)
		}
	}
}

func (g *Gateway) writePump(c *Client) {
	defer c.conn.Close()
	for {
		message, ok := <-c.send
		if !ok {
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}

		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
}

func (g *Gateway) subscribe(c *Client, topic string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.subscriptions[topic] == nil {
		g.subscriptions[topic] = make(map[*Client]bool)
		if err := g.subscribeToNATS(topic); err != nil {
			g.logger.Error("failed to subscribe to NATS", zap.String("topic", topic), zap.Error(err))
		}
	}
	g.subscriptions[topic][c] = true
	g.logger.Info("client subscribed to topic", zap.String("topic", topic))
}

func (g *Gateway) unsubscribe(c *Client, topic string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.removeFromTopic(c, topic)
}

func (g *Gateway) dropClient(c *Client) {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.clients, c)
	for topic := range g.subscriptions {
		g.removeFromTopic(c, topic)
	}
}

// removeFromTopic must be called with g.mu held.
func (g *Gateway) removeFromTopic(c *Client, topic string) {
	clients, ok := g.subscriptions[topic]
	if !ok {
		return
	}
	delete(clients, c)
	if len(clients) > 0 {
		return
	}
	if sub, ok := g.natsSubs[topic]; ok {
		sub.Unsubscribe()
		delete(g.natsSubs, topic)
		g.logger.Info("unsubscribed from NATS as no clients left", zap.String("topic", topic))
	}
	delete(g.subscriptions, topic)
}

func (g *Gateway) subscribeToNATS(topic string) error {
	sub, err := g.js.Subscribe(topic, func(msg *nats.Msg) {
		g.mu.RLock()
		for c := range g.subscriptions[topic] {
			select {
			case c.send <- msg.Data:
			default:
				// Do not block, just drop if channel is full
			}
		}
		g.mu.RUnlock()
		msg.Ack()
	}, nats.ManualAck())

	if err != nil {
		return err
	}

	g.natsSubs[topic] = sub
	return nil
}
