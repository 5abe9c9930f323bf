package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/xiaot623/gogo/modelrouter/internal/transport/ws"
)

var (
	chatAddr      string
	chatSessionID string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive chat client over WebSocket",
	Long: `Connects to a running server, opens or resumes a session and sends each
input line as a chat message. Lines starting with /route only classify.`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatAddr, "addr", "ws://localhost:8000/ws", "WebSocket server address")
	chatCmd.Flags().StringVar(&chatSessionID, "session", "", "session to resume")
}

// Client is a WebSocket chat client.
type Client struct {
	conn      *websocket.Conn
	sessionID string
	out       io.Writer
	done      chan struct{}
}

// NewClient connects to the server.
func NewClient(addr string, out io.Writer) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.Dial(addr, nil)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	return &Client{conn: conn, out: out, done: make(chan struct{})}, nil
}

// Close closes the client connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Hello binds the connection to sessionID, or to a new session, and waits for hello_ack.
func (c *Client) Hello(sessionID string) error {
	msg := ws.HelloMessage{
		BaseMessage: ws.BaseMessage{
			Type:      ws.TypeHello,
			Ts:        time.Now().UnixMilli(),
			SessionID: sessionID,
		},
		ClientMeta: map[string]string{"client": "modelrouter-cli"},
	}
	if err := c.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("write hello: %w", err)
	}

	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("read hello_ack: %w", err)
	}

	var base ws.BaseMessage
	if err := json.Unmarshal(data, &base); err != nil {
		return fmt.Errorf("unmarshal hello_ack: %w", err)
	}
	if base.Type == ws.TypeError {
		var errMsg ws.ErrorMessage
		json.Unmarshal(data, &errMsg)
		return fmt.Errorf("hello failed: %s - %s", errMsg.Code, errMsg.Message)
	}
	if base.Type != ws.TypeHelloAck {
		return fmt.Errorf("expected hello_ack, got: %s", base.Type)
	}

	c.sessionID = base.SessionID
	return nil
}

// SendChat sends one chat message.
func (c *Client) SendChat(content string) error {
	return c.conn.WriteJSON(ws.ChatMessage{
		BaseMessage: c.base(ws.TypeChat),
		Content:     content,
	})
}

// SendRoute asks for a routing decision only.
func (c *Client) SendRoute(query string) error {
	return c.conn.WriteJSON(ws.RouteMessage{
		BaseMessage: c.base(ws.TypeRoute),
		Query:       query,
	})
}

func (c *Client) base(msgType string) ws.BaseMessage {
	return ws.BaseMessage{
		Type:      msgType,
		Ts:        time.Now().UnixMilli(),
		SessionID: c.sessionID,
		RequestID: fmt.Sprintf("req_%d", time.Now().UnixNano()),
	}
}

// ReadMessages prints server messages until the connection closes.
func (c *Client) ReadMessages() {
	defer close(c.done)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				fmt.Fprintf(c.out, "\nconnection closed: %v\n", err)
			}
			return
		}
		c.print(data)
	}
}

func (c *Client) print(data []byte) {
	var base ws.BaseMessage
	if err := json.Unmarshal(data, &base); err != nil {
		fmt.Fprintf(c.out, "\nunreadable message: %v\n", err)
		return
	}

	switch base.Type {
	case ws.TypeDone:
		var msg ws.DoneMessage
		json.Unmarshal(data, &msg)
		meta := msg.RoutingMetadata
		fmt.Fprintf(c.out, "\n[%s via %s, %s, %.2f]\n%s\n",
			meta.RouteCategory, meta.ModelUsed, meta.RoutingMethod, meta.Confidence, msg.Response)
		if meta.CalculatorUsed && meta.Calculation != nil && meta.CalculationResult != nil {
			fmt.Fprintf(c.out, "(calculator: %s = %v)\n", *meta.Calculation, *meta.CalculationResult)
		}
	case ws.TypeRouteResult:
		var msg ws.RouteResultMessage
		json.Unmarshal(data, &msg)
		d := msg.Decision
		fmt.Fprintf(c.out, "\nroute: %s -> %s (%s, %.2f): %s\n", d.Category, d.ModelType, d.Method, d.Confidence, d.Reasoning)
	case ws.TypeError:
		var msg ws.ErrorMessage
		json.Unmarshal(data, &msg)
		fmt.Fprintf(c.out, "\nerror [%s]: %s\n", msg.Code, msg.Message)
	default:
		fmt.Fprintf(c.out, "\n[%s] %s\n", base.Type, string(data))
	}
}

func runChat(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Connecting to %s...\n", chatAddr)

	client, err := NewClient(chatAddr, out)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Hello(chatSessionID); err != nil {
		return err
	}

	fmt.Fprintf(out, "Session: %s\n", client.sessionID)
	fmt.Fprintln(out, "Type a message and press Enter. /route <query> classifies only, /quit exits.")

	go client.ReadMessages()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	defer signal.Stop(interrupt)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(cmd.InOrStdin())
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-interrupt:
			fmt.Fprintln(out, "\nInterrupted")
			return nil
		case <-client.done:
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			input := strings.TrimSpace(line)
			switch {
			case input == "":
				continue
			case input == "/quit":
				fmt.Fprintln(out, "Bye!")
				return nil
			case strings.HasPrefix(input, "/route "):
				err = client.SendRoute(strings.TrimSpace(strings.TrimPrefix(input, "/route ")))
			default:
				err = client.SendChat(input)
			}
			if err != nil {
				fmt.Fprintf(out, "send error: %v\n", err)
			}
		}
	}
}
