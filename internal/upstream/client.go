package upstream

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// DefaultURL is the realtime speech endpoint used when no override is
// configured.
const DefaultURL = "wss://api.openai.com/v1/realtime?model=gpt-4o-realtime-preview-2024-12-17"

// Client is a streaming connection to the realtime speech API. Raw frames
// arrive on Frames; the caller owns their interpretation.
type Client struct {
	conn      *websocket.Conn
	frames    chan []byte
	errors    chan error
	done      chan struct{}
	closeOnce sync.Once
	mu        sync.Mutex
	wg        sync.WaitGroup // wait for readLoop to finish
}

// Dial connects to the realtime API at url (DefaultURL when empty),
// authenticating with the given API key.
func Dial(ctx context.Context, url, apiKey string) (*Client, error) {
	if url == "" {
		url = DefaultURL
	}

	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+apiKey)
	headers.Set("OpenAI-Beta", "realtime=v1")

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, headers)
	if err != nil {
		return nil, fmt.Errorf("failed to connect upstream: %w", err)
	}

	client := &Client{
		conn:   conn,
		frames: make(chan []byte, 100),
		errors: make(chan error, 10),
		done:   make(chan struct{}),
	}

	client.wg.Add(1)
	go client.readLoop()

	return client, nil
}

// Send writes one JSON frame upstream. Safe for concurrent use.
func (c *Client) Send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.done:
		return fmt.Errorf("client is closed")
	default:
	}

	return c.conn.WriteJSON(v)
}

// Frames returns the channel of raw upstream frames. Closed when the
// connection ends.
func (c *Client) Frames() <-chan []byte {
	return c.frames
}

// Errors returns the channel for transport errors.
func (c *Client) Errors() <-chan error {
	return c.errors
}

// Close tears the connection down. Safe to call more than once.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.conn.Close()

		// wait for readLoop before closing channels
		c.wg.Wait()
		close(c.frames)
		close(c.errors)
	})
	return err
}

func (c *Client) readLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.done:
			return
		default:
		}

		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return
			case c.errors <- fmt.Errorf("read error: %w", err):
			default:
			}
			return
		}

		select {
		case <-c.done:
			return
		case c.frames <- msg:
		}
	}
}
