// Package wsrpc implements a minimal Solana JSON-RPC websocket client:
// account and signature subscriptions multiplexed over one connection,
// dispatched to per-subscription callbacks.
package wsrpc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Callback receives the raw "result"/"params.result" payload of a
// subscription notification.
type Callback func(data json.RawMessage)

type request struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type response struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`

	// Notification framing shares the same wire type as responses.
	Method string          `json:"method"`
	Params *notifyParams   `json:"params"`
}

type notifyParams struct {
	Subscription uint64          `json:"subscription"`
	Result       json.RawMessage `json:"result"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string { return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message) }

// Client is a single multiplexed connection to a Solana websocket RPC
// endpoint. It is safe for concurrent use.
type Client struct {
	url  string
	conn *websocket.Conn

	writeMu sync.Mutex
	nextID  atomic.Uint64

	pendingMu sync.Mutex
	pending   map[uint64]chan response

	subsMu sync.RWMutex
	subs   map[uint64]Callback

	onDisconnect func(error)

	closeOnce sync.Once
	closed    chan struct{}
}

// NewClient creates a Client bound to url. Call Connect before use.
func NewClient(url string) *Client {
	return &Client{
		url:     url,
		pending: make(map[uint64]chan response),
		subs:    make(map[uint64]Callback),
		closed:  make(chan struct{}),
	}
}

// SetCallbacks registers a hook invoked when the read loop exits due to
// a connection error.
func (c *Client) SetCallbacks(onDisconnect func(error)) {
	c.onDisconnect = onDisconnect
}

// Connect dials the websocket endpoint and starts the read loop.
func (c *Client) Connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.url, err)
	}
	c.conn = conn
	go c.readLoop()
	return nil
}

// Close terminates the connection. Idempotent.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		if c.conn != nil {
			err = c.conn.Close()
		}
	})
	return err
}

func (c *Client) readLoop() {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.closed:
				return
			default:
			}
			log.Warn().Err(err).Str("url", c.url).Msg("wsrpc: read loop terminated")
			if c.onDisconnect != nil {
				c.onDisconnect(err)
			}
			return
		}

		var msg response
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Warn().Err(err).Msg("wsrpc: failed to decode frame")
			continue
		}

		if msg.Params != nil {
			c.dispatchNotification(msg.Params)
			continue
		}
		c.dispatchResponse(msg)
	}
}

func (c *Client) dispatchNotification(params *notifyParams) {
	c.subsMu.RLock()
	cb, ok := c.subs[params.Subscription]
	c.subsMu.RUnlock()
	if ok {
		cb(params.Result)
	}
}

func (c *Client) dispatchResponse(msg response) {
	c.pendingMu.Lock()
	ch, ok := c.pending[msg.ID]
	if ok {
		delete(c.pending, msg.ID)
	}
	c.pendingMu.Unlock()
	if ok {
		ch <- msg
	}
}

func (c *Client) call(ctx context.Context, method string, params []interface{}) (json.RawMessage, error) {
	id := c.nextID.Add(1)
	ch := make(chan response, 1)

	c.pendingMu.Lock()
	c.pending[id] = ch
	c.pendingMu.Unlock()

	req := request{JSONRPC: "2.0", ID: id, Method: method, Params: params}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	c.writeMu.Lock()
	err = c.conn.WriteMessage(websocket.TextMessage, payload)
	c.writeMu.Unlock()
	if err != nil {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
		return nil, fmt.Errorf("write request: %w", err)
	}

	select {
	case resp := <-ch:
		if resp.Error != nil {
			return nil, resp.Error
		}
		return resp.Result, nil
	case <-ctx.Done():
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
		return nil, ctx.Err()
	}
}

// AccountSubscribe subscribes to account change notifications for
// address, invoking cb on each update. It returns the subscription ID
// needed to Unsubscribe.
func (c *Client) AccountSubscribe(address string, cb Callback) (uint64, error) {
	return c.subscribe("accountSubscribe", []interface{}{address, map[string]string{"encoding": "jsonParsed", "commitment": "confirmed"}}, cb)
}

// SignatureSubscribe subscribes to the confirmation status of
// signature, invoking cb exactly once when it is finalized.
func (c *Client) SignatureSubscribe(signature string, cb Callback) (uint64, error) {
	return c.subscribe("signatureSubscribe", []interface{}{signature, map[string]string{"commitment": "confirmed"}}, cb)
}

func (c *Client) subscribe(method string, params []interface{}, cb Callback) (uint64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result, err := c.call(ctx, method, params)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", method, err)
	}

	var subID uint64
	if err := json.Unmarshal(result, &subID); err != nil {
		return 0, fmt.Errorf("%s: unexpected subscription id payload: %w", method, err)
	}

	c.subsMu.Lock()
	c.subs[subID] = cb
	c.subsMu.Unlock()

	return subID, nil
}

// Unsubscribe cancels a subscription previously created by
// AccountSubscribe or SignatureSubscribe. method is the corresponding
// "*Unsubscribe" RPC method name.
func (c *Client) Unsubscribe(method string, subID uint64) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := c.call(ctx, method, []interface{}{subID})

	c.subsMu.Lock()
	delete(c.subs, subID)
	c.subsMu.Unlock()

	return err
}
