package client

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// WebsocketTransport 基于 gorilla/websocket 的 MCP 传输，子协议为 mcp
type WebsocketTransport struct {
	URL    string
	Header http.Header
	Dialer *websocket.Dialer
}

// Connect 建立 websocket 连接
func (t *WebsocketTransport) Connect(ctx context.Context) (sdk.Connection, error) {
	dialer := t.Dialer
	if dialer == nil {
		dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
			Subprotocols:     []string{"mcp"},
		}
	}
	conn, _, err := dialer.DialContext(ctx, t.URL, t.Header)
	if err != nil {
		return nil, err
	}
	wc := &wsConn{
		conn:   conn,
		frames: make(chan wsFrame, 16),
		closed: make(chan struct{}),
	}
	go wc.readLoop()
	return wc, nil
}

type wsFrame struct {
	data []byte
	err  error
}

type wsConn struct {
	conn   *websocket.Conn
	frames chan wsFrame

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    chan struct{}
}

// readLoop gorilla 连接只允许一个读者
func (c *wsConn) readLoop() {
	defer close(c.frames)
	for {
		_, data, err := c.conn.ReadMessage()
		select {
		case c.frames <- wsFrame{data: data, err: err}:
		case <-c.closed:
			return
		}
		if err != nil {
			return
		}
	}
}

func (c *wsConn) Read(ctx context.Context) (jsonrpc.Message, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.closed:
		return nil, io.EOF
	case f, ok := <-c.frames:
		if !ok {
			return nil, io.EOF
		}
		if f.err != nil {
			if websocket.IsCloseError(f.err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil, io.EOF
			}
			return nil, f.err
		}
		return jsonrpc.DecodeMessage(f.data)
	}
}

func (c *wsConn) Write(ctx context.Context, msg jsonrpc.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := jsonrpc.EncodeMessage(msg)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetWriteDeadline(deadline)
		defer c.conn.SetWriteDeadline(time.Time{})
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	return err
}

func (c *wsConn) SessionID() string { return "" }
