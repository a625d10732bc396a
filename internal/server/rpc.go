package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"

	"github.com/sourcegraph/jsonrpc2"

	"github.com/engramhq/engram-mcp/internal/logger"
	"github.com/engramhq/engram-mcp/internal/mcp"
)

var log = logger.ForComponent("server")

// RPCServer accepts unix-socket connections and serves each one as a
// JSON-RPC session backed by the shared MCP handler.
type RPCServer struct {
	listener *SocketListener
	server   *mcp.Server

	mu    sync.Mutex
	conns map[*jsonrpc2.Conn]struct{}
}

func NewRPCServer(listener *SocketListener, server *mcp.Server) *RPCServer {
	return &RPCServer{
		listener: listener,
		server:   server,
		conns:    make(map[*jsonrpc2.Conn]struct{}),
	}
}

// Serve runs the accept loop until the listener is closed or the
// context is cancelled.
func (s *RPCServer) Serve(ctx context.Context) error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}

		s.handleConn(ctx, conn)
	}
}

func (s *RPCServer) handleConn(ctx context.Context, conn net.Conn) {
	stream := jsonrpc2.NewBufferedStream(conn, jsonrpc2.PlainObjectCodec{})
	rpcConn := jsonrpc2.NewConn(ctx, stream, jsonrpc2.HandlerWithError(s.handle))

	s.mu.Lock()
	s.conns[rpcConn] = struct{}{}
	s.mu.Unlock()

	go func() {
		<-rpcConn.DisconnectNotify()
		s.mu.Lock()
		delete(s.conns, rpcConn)
		s.mu.Unlock()
	}()
}

func (s *RPCServer) handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) (interface{}, error) {
	mcpReq := &mcp.Request{
		JSONRPC: "2.0",
		Method:  req.Method,
	}
	if !req.Notif {
		mcpReq.ID = req.ID.String()
	}
	if req.Params != nil {
		var params map[string]interface{}
		if err := json.Unmarshal(*req.Params, &params); err != nil {
			return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeParseError, Message: "Parse error"}
		}
		mcpReq.Params = params
	}

	resp := s.server.HandleRequest(mcpReq)
	if resp.Error != nil {
		return nil, &jsonrpc2.Error{
			Code:    int64(resp.Error.Code),
			Message: resp.Error.Message,
		}
	}
	return resp.Result, nil
}

// Close shuts the listener and every live connection.
func (s *RPCServer) Close() error {
	err := s.listener.Close()

	s.mu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.conns = make(map[*jsonrpc2.Conn]struct{})
	s.mu.Unlock()

	return err
}
