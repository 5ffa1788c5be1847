package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"connectrpc.com/connect"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Client calls the disassembly service over the Connect protocol.
type Client struct {
	dump *connect.Client[DumpRequest, DumpResponse]
	list *connect.Client[ListRequest, ListResponse]
}

// NewClient creates a Client for the service at baseURL, such as
// "http://localhost:4567".
func NewClient(baseURL string, opts ...connect.ClientOption) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(cborCodec{})}, opts...)
	return &Client{
		dump: connect.NewClient[DumpRequest, DumpResponse](http.DefaultClient, baseURL+DumpProcedure, opts...),
		list: connect.NewClient[ListRequest, ListResponse](http.DefaultClient, baseURL+ListProcedure, opts...),
	}
}

// Dump disassembles on the server.
func (c *Client) Dump(ctx context.Context, req *DumpRequest) (*DumpResponse, error) {
	resp, err := c.dump.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

// List lists the server's stored units.
func (c *Client) List(ctx context.Context, req *ListRequest) (*ListResponse, error) {
	resp, err := c.list.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

// GRPCClient calls the disassembly service over the gRPC protocol.
type GRPCClient struct {
	conn *grpc.ClientConn
}

// DialGRPC connects to the service at target ("host:port") without TLS.
func DialGRPC(target string) (*GRPCClient, error) {
	conn, err := grpc.NewClient(target,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(cborCodec{})),
	)
	if err != nil {
		return nil, fmt.Errorf("server: dial %s: %w", target, err)
	}
	return &GRPCClient{conn: conn}, nil
}

// Dump disassembles on the server.
func (c *GRPCClient) Dump(ctx context.Context, req *DumpRequest) (*DumpResponse, error) {
	var resp DumpResponse
	if err := c.conn.Invoke(ctx, DumpProcedure, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// List lists the server's stored units.
func (c *GRPCClient) List(ctx context.Context, req *ListRequest) (*ListResponse, error) {
	var resp ListResponse
	if err := c.conn.Invoke(ctx, ListProcedure, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Close closes the connection.
func (c *GRPCClient) Close() error {
	return c.conn.Close()
}
