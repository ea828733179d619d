package rpc

import (
	"context"
	"fmt"
	"net"
	"os"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Server serves ColonyControl over a Unix socket.
type Server struct {
	grpc *grpc.Server
	lis  net.Listener
}

// Listen binds a Unix socket at path (removing any stale socket file
// left by a prior, uncleanly-terminated master) and registers impl.
func Listen(path string, impl ColonyControl) (*Server, error) {
	_ = os.Remove(path)
	lis, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("rpc: listen %s: %w", path, err)
	}
	s := grpc.NewServer()
	RegisterColonyControlServer(s, impl)
	return &Server{grpc: s, lis: lis}, nil
}

// Serve blocks accepting connections until Stop is called.
func (s *Server) Serve() error {
	return s.grpc.Serve(s.lis)
}

// Stop gracefully stops the server and removes the socket file.
func (s *Server) Stop() {
	s.grpc.GracefulStop()
}

// Dial connects to a ColonyControl server over a Unix socket at path.
func Dial(ctx context.Context, path string) (*Client, error) {
	cc, err := grpc.NewClient(
		"unix:"+path,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
	)
	if err != nil {
		return nil, fmt.Errorf("rpc: dial %s: %w", path, err)
	}
	return NewClient(cc), nil
}
