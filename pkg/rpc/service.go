package rpc

import (
	"context"

	"google.golang.org/grpc"
)

// ColonyControl is the control-plane surface the master implements and
// colonyctl (or any other introspecting client) consumes.
type ColonyControl interface {
	ListWorkers(ctx context.Context, _ *Empty) (*ListWorkersReply, error)
	ListForks(ctx context.Context, _ *Empty) (*ListForksReply, error)
	RestartWorker(ctx context.Context, req *RestartWorkerRequest) (*Empty, error)
}

const serviceName = "colony.ColonyControl"

func listWorkersHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ColonyControl).ListWorkers(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: serviceName + "/ListWorkers"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ColonyControl).ListWorkers(ctx, req.(*Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func listForksHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ColonyControl).ListForks(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: serviceName + "/ListForks"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ColonyControl).ListForks(ctx, req.(*Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func restartWorkerHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(RestartWorkerRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ColonyControl).RestartWorker(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: serviceName + "/RestartWorker"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ColonyControl).RestartWorker(ctx, req.(*RestartWorkerRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// serviceDesc is the hand-written equivalent of what protoc-gen-go-grpc
// would emit for a service with these three unary methods.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*ColonyControl)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListWorkers", Handler: listWorkersHandler},
		{MethodName: "ListForks", Handler: listForksHandler},
		{MethodName: "RestartWorker", Handler: restartWorkerHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "colony/rpc",
}

// RegisterColonyControlServer installs impl as the handler for s.
func RegisterColonyControlServer(s *grpc.Server, impl ColonyControl) {
	s.RegisterService(&serviceDesc, impl)
}

// Client is a thin wrapper matching ColonyControl's signatures against a
// gRPC connection.
type Client struct {
	cc *grpc.ClientConn
}

// NewClient wraps an established connection. Use Dial to both connect
// and wrap in one step.
func NewClient(cc *grpc.ClientConn) *Client {
	return &Client{cc: cc}
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.cc.Close()
}

func (c *Client) ListWorkers(ctx context.Context) (*ListWorkersReply, error) {
	out := new(ListWorkersReply)
	err := c.cc.Invoke(ctx, serviceName+"/ListWorkers", new(Empty), out, grpc.CallContentSubtype(codecName))
	return out, err
}

func (c *Client) ListForks(ctx context.Context) (*ListForksReply, error) {
	out := new(ListForksReply)
	err := c.cc.Invoke(ctx, serviceName+"/ListForks", new(Empty), out, grpc.CallContentSubtype(codecName))
	return out, err
}

func (c *Client) RestartWorker(ctx context.Context, slot int) error {
	return c.cc.Invoke(ctx, serviceName+"/RestartWorker", &RestartWorkerRequest{Slot: slot}, new(Empty), grpc.CallContentSubtype(codecName))
}
