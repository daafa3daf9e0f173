package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name
const ServiceName = "jobscout.v1.DiscoveryService"

const (
	discoverMethod        = "/" + ServiceName + "/Discover"
	submitDiscoveryMethod = "/" + ServiceName + "/SubmitDiscovery"
	getRunMethod          = "/" + ServiceName + "/GetRun"
)

// DiscoveryServiceServer is the server API for the discovery service. Messages
// are JSON-shaped structs mirroring the HTTP bodies.
type DiscoveryServiceServer interface {
	// Discover runs synchronously and returns the AggregationReport
	Discover(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// SubmitDiscovery queues a run and returns {runId, status}
	SubmitDiscovery(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// GetRun takes {runId} and returns the run status
	GetRun(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

func unaryHandler(method string, call func(DiscoveryServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) func(interface{}, context.Context, func(interface{}) error, grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(DiscoveryServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(DiscoveryServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// DiscoveryServiceDesc describes the service for grpc.Server.RegisterService
var DiscoveryServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DiscoveryServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Discover",
			Handler:    unaryHandler(discoverMethod, DiscoveryServiceServer.Discover),
		},
		{
			MethodName: "SubmitDiscovery",
			Handler:    unaryHandler(submitDiscoveryMethod, DiscoveryServiceServer.SubmitDiscovery),
		},
		{
			MethodName: "GetRun",
			Handler:    unaryHandler(getRunMethod, DiscoveryServiceServer.GetRun),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "jobscout/v1/discovery.proto",
}

// RegisterDiscoveryServiceServer registers srv on s
func RegisterDiscoveryServiceServer(s grpc.ServiceRegistrar, srv DiscoveryServiceServer) {
	s.RegisterService(&DiscoveryServiceDesc, srv)
}

// DiscoveryServiceClient is the client API for the discovery service
type DiscoveryServiceClient interface {
	Discover(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	SubmitDiscovery(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	GetRun(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type discoveryServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewDiscoveryServiceClient(cc grpc.ClientConnInterface) DiscoveryServiceClient {
	return &discoveryServiceClient{cc: cc}
}

func (c *discoveryServiceClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts []grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *discoveryServiceClient) Discover(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, discoverMethod, in, opts)
}

func (c *discoveryServiceClient) SubmitDiscovery(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, submitDiscoveryMethod, in, opts)
}

func (c *discoveryServiceClient) GetRun(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, getRunMethod, in, opts)
}
