package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "plangraph.v1.DependencyService"

// DependencyServiceServer is the server API of plangraph.v1.DependencyService.
// Every method takes and returns a google.protobuf.Struct whose fields follow
// the JSON shapes of the HTTP API.
type DependencyServiceServer interface {
	CreateDependency(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetDependency(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateDependency(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteDependency(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListDependencies(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetEvents(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetStats(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetGraph(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Check(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Health(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type structMethod func(DependencyServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

// unaryHandler adapts a service method to grpc.MethodHandler.
func unaryHandler(name string, call structMethod) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(DependencyServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: "/" + ServiceName + "/" + name,
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(DependencyServiceServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ServiceDesc describes plangraph.v1.DependencyService for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DependencyServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler("CreateDependency", DependencyServiceServer.CreateDependency),
		unaryHandler("GetDependency", DependencyServiceServer.GetDependency),
		unaryHandler("UpdateDependency", DependencyServiceServer.UpdateDependency),
		unaryHandler("DeleteDependency", DependencyServiceServer.DeleteDependency),
		unaryHandler("ListDependencies", DependencyServiceServer.ListDependencies),
		unaryHandler("GetEvents", DependencyServiceServer.GetEvents),
		unaryHandler("GetStats", DependencyServiceServer.GetStats),
		unaryHandler("GetGraph", DependencyServiceServer.GetGraph),
		unaryHandler("Check", DependencyServiceServer.Check),
		unaryHandler("Health", DependencyServiceServer.Health),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "plangraph/v1/dependency.proto",
}

// NewGRPCServer creates a gRPC server with standard interceptors,
// registers the DependencyService, reflection, and returns the server ready to serve.
func NewGRPCServer(depServer *DependencyServer, authToken string) *grpc.Server {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			RecoveryInterceptor,
			RequestContextInterceptor,
			LoggingInterceptor,
			AuthInterceptor(authToken),
		),
	)

	srv.RegisterService(&ServiceDesc, depServer)
	reflection.Register(srv)

	return srv
}
