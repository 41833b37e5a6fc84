// Package proto declares the varejo.v1.RetailService gRPC contract. Every
// message is a google.protobuf.Struct, so rows travel with the same shape
// they have in Postgres (jsonb) and no generated message types are needed.
package proto

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "varejo.v1.RetailService"

// Method names.
const (
	MethodLogin             = "Login"
	MethodRefresh           = "Refresh"
	MethodSignUp            = "SignUp"
	MethodList              = "List"
	MethodGet               = "Get"
	MethodCreate            = "Create"
	MethodUpdate            = "Update"
	MethodDelete            = "Delete"
	MethodGetPermissions    = "GetPermissions"
	MethodUpdatePermissions = "UpdatePermissions"
	MethodWatchPermissions  = "WatchPermissions"
)

// Message field names.
const (
	FieldEmail        = "email"
	FieldPassword     = "senha"
	FieldAccessToken  = "access_token"
	FieldRefreshToken = "refresh_token"
	FieldUserID       = "usuario_id"
	FieldID           = "id"
	FieldTable        = "table"
	FieldKey          = "key"
	FieldKeyField     = "key_field"
	FieldValues       = "values"
	FieldRow          = "row"
	FieldRows         = "rows"
	FieldFile         = "file"
	FieldFileName     = "name"
	FieldContentType  = "content_type"
	FieldData         = "data"
	FieldPhotos       = "photos"
	FieldSuccess      = "success"
	FieldPermissions  = "permissions"
	FieldEventType    = "eventType"
	FieldNew          = "new"
	FieldOld          = "old"
)

// ErrorInfo domain and reasons attached to structured failures.
const (
	ErrorDomain        = "varejo"
	ReasonDBError      = "DB_ERROR"
	ReasonUploadFailed = "UPLOAD_FAILED"
)

// FullMethod returns the /service/method path of method.
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// RetailServiceServer is implemented by the server.
type RetailServiceServer interface {
	Login(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Refresh(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SignUp(context.Context, *structpb.Struct) (*structpb.Struct, error)
	List(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Get(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Create(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Update(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Delete(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetPermissions(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdatePermissions(context.Context, *structpb.Struct) (*structpb.Struct, error)
	WatchPermissions(*structpb.Struct, grpc.ServerStreamingServer[structpb.Struct]) error
}

// UnimplementedRetailServiceServer answers Unimplemented to every call.
type UnimplementedRetailServiceServer struct{}

func unimplemented(method string) error {
	return status.Errorf(codes.Unimplemented, "method %s not implemented", method)
}

func (UnimplementedRetailServiceServer) Login(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented(MethodLogin)
}
func (UnimplementedRetailServiceServer) Refresh(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented(MethodRefresh)
}
func (UnimplementedRetailServiceServer) SignUp(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented(MethodSignUp)
}
func (UnimplementedRetailServiceServer) List(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented(MethodList)
}
func (UnimplementedRetailServiceServer) Get(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented(MethodGet)
}
func (UnimplementedRetailServiceServer) Create(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented(MethodCreate)
}
func (UnimplementedRetailServiceServer) Update(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented(MethodUpdate)
}
func (UnimplementedRetailServiceServer) Delete(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented(MethodDelete)
}
func (UnimplementedRetailServiceServer) GetPermissions(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented(MethodGetPermissions)
}
func (UnimplementedRetailServiceServer) UpdatePermissions(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented(MethodUpdatePermissions)
}
func (UnimplementedRetailServiceServer) WatchPermissions(*structpb.Struct, grpc.ServerStreamingServer[structpb.Struct]) error {
	return unimplemented(MethodWatchPermissions)
}

type unaryCall func(RetailServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryMethod(name string, call unaryCall) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(RetailServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(RetailServiceServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func watchPermissionsHandler(srv any, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(RetailServiceServer).WatchPermissions(in, &grpc.GenericServerStream[structpb.Struct, structpb.Struct]{ServerStream: stream})
}

// RetailService_ServiceDesc describes the service for grpc.ServiceRegistrar.
var RetailService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RetailServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod(MethodLogin, RetailServiceServer.Login),
		unaryMethod(MethodRefresh, RetailServiceServer.Refresh),
		unaryMethod(MethodSignUp, RetailServiceServer.SignUp),
		unaryMethod(MethodList, RetailServiceServer.List),
		unaryMethod(MethodGet, RetailServiceServer.Get),
		unaryMethod(MethodCreate, RetailServiceServer.Create),
		unaryMethod(MethodUpdate, RetailServiceServer.Update),
		unaryMethod(MethodDelete, RetailServiceServer.Delete),
		unaryMethod(MethodGetPermissions, RetailServiceServer.GetPermissions),
		unaryMethod(MethodUpdatePermissions, RetailServiceServer.UpdatePermissions),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    MethodWatchPermissions,
			Handler:       watchPermissionsHandler,
			ServerStreams: true,
		},
	},
	Metadata: "varejo/v1/retail.proto",
}

// RegisterRetailServiceServer registers srv on s.
func RegisterRetailServiceServer(s grpc.ServiceRegistrar, srv RetailServiceServer) {
	s.RegisterService(&RetailService_ServiceDesc, srv)
}

// RetailServiceClient is the client API of the service.
type RetailServiceClient interface {
	Login(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Refresh(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	SignUp(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	List(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Get(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Create(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Update(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Delete(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	GetPermissions(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	UpdatePermissions(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	WatchPermissions(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (grpc.ServerStreamingClient[structpb.Struct], error)
}

type retailServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewRetailServiceClient(cc grpc.ClientConnInterface) RetailServiceClient {
	return &retailServiceClient{cc: cc}
}

func (c *retailServiceClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts []grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *retailServiceClient) Login(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodLogin, in, opts)
}

func (c *retailServiceClient) Refresh(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodRefresh, in, opts)
}

func (c *retailServiceClient) SignUp(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodSignUp, in, opts)
}

func (c *retailServiceClient) List(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodList, in, opts)
}

func (c *retailServiceClient) Get(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodGet, in, opts)
}

func (c *retailServiceClient) Create(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodCreate, in, opts)
}

func (c *retailServiceClient) Update(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodUpdate, in, opts)
}

func (c *retailServiceClient) Delete(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodDelete, in, opts)
}

func (c *retailServiceClient) GetPermissions(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodGetPermissions, in, opts)
}

func (c *retailServiceClient) UpdatePermissions(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodUpdatePermissions, in, opts)
}

func (c *retailServiceClient) WatchPermissions(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (grpc.ServerStreamingClient[structpb.Struct], error) {
	stream, err := c.cc.NewStream(ctx, &RetailService_ServiceDesc.Streams[0], FullMethod(MethodWatchPermissions), opts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[structpb.Struct, structpb.Struct]{ClientStream: stream}
	if err := x.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}
