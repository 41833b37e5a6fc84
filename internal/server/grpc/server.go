// Package grpc exposes the record, auth and permission services over the
// varejo.v1.RetailService gRPC contract.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/varejo/internal/logging"
	"github.com/dmitrijs2005/varejo/internal/permissions"
	pb "github.com/dmitrijs2005/varejo/internal/proto"
	"github.com/dmitrijs2005/varejo/internal/records"
	"github.com/dmitrijs2005/varejo/internal/server/photos"
	"github.com/dmitrijs2005/varejo/internal/server/realtime"
	"github.com/dmitrijs2005/varejo/internal/server/services"
	"github.com/dmitrijs2005/varejo/internal/session"
	"google.golang.org/grpc"
)

// AuthAPI is implemented by services.AuthService.
type AuthAPI interface {
	SignUp(ctx context.Context, email, password string) (string, error)
	Login(ctx context.Context, email, password string) (*services.TokenPair, string, error)
	Refresh(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	Authenticate(accessToken string) (string, error)
}

// RecordAPI is implemented by services.RecordService.
type RecordAPI interface {
	List(ctx context.Context, sess session.Context, table string) ([]records.Record, error)
	Get(ctx context.Context, sess session.Context, table, key string) (records.Record, error)
	Create(ctx context.Context, sess session.Context, table string, values records.Record, file *photos.File) (records.Record, error)
	Update(ctx context.Context, sess session.Context, table, key string, values records.Record, opts services.UpdateOptions) (records.Record, error)
	Delete(ctx context.Context, sess session.Context, table, key, keyField string) (services.DeleteResult, error)
}

// PermissionAPI is implemented by services.PermissionService.
type PermissionAPI interface {
	Load(ctx context.Context, usuarioID string) (permissions.Map, error)
	Update(ctx context.Context, sess session.Context, usuarioID string, m permissions.Map) (permissions.Map, error)
	Watch(ctx context.Context, usuarioID string) (*realtime.Subscription, error)
}

type GRPCServer struct {
	pb.UnimplementedRetailServiceServer
	address     string
	auth        AuthAPI
	records     RecordAPI
	permissions PermissionAPI
	logger      logging.Logger
}

func NewGRPCServer(a string, l logging.Logger, auth AuthAPI, rs RecordAPI, ps PermissionAPI) *GRPCServer {
	return &GRPCServer{
		address:     a,
		logger:      l.With("module", "grpc_server"),
		auth:        auth,
		records:     rs,
		permissions: ps,
	}
}

func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(s.accessTokenInterceptor),
		grpc.ChainStreamInterceptor(s.streamAccessTokenInterceptor),
	)
	pb.RegisterRetailServiceServer(srv, s)
	return srv
}

// Run serves on the configured address until ctx is done.
func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis and stops gracefully when ctx is done.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(lis); err != nil {
		return err
	}

	return nil
}
