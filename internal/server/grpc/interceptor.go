package grpc

import (
	"context"
	"errors"
	"net"

	"github.com/dmitrijs2005/varejo/internal/common"
	pb "github.com/dmitrijs2005/varejo/internal/proto"
	"github.com/dmitrijs2005/varejo/internal/session"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

// publicMethods are served without an access token.
var publicMethods = map[string]bool{
	pb.FullMethod(pb.MethodLogin):   true,
	pb.FullMethod(pb.MethodRefresh): true,
	pb.FullMethod(pb.MethodSignUp):  true,
}

func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	ctx, err := s.withSession(ctx, info.FullMethod)
	if err != nil {
		return nil, err
	}
	return handler(ctx, req)
}

type sessionStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (w *sessionStream) Context() context.Context { return w.ctx }

func (s *GRPCServer) streamAccessTokenInterceptor(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	ctx, err := s.withSession(ss.Context(), info.FullMethod)
	if err != nil {
		return err
	}
	return handler(srv, &sessionStream{ServerStream: ss, ctx: ctx})
}

// withSession attaches the caller's session to ctx. Outside publicMethods
// the access token must resolve to an actor.
func (s *GRPCServer) withSession(ctx context.Context, method string) (context.Context, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	sess := session.Context{
		IP:        peerIP(ctx),
		UserAgent: firstValue(md, common.UserAgentHeaderName),
	}

	if publicMethods[method] {
		return session.WithSession(ctx, sess), nil
	}

	accessToken := firstValue(md, common.AccessTokenHeaderName)
	if len(accessToken) == 0 {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	actorID, err := s.auth.Authenticate(accessToken)
	if err != nil {
		if errors.Is(err, common.ErrTokenExpired) {
			return nil, status.Error(codes.Unauthenticated, common.ErrTokenExpired.Error())
		}
		return nil, status.Error(codes.Unauthenticated, common.ErrInvalidToken.Error())
	}

	sess.ActorID = actorID
	return session.WithSession(ctx, sess), nil
}

func firstValue(md metadata.MD, key string) string {
	values := md.Get(key)
	if len(values) > 0 {
		return values[0]
	}
	return ""
}

func peerIP(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return ""
	}
	addr := p.Addr.String()
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

// sessionFrom returns the session the interceptors attached.
func sessionFrom(ctx context.Context) session.Context {
	sess, _ := session.FromContext(ctx)
	return sess
}
