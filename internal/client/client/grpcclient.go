package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dmitrijs2005/varejo/internal/common"
	"github.com/dmitrijs2005/varejo/internal/permissions"
	pb "github.com/dmitrijs2005/varejo/internal/proto"
	"github.com/dmitrijs2005/varejo/internal/records"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// UserAgent identifies the CLI in the server's audit records.
const UserAgent = "varejo-cli"

type GRPCClient struct {
	endpointURL string
	timeout     time.Duration
	conn        *grpc.ClientConn
	client      pb.RetailServiceClient

	mu     sync.Mutex
	tokens Tokens

	// refreshMu serializes token refreshes.
	refreshMu sync.Mutex
}

var _ Client = (*GRPCClient)(nil)

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Delete(common.AccessTokenHeaderName)
	md.Set(common.AccessTokenHeaderName, token)

	return metadata.NewOutgoingContext(ctx, md)
}

func isTokenExpired(err error) bool {
	st, ok := status.FromError(err)
	return ok && st.Code() == codes.Unauthenticated && st.Message() == common.ErrTokenExpired.Error()
}

func (s *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply any,
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {

	used := s.Tokens().AccessToken
	err := invoker(withAccessToken(ctx, used), method, req, reply, cc, opts...)

	if err == nil || !isTokenExpired(err) {
		return err
	}

	if s.Tokens().RefreshToken == "" {
		return err
	}

	if refreshErr := s.refreshIfStale(ctx, used); refreshErr != nil {
		return err
	}

	// TOKENS REFRESHED, creating context with new Access Token
	return invoker(withAccessToken(ctx, s.Tokens().AccessToken), method, req, reply, cc, opts...)
}

func (s *GRPCClient) streamAccessTokenInterceptor(
	ctx context.Context,
	desc *grpc.StreamDesc,
	cc *grpc.ClientConn,
	method string,
	streamer grpc.Streamer,
	opts ...grpc.CallOption,
) (grpc.ClientStream, error) {
	return streamer(withAccessToken(ctx, s.Tokens().AccessToken), desc, cc, method, opts...)
}

// NewRetailClient connects to the backend at endpointURL. Unary calls get
// timeout as deadline unless the caller's context is shorter.
func NewRetailClient(endpointURL string, timeout time.Duration) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL, timeout: timeout}
	err := c.InitGRPCClient()
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *GRPCClient) InitGRPCClient() error {

	conn, err := grpc.NewClient(s.endpointURL,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUserAgent(UserAgent),
		grpc.WithUnaryInterceptor(s.accessTokenInterceptor),
		grpc.WithStreamInterceptor(s.streamAccessTokenInterceptor),
	)
	if err != nil {
		return err
	}
	s.conn = conn
	s.client = pb.NewRetailServiceClient(conn)
	return nil
}

func (s *GRPCClient) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// Tokens returns the current credential pair.
func (s *GRPCClient) Tokens() Tokens {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens
}

// SetTokens installs a pair restored from a saved session.
func (s *GRPCClient) SetTokens(t Tokens) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = t
}

func (s *GRPCClient) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *GRPCClient) call(ctx context.Context,
	fn func(context.Context, *structpb.Struct, ...grpc.CallOption) (*structpb.Struct, error),
	req map[string]any) (*structpb.Struct, error) {

	in, err := pb.ToStruct(req)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	out, err := fn(ctx, in)
	if err != nil {
		return nil, s.mapError(err)
	}
	return out, nil
}

func (s *GRPCClient) SignUp(ctx context.Context, email, password string) (string, error) {
	resp, err := s.call(ctx, s.client.SignUp, map[string]any{pb.FieldEmail: email, pb.FieldPassword: password})
	if err != nil {
		return "", err
	}
	return pb.String(resp, pb.FieldID), nil
}

// Login exchanges credentials for tokens and returns the actor id.
func (s *GRPCClient) Login(ctx context.Context, email, password string) (string, error) {
	resp, err := s.call(ctx, s.client.Login, map[string]any{pb.FieldEmail: email, pb.FieldPassword: password})
	if err != nil {
		return "", err
	}

	s.SetTokens(Tokens{
		AccessToken:  pb.String(resp, pb.FieldAccessToken),
		RefreshToken: pb.String(resp, pb.FieldRefreshToken),
	})
	return pb.String(resp, pb.FieldUserID), nil
}

// Refresh rotates the token pair.
func (s *GRPCClient) Refresh(ctx context.Context) error {
	current := s.Tokens()
	if current.RefreshToken == "" {
		return ErrUnauthorized
	}

	resp, err := s.call(ctx, s.client.Refresh, map[string]any{pb.FieldRefreshToken: current.RefreshToken})
	if err != nil {
		return err
	}

	s.SetTokens(Tokens{
		AccessToken:  pb.String(resp, pb.FieldAccessToken),
		RefreshToken: pb.String(resp, pb.FieldRefreshToken),
	})
	return nil
}

// refreshIfStale refreshes unless another caller already replaced the
// access token that failed.
func (s *GRPCClient) refreshIfStale(ctx context.Context, stale string) error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	if s.Tokens().AccessToken != stale {
		return nil
	}
	return s.Refresh(ctx)
}

func (s *GRPCClient) List(ctx context.Context, table string) ([]records.Record, error) {
	resp, err := s.call(ctx, s.client.List, map[string]any{pb.FieldTable: table})
	if err != nil {
		return nil, err
	}
	return pb.Records(resp, pb.FieldRows), nil
}

func (s *GRPCClient) Get(ctx context.Context, table, key string) (records.Record, error) {
	resp, err := s.call(ctx, s.client.Get, map[string]any{pb.FieldTable: table, pb.FieldKey: key})
	if err != nil {
		return nil, err
	}
	return pb.Record(resp, pb.FieldRow), nil
}

func (s *GRPCClient) Create(ctx context.Context, table string, values records.Record, file *File) (records.Record, error) {
	req := map[string]any{pb.FieldTable: table, pb.FieldValues: values}
	if file != nil {
		req[pb.FieldFile] = pb.EncodeFile(file.Name, file.ContentType, file.Data)
	}

	resp, err := s.call(ctx, s.client.Create, req)
	if err != nil {
		return nil, err
	}
	return pb.Record(resp, pb.FieldRow), nil
}

func (s *GRPCClient) Update(ctx context.Context, table, key string, values records.Record, u UpdateRequest) (records.Record, error) {
	req := map[string]any{pb.FieldTable: table, pb.FieldKey: key, pb.FieldValues: values}
	if u.File != nil {
		req[pb.FieldFile] = pb.EncodeFile(u.File.Name, u.File.ContentType, u.File.Data)
	}
	if u.ReplacePhotos {
		photos := u.Photos
		if photos == nil {
			photos = []string{}
		}
		req[pb.FieldPhotos] = photos
	}

	resp, err := s.call(ctx, s.client.Update, req)
	if err != nil {
		return nil, err
	}
	return pb.Record(resp, pb.FieldRow), nil
}

func (s *GRPCClient) Delete(ctx context.Context, table, key string) (bool, error) {
	resp, err := s.call(ctx, s.client.Delete, map[string]any{pb.FieldTable: table, pb.FieldKey: key})
	if err != nil {
		return false, err
	}
	return pb.Bool(resp, pb.FieldSuccess), nil
}

// GetPermissions loads the map of usuarioID; empty means the caller.
func (s *GRPCClient) GetPermissions(ctx context.Context, usuarioID string) (permissions.Map, error) {
	req := map[string]any{}
	if usuarioID != "" {
		req[pb.FieldUserID] = usuarioID
	}

	resp, err := s.call(ctx, s.client.GetPermissions, req)
	if err != nil {
		return permissions.Map{}, err
	}
	return decodePermissions(resp)
}

func (s *GRPCClient) UpdatePermissions(ctx context.Context, usuarioID string, m permissions.Map) (permissions.Map, error) {
	resp, err := s.call(ctx, s.client.UpdatePermissions, map[string]any{pb.FieldUserID: usuarioID, pb.FieldPermissions: m})
	if err != nil {
		return permissions.Map{}, err
	}
	return decodePermissions(resp)
}

func decodePermissions(resp *structpb.Struct) (permissions.Map, error) {
	var m permissions.Map
	if err := pb.FromStruct(resp.GetFields()[pb.FieldPermissions].GetStructValue(), &m); err != nil {
		return permissions.Map{}, fmt.Errorf("decode permissions: %w", err)
	}
	return m, nil
}

type permissionWatch struct {
	stream grpc.ServerStreamingClient[structpb.Struct]
	owner  *GRPCClient
}

func (w *permissionWatch) Recv() (PermissionEvent, error) {
	msg, err := w.stream.Recv()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return PermissionEvent{}, io.EOF
		}
		return PermissionEvent{}, w.owner.mapError(err)
	}
	return PermissionEvent{
		Type: pb.String(msg, pb.FieldEventType),
		New:  pb.Record(msg, pb.FieldNew),
		Old:  pb.Record(msg, pb.FieldOld),
	}, nil
}

// WatchPermissions opens the change stream of the caller's permission map.
// It lives until ctx is cancelled.
func (s *GRPCClient) WatchPermissions(ctx context.Context) (PermissionWatch, error) {
	stream, err := s.client.WatchPermissions(ctx, &structpb.Struct{})
	if err != nil {
		return nil, s.mapError(err)
	}
	return &permissionWatch{stream: stream, owner: s}, nil
}

// mapError turns a gRPC status into the error callers match on. Statuses
// with an ErrorInfo detail become *common.DBError or *common.UploadError.
func (s *GRPCClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("rpc error: %w", err)
	}

	for _, d := range st.Details() {
		info, ok := d.(*errdetails.ErrorInfo)
		if !ok || info.GetDomain() != pb.ErrorDomain {
			continue
		}
		meta := info.GetMetadata()
		switch info.GetReason() {
		case pb.ReasonDBError:
			return &common.DBError{
				Op:      meta["op"],
				Message: st.Message(),
				Details: meta["details"],
				Hint:    meta["hint"],
				Code:    meta["code"],
				Err:     err,
			}
		case pb.ReasonUploadFailed:
			return &common.UploadError{Bucket: meta["bucket"], Name: meta["name"], Err: errors.New(meta["cause"])}
		}
	}

	switch st.Code() {
	case codes.Unauthenticated:
		return ErrUnauthorized
	case codes.PermissionDenied:
		return common.ErrForbidden
	case codes.NotFound:
		return common.ErrorNotFound
	case codes.Unavailable, codes.DeadlineExceeded:
		return ErrUnavailable
	case codes.InvalidArgument:
		return fmt.Errorf("invalid request: %s", st.Message())
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}
