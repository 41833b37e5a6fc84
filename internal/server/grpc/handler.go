package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/varejo/internal/common"
	"github.com/dmitrijs2005/varejo/internal/permissions"
	pb "github.com/dmitrijs2005/varejo/internal/proto"
	"github.com/dmitrijs2005/varejo/internal/records"
	"github.com/dmitrijs2005/varejo/internal/server/photos"
	"github.com/dmitrijs2005/varejo/internal/server/services"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

func (s *GRPCServer) Login(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {

	tokens, actorID, err := s.auth.Login(ctx, pb.String(req, pb.FieldEmail), pb.String(req, pb.FieldPassword))

	if err != nil {
		return nil, s.toStatus(ctx, "login", err)
	}

	s.logger.Info(ctx, "Logged in", "usuario_id", actorID)
	return reply(map[string]any{
		pb.FieldAccessToken:  tokens.AccessToken,
		pb.FieldRefreshToken: tokens.RefreshToken,
		pb.FieldUserID:       actorID,
	})
}

func (s *GRPCServer) Refresh(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {

	tokens, err := s.auth.Refresh(ctx, pb.String(req, pb.FieldRefreshToken))

	if err != nil {
		return nil, s.toStatus(ctx, "refresh", err)
	}

	return reply(map[string]any{
		pb.FieldAccessToken:  tokens.AccessToken,
		pb.FieldRefreshToken: tokens.RefreshToken,
	})
}

func (s *GRPCServer) SignUp(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {

	id, err := s.auth.SignUp(ctx, pb.String(req, pb.FieldEmail), pb.String(req, pb.FieldPassword))

	if err != nil {
		return nil, s.toStatus(ctx, "sign up", err)
	}

	return reply(map[string]any{pb.FieldID: id})
}

func (s *GRPCServer) List(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {

	rows, err := s.records.List(ctx, sessionFrom(ctx), pb.String(req, pb.FieldTable))

	if err != nil {
		return nil, s.toStatus(ctx, "list", err)
	}

	return reply(map[string]any{pb.FieldRows: rows})
}

func (s *GRPCServer) Get(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {

	row, err := s.records.Get(ctx, sessionFrom(ctx), pb.String(req, pb.FieldTable), pb.String(req, pb.FieldKey))

	if err != nil {
		return nil, s.toStatus(ctx, "get", err)
	}

	return reply(map[string]any{pb.FieldRow: row})
}

func (s *GRPCServer) Create(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {

	file, err := decodeFile(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	row, err := s.records.Create(ctx, sessionFrom(ctx), pb.String(req, pb.FieldTable), values(req), file)

	if err != nil {
		return nil, s.toStatus(ctx, "create", err)
	}

	return reply(map[string]any{pb.FieldRow: row})
}

func (s *GRPCServer) Update(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {

	file, err := decodeFile(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	opts := services.UpdateOptions{File: file}
	if v := req.GetFields()[pb.FieldPhotos]; v.GetListValue() != nil {
		urls, err := records.ToStringSlice(v.AsInterface())
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, "photos: "+err.Error())
		}
		opts.Photos = urls
	}

	row, err := s.records.Update(ctx, sessionFrom(ctx), pb.String(req, pb.FieldTable), pb.String(req, pb.FieldKey), values(req), opts)

	if err != nil {
		return nil, s.toStatus(ctx, "update", err)
	}

	return reply(map[string]any{pb.FieldRow: row})
}

func (s *GRPCServer) Delete(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {

	res, err := s.records.Delete(ctx, sessionFrom(ctx), pb.String(req, pb.FieldTable), pb.String(req, pb.FieldKey), pb.String(req, pb.FieldKeyField))

	if err != nil {
		return nil, s.toStatus(ctx, "delete", err)
	}

	return reply(map[string]any{pb.FieldSuccess: res.Success, pb.FieldID: res.ID})
}

// GetPermissions returns the map of usuario_id, or of the caller when the
// request names nobody.
func (s *GRPCServer) GetPermissions(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {

	m, err := s.permissions.Load(ctx, targetUser(ctx, req))

	if err != nil {
		return nil, s.toStatus(ctx, "get permissions", err)
	}

	return reply(map[string]any{pb.FieldPermissions: m})
}

func (s *GRPCServer) UpdatePermissions(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {

	obj := req.GetFields()[pb.FieldPermissions].GetStructValue()
	if obj == nil {
		return nil, status.Error(codes.InvalidArgument, "permissions are required")
	}
	var m permissions.Map
	if err := pb.FromStruct(obj, &m); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	updated, err := s.permissions.Update(ctx, sessionFrom(ctx), targetUser(ctx, req), m)

	if err != nil {
		return nil, s.toStatus(ctx, "update permissions", err)
	}

	return reply(map[string]any{pb.FieldPermissions: updated})
}

// WatchPermissions streams every change of the caller's permission map
// until the client goes away.
func (s *GRPCServer) WatchPermissions(req *structpb.Struct, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	ctx := stream.Context()
	actorID := sessionFrom(ctx).ActorID

	sub, err := s.permissions.Watch(ctx, actorID)
	if err != nil {
		return s.toStatus(ctx, "watch permissions", err)
	}
	defer sub.Close()

	s.logger.Debug(ctx, "permission watch started", "usuario_id", actorID)
	for {
		select {
		case <-ctx.Done():
			s.logger.Debug(ctx, "permission watch ended", "usuario_id", actorID)
			return nil
		case e, ok := <-sub.Events():
			if !ok {
				return status.Error(codes.Unavailable, "subscription closed")
			}
			msg, err := pb.ToStruct(map[string]any{
				pb.FieldEventType: e.Type,
				pb.FieldNew:       e.New,
				pb.FieldOld:       e.Old,
			})
			if err != nil {
				return status.Error(codes.Internal, err.Error())
			}
			if err := stream.Send(msg); err != nil {
				return err
			}
		}
	}
}

func targetUser(ctx context.Context, req *structpb.Struct) string {
	if id := pb.String(req, pb.FieldUserID); id != "" {
		return id
	}
	return sessionFrom(ctx).ActorID
}

func values(req *structpb.Struct) records.Record {
	if v := pb.Record(req, pb.FieldValues); v != nil {
		return v
	}
	return records.Record{}
}

func decodeFile(req *structpb.Struct) (*photos.File, error) {
	f, data, err := pb.DecodeFile(req)
	if err != nil || f == nil {
		return nil, err
	}
	return &photos.File{Name: f.Name, ContentType: f.ContentType, Data: data}, nil
}

func reply(m map[string]any) (*structpb.Struct, error) {
	out, err := pb.ToStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// toStatus maps service errors to gRPC statuses. Database and upload
// failures carry an ErrorInfo detail with their structured fields.
func (s *GRPCServer) toStatus(ctx context.Context, op string, err error) error {
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, common.ErrorNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, common.ErrorUnauthorized),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired),
		errors.Is(err, common.ErrRefreshTokenExpired):
		return status.Error(codes.Unauthenticated, err.Error())
	case errors.Is(err, common.ErrMissingCredentials),
		errors.Is(err, common.ErrInvalidIdentifier),
		errors.Is(err, common.ErrInvalidValue):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, common.ErrForbidden):
		return status.Error(codes.PermissionDenied, err.Error())
	}

	var uploadErr *common.UploadError
	if errors.As(err, &uploadErr) {
		s.logger.Warn(ctx, "upload failed", "op", op, "error", err)
		return withInfo(codes.Unavailable, uploadErr.Error(), pb.ReasonUploadFailed, map[string]string{
			"bucket": uploadErr.Bucket,
			"name":   uploadErr.Name,
			"cause":  errorText(uploadErr.Err),
		})
	}

	var dbErr *common.DBError
	if errors.As(err, &dbErr) {
		s.logger.Warn(ctx, "database error", "op", op, "error", err)
		return withInfo(codes.FailedPrecondition, dbErr.Message, pb.ReasonDBError, map[string]string{
			"op":      dbErr.Op,
			"code":    dbErr.Code,
			"details": dbErr.Details,
			"hint":    dbErr.Hint,
		})
	}

	s.logger.Error(ctx, "request failed", "op", op, "error", err)
	return status.Error(codes.Internal, "internal error")
}

func withInfo(code codes.Code, msg, reason string, meta map[string]string) error {
	st := status.New(code, msg)
	detailed, err := st.WithDetails(&errdetails.ErrorInfo{Reason: reason, Domain: pb.ErrorDomain, Metadata: meta})
	if err != nil {
		return st.Err()
	}
	return detailed.Err()
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
