package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/habiliai/lodgechat/errors"
)

// UserHeader carries the user id authenticated by the gateway in front of the server.
const UserHeader = "X-User-Id"

type callerCtxKey struct{}

func WithCaller(ctx context.Context, userId string) context.Context {
	return context.WithValue(ctx, callerCtxKey{}, userId)
}

// Caller returns the authenticated user of the request, from the context first and
// the gateway header otherwise.
func Caller(r *http.Request) (string, error) {
	if userId, ok := r.Context().Value(callerCtxKey{}).(string); ok && userId != "" {
		return userId, nil
	}
	if userId := strings.TrimSpace(r.Header.Get(UserHeader)); userId != "" {
		return userId, nil
	}
	return "", errors.Wrapf(errors.ErrPermissionDenied, "missing %s header", UserHeader)
}
