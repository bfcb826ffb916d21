package jsonrpc

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/gorilla/rpc/v2/json2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/habiliai/lodgechat/errors"
)

func TestErrorMapperHidesInternalDetails(t *testing.T) {
	var logs bytes.Buffer
	mapErr := errorMapper(slog.New(slog.NewTextHandler(&logs, nil)))

	mapped := mapErr(errors.Wrapf(errors.New(`no such table: "read_markers"`), "failed to find read markers"))
	var rpcErr *json2.Error
	require.ErrorAs(t, mapped, &rpcErr)
	assert.Equal(t, json2.E_INTERNAL, rpcErr.Code)
	assert.Equal(t, "internal error", rpcErr.Message)
	assert.Equal(t, ErrorData{Kind: "internal"}, rpcErr.Data)
	assert.Contains(t, logs.String(), "read_markers")

	mapped = mapErr(errors.Wrapf(errors.ErrNotParticipant, "user mallory in thread 1"))
	require.ErrorAs(t, mapped, &rpcErr)
	assert.Equal(t, CodePermissionDenied, rpcErr.Code)
	assert.Contains(t, rpcErr.Message, "not a participant")
	assert.Equal(t, ErrorData{Kind: "permission_denied"}, rpcErr.Data)

	assert.Nil(t, mapErr(nil))
}
