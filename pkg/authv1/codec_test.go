package authv1

import (
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/encoding"
)

func TestCodec_Registered(t *testing.T) {
	c := encoding.GetCodec(CodecName)
	require.NotNil(t, c)
	require.Equal(t, CodecName, c.Name())
}

func TestCodec_ValidateResponseWireShape(t *testing.T) {
	tenant := int64(7)
	b, err := jsonCodec{}.Marshal(&ValidateResponse{
		Valid:          true,
		UserId:         42,
		ActiveTenantId: &tenant,
		Roles:          []string{"customer"},
	})
	require.NoError(t, err)
	require.JSONEq(t, `{"valid":true,"user_id":42,"active_tenant_id":7,"roles":["customer"]}`, string(b))

	var invalid ValidateResponse
	require.NoError(t, jsonCodec{}.Unmarshal([]byte(`{"valid":false}`), &invalid))
	require.False(t, invalid.Valid)
	require.Zero(t, invalid.UserId)
}

func TestCodec_EmptyPayload(t *testing.T) {
	var req RefreshRequest
	require.NoError(t, jsonCodec{}.Unmarshal(nil, &req))
	require.Empty(t, req.GetRefreshToken())

	require.Error(t, jsonCodec{}.Unmarshal([]byte("{"), &req))
}

func TestGetters_NilSafe(t *testing.T) {
	var r *RefreshRequest
	require.Empty(t, r.GetRefreshToken())
	require.Empty(t, r.GetClientIp())

	var v *ValidateRequest
	require.Empty(t, v.GetAccessToken())
}
