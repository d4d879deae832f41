package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeStandardEnvelope(t *testing.T) {
	resp, err := Normalize([]byte(`{"success":true,"data":{"id":7},"message":"ok"}`))
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "ok", resp.Message)
	assert.JSONEq(t, `{"id":7}`, string(resp.Data))

	var out struct{ ID int }
	require.NoError(t, resp.DecodeData(&out))
	assert.Equal(t, 7, out.ID)
}

func TestNormalizeFailures(t *testing.T) {
	tests := []struct {
		name string
		body string
		msg  string
		code int
	}{
		{"success false", `{"success":false,"message":"计划不存在"}`, "计划不存在", 0},
		{"error object", `{"success":false,"error":{"code":"X","message":"bad input"}}`, "bad input", 0},
		{"error string", `{"success":false,"error":"nope"}`, "nope", 0},
		{"code 400", `{"code":400,"message":"参数错误"}`, "参数错误", 400},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize([]byte(tt.body))
			var aErr *APIError
			require.ErrorAs(t, err, &aErr)
			assert.Equal(t, tt.msg, aErr.Message)
			assert.Equal(t, tt.code, aErr.Code)
			assert.False(t, IsRetryable(err))
		})
	}
}

func TestNormalizeCodeEnvelope(t *testing.T) {
	resp, err := Normalize([]byte(`{"code":200,"data":[1,2],"message":"done"}`))
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.JSONEq(t, `[1,2]`, string(resp.Data))
}

func TestNormalizeRowsCount(t *testing.T) {
	resp, err := Normalize([]byte(`{"rows":[{"id":1},{"id":2}],"count":42}`))
	require.NoError(t, err)
	assert.Equal(t, "Success", resp.Message)

	var list List[struct{ ID int }]
	require.NoError(t, resp.DecodeData(&list))
	assert.Len(t, list.Items, 2)
	assert.Equal(t, 42, list.Total)
}

func TestNormalizeBareDataArray(t *testing.T) {
	resp, err := Normalize([]byte(`{"data":["a","b","c"],"message":"列表"}`))
	require.NoError(t, err)
	assert.Equal(t, "列表", resp.Message)
	assert.JSONEq(t, `{"items":["a","b","c"],"total":3}`, string(resp.Data))
}

func TestNormalizeEdgeBodies(t *testing.T) {
	resp, err := Normalize(nil)
	require.NoError(t, err)
	assert.True(t, resp.Success)

	var v map[string]any
	require.NoError(t, resp.DecodeData(&v))
	assert.Nil(t, v, "empty data leaves target untouched")

	resp, err = Normalize([]byte(`[1,2,3]`))
	require.NoError(t, err)
	assert.JSONEq(t, `[1,2,3]`, string(resp.Data))

	_, err = Normalize([]byte(`<html>502 Bad Gateway</html>`))
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestResponseField(t *testing.T) {
	resp, err := Normalize([]byte(`{"success":true,"data":{"token":"abc"},"refreshToken":"r1"}`))
	require.NoError(t, err)
	assert.Equal(t, "abc", resp.Field("data.token").String())
	assert.Equal(t, "r1", resp.Field("refreshToken").String())

	var nilResp *Response
	assert.False(t, nilResp.Field("x").Exists())
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "boom", errorMessage([]byte(`{"message":"boom"}`)))
	assert.Equal(t, "inner", errorMessage([]byte(`{"error":{"message":"inner"}}`)))
	assert.Equal(t, "Bad Gateway", errorMessage([]byte(" Bad Gateway \n")))
}
