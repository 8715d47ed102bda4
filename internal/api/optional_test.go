package api

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionalDecoding(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want Optional[string]
	}{
		{name: "absent", body: `{}`, want: Optional[string]{}},
		{name: "null", body: `{"category":null}`, want: Null[string]()},
		{name: "value", body: `{"category":"abc"}`, want: Some("abc")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var req PatchTaskRequest
			require.NoError(t, json.Unmarshal([]byte(tt.body), &req))
			assert.Equal(t, tt.want, req.Category)
		})
	}
}

func TestOptionalEncodingOmitsAbsent(t *testing.T) {
	t.Parallel()

	raw, err := json.Marshal(PatchTaskRequest{Title: Some("x"), Category: Null[string]()})
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"x","category":null}`, string(raw))
}
