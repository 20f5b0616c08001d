package channel

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	frame := []byte(`{"type":"command","action":"execute","data":{"command":"ls","args":["-la"]},"extra":1}`)

	env, err := Decode(frame)
	require.NoError(t, err)

	assert.Equal(t, "command", env.Type)
	assert.Equal(t, "execute", env.Action)
	assert.Equal(t, frame, env.Raw)

	var data struct {
		Command string   `json:"command"`
		Args    []string `json:"args"`
	}
	require.NoError(t, env.DecodeData(&data))
	assert.Equal(t, "ls", data.Command)
	assert.Equal(t, []string{"-la"}, data.Args)

	fields, err := env.Fields()
	require.NoError(t, err)
	assert.EqualValues(t, 1, fields["extra"])
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		frame   string
		missing bool
	}{
		{name: "plain text", frame: "hello"},
		{name: "json string", frame: `"hello"`},
		{name: "json array", frame: `[1,2]`},
		{name: "numeric type", frame: `{"type":5}`},
		{name: "truncated", frame: `{"type":"command"`},
		{name: "no type", frame: `{"action":"execute"}`, missing: true},
		{name: "empty type", frame: `{"type":""}`, missing: true},
		{name: "null", frame: `null`, missing: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.frame))
			require.Error(t, err)

			var decodeErr *DecodeError
			require.True(t, errors.As(err, &decodeErr))
			assert.Equal(t, tt.frame, string(decodeErr.Frame))
			assert.Equal(t, tt.missing, errors.Is(err, ErrMissingType))
		})
	}
}

func TestEncode(t *testing.T) {
	t.Run("string is verbatim", func(t *testing.T) {
		frame, err := Encode(`{"type":"ping"}`)
		require.NoError(t, err)
		assert.Equal(t, `{"type":"ping"}`, string(frame))
	})

	t.Run("bytes are copied", func(t *testing.T) {
		src := []byte("raw")
		frame, err := Encode(src)
		require.NoError(t, err)
		src[0] = 'X'
		assert.Equal(t, "raw", string(frame))
	})

	t.Run("map is marshaled", func(t *testing.T) {
		frame, err := Encode(map[string]any{"type": "ping"})
		require.NoError(t, err)
		assert.JSONEq(t, `{"type":"ping"}`, string(frame))
	})

	t.Run("envelope gets an id", func(t *testing.T) {
		frame, err := Encode(Envelope{Type: "image", Action: "stream"})
		require.NoError(t, err)

		env, err := Decode(frame)
		require.NoError(t, err)
		_, err = uuid.Parse(env.ID)
		assert.NoError(t, err)
		assert.Equal(t, "stream", env.Action)
	})

	t.Run("envelope keeps its id", func(t *testing.T) {
		frame, err := Encode(&Envelope{ID: "abc", Type: "image"})
		require.NoError(t, err)
		assert.JSONEq(t, `{"id":"abc","type":"image"}`, string(frame))
	})

	t.Run("envelope without type", func(t *testing.T) {
		_, err := Encode(Envelope{Action: "stream"})
		assert.ErrorIs(t, err, ErrMissingType)
	})

	t.Run("unmarshalable", func(t *testing.T) {
		_, err := Encode(map[string]any{"ch": make(chan int)})
		assert.Error(t, err)
	})

	t.Run("nil", func(t *testing.T) {
		_, err := Encode(nil)
		assert.Error(t, err)
	})
}

func TestNewEnvelope(t *testing.T) {
	env, err := NewEnvelope("command", "execute", map[string]any{
		"command": "whoami",
		"args":    []string{},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, env.ID)
	assert.JSONEq(t, `{"command":"whoami","args":[]}`, string(env.Data))

	frame, err := json.Marshal(env)
	require.NoError(t, err)
	assert.NotContains(t, string(frame), "Raw")
}
