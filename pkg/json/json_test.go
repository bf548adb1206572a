package json

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type line struct {
	ID   string `json:"id"`
	Note string `json:"note"`
}

func TestMarshalLines(t *testing.T) {
	data, err := MarshalLines([]line{{ID: "1", Note: "<ok>"}, {ID: "2"}})
	require.NoError(t, err)

	rows := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, rows, 2)
	assert.Equal(t, `{"id":"1","note":"<ok>"}`, rows[0])

	back, err := UnmarshalLines[line](bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, []line{{ID: "1", Note: "<ok>"}, {ID: "2"}}, back)
}

func TestUnmarshalLinesInvalid(t *testing.T) {
	_, err := UnmarshalLines[line](strings.NewReader("{\"id\":\"1\"}\n{bad"))
	assert.Error(t, err)
}

func TestBufferPool(t *testing.T) {
	buf := GetBuffer()
	buf.WriteString("hello")
	PutBuffer(buf)

	again := GetBuffer()
	assert.Equal(t, 0, again.Len())
}
