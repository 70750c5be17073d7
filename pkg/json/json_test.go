package json

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshal(t *testing.T) {
	type sample struct {
		Name  string  `json:"name"`
		ID    int32   `json:"id"`
		Value float64 `json:"value"`
	}

	in := sample{Name: "TrackerHits", ID: 3, Value: 1.25}
	data, err := Marshal(in)
	require.NoError(t, err)

	var out sample
	require.NoError(t, Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestMarshalString(t *testing.T) {
	s, err := MarshalString(map[string]string{"run": "2026-08"})
	require.NoError(t, err)
	assert.Equal(t, `{"run":"2026-08"}`, s)
	assert.False(t, strings.HasSuffix(s, "\n"))
}

func TestMarshalToBuffer(t *testing.T) {
	buf, err := MarshalToBuffer([]int{1, 2, 3})
	require.NoError(t, err)
	defer PutBuffer(buf)
	assert.Equal(t, "[1,2,3]\n", buf.String())
}

func TestBufferPoolReuse(t *testing.T) {
	buf := GetBuffer()
	buf.WriteString("stale contents")
	PutBuffer(buf)

	fresh := GetBuffer()
	defer PutBuffer(fresh)
	assert.Zero(t, fresh.Len())
}

func TestStreamingEncoderArray(t *testing.T) {
	var out bytes.Buffer
	se := NewStreamingEncoder(&out, true)
	require.NoError(t, se.Encode(map[string]int{"a": 1}))
	require.NoError(t, se.Encode(map[string]int{"b": 2}))
	require.NoError(t, se.Close())

	var decoded []map[string]int
	require.NoError(t, Unmarshal(out.Bytes(), &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, 1, decoded[0]["a"])
	assert.Equal(t, 2, decoded[1]["b"])
}

func TestStreamingEncoderLines(t *testing.T) {
	var out bytes.Buffer
	se := NewStreamingEncoder(&out, false)
	require.NoError(t, se.Encode(map[string]int{"seq": 0}))
	require.NoError(t, se.Encode(map[string]int{"seq": 1}))
	require.NoError(t, se.Close())

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Len(t, lines, 2)
}
