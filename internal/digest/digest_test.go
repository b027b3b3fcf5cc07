package digest

import (
	"bytes"
	"encoding/json"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSumDeterministic(t *testing.T) {
	a := Sum(KindBlob, []byte("Hello, World!"))
	b := Sum(KindBlob, []byte("Hello, World!"))

	assert.Equal(t, a, b)
	assert.NotEqual(t, None, a)
	assert.NotEqual(t, a, Sum(KindBlob, []byte("Hello, World?")))
}

func TestKindSeparatesAddresses(t *testing.T) {
	data := []byte("same bytes")
	assert.NotEqual(t, Sum(KindBlob, data), Sum(KindTree, data))
}

func TestStreamingMatchesSum(t *testing.T) {
	payload := bytes.Repeat([]byte("0123456789abcdef"), 4096)

	h := New(KindBlob)
	_, err := io.Copy(h, bytes.NewReader(payload))
	require.NoError(t, err)

	assert.Equal(t, Sum(KindBlob, payload), h.Sum())
}

func TestParseRoundTrip(t *testing.T) {
	d := Sum(KindTree, nil)

	parsed, err := Parse(d.String())
	require.NoError(t, err)
	assert.Equal(t, d, parsed)
	assert.Len(t, d.String(), 16)
	assert.Equal(t, d.String()[:8], d.Short())

	_, err = Parse("xyz")
	assert.Error(t, err)
	_, err = Parse("zzzzzzzzzzzzzzzz")
	assert.Error(t, err)
}

func TestJSONAsHex(t *testing.T) {
	type record struct {
		Hash Digest `json:"hash"`
	}
	in := record{Hash: Sum(KindBlob, []byte("x"))}

	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.Contains(t, string(data), in.Hash.String())

	var out record
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}
