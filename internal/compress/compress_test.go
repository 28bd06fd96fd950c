package compress

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/dataanchor/core"
)

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	payload := bytes.Repeat([]byte(`{"device_id":"sensor-001","co2_ppm":417}`), 50)
	for _, codec := range []core.Compression{core.CompressionNone, core.CompressionZstd} {
		encoded, err := Encode(codec, payload)
		require.NoError(t, err)
		if codec == core.CompressionZstd {
			assert.Less(t, len(encoded), len(payload))
		}

		decoded, err := Decode(codec, encoded)
		require.NoError(t, err)
		assert.Equal(t, payload, decoded, codec.String())
	}
}

func TestDecode_Corrupt(t *testing.T) {
	t.Parallel()

	_, err := Decode(core.CompressionZstd, []byte("definitely not zstd"))
	assert.ErrorIs(t, err, core.ErrDecode)

	_, err = Decode(core.Compression(9), []byte("x"))
	assert.ErrorIs(t, err, core.ErrDecode)
}

func TestEncode_UnknownCodec(t *testing.T) {
	t.Parallel()

	_, err := Encode(core.Compression(9), []byte("x"))
	assert.Error(t, err)
}
