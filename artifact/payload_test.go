package artifact

import (
	"testing"

	fuzz "github.com/google/gofuzz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adn/errors"
	"adn/predicate"
	"adn/types"
)

func TestInitPayloadRoundTrip(t *testing.T) {
	in := &PayloadInit{
		ID:          types.DeriveAdID(types.AdKindSet, "roundtrip"),
		Kind:        types.AdKindSet,
		CatalogHash: predicate.CatalogHash(types.AdKindSet),
	}

	payload, err := Decode(EncodeInit(in))
	require.NoError(t, err)
	require.NotNil(t, payload.Init)
	assert.Nil(t, payload.Update)
	assert.Equal(t, *in, *payload.Init)
}

func TestUpdatePayloadRoundTrip(t *testing.T) {
	in := &PayloadUpdate{Artifact: Artifact{
		ADID: types.DeriveAdID(types.AdKindCounter, "roundtrip"),
		Statements: []types.Statement{
			counterStatement(0, 4),
			counterStatement(4, 2),
		},
		Proof: []byte{0xde, 0xad, 0xbe, 0xef},
	}}

	data, err := EncodeUpdate(in)
	require.NoError(t, err)

	payload, err := Decode(data)
	require.NoError(t, err)
	require.NotNil(t, payload.Update)
	assert.Nil(t, payload.Init)

	out := payload.Update.Artifact
	assert.Equal(t, in.Artifact.ADID, out.ADID)
	assert.Equal(t, in.Artifact.Proof, out.Proof)
	require.Len(t, out.Statements, 2)
	assert.True(t, out.Statements[1].New.Equal(types.IntValue(6)))
	assert.Equal(t, StatementsHash(in.Artifact.Statements), StatementsHash(out.Statements))
}

func TestEncodeUpdateRejectsEmptyChain(t *testing.T) {
	_, err := EncodeUpdate(&PayloadUpdate{Artifact: Artifact{
		ADID: types.DeriveAdID(types.AdKindCounter, "empty"),
	}})
	assert.Error(t, err)
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	data := EncodeInit(&PayloadInit{
		ID:   types.DeriveAdID(types.AdKindCounter, "magic"),
		Kind: types.AdKindCounter,
	})
	data[0] ^= 0xff

	_, err := Decode(data)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeMalformedPayload, errors.CodeOf(err))
}

func TestDecodeRejectsUnknownKind(t *testing.T) {
	data := EncodeInit(&PayloadInit{
		ID:   types.DeriveAdID(types.AdKindCounter, "kind"),
		Kind: types.AdKind(99),
	})
	_, err := Decode(data)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeMalformedPayload, errors.CodeOf(err))
}

func TestDecodeRejectsTruncation(t *testing.T) {
	data, err := EncodeUpdate(&PayloadUpdate{Artifact: Artifact{
		ADID:       types.DeriveAdID(types.AdKindCounter, "trunc"),
		Statements: []types.Statement{counterStatement(0, 1)},
		Proof:      []byte{1, 2, 3},
	}})
	require.NoError(t, err)

	for cut := 1; cut < len(data); cut += 7 {
		_, err := Decode(data[:cut])
		require.Error(t, err, "truncated at %d", cut)
		assert.Equal(t, errors.ErrCodeMalformedPayload, errors.CodeOf(err))
	}
}

// Decode must never panic, whatever bytes the feed hands us.
func TestDecodeFuzzedBytesNeverPanic(t *testing.T) {
	f := fuzz.New().NilChance(0)
	for i := 0; i < 500; i++ {
		var data []byte
		f.Fuzz(&data)
		payload, err := Decode(data)
		if err == nil {
			assert.True(t, payload.Init != nil || payload.Update != nil)
		}
	}
}
