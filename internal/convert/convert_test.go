package convert

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentity(t *testing.T) {
	src := SourcePayload{Format: "capstan", Data: []byte(`{"resources":[]}`)}

	prog, err := Identity{}.ConvertProgram(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, src.Format, prog.Format)
	assert.Equal(t, src.Data, prog.Data)

	state, err := Identity{}.ConvertState(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, src.Data, state.Data)
}
