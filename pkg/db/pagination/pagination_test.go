package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct{ id string }

func TestCursorRoundTrip(t *testing.T) {
	token, err := EncodeCursor(Cursor{ID: "42", CreatedAt: "2024-01-01T00:00:00Z"})
	require.NoError(t, err)

	cursor, err := DecodeCursor(token)
	require.NoError(t, err)
	assert.Equal(t, "42", cursor.ID)
}

func TestBuildCursorPageInfo(t *testing.T) {
	data := []*item{{id: "3"}, {id: "2"}, {id: "1"}}

	info := BuildCursorPageInfo(data, 2, func(i *item) string { return i.id })
	assert.True(t, info.HasMore)
	assert.Equal(t, "2", info.NextPageToken)

	info = BuildCursorPageInfo(data, 3, func(i *item) string { return i.id })
	assert.False(t, info.HasMore)
	assert.Empty(t, info.NextPageToken)
}

func TestClampPageSize(t *testing.T) {
	assert.Equal(t, int32(25), ClampPageSize(0, 25, 100))
	assert.Equal(t, int32(100), ClampPageSize(500, 25, 100))
	assert.Equal(t, int32(7), ClampPageSize(7, 25, 100))
}
