package memory

import (
	"context"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpload(t *testing.T) {
	store := NewStore("promptlab-avatars")

	url, err := store.Upload(context.Background(), "avatars/u1/123-me.jpg", "image/jpeg", strings.NewReader("fake-image-bytes"))
	require.NoError(t, err)

	// Same URL shape as the real bucket endpoint
	assert.Regexp(t, regexp.MustCompile(`^https://storage\.googleapis\.com/promptlab-avatars/avatars/u1/123-me\.jpg$`), url)

	data, contentType, ok := store.Object("avatars/u1/123-me.jpg")
	require.True(t, ok)
	assert.Equal(t, []byte("fake-image-bytes"), data)
	assert.Equal(t, "image/jpeg", contentType)
	assert.Equal(t, 1, store.Len())
}
