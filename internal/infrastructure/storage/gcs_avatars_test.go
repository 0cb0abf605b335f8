package storage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAvatarPath(t *testing.T) {
	p := AvatarPath("acc-1", "Me.PNG")
	assert.True(t, strings.HasPrefix(p, "avatars/acc-1/"))
	assert.True(t, strings.HasSuffix(p, ".png"))
	assert.NotEqual(t, p, AvatarPath("acc-1", "Me.PNG"))
}

func TestAvatarPath_NoExtension(t *testing.T) {
	p := AvatarPath("acc-1", "avatar")
	assert.Len(t, strings.TrimPrefix(p, "avatars/acc-1/"), 36)
}
