package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSession(t *testing.T) {
	t.Parallel()

	u := New(5, "USER", "tok")
	assert.False(t, u.IsAdmin())
	assert.True(t, u.CanAccess(5))
	assert.False(t, u.CanAccess(6))

	a := New(1, " Admin ", "")
	assert.True(t, a.IsAdmin())
	assert.True(t, a.CanAccess(99))

	assert.Equal(t, RoleUser, New(3, "", "").Role)
	assert.False(t, Session{}.Valid())
	assert.False(t, Session{}.CanAccess(0))
}
