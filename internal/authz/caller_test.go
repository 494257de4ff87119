package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCallerFromSubject(t *testing.T) {
	c, ok := CallerFromSubject("42", "a@x.com", true)
	assert.True(t, ok)
	assert.Equal(t, Caller{ID: 42, Email: "a@x.com", IsAdmin: true}, c)
	assert.Equal(t, "42", c.Subject())
	assert.True(t, c.Authenticated())

	for _, bad := range []string{"", "abc", "0", "-3"} {
		_, ok := CallerFromSubject(bad, "", false)
		assert.False(t, ok, "subject %q", bad)
	}
}

func TestCaller_ZeroIsAnonymous(t *testing.T) {
	assert.False(t, Caller{}.Authenticated())
}
