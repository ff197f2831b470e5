package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrincipalRoundTrip(t *testing.T) {
	ctx := WithPrincipal(context.Background(), Principal{UserID: "user-1", Email: "sam@example.com"})

	p, ok := FromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "user-1", p.UserID)
	assert.Equal(t, "sam@example.com", p.Email)
	assert.Equal(t, "user-1", UserID(ctx))
}

func TestNoPrincipal(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)
	assert.Empty(t, UserID(context.Background()))
}
