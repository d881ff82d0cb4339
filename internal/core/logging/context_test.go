package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithEntityID(t *testing.T) {
	ctx := WithEntityID(context.Background(), "wi-123")
	assert.Equal(t, "wi-123", GetEntityID(ctx))
}

func TestWithDrainID(t *testing.T) {
	ctx := WithDrainID(context.Background(), "drain-456")
	assert.Equal(t, "drain-456", GetDrainID(ctx))
}

func TestGetEntityID_NotPresent(t *testing.T) {
	assert.Empty(t, GetEntityID(context.Background()))
}

func TestGetDrainID_NotPresent(t *testing.T) {
	assert.Empty(t, GetDrainID(context.Background()))
}

func TestBothIDs(t *testing.T) {
	ctx := WithEntityID(context.Background(), "wi-1")
	ctx = WithDrainID(ctx, "drain-1")

	assert.Equal(t, "wi-1", GetEntityID(ctx))
	assert.Equal(t, "drain-1", GetDrainID(ctx))
}
