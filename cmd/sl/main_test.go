package main

import (
	"context"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stageline/internal/domain"
	"stageline/internal/engine"
)

func TestParseStagePositions(t *testing.T) {
	got, err := parseStagePositions([]string{"a=2", "b=1"})
	require.NoError(t, err)
	assert.Equal(t, []domain.StagePosition{{StageID: "a", Position: 2}, {StageID: "b", Position: 1}}, got)

	_, err = parseStagePositions([]string{"a"})
	assert.Error(t, err)
	_, err = parseStagePositions([]string{"a=x"})
	assert.Error(t, err)
	_, err = parseStagePositions([]string{"=1"})
	assert.Error(t, err)
}

func TestCallerRequiresTenant(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("tenant", "")
	_, _, err := caller()
	assert.Error(t, err)

	viper.Set("tenant", "t1")
	viper.Set("user", "u1")
	viper.Set("role", "manager")
	tenant, actor, err := caller()
	require.NoError(t, err)
	assert.Equal(t, "t1", tenant)
	assert.Equal(t, "u1", actor.UserID)
	assert.Equal(t, "MANAGER", actor.Role)
}

func TestWithTenantUsesWorkspace(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("workspace", t.TempDir())
	viper.Set("log-level", "error")
	viper.Set("tenant", "t1")
	viper.Set("user", "u1")

	err := withTenant(context.Background(), func(ctx context.Context, e engine.Engine, tenant string, actor domain.Actor) error {
		stages, seeded, err := e.SeedStages(ctx, tenant, actor, nil)
		require.NoError(t, err)
		assert.True(t, seeded)
		assert.NotEmpty(t, stages)
		return nil
	})
	require.NoError(t, err)

	// The second open sees the stages persisted by the first.
	err = withTenant(context.Background(), func(ctx context.Context, e engine.Engine, tenant string, _ domain.Actor) error {
		stages, err := e.ListStages(ctx, tenant)
		require.NoError(t, err)
		assert.NotEmpty(t, stages)
		return nil
	})
	require.NoError(t, err)
}
