package archive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGroupFilter_RejectsInvalidPattern(t *testing.T) {
	_, err := NewGroupFilter([]string{"/aws/[unclosed"}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidPattern)

	_, err = NewGroupFilter(nil, []string{"/aws/[unclosed"})
	assert.Error(t, err)
}

func TestGroupFilter_Match_EmptyIncludesAdmitAll(t *testing.T) {
	f, err := NewGroupFilter(nil, nil)
	require.NoError(t, err)

	assert.True(t, f.Match("/aws/lambda/anything"))
	assert.True(t, f.Match("plain-name"))
}

func TestGroupFilter_Match_Includes(t *testing.T) {
	f, err := NewGroupFilter([]string{"/aws/lambda/**", "/ecs/*"}, nil)
	require.NoError(t, err)

	assert.True(t, f.Match("/aws/lambda/my-fn"))
	assert.True(t, f.Match("/aws/lambda/team/my-fn"))
	assert.True(t, f.Match("/ecs/api"))
	assert.False(t, f.Match("/ecs/api/nested"))
	assert.False(t, f.Match("/aws/rds/instance"))
}

func TestGroupFilter_Match_ExcludesWin(t *testing.T) {
	f, err := NewGroupFilter([]string{"/aws/**"}, []string{"/aws/lambda/noisy-*"})
	require.NoError(t, err)

	assert.True(t, f.Match("/aws/lambda/quiet"))
	assert.False(t, f.Match("/aws/lambda/noisy-cron"))
}

func TestGroupFilter_Match_NilFilterAdmitsAll(t *testing.T) {
	var f *GroupFilter
	assert.True(t, f.Match("/anything"))
}
