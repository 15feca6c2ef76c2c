package channelstore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeRegistry map[string]string

func (f fakeRegistry) Resolve(name string) (string, bool) {
	p, ok := f[name]
	return p, ok
}

func TestResolveChannelAddressLocal(t *testing.T) {
	resolved, err := ResolveChannelAddress("#general", "/agents", fakeRegistry{})
	require.NoError(t, err)
	require.Equal(t, filepath.Join("/agents", "channels"), resolved.Dir)
	require.Equal(t, "#general", resolved.LocalName)
	require.False(t, resolved.IsProjectEntryPoint)
}

func TestResolveChannelAddressProjectEntryPoint(t *testing.T) {
	reg := fakeRegistry{"widgets": "/projects/widgets"}
	resolved, err := ResolveChannelAddress("@widgets", "/agents", reg)
	require.NoError(t, err)
	require.Equal(t, filepath.Join("/projects/widgets", "channels"), resolved.Dir)
	require.Equal(t, "@root", resolved.LocalName)
	require.True(t, resolved.IsProjectEntryPoint)
	require.Equal(t, "widgets", resolved.ProjectName)
}

func TestResolveChannelAddressProjectPrefixed(t *testing.T) {
	reg := fakeRegistry{"widgets": "/projects/widgets"}
	resolved, err := ResolveChannelAddress("#widgets/issues", "/agents", reg)
	require.NoError(t, err)
	require.Equal(t, filepath.Join("/projects/widgets", "channels"), resolved.Dir)
	require.Equal(t, "#issues", resolved.LocalName)
}

func TestResolveChannelAddressUnknownProjectPrefix(t *testing.T) {
	_, err := ResolveChannelAddress("#ghost/issues", "/agents", fakeRegistry{})
	require.Error(t, err)
}
