package options

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseVariant(t *testing.T) {
	for in, want := range map[string]Variant{"ur16e": UR16e, "UR10e": UR10e, " ur10E ": UR10e} {
		got, err := ParseVariant(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}
	_, err := ParseVariant("ur5")
	require.ErrorIs(t, err, ErrUnknownVariant)
	require.False(t, Variant("UR10e").Valid())
	require.True(t, UR10e.Valid())
}

func TestChoicesAndLocator(t *testing.T) {
	require.Equal(t, []Choice{{"UR16e", UR16e}, {"UR10e", UR10e}}, Choices())
	require.Equal(t, UR16e, Defaults().Model)
	require.Equal(t, "UR10e", UR10e.Label())
	require.Equal(t, "assets/ur_description/urdf/ur10e.urdf", UR10e.Locator("assets/ur_description/urdf/"))
	require.Equal(t, "https://example.com/urdf/ur16e.urdf", UR16e.Locator("https://example.com/urdf"))
}

func TestNormalize(t *testing.T) {
	o, ok := Options{Model: "UR10e"}.Normalize()
	require.True(t, ok)
	require.Equal(t, UR10e, o.Model)
	o, ok = Options{}.Normalize()
	require.True(t, ok)
	require.Equal(t, Default, o.Model)
	o, ok = Options{Model: "nope"}.Normalize()
	require.False(t, ok)
	require.Equal(t, Default, o.Model)
}

func TestStoreLoadSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "options.yaml")
	s, err := NewStore(path, nil)
	require.NoError(t, err)

	o, err := s.Load()
	require.NoError(t, err)
	require.Equal(t, Defaults(), o)

	require.NoError(t, s.Save(Options{Model: UR10e}))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "model: ur10e\n", string(data))

	s2, err := NewStore(path, nil)
	require.NoError(t, err)
	o, err = s2.Load()
	require.NoError(t, err)
	require.Equal(t, UR10e, o.Model)
	require.Equal(t, UR10e, s2.Current().Model)

	require.ErrorIs(t, s.Save(Options{Model: "ur3"}), ErrUnknownVariant)
}

func TestStoreLoadBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "options.yaml")
	s, err := NewStore(path, nil)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("model: ur3\n"), 0o644))
	o, err := s.Load()
	require.NoError(t, err)
	require.Equal(t, Default, o.Model)

	require.NoError(t, os.WriteFile(path, []byte("model: [\n"), 0o644))
	_, err = s.Load()
	require.Error(t, err)
}

func TestStoreWatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "options.yaml")
	s, err := NewStore(path, nil)
	require.NoError(t, err)

	changes := make(chan Options, 8)
	require.NoError(t, s.Watch(func(o Options) { changes <- o }))
	defer s.Close()
	require.FileExists(t, path)

	require.NoError(t, os.WriteFile(path, []byte("model: UR10e\n"), 0o644))
	select {
	case o := <-changes:
		require.Equal(t, UR10e, o.Model)
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}
	require.Equal(t, UR10e, s.Current().Model)
}
