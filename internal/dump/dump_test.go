package dump

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1ureka/soegate/internal/protocol/zone"
)

func TestDirWritesFramesAndPackets(t *testing.T) {
	dir := t.TempDir()
	d, err := NewDir(filepath.Join(dir, "dump"))
	require.NoError(t, err)

	d.Frame("zone", In, []byte{1, 2, 3})
	d.Packet("zone", In, zone.SetLocale{Locale: "en_US"})

	data, err := os.ReadFile(filepath.Join(dir, "dump", "zone_in_1.dat"))
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, data)

	data, err = os.ReadFile(filepath.Join(dir, "dump", "zone_in_2_SetLocale.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"Locale": "en_US"`)
}

func TestOrNop(t *testing.T) {
	assert.Equal(t, Nop{}, OrNop(nil))
	d := &Dir{}
	assert.Same(t, d, OrNop(d))
}
