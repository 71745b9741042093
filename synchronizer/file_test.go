package synchronizer

import (
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoragePersists(t *testing.T) {
	assert := assert.New(t)
	path := filepath.Join(t.TempDir(), "state.json")

	s, err := NewFileStorage(path)
	require.NoError(t, err)
	_, err = s.Get("tourneyfilter.criteria")
	assert.Equal(ErrNotExist, err)

	assert.NoError(s.Set("tourneyfilter.criteria", []byte(`{"version":1,"criteria":{"view":"list"}}`)))
	assert.Error(s.Set("tourneyfilter.presets", []byte(`{broken`)))

	reopened, err := NewFileStorage(path)
	require.NoError(t, err)
	data, err := reopened.Get("tourneyfilter.criteria")
	assert.NoError(err)
	assert.JSONEq(`{"version":1,"criteria":{"view":"list"}}`, string(data))
	_, err = reopened.Get("tourneyfilter.presets")
	assert.Equal(ErrNotExist, err)
}

func TestFileStorageRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, ioutil.WriteFile(path, []byte("not json"), filePerm))

	_, err := NewFileStorage(path)
	assert.Error(t, err)
}

func TestFileStorageRequiresPath(t *testing.T) {
	_, err := NewFileStorage("")
	assert.Error(t, err)
}
