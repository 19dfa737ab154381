package storage

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageSaveAndOpen(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	n, err := store.SaveStream("class-1/proofs/a.jpg", strings.NewReader("image-bytes"), 1024)
	require.NoError(t, err)
	assert.Equal(t, int64(11), n)

	f, err := store.Open("class-1/proofs/a.jpg")
	require.NoError(t, err)
	defer f.Close()
	body, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "image-bytes", string(body))
}

func TestLocalStorageRejectsOversized(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = store.SaveStream("big.bin", strings.NewReader("0123456789"), 4)
	require.Error(t, err)
	_, err = store.Open("big.bin")
	require.Error(t, err)
}

func TestLocalStorageRejectsTraversal(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = store.SaveStream("../escape.txt", strings.NewReader("x"), 10)
	require.Error(t, err)
	_, err = store.Open("/etc/passwd")
	require.Error(t, err)
}
