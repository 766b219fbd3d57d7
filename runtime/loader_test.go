package runtime

import (
	"testing"
	"testing/fstest"

	"linkup/errors"

	"github.com/stretchr/testify/require"
)

func TestCensoredLoader_LoadAll(t *testing.T) {
	req := require.New(t)
	fsys := fstest.MapFS{
		"censored/en.txt":    {Data: []byte("badger\r\nsnake\n\n  mushroom  \n")},
		"censored/fr.txt":    {Data: []byte("blaireau\nbadger\n")},
		"censored/README.md": {Data: []byte("not a dictionary")},
	}

	data, err := NewCensoredLoader(fsys).LoadAll("censored")
	req.NoError(err)
	req.Equal([]string{"en", "fr"}, data.Languages)
	req.Equal([]string{"badger", "blaireau", "mushroom", "snake"}, data.Words)
}

func TestCensoredLoader_Empty_Files(t *testing.T) {
	req := require.New(t)
	fsys := fstest.MapFS{
		"censored/en.txt": {Data: []byte("\n \n")},
	}

	_, err := NewCensoredLoader(fsys).LoadAll("censored")
	req.ErrorIs(err, errors.ErrEmptyWords)
}

func TestCensoredLoader_Embedded_Dictionaries(t *testing.T) {
	req := require.New(t)
	data, err := NewCensoredLoader(censoredFolder).LoadAll("censored")
	req.NoError(err)
	req.Contains(data.Languages, "en")
	req.NotEmpty(data.Words)
}
