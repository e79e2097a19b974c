package fx

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeCatalogue(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "currencies.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadCatalogue(t *testing.T) {
	path := writeCatalogue(t, `
currencies:
  - code: usd
    name: US Dollar
  - code: EUR
    name: Euro
  - code: " usd "
    name: Duplicate
`)
	cat, err := LoadCatalogue(path)
	require.NoError(t, err)
	require.Len(t, cat.Currencies, 3)
	require.Equal(t, "USD", cat.Currencies[0].Code)
	require.Equal(t, []string{"EUR", "USD"}, cat.Codes())
}

func TestLoadCatalogueRejectsUnknownCodes(t *testing.T) {
	path := writeCatalogue(t, "currencies:\n  - code: XYZ1\n")
	_, err := LoadCatalogue(path)
	require.Error(t, err)
}

func TestLoadCatalogueEmptyPath(t *testing.T) {
	cat, err := LoadCatalogue("")
	require.NoError(t, err)
	require.Empty(t, cat.Codes())
}
