package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() Dataset {
	return Dataset{
		Headers: []string{"date", "description", "amount"},
		Rows: []map[string]string{
			{"date": "2024-01-15", "description": "Monthly Class Fee", "amount": "2000000"},
			{"date": "2024-01-20", "description": "Party, supplies", "amount": "-800000"},
		},
		Summary: [][2]string{{"Balance", "1200000"}},
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleDataset())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "date,description,amount", lines[0])
	assert.Equal(t, `2024-01-20,"Party, supplies",-800000`, lines[2])
	assert.Equal(t, "Balance,1200000", lines[4])
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	require.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	out, err := NewPDFExporter().Render(sampleDataset(), "Fund statement")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}
