package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// MarketCSV is a small raw market extract with messy headers,
// missing tokens and mixed casing.
const MarketCSV = ` Ticker ,Trade Date,Open Price,Close Price,Volume,Sector,Exchange,Notes,Validated
aapl,2024-01-02,150,151,1000,Tech,NASDAQ,Gap Up,Y
aapl,2024-01-02,151,150.5,N/A,Tech,NASDAQ,,no
msft,01/03/2024,370,372.5,2000,Tech,nasdaq,gap down on news,yes
bp,2024-01-04,NaN,4.1,500,Energy,LSE,-,n
xyz,2024-01-05,10,11,,Misc,xyz,None,null
`

// WriteFile writes content to name inside a fresh temp dir and returns the path
func WriteFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// WriteMarketCSV writes MarketCSV to a temp file
func WriteMarketCSV(t *testing.T) string {
	t.Helper()
	return WriteFile(t, "market.csv", MarketCSV)
}

// CSVLines builds CSV text from rows joined with commas
func CSVLines(rows ...[]string) string {
	var b strings.Builder
	for _, r := range rows {
		b.WriteString(strings.Join(r, ","))
		b.WriteByte('\n')
	}
	return b.String()
}
