package html

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/kbase/internal/core/domain"
)

func TestSupportedExtensions(t *testing.T) {
	assert.ElementsMatch(t, []string{"html", "htm"}, New().SupportedExtensions())
}

func TestExtract(t *testing.T) {
	page := `<html><head><title>Office &amp; Safety</title><style>p{color:red}</style></head>
<body>
<script>var x = 1;</script>
<h1>Rules</h1>
<p>Lock the   door.<br>Turn off lights.</p>
<!-- hidden -->
<table><tr><th>Item</th><th>Owner</th></tr><tr><td>Keys</td><td>Admin</td></tr></table>
</body></html>`

	result, err := New().Extract(context.Background(), []byte(page))
	require.NoError(t, err)

	assert.Equal(t, "Office & Safety", result.Metadata["title"])
	assert.Equal(t, "Rules\nLock the door.\nTurn off lights.\nItem | Owner\nKeys | Admin", result.Text)
	assert.NotContains(t, result.Text, "var x")
	assert.NotContains(t, result.Text, "hidden")
	assert.NotContains(t, result.Text, "color")
	assert.Equal(t, true, result.Metadata[domain.MetaHasContent])
}

func TestExtract_OnlyMarkup(t *testing.T) {
	result, err := New().Extract(context.Background(), []byte("<div><script>x()</script></div>"))
	require.NoError(t, err)

	assert.Empty(t, result.Text)
	assert.Equal(t, false, result.Metadata[domain.MetaHasContent])
}

func TestExtract_Entities(t *testing.T) {
	result, err := New().Extract(context.Background(), []byte("<p>a &lt; b &nbsp; c</p>"))
	require.NoError(t, err)

	assert.Equal(t, "a < b c", result.Text)
}
