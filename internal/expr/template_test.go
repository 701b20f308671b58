package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplateRender(t *testing.T) {
	tpl, err := CompileTemplate("spread {spread:.2f} (okx={okx_btc.last}, binance={binance_btc.last})")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"spread", "okx_btc", "binance_btc"}, tpl.Vars())

	out := tpl.Render(ExecContext{
		"spread":      150.456,
		"okx_btc":     map[string]any{"last": 49950.0},
		"binance_btc": map[string]any{"last": 50100.5},
	})
	assert.Equal(t, "spread 150.46 (okx=49950, binance=50100.5)", out)
}

func TestTemplatePercentSpec(t *testing.T) {
	tpl, err := CompileTemplate("{spread:%.1f}")
	require.NoError(t, err)
	assert.Equal(t, "42.0", tpl.Render(ExecContext{"spread": 42.04}))
}

func TestTemplateBadSpecDegrades(t *testing.T) {
	// %d against a float64 would render as "%!d(...)"; degrade to raw value.
	tpl, err := CompileTemplate("{spread:d}")
	require.NoError(t, err)
	assert.Equal(t, "42.5", tpl.Render(ExecContext{"spread": 42.5}))
}

func TestTemplateUnboundPlaceholderVerbatim(t *testing.T) {
	tpl, err := CompileTemplate("value={ghost:.2f}")
	require.NoError(t, err)
	assert.Equal(t, "value={ghost:.2f}", tpl.Render(ExecContext{}))
}

func TestTemplateEscapedBraces(t *testing.T) {
	tpl, err := CompileTemplate("{{literal}} {name}")
	require.NoError(t, err)
	assert.Equal(t, "{literal} btc", tpl.Render(ExecContext{"name": "btc"}))
}

func TestTemplateSyntaxErrors(t *testing.T) {
	var serr *SyntaxError
	_, err := CompileTemplate("{unclosed")
	require.ErrorAs(t, err, &serr)

	_, err = CompileTemplate("dangling}")
	require.ErrorAs(t, err, &serr)

	_, err = CompileTemplate("{0bad}")
	require.ErrorAs(t, err, &serr)
}
