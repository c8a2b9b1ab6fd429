package commandline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplaceRuleListSet(t *testing.T) {
	var rules ReplaceRuleList
	require.NoError(t, rules.Set(`^http://example\.com/ -> local/`))
	require.Len(t, rules, 1)
	assert.Equal(t, "local/", rules[0].To)
	assert.True(t, rules[0].From.MatchString("http://example.com/widget.dtd"))
}

func TestReplaceRuleListSetInvalid(t *testing.T) {
	var rules ReplaceRuleList
	assert.Error(t, rules.Set("no-arrow-here"))
}

func TestStringsSet(t *testing.T) {
	var s Strings
	require.NoError(t, s.Set("a"))
	require.NoError(t, s.Set("b"))
	assert.Equal(t, "a,b", s.String())
}
