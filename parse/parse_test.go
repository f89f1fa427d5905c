// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package parse

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/mettatron/value"
)

func TestParseArithmeticDirective(t *testing.T) {
	interner := value.NewInterner()
	p := New(interner)
	forms, err := p.ParseProgram("!(+ 1 2)")
	require.NoError(t, err)
	require.Len(t, forms, 1)
	require.Equal(t, value.KindSExpr, forms[0].Kind())
	require.Equal(t, "!", forms[0].Items()[0].AsString())
}

func TestParseRuleDefinitionAndVariables(t *testing.T) {
	interner := value.NewInterner()
	p := New(interner)
	forms, err := p.ParseProgram("(= (double $x) (* $x 2))")
	require.NoError(t, err)
	require.Len(t, forms, 1)

	rule := forms[0]
	require.Equal(t, "=", rule.Items()[0].AsString())
	pattern := rule.Items()[1]
	require.Equal(t, value.KindVariable, pattern.Items()[1].Kind())
}

func TestParseBareDollarIsFreshVarMarker(t *testing.T) {
	interner := value.NewInterner()
	p := New(interner)
	forms, err := p.ParseProgram("(f $)")
	require.NoError(t, err)
	require.True(t, forms[0].Items()[1].IsFreshVarMarker())
}

func TestParseStringAndComment(t *testing.T) {
	interner := value.NewInterner()
	p := New(interner)
	forms, err := p.ParseProgram("; a comment\n(greet \"hi\")")
	require.NoError(t, err)
	require.Len(t, forms, 1)
	require.Equal(t, "hi", forms[0].Items()[1].AsString())
}
