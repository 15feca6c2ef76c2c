package workflow

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExpandVars(t *testing.T) {
	ctx := Context{"NAME": "world"}
	require.Equal(t, "hello world", Expand("hello ${NAME}", ctx))
	require.Equal(t, "hello ${MISSING}", Expand("hello ${MISSING}", ctx))
}

func TestExpandIf(t *testing.T) {
	ctx := Context{"FLAG": "1"}
	require.Equal(t, "yes", Expand("{{#if FLAG}}yes{{/if}}", ctx))

	ctx2 := Context{}
	require.Equal(t, "", Expand("{{#if FLAG}}yes{{/if}}", ctx2))
}

func TestExpandUnless(t *testing.T) {
	ctx := Context{}
	require.Equal(t, "shown", Expand("{{#unless FLAG}}shown{{/unless}}", ctx))

	ctx2 := Context{"FLAG": "1"}
	require.Equal(t, "", Expand("{{#unless FLAG}}shown{{/unless}}", ctx2))
}

func TestExpandIfEquals(t *testing.T) {
	ctx := Context{"MODE": "prod"}
	require.Equal(t, "P", Expand(`{{#if MODE == "prod"}}P{{/if}}`, ctx))
	require.Equal(t, "", Expand(`{{#if MODE == "dev"}}P{{/if}}`, ctx))
}

func TestMergeEnv(t *testing.T) {
	got := MergeEnv(map[string]string{"A": "1", "B": "1"}, map[string]string{"B": "2"})
	require.Equal(t, map[string]string{"A": "1", "B": "2"}, got)
}
