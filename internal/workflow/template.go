package workflow

import (
	"os"
	"regexp"
	"strings"
)

// Context is the execution context variable map used for both the
// conditional template pass and `${VAR}` expansion.
type Context map[string]string

var (
	ifEqRe   = regexp.MustCompile(`(?s)\{\{#if\s+(\w+)\s*==\s*"([^"]*)"\s*\}\}(.*?)\{\{/if\}\}`)
	ifRe     = regexp.MustCompile(`(?s)\{\{#if\s+(\w+)\s*\}\}(.*?)\{\{/if\}\}`)
	unlessRe = regexp.MustCompile(`(?s)\{\{#unless\s+(\w+)\s*\}\}(.*?)\{\{/unless\}\}`)
	varRe    = regexp.MustCompile(`\$\{(\w+)\}`)
)

// Expand runs the three conditional template forms, then `${…}` variable
// substitution, per spec's pass ordering: conditionals first, then vars.
// `${NAME}` resolves from ctx first, then the process environment; unresolved
// references are left verbatim.
func Expand(text string, ctx Context) string {
	text = expandConditionals(text, ctx)
	return expandVars(text, ctx)
}

func expandConditionals(text string, ctx Context) string {
	text = ifEqRe.ReplaceAllStringFunc(text, func(m string) string {
		sub := ifEqRe.FindStringSubmatch(m)
		name, want, body := sub[1], sub[2], sub[3]
		if ctx[name] == want {
			return body
		}
		return ""
	})

	text = ifRe.ReplaceAllStringFunc(text, func(m string) string {
		sub := ifRe.FindStringSubmatch(m)
		name, body := sub[1], sub[2]
		if truthy(ctx[name]) {
			return body
		}
		return ""
	})

	text = unlessRe.ReplaceAllStringFunc(text, func(m string) string {
		sub := unlessRe.FindStringSubmatch(m)
		name, body := sub[1], sub[2]
		if !truthy(ctx[name]) {
			return body
		}
		return ""
	})

	return text
}

func truthy(v string) bool {
	return v != "" && v != "false" && v != "0"
}

func expandVars(text string, ctx Context) string {
	return varRe.ReplaceAllStringFunc(text, func(m string) string {
		name := varRe.FindStringSubmatch(m)[1]
		if v, ok := ctx[name]; ok {
			return v
		}
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		return m
	})
}

// ExpandMap walks a nested map/slice/string structure recursively, expanding
// every string leaf against ctx. Non-string scalars pass through unchanged.
func ExpandMap(v interface{}, ctx Context) interface{} {
	switch t := v.(type) {
	case string:
		return Expand(t, ctx)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = ExpandMap(val, ctx)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = ExpandMap(val, ctx)
		}
		return out
	default:
		return v
	}
}

// ExpandEnv expands every value of an env map against ctx, per §4.5's
// "each value is itself run through ${…} expansion" rule.
func ExpandEnv(env map[string]string, ctx Context) map[string]string {
	out := make(map[string]string, len(env))
	for k, v := range env {
		out[k] = Expand(v, ctx)
	}
	return out
}

// MergeEnv layers env maps in order, later entries overriding earlier ones.
func MergeEnv(layers ...map[string]string) map[string]string {
	out := map[string]string{}
	for _, layer := range layers {
		for k, v := range layer {
			out[k] = v
		}
	}
	return out
}

// EnvToContext turns a flat K=V environment slice (as from os.Environ) into
// a Context, e.g. to use the process environment as an env-merge layer.
func EnvToContext(environ []string) Context {
	ctx := Context{}
	for _, kv := range environ {
		if idx := strings.IndexByte(kv, '='); idx >= 0 {
			ctx[kv[:idx]] = kv[idx+1:]
		}
	}
	return ctx
}
