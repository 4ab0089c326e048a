package jobenv

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"
)

// BuildOpts describes how to assemble a child process's environment.
type BuildOpts struct {
	InheritEnv bool
	EnvFiles   []string
	EnvArgs    []string // repeated --env KEY=VALUE, applied last, wins
}

// Build assembles the environment a supervised child process runs with:
// starting from the OS environment (or empty, if InheritEnv is false),
// merging each env file in order, then applying explicit --env entries
// last so they always win.
func Build(opts BuildOpts) (*Environment, error) {
	result := New()
	if opts.InheritEnv {
		result = FromSlice(os.Environ())
	}

	for _, path := range opts.EnvFiles {
		lines, err := readEnvFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading env file %q: %w", path, err)
		}
		for _, l := range lines {
			if k, v, ok := Split(l); ok {
				result.Set(k, v)
			}
		}
	}

	for _, kv := range opts.EnvArgs {
		if k, v, ok := Split(kv); ok {
			result.Set(k, v)
		}
	}

	return result, nil
}

// readEnvFile returns the non-blank, non-comment lines of an env file, in
// order. Comments start with '#'; leading/trailing whitespace is trimmed.
func readEnvFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return lines, scanner.Err()
}

// Keys returns the sorted set of variable names in the environment - used
// to derive meta.json's env_keys, which records names but never values.
func (e *Environment) Keys() []string {
	slice := e.ToSlice()
	keys := make([]string, 0, len(slice))
	for _, kv := range slice {
		if k, _, ok := Split(kv); ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// ToMap returns a copy of the environment as a plain map, for callers
// (such as the output scrubber) that need to look values up by key
// rather than range over KEY=VALUE pairs.
func (e *Environment) ToMap() map[string]string {
	m := make(map[string]string, len(e.ToSlice()))
	for _, kv := range e.ToSlice() {
		if k, v, ok := Split(kv); ok {
			m[k] = v
		}
	}
	return m
}

// MaskedSlice returns e.ToSlice() with the value of every key in mask
// replaced by the literal "***". Keys not present in e are ignored.
func (e *Environment) MaskedSlice(mask []string) []string {
	maskSet := make(map[string]struct{}, len(mask))
	for _, k := range mask {
		maskSet[k] = struct{}{}
	}

	slice := e.ToSlice()
	out := make([]string, 0, len(slice))
	for _, kv := range slice {
		k, v, ok := Split(kv)
		if !ok {
			continue
		}
		if _, masked := maskSet[k]; masked {
			v = "***"
		}
		out = append(out, k+"="+v)
	}
	return out
}
