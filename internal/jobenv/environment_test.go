package jobenv

import (
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnvironmentSet(t *testing.T) {
	t.Parallel()

	env := New()

	env.Set("    THIS_IS_THE_BEST   \n\n", "\"IT SURE IS\"\n\n")

	assert.Equal(t, []string{"    THIS_IS_THE_BEST   \n\n=\"IT SURE IS\"\n\n"}, env.ToSlice())
}

func TestEnvironmentSet_NormalizesKeyNames(t *testing.T) {
	t.Parallel()
	e := New()

	mountain := "Mountain"
	e.Set(mountain, "Cerro Torre")

	switch runtime.GOOS {
	case "windows":
		// All keys are treated as being in the same case so long as they have the same letters
		// (i.e. "Mountain", "mountain" and "MOUNTAIN" are treated the same key)
		e.Set(strings.ToUpper(mountain), "Cerro Poincenot")
		assert.Equal(t, []string{"MOUNTAIN=Cerro Poincenot"}, e.ToSlice())

	default:
		// Two keys with the same letters but different cases can coexist
		// (i.e. "Mountain", "mountain", "MOUNTAIN" are treated as three different keys)
		e.Set(strings.ToUpper(mountain), "Cerro Poincenot")
		assert.Equal(t, []string{"MOUNTAIN=Cerro Poincenot", "Mountain=Cerro Torre"}, e.ToSlice())
	}
}

func TestEnvironmentToSlice(t *testing.T) {
	t.Parallel()

	env := FromSlice([]string{"THIS_IS_GREAT=totes", "ZOMG=greatness"})

	assert.Equal(t, []string{"THIS_IS_GREAT=totes", "ZOMG=greatness"}, env.ToSlice())
}

func TestSplit(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in          string
		name, value string
		ok          bool
	}{
		{"key=value", "key", "value", true},
		{"equalsign==", "equalsign", "=", true},
		{"=Windows=Nonsense", "", "", false},
		{"=Bonus=Windows=Nonsense", "", "", false},
		{"no_value=", "no_value", "", true},
		{"NotValid", "", "", false},
		{"=AlsoInvalid", "", "", false},
	}

	for _, test := range tests {
		gotName, gotValue, gotOK := Split(test.in)
		if gotName != test.name || gotValue != test.value || gotOK != test.ok {
			t.Errorf("Split(%q) = (%q, %q, %t), want (%q, %q, %t)", test.in, gotName, gotValue, gotOK, test.name, test.value, test.ok)
		}
	}
}
