package typeid

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGeneratedIDsCarryPrefix(t *testing.T) {
	cases := map[string]func() string{
		PrefixSession: NewSessionID,
		PrefixObject:  NewObjectID,
		PrefixEditor:  NewEditorID,
		PrefixRequest: NewRequestID,
	}
	for prefix, gen := range cases {
		id := gen()
		assert.True(t, strings.HasPrefix(id, prefix+"_"), id)
		assert.NoError(t, Validate(id, prefix))
	}
}

func TestValidateRejectsWrongPrefix(t *testing.T) {
	id := NewObjectID()
	assert.Error(t, Validate(id, PrefixSession))
	assert.Error(t, Validate("not an id", PrefixObject))
}

func TestIDsAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewObjectID()
		assert.False(t, seen[id])
		seen[id] = true
	}
}
