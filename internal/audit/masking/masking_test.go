package masking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskMetadata(t *testing.T) {
	out := MaskMetadata(map[string]any{
		"email":         "agent@example.com",
		"name":          "Kasun",
		"password":      "supersecret",
		"updated_count": 3,
		"nested":        map[string]any{"token": "abcdefgh"},
		" ":             "dropped",
	})

	assert.Equal(t, "a****@example.com", out["email"])
	assert.Equal(t, "Kasun", out["name"])
	assert.Equal(t, "****cret", out["password"])
	assert.Equal(t, 3, out["updated_count"])
	assert.Equal(t, "****efgh", out["nested"].(map[string]any)["token"])
	assert.NotContains(t, out, " ")
	assert.Nil(t, MaskMetadata(nil))
}

func TestMaskSecretShort(t *testing.T) {
	assert.Equal(t, "****", MaskSecret("abc"))
	assert.Equal(t, "", MaskSecret("  "))
}
