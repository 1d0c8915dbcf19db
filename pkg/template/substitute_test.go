package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubstituteKnown(t *testing.T) {
	vars := map[string]string{
		"APPDECK_IMAGE": "appdeck/web:abc123",
		"APPDECK_DATA":  "/srv/appdeck/data/web",
		"APPDECK_EMPTY": "",
	}

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"no expressions", "image: nginx", "image: nginx", false},
		{"known variable", "image: ${APPDECK_IMAGE}", "image: appdeck/web:abc123", false},
		{"unknown variable is untouched", "PASSWORD: ${DB_PASSWORD:-secret}", "PASSWORD: ${DB_PASSWORD:-secret}", false},
		{"mixed", "- ${APPDECK_DATA}/db:/var/lib/${DB_DIR}", "- /srv/appdeck/data/web/db:/var/lib/${DB_DIR}", false},
		{"default for empty", "x: ${APPDECK_EMPTY:-fallback}", "x: fallback", false},
		{"escaped", "x: $${APPDECK_IMAGE}", "x: $${APPDECK_IMAGE}", false},
		{"required empty", "x: ${APPDECK_EMPTY:?must be set}", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SubstituteKnown(tt.input, vars)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
