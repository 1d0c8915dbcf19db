package descriptor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeEditsSerialize(t *testing.T) {
	doc, err := Parse([]byte("services:\n  web:\n    image: app\n    build: .\n"))
	require.NoError(t, err)

	web := doc.Service("web")
	Set(web, "image", StringNode("appdeck/web:abc123"))
	assert.True(t, Delete(web, "build"))
	assert.False(t, Delete(web, "build"))
	assert.True(t, SetDefault(web, "cpus", NumberOrStringNode("0.5")))
	assert.True(t, SetDefault(web, "mem_limit", NumberOrStringNode("512m")))
	assert.False(t, SetDefault(web, "cpus", NumberOrStringNode("2")))
	Set(web, "networks", SequenceNode("default", "appdeck"))

	out, err := doc.Serialize()
	require.NoError(t, err)
	assert.Equal(t, `services:
  web:
    image: appdeck/web:abc123
    cpus: 0.5
    mem_limit: 512m
    networks:
      - default
      - appdeck
`, string(out))
}

func TestNumberOrStringNode(t *testing.T) {
	assert.Equal(t, "!!int", NumberOrStringNode("2").Tag)
	assert.Equal(t, "!!float", NumberOrStringNode("1.5").Tag)
	assert.Equal(t, "!!str", NumberOrStringNode("1g").Tag)
}
