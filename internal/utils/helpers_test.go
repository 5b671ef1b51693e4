package utils_test

import (
	"testing"

	"github.com/benmeehan/iot-relay/internal/utils"
	"github.com/stretchr/testify/assert"
)

func TestSliceToSet(t *testing.T) {
	set := utils.SliceToSet([]string{"https://a.example", "https://b.example", "https://a.example"})

	assert.Len(t, set, 2)
	assert.Contains(t, set, "https://a.example")
	assert.Contains(t, set, "https://b.example")
	assert.Empty(t, utils.SliceToSet[string](nil))
}
