package util

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculate(t *testing.T) {
	tests := []struct {
		name         string
		page, size   int
		offset, lim  int
	}{
		{name: "first page", page: 1, size: 10, offset: 0, lim: 10},
		{name: "third page", page: 3, size: 10, offset: 20, lim: 10},
		{name: "page below one", page: 0, size: 5, offset: 0, lim: 5},
		{name: "default size", page: 2, size: 0, offset: DefaultPageSize, lim: DefaultPageSize},
		{name: "size capped", page: 1, size: 500, offset: 0, lim: MaxPageSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			offset, limit := Calculate(tt.page, tt.size)
			assert.Equal(t, tt.offset, offset)
			assert.Equal(t, tt.lim, limit)
		})
	}
}

func TestCalculate_HugePageDoesNotOverflow(t *testing.T) {
	offset, limit := Calculate(math.MaxInt/50, 100)
	assert.Equal(t, 100, limit)
	assert.Positive(t, offset)
	assert.Equal(t, (math.MaxInt/100-1)*100, offset)

	offset, _ = Calculate(math.MaxInt, 1)
	assert.Equal(t, math.MaxInt-1, offset)
}

func TestParseIntDefault(t *testing.T) {
	assert.Equal(t, 4, ParseIntDefault("4", 1))
	assert.Equal(t, 1, ParseIntDefault("", 1))
	assert.Equal(t, 1, ParseIntDefault("abc", 1))
}
