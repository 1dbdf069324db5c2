package rfc

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescriptorCache(t *testing.T) {
	c := NewDescriptorCache()
	d, err := NewFunctionDescriptor("STFC_CONNECTION", Parameter{Name: "REQUTEXT", Type: CharType(255)})
	require.NoError(t, err)

	_, ok := c.Get("NPL", "STFC_CONNECTION")
	assert.False(t, ok)

	c.Put("NPL", d)
	got, ok := c.Get("NPL", "stfc_connection")
	require.True(t, ok, "имя функции нечувствительно к регистру")
	assert.Same(t, d, got)

	_, ok = c.Get("QAS", "STFC_CONNECTION")
	assert.False(t, ok, "описания разных систем не смешиваются")

	c.Invalidate("NPL", "STFC_CONNECTION")
	assert.Equal(t, 0, c.Len())
}

func TestDescriptorCache_ConcurrentPut(t *testing.T) {
	c := NewDescriptorCache()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := NewFunctionDescriptor("Z_RACE")
			if err != nil {
				t.Error(err)
				return
			}
			c.Put("NPL", d)
			_, _ = c.Get("NPL", "Z_RACE")
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, c.Len())
}

func TestValue_String(t *testing.T) {
	assert.Equal(t, "00000000", Date{}.String())
	assert.Equal(t, "2024-02-29", DateOf(2024, 2, 29).String())
	assert.Equal(t, "DEAD", Bytes{0xDE, 0xAD}.String())
	assert.Equal(t, "{A=1, B=x}", Record{"B": Text("x"), "A": Int(1)}.String())
	assert.Equal(t, "[2 rows]", Rows{{}, {}}.String())
	assert.Equal(t, "-1.5", MustDecimal("-1.50").String())
}
