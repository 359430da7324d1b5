package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProductNormalizesSKU(t *testing.T) {
	p, err := NewProduct("  Widget ", " A widget ", "  wid-001 ", 9.99, 10)
	require.NoError(t, err)

	assert.Equal(t, "Widget", p.Name)
	assert.Equal(t, "A widget", p.Description)
	assert.Equal(t, "WID-001", p.SKU)
	assert.True(t, p.IsActive)
}

func TestNewProductValidation(t *testing.T) {
	tests := []struct {
		name    string
		product func() (*Product, error)
		wantErr error
	}{
		{
			name:    "empty name",
			product: func() (*Product, error) { return NewProduct("  ", "", "WID-001", 9.99, 1) },
			wantErr: ErrEmptyProductName,
		},
		{
			name:    "empty sku",
			product: func() (*Product, error) { return NewProduct("Widget", "", "   ", 9.99, 1) },
			wantErr: ErrEmptySKU,
		},
		{
			name:    "zero price",
			product: func() (*Product, error) { return NewProduct("Widget", "", "WID-001", 0, 1) },
			wantErr: ErrInvalidPrice,
		},
		{
			name:    "negative price",
			product: func() (*Product, error) { return NewProduct("Widget", "", "WID-001", -1, 1) },
			wantErr: ErrInvalidPrice,
		},
		{
			name:    "negative stock",
			product: func() (*Product, error) { return NewProduct("Widget", "", "WID-001", 9.99, -1) },
			wantErr: ErrInvalidStock,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.product()
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestNormalizeSKU(t *testing.T) {
	assert.Equal(t, "WID-001", NormalizeSKU(" wid-001 "))
	assert.Equal(t, "", NormalizeSKU("   "))
}
