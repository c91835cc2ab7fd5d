package selection

import (
	"context"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cferrors "github.com/chazuruo/clickflow/internal/errors"
)

func TestParseRect(t *testing.T) {
	tests := []struct {
		region  string
		want    image.Rectangle
		wantErr bool
	}{
		{region: "10,20,110,70", want: image.Rect(10, 20, 110, 70)},
		{region: " 110, 70, 10, 20 ", want: image.Rect(10, 20, 110, 70)},
		{region: "1,2,3", wantErr: true},
		{region: "a,b,c,d", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.region, func(t *testing.T) {
			got, err := ParseRect(tt.region)
			if tt.wantErr {
				assert.True(t, cferrors.IsInvalid(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFixed_Select(t *testing.T) {
	screen := image.NewRGBA(image.Rect(0, 0, 100, 100))

	f, err := NewFixed(10, "0,0,20,20", "50,50,150,150", "30,30,60,60")
	require.NoError(t, err)

	got, err := f.Select(context.Background(), screen, 2)
	require.NoError(t, err)
	assert.Equal(t, []image.Rectangle{image.Rect(0, 0, 20, 20), image.Rect(50, 50, 100, 100)}, got)
}

func TestFixed_SelectErrors(t *testing.T) {
	screen := image.NewRGBA(image.Rect(0, 0, 100, 100))

	_, err := (&Fixed{}).Select(context.Background(), screen, 4)
	assert.True(t, cferrors.IsCanceled(err))

	small, err := NewFixed(10, "0,0,5,40")
	require.NoError(t, err)
	_, err = small.Select(context.Background(), screen, 4)
	assert.True(t, cferrors.IsInvalid(err))

	_, err = NewFixed(10, "nope")
	assert.Error(t, err)
}
