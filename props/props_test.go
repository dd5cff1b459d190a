package props

import (
	"testing"

	"github.com/nguyengg/zbridge/propvar"
	"github.com/stretchr/testify/assert"
)

func TestID_StableValues(t *testing.T) {
	// these values are the engine's wire contract.
	assert.EqualValues(t, 0, NoProperty)
	assert.EqualValues(t, 2, HandlerItemIndex)
	assert.EqualValues(t, 3, Directory)
	assert.EqualValues(t, 7, Size)
	assert.EqualValues(t, 12, LastWriteTime)
	assert.EqualValues(t, 0x1100, TotalSize)
	assert.EqualValues(t, 0x1103, VolumeName)
	assert.EqualValues(t, 0x1200, LocalName)
	assert.EqualValues(t, 0x1201, Provider)
	assert.EqualValues(t, 0x10000, UserDefined)
}

func TestID_String(t *testing.T) {
	assert.Equal(t, "Size", Size.String())
	assert.Equal(t, "LocalName", LocalName.String())
	assert.Equal(t, "UserDefined+7", (UserDefined + 7).String())
	assert.Equal(t, "ID(999)", ID(999).String())
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		id   ID
		kind propvar.Kind
	}{
		{Name, propvar.String},
		{IsFolder, propvar.Bool},
		{Size, propvar.UInt64},
		{Attributes, propvar.UInt32},
		{CRC, propvar.UInt32},
		{LastWriteTime, propvar.FileTime},
		{TotalSize, propvar.UInt64},
		{NoProperty, propvar.Empty},
		{UserDefined + 1, propvar.Empty},
	}
	for _, tt := range tests {
		t.Run(tt.id.String(), func(t *testing.T) {
			assert.Equal(t, tt.kind, KindOf(tt.id))
		})
	}
}
