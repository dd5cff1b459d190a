package engine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormat_ClassID(t *testing.T) {
	id := Format7z.ClassID()
	assert.Equal(t, byte(0x07), id[13])

	// only the format octet varies between class identifiers.
	zip := FormatZip.ClassID()
	zip[13] = 0x07
	assert.Equal(t, id, zip)
}

func TestFormatByExtension(t *testing.T) {
	tests := []struct {
		ext    string
		format Format
		ok     bool
	}{
		{".7z", Format7z, true},
		{"7z", Format7z, true},
		{".ZIP", FormatZip, true},
		{".tgz", FormatGZip, true},
		{".tar", FormatTar, true},
		{".rar", FormatRar, true},
		{".docx", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			f, ok := FormatByExtension(tt.ext)
			assert.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.format, f)
			}
		})
	}
}

func TestHResult_Err(t *testing.T) {
	assert.NoError(t, hrOK.err("open"))
	assert.NoError(t, hrFalse.err("open"))

	err := hrAbort.err("extract")
	assert.ErrorIs(t, err, ErrAbort)

	err = hrFail.err("open")
	var ee *EngineError
	assert.ErrorAs(t, err, &ee)
	assert.Equal(t, hrFail, ee.HR)
	assert.Contains(t, err.Error(), "open")
}

func TestToHResult(t *testing.T) {
	assert.Equal(t, hrOK, toHResult(nil))
	assert.Equal(t, hrAbort, toHResult(ErrAbort))
	assert.Equal(t, hrAbort, toHResult(fmt.Errorf("callback: %w", ErrAbort)))
	assert.Equal(t, hrFail, toHResult(errors.New("anything else")))
}

func TestOpResult_String(t *testing.T) {
	assert.Equal(t, "OK", OpOK.String())
	assert.Equal(t, "CRCError", OpCRCError.String())
	assert.Equal(t, "OpResult(9)", OpResult(9).String())
}
