package goseven

import (
	"errors"
	"fmt"
	"testing"

	"github.com/nguyengg/zbridge/engine"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	// the library keeps its error values unexported, so the mapping is pinned to the message texts it actually
	// produces.
	tests := []struct {
		err  error
		want engine.OpResult
	}{
		{nil, engine.OpOK},
		{errors.New("sevenzip: checksum error"), engine.OpCRCError},
		{fmt.Errorf("read body: %w", errors.New("sevenzip: checksum error")), engine.OpCRCError},
		{errors.New("sevenzip: unsupported compression algorithm"), engine.OpUnsupportedMethod},
		{errors.New("CRC mismatch"), engine.OpCRCError},
		{errors.New("sevenzip: expected format header"), engine.OpDataError},
		{errors.New("unexpected EOF"), engine.OpDataError},
	}
	for _, tt := range tests {
		name := "nil"
		if tt.err != nil {
			name = tt.err.Error()
		}
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, classify(tt.err))
		})
	}
}
