package propvar

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVariant_ZeroValueIsEmpty(t *testing.T) {
	var v Variant
	assert.Equal(t, Empty, v.Kind())
	assert.True(t, v.IsEmpty())
}

func TestVariant_ClearIsIdempotent(t *testing.T) {
	released := 0
	v := NewString(NewStringRef(0xbeef, "hello", func() error {
		released++
		return nil
	}))

	assert.NoError(t, v.Clear())
	assert.Equal(t, Empty, v.Kind())

	// second clear must be a no-op, in particular no double release.
	assert.NoError(t, v.Clear())
	assert.Equal(t, Empty, v.Kind())
	assert.Equal(t, 1, released)
}

func TestVariant_ClearScalarIsTagReset(t *testing.T) {
	v := NewUInt64(42)
	assert.NoError(t, v.Clear())
	assert.True(t, v.IsEmpty())
}

func TestVariant_ClearReleaseFailureStillResets(t *testing.T) {
	cause := errors.New("engine busy")
	v := NewPointer(0x1234, func() error { return cause })

	err := v.Clear()

	var re *ReleaseError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, Pointer, re.Kind)
	assert.ErrorIs(t, err, cause)

	// the reset happened regardless of the release failure.
	assert.True(t, v.IsEmpty())
	assert.NoError(t, v.Clear())
}

func TestVariant_KindMismatch(t *testing.T) {
	v := NewBool(true)

	_, err := v.Uint64()

	var ke *KindError
	require.ErrorAs(t, err, &ke)
	assert.Equal(t, UInt64, ke.Want)
	assert.Equal(t, Bool, ke.Got)
}

func TestVariant_ScalarEquality(t *testing.T) {
	tests := []struct {
		name string
		a, b Variant
		want bool
	}{
		{name: "EmptyEqualsEmpty", a: Variant{}, b: Variant{}, want: true},
		{name: "SameUInt32", a: NewUInt32(7), b: NewUInt32(7), want: true},
		{name: "DifferentUInt32", a: NewUInt32(7), b: NewUInt32(8), want: false},
		{name: "KindsDifferEvenIfWidenedPayloadMatches", a: NewUInt32(7), b: NewUInt64(7), want: false},
		{name: "BoolTrue", a: NewBool(true), b: NewBool(true), want: true},
		{name: "Int64Negative", a: NewInt64(-1), b: NewInt64(-1), want: true},
		{name: "SameTicks", a: NewTicks(116444736000000000), b: NewTicks(116444736000000000), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Equal(tt.b))
			assert.Equal(t, tt.want, tt.b.Equal(tt.a))
			if tt.want {
				assert.Equal(t, tt.a.Hash(), tt.b.Hash())
			}
		})
	}
}

func TestVariant_StringEqualityIsByReference(t *testing.T) {
	a := NewStringRef(0x1000, "same contents", nil)
	b := NewStringRef(0x2000, "same contents", nil)

	// same contents, different referenced allocation: not equal.
	assert.False(t, NewString(a).Equal(NewString(b)))

	// same allocation: equal.
	assert.True(t, NewString(a).Equal(NewString(NewStringRef(0x1000, "same contents", nil))))
}

func TestFileTime_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		t    time.Time
	}{
		{name: "UnixEpoch", t: time.Unix(0, 0).UTC()},
		{name: "WithTickPrecision", t: time.Date(2024, 3, 14, 1, 59, 26, 535_897_900, time.UTC)},
		{name: "WholeSecond", t: time.Date(1999, 12, 31, 23, 59, 59, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewFileTime(tt.t)

			got, err := v.FileTime()
			require.NoError(t, err)
			assert.True(t, got.Equal(tt.t), "round trip mismatch: got %v, want %v", got, tt.t)
		})
	}
}

func TestFileTime_KnownTickValue(t *testing.T) {
	// 116444736000000000 ticks is exactly the Unix epoch.
	assert.Equal(t, time.Unix(0, 0).UTC(), TimeFromTicks(116444736000000000))
	assert.Equal(t, uint64(116444736000000000), TicksFromTime(time.Unix(0, 0)))
}

func TestScoped_ClearsOnError(t *testing.T) {
	released := false
	v := NewPointer(0xcafe, func() error {
		released = true
		return nil
	})

	cause := errors.New("boom")
	err := Scoped(&v, func(*Variant) error { return cause })

	assert.ErrorIs(t, err, cause)
	assert.True(t, released)
	assert.True(t, v.IsEmpty())
}
