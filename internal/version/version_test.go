package version

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bemekit/internal/errs"
)

func TestStringAndIntegerFormsAgree(t *testing.T) {
	fromString, err := Release("v24.07.15")
	require.NoError(t, err)
	fromInt, err := Release("240715")
	require.NoError(t, err)
	require.Equal(t, fromString, fromInt)
	assert.Equal(t, "releases/24.6.0", fromString)
}

func TestParse(t *testing.T) {
	cases := []struct {
		in   string
		want Number
	}{
		{"v24.07.15", 240715},
		{"v25.2.0", 250200},
		{"240601", 240601},
		{" v23.06.00 ", 230600},
	}
	for _, tc := range cases {
		got, err := Parse(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "latest", "vX.Y.Z", "v24.100.1"} {
		_, err := Parse(in)
		require.Error(t, err, in)
		assert.True(t, errors.Is(err, errs.ErrVersionIncompatible), in)
	}
}

func TestReleaseTable(t *testing.T) {
	cases := []struct {
		in   Number
		want Number
	}{
		{230600, 240400},
		{240599, 240400},
		{240600, 240600},
		{241099, 240600},
		{241100, 241100},
		{241200, 241200},
		{250199, 241200},
		{250200, 250200},
		{250602, 250200},
	}
	for _, tc := range cases {
		got, err := ReleaseFor(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestOutOfRangeVersionsFail(t *testing.T) {
	for _, n := range []Number{220101, 230599, 250603, 260101} {
		_, err := ReleaseFor(n)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errs.ErrVersionIncompatible))
		assert.Contains(t, err.Error(), n.String())
	}

	_, err := Release("220101")
	assert.True(t, errors.Is(err, errs.ErrVersionIncompatible))
}

func TestNumberString(t *testing.T) {
	assert.Equal(t, "v24.07.15", Number(240715).String())
	assert.Equal(t, "releases/25.2.0", ReleaseID(250200))
}
