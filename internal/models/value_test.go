package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseValue(t *testing.T) {
	tests := []struct {
		name    string
		kind    string
		raw     string
		want    Value
		wantErr bool
	}{
		{"string", "string", "ssh", StringValue("ssh"), false},
		{"default kind", "", "x", StringValue("x"), false},
		{"dword decimal", "dword", "22", DWordValue(22), false},
		{"dword hex", "dword", "0x16", DWordValue(22), false},
		{"dword negative", "dword", "-1", DWordValue(0xffffffff), false},
		{"dword overflow", "dword", "4294967296", Value{}, true},
		{"dword garbage", "dword", "abc", Value{}, true},
		{"unknown kind", "binary", "00", Value{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseValue(tt.kind, tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValueString(t *testing.T) {
	assert.Equal(t, "22", DWordValue(22).String())
	assert.Equal(t, "-1", IntValue(-1).String())
	assert.Equal(t, `a\b`, StringValue(`a\b`).String())
	assert.Equal(t, AttributeView{Kind: "dword", Value: "22"}, DWordValue(22).View())
}

func TestParseCopyPolicy(t *testing.T) {
	p, err := ParseCopyPolicy("include")
	require.NoError(t, err)
	assert.Equal(t, CopyInclude, p)

	_, err = ParseCopyPolicy("some")
	assert.Error(t, err)
}
