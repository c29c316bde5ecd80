package chat

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestValidator_Check(t *testing.T) {
	v := NewValidator([]string{"bad", "  ", "毒品"})

	tests := []struct {
		name string
		in   string
		want error
	}{
		{"plain", "hello", nil},
		{"empty", "", ErrBlank},
		{"whitespace", " \t\n", ErrBlank},
		{"ascii term", "this is bad news", ErrDenied},
		{"cjk term", "关于毒品的问题", ErrDenied},
		{"case sensitive", "BAD", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Check(tt.in)
			if tt.want == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.want)
			require.ErrorIs(t, err, ErrRejected)
		})
	}
}

func TestValidator_BlankTermsIgnored(t *testing.T) {
	v := NewValidator([]string{"", " "})
	require.NoError(t, v.Check("anything"))
	require.True(t, errors.Is(v.Check(""), ErrBlank))
}
