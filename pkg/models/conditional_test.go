package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetConditional(t *testing.T) {
	assert.NotNil(t, GetConditional("simple"))
	assert.NotNil(t, GetConditional(""))
	assert.Nil(t, GetConditional("cel"))
}

func TestSimpleConditionalInterpreter_Evaluate(t *testing.T) {
	interpreter := GetConditional("simple")

	tests := []struct {
		name    string
		exp     any
		want    bool
		wantErr bool
	}{
		{name: "nil is true", exp: nil, want: true},
		{name: "true bool", exp: true, want: true},
		{name: "false bool", exp: false, want: false},
		{name: "empty string is true", exp: "", want: true},
		{name: "string true", exp: "true", want: true},
		{name: "string false", exp: "false", want: false},
		{name: "string 1", exp: "1", want: true},
		{name: "string 0", exp: "0", want: false},
		{name: "non-boolean string", exp: "maybe", wantErr: true},
		{name: "nonzero int", exp: 7, want: true},
		{name: "zero int", exp: 0, want: false},
		{name: "nonzero int64", exp: int64(-1), want: true},
		{name: "zero float64", exp: 0.0, want: false},
		{name: "nonzero float64", exp: 0.5, want: true},
		{name: "unsupported type", exp: []string{"a"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := interpreter.Evaluate(tt.exp)

			if tt.wantErr {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
