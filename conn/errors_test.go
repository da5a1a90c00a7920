package conn_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	. "github.com/mongowire/mongowire/conn"
	"github.com/mongowire/mongowire/internal"
)

func TestIsStateChangeError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"not master by code", &CommandError{Code: 10107, Name: "NotMaster"}, true},
		{"not master no slaveOk", &CommandError{Code: 13435}, true},
		{"primary stepped down", &CommandError{Code: 189}, true},
		{"shutdown in progress", &CommandError{Code: 91}, true},
		{"interrupted by state change", &CommandError{Code: 11602}, true},
		{"not master by message", &CommandError{Message: "not master"}, true},
		{"recovering by message", &CommandError{Message: "node is recovering"}, true},
		{"wrapped", internal.WrapError(&CommandError{Code: 10107}, "failed running command"), true},
		{"ordinary command error", &CommandError{Code: 11000, Message: "duplicate key"}, false},
		{"network error", &NetworkError{}, false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, IsStateChangeError(tt.err))
		})
	}
}
