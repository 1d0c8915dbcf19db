package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusIdle, StatusImporting, true},
		{StatusImporting, StatusImported, true},
		{StatusImporting, StatusError, true},
		{StatusImported, StatusBuilding, true},
		{StatusImported, StatusInstalling, true},
		{StatusBuilding, StatusInstalling, true},
		{StatusInstalling, StatusSuccess, true},
		{StatusSuccess, StatusBuilding, true},
		{StatusSuccess, StatusStarting, true},
		{StatusStarting, StatusSuccess, true},
		{StatusStopping, StatusError, true},
		{StatusError, StatusBuilding, true},
		{StatusError, StatusInstalling, true},
		{StatusUninstalling, StatusError, true},

		{StatusIdle, StatusSuccess, false},
		{StatusImported, StatusSuccess, false},
		{StatusImported, StatusStarting, false},
		{StatusBuilding, StatusSuccess, false},
		{StatusInstalling, StatusBuilding, false},
		{StatusUninstalling, StatusUninstalling, false},
		{StatusSuccess, Status("bogus"), false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestUninstallingReachableFromEveryState(t *testing.T) {
	for s := range transitions {
		if s == StatusUninstalling {
			continue
		}
		assert.True(t, CanTransition(s, StatusUninstalling), s)
	}
}

func TestCheckTransitionWrapsSentinel(t *testing.T) {
	err := CheckTransition(StatusIdle, StatusSuccess)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Contains(t, err.Error(), "idle -> success")
	assert.NoError(t, CheckTransition(StatusIdle, StatusImporting))
}

func TestTransient(t *testing.T) {
	assert.True(t, StatusBuilding.Transient())
	assert.True(t, StatusUninstalling.Transient())
	assert.False(t, StatusSuccess.Transient())
	assert.False(t, StatusImported.Transient())
	assert.False(t, StatusError.Transient())
}
