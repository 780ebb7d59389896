package main

import (
	"errors"
	"testing"

	"github.com/lframos/pairchat/internal/config"
	"go.uber.org/zap"
)

func TestRemoteFromConfigRequiresURL(t *testing.T) {
	_, _, err := remoteFromConfig(&config.Config{}, zap.NewNop())
	if !errors.Is(err, errNoRemote) {
		t.Errorf("err = %v, want errNoRemote", err)
	}
}
