package main

import (
	"testing"

	_ "github.com/contalibre/contalibre/internal/testing/guard"

	"github.com/contalibre/contalibre/internal/app"
)

func TestMainSkipsStartupInTestMode(t *testing.T) {
	app.RefreshTestMode()
	if !app.InTestMode() {
		t.Fatal("guard import must enable test mode")
	}
	main()
}
