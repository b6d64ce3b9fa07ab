package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/capsula-erp/capsula/internal/app"
	_ "github.com/capsula-erp/capsula/testing"
)

func TestMainReturnsInTestMode(t *testing.T) {
	require.True(t, app.InTestMode())
	require.NotPanics(t, main)
}
