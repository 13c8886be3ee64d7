package main

import (
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ozon/parser/internal/config"
	"ozon/parser/internal/container"
	"ozon/parser/internal/service"
)

func TestNewRootCmd(t *testing.T) {
	cmd := NewRootCmd()

	names := make([]string, 0)
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	assert.ElementsMatch(t, []string{"categories", "subcategories", "items", "import"}, names)

	for _, flag := range []string{"config", "json", "save", "publish"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), flag)
	}

	items, _, err := cmd.Find([]string{"items"})
	require.NoError(t, err)
	assert.NotNil(t, items.Flags().Lookup("resume"))
	assert.NotNil(t, items.Flags().Lookup("fresh"))
}

func TestApp_OptionsDefaultToJSON(t *testing.T) {
	a := &app{}
	assert.Equal(t, service.Options{JSON: true}, a.options())

	a = &app{save: true, fresh: true}
	assert.Equal(t, service.Options{Save: true, Fresh: true}, a.options())
}

func TestApp_Needs(t *testing.T) {
	a := &app{}

	assert.Equal(t, container.Needs{}, a.needs(service.Options{JSON: true}))
	assert.Equal(t, container.Needs{Database: true, Redis: true}, a.needs(service.Options{Save: true, Publish: true}))
	assert.Equal(t, container.Needs{Redis: true}, a.needs(service.Options{JSON: true, Resume: true}))
}

func TestSetupLogging(t *testing.T) {
	t.Cleanup(func() {
		log.SetLevel(log.InfoLevel)
		log.SetFormatter(&log.TextFormatter{})
	})

	require.NoError(t, setupLogging(config.LogConfig{Level: "debug", Format: "json"}))
	assert.Equal(t, log.DebugLevel, log.GetLevel())
	assert.IsType(t, &log.JSONFormatter{}, log.StandardLogger().Formatter)

	assert.Error(t, setupLogging(config.LogConfig{Level: "loud"}))
	assert.Error(t, setupLogging(config.LogConfig{Level: "info", Format: "xml"}))
}
