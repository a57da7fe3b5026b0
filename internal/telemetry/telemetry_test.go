package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yukikurage/project-management-api/internal/config"
)

func TestParseHeaders(t *testing.T) {
	assert.Empty(t, parseHeaders(""))
	assert.Equal(t, map[string]string{
		"Authorization": "Bearer abc=",
		"x-team":        "pm",
	}, parseHeaders("Authorization=Bearer abc=, x-team = pm,broken"))
}

func TestSetup_Disabled(t *testing.T) {
	tel, err := Setup(context.Background(), config.OTelConfig{})
	require.NoError(t, err)
	assert.Nil(t, tel)
	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestSetup_Enabled(t *testing.T) {
	tel, err := Setup(context.Background(), config.OTelConfig{
		Endpoint:       "http://127.0.0.1:4318/",
		ServiceName:    "pm-test",
		ServiceVersion: "test",
	})
	require.NoError(t, err)
	require.NotNil(t, tel)
	assert.NoError(t, tel.Shutdown(context.Background()))
}
