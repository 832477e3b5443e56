package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	for s, want := range map[string]Level{
		"e": Error, "WARN": Warn, "info": Info, "D": Debug, "trace": MaxLevel, "3": Level(3), "-2": Error,
	} {
		level, err := ParseLevel(s)
		require.NoError(t, err, s)
		assert.Equal(t, want, level, s)
	}

	_, err := ParseLevel("10")
	assert.Error(t, err)
	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

func TestLoggerOutput(t *testing.T) {
	var out bytes.Buffer
	root := &Logger{Info, "", &output{w: &out}}
	log := root.WithTag("rtp")

	log.Info("hello %d", 42)
	log.Debug("suppressed")

	line := out.String()
	assert.True(t, strings.HasSuffix(line, " hello 42\n"), line)
	assert.Contains(t, line, "I/rtp[logger_test.go:")
	assert.NotContains(t, line, "suppressed")
	assert.Equal(t, 1, strings.Count(line, "\n"))
}

func TestConfigureTagLevels(t *testing.T) {
	saved := tagLevels
	defer func() { tagLevels = saved }()

	err := Configure("srtp=debug,bogus=loud")
	assert.Error(t, err)

	root := &Logger{Info, "", &output{w: &bytes.Buffer{}}}
	assert.Equal(t, Debug, root.WithTag("srtp").Level)
	assert.Equal(t, Info, root.WithTag("rtp").Level)
	assert.True(t, root.WithTag("srtp").Enabled(Debug))
}
