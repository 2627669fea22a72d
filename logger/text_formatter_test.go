package logger

import (
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

type nodeSet struct {
	Name  string
	Nodes int
}

func TestFormatNilPointerField(t *testing.T) {
	var ns *nodeSet

	c := DebugConfig()
	tf := &textFormatter{c.TextFormat, jsonFormatter{conf: c.JSONFormat}}

	entry := logrus.WithFields(logrus.Fields{
		"ns":        "TEST",
		"nil value": ns,
	})
	_, err := tf.Format(entry)
	assert.NoError(t, err)
}

func TestFormatStructField(t *testing.T) {
	c := DebugConfig()
	c.TextFormat.DisableTimestamp = true
	tf := &textFormatter{c.TextFormat, jsonFormatter{conf: c.JSONFormat}}

	entry := logrus.WithFields(logrus.Fields{
		"ns":      "TEST",
		"nodeset": nodeSet{Name: "jdoe_3", Nodes: 2},
	})
	entry.Message = "allocating"
	out, err := tf.Format(entry)
	assert.NoError(t, err)

	s := string(out)
	assert.Contains(t, s, "allocating")
	assert.Contains(t, s, "jdoe_3")
	// ns is printed on the header line only
	assert.Equal(t, 1, strings.Count(s, "TEST"))
}
