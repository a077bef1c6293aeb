package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"testing"

	"go.viam.com/test"
)

type BasicStruct struct {
	X int
	y string
}

// assertLogMatches fuzzy matches a log line. The time is only checked for its length and the
// caller line number only for being a number.
func assertLogMatches(t *testing.T, actual *bytes.Buffer, expected string) {
	t.Helper()

	output, err := actual.ReadString('\n')
	test.That(t, err, test.ShouldBeNil)

	actualParts := strings.Split(strings.TrimSuffix(output, "\n"), "\t")
	expectedParts := strings.Split(expected, "\t")
	test.That(t, len(actualParts), test.ShouldEqual, len(expectedParts))

	test.That(t, len(actualParts[0]), test.ShouldEqual, len(expectedParts[0]))
	// Level and logger name.
	test.That(t, actualParts[1], test.ShouldEqual, expectedParts[1])
	test.That(t, actualParts[2], test.ShouldEqual, expectedParts[2])

	actualFilename, actualLineNumber, found := strings.Cut(actualParts[3], ":")
	test.That(t, found, test.ShouldBeTrue)
	expectedFilename, _, found := strings.Cut(expectedParts[3], ":")
	test.That(t, found, test.ShouldBeTrue)
	test.That(t, actualFilename, test.ShouldEqual, expectedFilename)
	_, err = strconv.Atoi(actualLineNumber)
	test.That(t, err, test.ShouldBeNil)

	test.That(t, actualParts[4], test.ShouldEqual, expectedParts[4])
	if len(actualParts) == 5 {
		return
	}

	expectedMap := make(map[string]any)
	test.That(t, json.Unmarshal([]byte(expectedParts[5]), &expectedMap), test.ShouldBeNil)
	actualMap := make(map[string]any)
	test.That(t, json.Unmarshal([]byte(actualParts[5]), &actualMap), test.ShouldBeNil)
	test.That(t, actualMap, test.ShouldResemble, expectedMap)
}

func TestConsoleOutputFormat(t *testing.T) {
	notStdout := &bytes.Buffer{}
	logger := &impl{name: "space", level: NewAtomicLevelAt(DEBUG), inUTC: true, appenders: []Appender{NewWriterAppender(notStdout)}}

	logger.Debugf("loaded %d links", 7)
	assertLogMatches(t, notStdout,
		"2023-10-30T09:12:09.459Z\tDEBUG\tspace\tlogging/impl_test.go:60\tloaded 7 links")

	logger.Debugw("setup", "group", "arm", "links", 7)
	assertLogMatches(t, notStdout,
		`2023-10-30T09:12:09.459Z	DEBUG	space	logging/impl_test.go:64	setup	{"group":"arm","links":7}`)

	// Private fields are not serialized.
	logger.Warnw("struct", "value", BasicStruct{1, "hidden"})
	assertLogMatches(t, notStdout,
		`2023-10-30T09:12:09.459Z	WARN	space	logging/impl_test.go:69	struct	{"value":{"X":1}}`)

	logger.Errorw("unpaired", "key")
	assertLogMatches(t, notStdout,
		`2023-10-30T09:12:09.459Z	ERROR	space	logging/impl_test.go:73	unpaired	{"key":"unpaired log key"}`)
}

func TestLevels(t *testing.T) {
	notStdout := &bytes.Buffer{}
	logger := &impl{name: "space", level: NewAtomicLevelAt(WARN), inUTC: true, appenders: []Appender{NewWriterAppender(notStdout)}}

	logger.Infow("dropped")
	logger.Debugw("dropped")
	logger.CDebugw(context.Background(), "dropped")
	test.That(t, notStdout.Len(), test.ShouldEqual, 0)

	logger.CDebugw(EnableDebugMode(context.Background(), ""), "kept")
	assertLogMatches(t, notStdout,
		"2023-10-30T09:12:09.459Z\tDEBUG\tspace\tlogging/impl_test.go:87\tkept")

	sub := logger.Sublogger("session")
	test.That(t, sub.GetLevel(), test.ShouldEqual, WARN)
	sub.SetLevel(INFO)
	test.That(t, logger.GetLevel(), test.ShouldEqual, WARN)
	sub.Infow("from sub")
	assertLogMatches(t, notStdout,
		"2023-10-30T09:12:09.459Z\tINFO\tspace.session\tlogging/impl_test.go:95\tfrom sub")
	test.That(t, logger.Sync(), test.ShouldBeNil)
}

func TestLevelParsing(t *testing.T) {
	for _, name := range []string{"debug", "INFO", "Warn", "warning", "error"} {
		level, err := LevelFromString(name)
		test.That(t, err, test.ShouldBeNil)
		data, err := json.Marshal(level)
		test.That(t, err, test.ShouldBeNil)
		var parsed Level
		test.That(t, json.Unmarshal(data, &parsed), test.ShouldBeNil)
		test.That(t, parsed, test.ShouldEqual, level)
	}
	_, err := LevelFromString("loud")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestObservedTestLogger(t *testing.T) {
	logger, logs := NewObservedTestLogger(t)
	logger.Sublogger("field").Infow("propagated", "cells", 12)
	test.That(t, logs.FilterMessage("propagated").Len(), test.ShouldEqual, 1)
	test.That(t, logs.All()[0].LoggerName, test.ShouldEqual, "field")
	test.That(t, IsDebugMode(context.Background()), test.ShouldBeFalse)
	test.That(t, IsDebugMode(EnableDebugMode(context.Background(), "abc")), test.ShouldBeTrue)
}
