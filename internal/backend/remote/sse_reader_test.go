package remote

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanRecords_AccumulatesMultiLineData(t *testing.T) {
	input := "event: message\nid: evt-1\ndata: line one\ndata: line two\n\n"
	var got []record
	require.NoError(t, scanRecords(strings.NewReader(input), func(r record) { got = append(got, r) }))

	require.Len(t, got, 1)
	assert.Equal(t, "message", got[0].Event)
	assert.Equal(t, "evt-1", got[0].ID)
	assert.Equal(t, "line one\nline two", got[0].Data)
}

func TestScanRecords_SkipsRecordsWithEmptyData(t *testing.T) {
	input := "event: status\nid: evt-2\n\nevent: message\nid: evt-3\ndata: hello\n\n"
	var got []record
	require.NoError(t, scanRecords(strings.NewReader(input), func(r record) { got = append(got, r) }))

	require.Len(t, got, 1)
	assert.Equal(t, "evt-3", got[0].ID)
}

func TestScanRecords_FlushesTrailingRecordWithoutFinalBlankLine(t *testing.T) {
	input := "event: message\nid: evt-4\ndata: no trailing blank line"
	var got []record
	require.NoError(t, scanRecords(strings.NewReader(input), func(r record) { got = append(got, r) }))

	require.Len(t, got, 1)
	assert.Equal(t, "evt-4", got[0].ID)
	assert.Equal(t, "no trailing blank line", got[0].Data)
}

func TestScanRecords_MultipleRecordsInSequence(t *testing.T) {
	input := "event: message\nid: e1\ndata: a\n\nevent: message\nid: e2\ndata: b\n\n"
	var got []record
	require.NoError(t, scanRecords(strings.NewReader(input), func(r record) { got = append(got, r) }))

	require.Len(t, got, 2)
	assert.Equal(t, "e1", got[0].ID)
	assert.Equal(t, "e2", got[1].ID)
}
