package payload

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"quizrunner/internal/task"
)

// encode pads the plaintext so the base64 run clears the 100-character
// candidate threshold.
func encode(t *testing.T, plaintext string) string {
	t.Helper()
	for len(base64.StdEncoding.EncodeToString([]byte(plaintext))) < 100 {
		plaintext += " "
	}
	return base64.StdEncoding.EncodeToString([]byte(plaintext))
}

func TestDecode_MarkerCandidateSelected(t *testing.T) {
	d := NewDecoder(zap.NewNop())

	run := encode(t, `instruction: {"url":"https://host/doc.pdf"}`)
	extract := &task.PageExtract{BodyText: "some page text " + run + " trailing"}

	p := d.Decode(extract)
	require.NotNil(t, p)
	assert.True(t, p.MarkerHit)
	assert.Contains(t, p.Text, "instruction")
}

func TestDecode_MarkerBeatsDiscoveryOrder(t *testing.T) {
	d := NewDecoder(zap.NewNop())

	first := encode(t, "just some harmless decoded text with numbers 1 2 3")
	second := encode(t, `instruction: fetch {"url":"https://host/doc.pdf"}`)
	extract := &task.PageExtract{BodyText: first + " filler " + second}

	p := d.Decode(extract)
	require.NotNil(t, p)
	assert.True(t, p.MarkerHit)
	assert.Contains(t, p.Text, "instruction")
}

func TestDecode_FallbackToFirstDecoded(t *testing.T) {
	d := NewDecoder(zap.NewNop())

	first := encode(t, "plain decoded text, no recognition string")
	second := encode(t, "another plain decoded blob")
	extract := &task.PageExtract{BodyText: first + " and " + second}

	p := d.Decode(extract)
	require.NotNil(t, p)
	assert.False(t, p.MarkerHit)
	assert.Contains(t, p.Text, "plain decoded text")
}

func TestDecode_InvalidRunsSkipped(t *testing.T) {
	d := NewDecoder(zap.NewNop())

	// 101 chars of base64 alphabet that is not valid base64 (bad length
	// after padding stripping and stray '=' in the middle).
	garbage := strings.Repeat("A", 50) + "=" + strings.Repeat("B", 50)
	valid := encode(t, "recoverable decoded text")
	extract := &task.PageExtract{BodyText: garbage + " " + valid}

	p := d.Decode(extract)
	require.NotNil(t, p)
	assert.Contains(t, p.Text, "recoverable")
}

func TestDecode_NoCandidates(t *testing.T) {
	d := NewDecoder(zap.NewNop())

	assert.Nil(t, d.Decode(&task.PageExtract{BodyText: "short page, nothing embedded"}))
	assert.Nil(t, d.Decode(&task.PageExtract{}))
}

func TestDecode_SearchTextPrecedence(t *testing.T) {
	d := NewDecoder(zap.NewNop())

	inPre := encode(t, "instruction found in pre block")
	inBody := encode(t, "instruction found in body")
	extract := &task.PageExtract{
		PreText:  inPre,
		BodyText: inBody,
	}

	p := d.Decode(extract)
	require.NotNil(t, p)
	assert.Contains(t, p.Text, "pre block")
}

func TestDecode_WhitespaceInsideRun(t *testing.T) {
	d := NewDecoder(zap.NewNop())

	run := encode(t, "instruction with a wrapped base64 run")
	// Insert line breaks the way page renderers wrap long strings.
	wrapped := run[:40] + "\n" + run[40:80] + "\r\n" + run[80:]
	extract := &task.PageExtract{BodyText: wrapped}

	p := d.Decode(extract)
	require.NotNil(t, p)
	assert.True(t, p.MarkerHit)
}

func TestRank_OrderIsStable(t *testing.T) {
	d := NewDecoder(zap.NewNop())

	a := encode(t, "candidate a, no recognition string")
	b := encode(t, "candidate b, no recognition string")
	ranked := d.rank(a + " " + b)
	require.Len(t, ranked, 2)
	assert.Equal(t, 0, ranked[0].Index)
	assert.Contains(t, ranked[0].Decoded, "candidate a")
}
