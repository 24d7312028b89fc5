package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSearchTextPrecedence(t *testing.T) {
	cases := []struct {
		name    string
		extract PageExtract
		want    string
	}{
		{"pre wins", PageExtract{PreText: "pre", ResultText: "result", BodyText: "body"}, "pre"},
		{"result next", PageExtract{ResultText: "result", BodyText: "body"}, "result"},
		{"body last", PageExtract{BodyText: "body"}, "body"},
		{"all empty", PageExtract{}, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.extract.SearchText())
		})
	}
}

func TestNewRequest(t *testing.T) {
	req := NewRequest("user@example.com", "s", "https://host/quiz")
	assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", req.ID.String())
	assert.False(t, req.AcceptedAt.IsZero())
	assert.Equal(t, "user@example.com", req.Email)
}
