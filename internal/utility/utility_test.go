package utility

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseDataURI(t *testing.T) {
	mime, data, err := ParseDataURI("data:image/png;base64,aGVsbG8=")
	require.NoError(t, err)
	require.Equal(t, "image/png", mime)
	require.Equal(t, "aGVsbG8=", data)
}

func TestParseDataURI_Malformed(t *testing.T) {
	cases := map[string]string{
		"not a data uri":    "https://example.com/image.png",
		"no separator":      "data:image/png;base64",
		"not base64 tagged": "data:image/png;utf8,hello",
		"no mime type":      "data:;base64,aGVsbG8=",
		"invalid base64":    "data:image/png;base64,!!!not-base64!!!",
	}

	for name, uri := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := ParseDataURI(uri)
			require.Error(t, err)
		})
	}
}

func TestStringPtr(t *testing.T) {
	require.Nil(t, StringPtr(""))
	require.Equal(t, "x", *StringPtr("x"))
}
