package repair

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsValidRefContents(t *testing.T) {
	t.Parallel()

	sha := strings.Repeat("a1", 20)

	tests := []struct {
		name     string
		contents string
		want     bool
	}{
		{"symbolic_ref", "ref: refs/heads/main", true},
		{"symbolic_ref_trailing_newline", "ref: refs/heads/main\n", true},
		{"symbolic_ref_upper_case", "REF: REFS/heads/main", true},
		{"symbolic_ref_mixed_case", "Ref: Refs/heads/feature", true},
		{"plain_sha", sha, true},
		{"sha_trailing_whitespace", sha + " \t\r\n", true},
		{"empty", "", false},
		{"whitespace_only", "  \n", false},
		{"garbage", "garbage", false},
		{"sha_too_short", strings.Repeat("a", 39), false},
		{"sha_too_long", strings.Repeat("a", 41), false},
		{"sha_upper_hex", strings.Repeat("A", 40), false},
		{"sha_non_hex", strings.Repeat("g", 40), false},
		{"sha_leading_whitespace", " " + sha, false},
		{"symbolic_wrong_namespace", "ref: notrefs/heads/main", false},
		{"symbolic_missing_space", "ref:refs/heads/main", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsValidRefContents(tt.contents),
				"IsValidRefContents(%q)", tt.contents)
		})
	}
}

func TestParseRefLogLine(t *testing.T) {
	t.Parallel()

	oldSHA := strings.Repeat("0", 40)
	newSHA := "deadbeef" + strings.Repeat("0", 32)

	t.Run("full_line", func(t *testing.T) {
		t.Parallel()
		line := oldSHA + " " + newSHA + " A User <user@example.com> 1700000000 +0000\tcommit: message"
		entry, err := ParseRefLogLine(line)
		require.NoError(t, err)
		assert.Equal(t, oldSHA, entry.SourceSHA)
		assert.Equal(t, newSHA, entry.TargetSHA)
	})

	t.Run("minimal_line", func(t *testing.T) {
		t.Parallel()
		entry, err := ParseRefLogLine(oldSHA + " " + newSHA)
		require.NoError(t, err)
		assert.Equal(t, newSHA, entry.TargetSHA)
	})

	t.Run("missing_field", func(t *testing.T) {
		t.Parallel()
		_, err := ParseRefLogLine(oldSHA)
		assert.Error(t, err)
	})

	t.Run("empty", func(t *testing.T) {
		t.Parallel()
		_, err := ParseRefLogLine("")
		assert.Error(t, err)
	})

	t.Run("non_hex_target", func(t *testing.T) {
		t.Parallel()
		_, err := ParseRefLogLine(oldSHA + " not-a-sha rest")
		assert.Error(t, err)
	})
}

func TestLastLine(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "c", lastLine([]byte("a\nb\nc")))
	assert.Equal(t, "c", lastLine([]byte("a\nb\nc\n")))
	assert.Equal(t, "only", lastLine([]byte("only\n")))
	assert.Equal(t, "", lastLine([]byte("")))
}
