package source_test

import (
	"strings"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/rivulet-lab/rivulet/pkg/service/source"
)

func TestSplit(t *testing.T) {
	testCases := []struct {
		name        string
		text        string
		granularity source.Granularity
		want        []string
	}{
		{
			name:        "character",
			text:        "Hi!",
			granularity: source.GranularityCharacter,
			want:        []string{"H", "i", "!"},
		},
		{
			name:        "word keeps trailing spaces",
			text:        "hello brave world",
			granularity: source.GranularityWord,
			want:        []string{"hello ", "brave ", "world"},
		},
		{
			name:        "sentence keeps punctuation",
			text:        "First. Second! Third?",
			granularity: source.GranularitySentence,
			want:        []string{"First.", " Second!", " Third?"},
		},
		{
			name:        "empty text",
			text:        "",
			granularity: source.GranularityWord,
			want:        nil,
		},
		{
			name:        "multibyte characters",
			text:        "こんにちは",
			granularity: source.GranularityCharacter,
			want:        []string{"こ", "ん", "に", "ち", "は"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := source.Split(tc.text, tc.granularity)
			gt.Value(t, got).Equal(tc.want)
		})
	}
}

func TestSplitConcatenationIsLossless(t *testing.T) {
	texts := []string{
		"Hello, world!",
		"Multi.\nLine. Text with\ttabs and  double spaces.",
		"no-delimiters-at-all",
		"trailing newline\n",
	}

	for _, text := range texts {
		for _, g := range []source.Granularity{
			source.GranularityCharacter,
			source.GranularityWord,
			source.GranularitySentence,
		} {
			got := strings.Join(source.Split(text, g), "")
			if got != text {
				t.Errorf("Split(%q, %s) lost content: got %q", text, g, got)
			}
		}
	}
}

func TestParseGranularity(t *testing.T) {
	g, err := source.ParseGranularity("sentence")
	gt.NoError(t, err)
	gt.Value(t, g).Equal(source.GranularitySentence)

	_, err = source.ParseGranularity("paragraph")
	gt.Error(t, err)
}
