package answerkey

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/ielts-mock/internal/model"
	"github.com/stemsi/ielts-mock/internal/scoring"
)

func TestDefault(t *testing.T) {
	c := Default()

	assert.Len(t, c.Variants(model.SectionListening), 10)
	assert.Len(t, c.Variants(model.SectionReading), 10)

	key, err := c.AnswerKey(context.Background(), model.SectionListening, 1)
	require.NoError(t, err)
	assert.Equal(t, 14, key.Len())
	assert.Equal(t, "CLUBS", key["1"])
	assert.Equal(t, "GUESS", key["14"])

	key, err = c.AnswerKey(context.Background(), model.SectionReading, 1)
	require.NoError(t, err)
	assert.Equal(t, 9, key.Len())
}

func TestDefault_VariantsOrdered(t *testing.T) {
	vs := Default().Variants(model.SectionReading)
	for i, v := range vs {
		assert.Equal(t, i+1, v.ID)
		assert.Positive(t, v.Questions)
	}
}

func TestAnswerKey_UnknownVariant(t *testing.T) {
	c := Default()

	_, err := c.AnswerKey(context.Background(), model.SectionReading, 11)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownTestVariant))

	var uv *UnknownTestVariantError
	require.True(t, errors.As(err, &uv))
	assert.Equal(t, model.SectionReading, uv.Section)
	assert.Equal(t, 11, uv.TestID)

	_, err = c.AnswerKey(context.Background(), model.SectionWriting, 1)
	assert.ErrorIs(t, err, ErrUnknownTestVariant)
}

func TestAnswerKey_ReturnsCopy(t *testing.T) {
	c := Default()

	key, err := c.AnswerKey(context.Background(), model.SectionReading, 2)
	require.NoError(t, err)
	key["1"] = "tampered"

	again, err := c.AnswerKey(context.Background(), model.SectionReading, 2)
	require.NoError(t, err)
	assert.Equal(t, "TRUE", again["1"])
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"not yaml", "listening: [\n"},
		{"zero id", "reading:\n  - id: 0\n    answers: {\"1\": A}\n"},
		{"duplicate id", "reading:\n  - id: 1\n    answers: {\"1\": A}\n  - id: 1\n    answers: {\"1\": B}\n"},
		{"no valid answers", "listening:\n  - id: 1\n    answers: {x: A}\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.yaml")
	data := "reading:\n  - id: 3\n    title: Custom\n    answers:\n      \"1\": \"TRUE\"\n      \"2\": \"NOT GIVEN\"\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	c, err := LoadFile(path)
	require.NoError(t, err)

	key, err := c.AnswerKey(context.Background(), model.SectionReading, 3)
	require.NoError(t, err)
	assert.Equal(t, scoring.AnswerKey{"1": "TRUE", "2": "NOT GIVEN"}, key)
	assert.False(t, c.HasVariant(model.SectionListening, 1))

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
