package telegram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testChannel() *Channel {
	return &Channel{config: &Config{BotToken: "test-token"}}
}

func TestParseUpdateMessage(t *testing.T) {
	payload := []byte(`{
		"update_id": 100,
		"message": {
			"message_id": 1,
			"from": {"id": 987654, "username": "mom_account"},
			"chat": {"id": 42},
			"text": "add milk to the grocery list"
		}
	}`)

	msg, err := testChannel().ParseUpdate(payload)
	require.NoError(t, err)
	assert.Equal(t, "987654", msg.PlatformUserID)
	assert.Equal(t, int64(42), msg.ChatID)
	assert.Equal(t, "mom_account", msg.Username)
	assert.Equal(t, "add milk to the grocery list", msg.Content)
}

func TestParseUpdateRejectsNonMessage(t *testing.T) {
	_, err := testChannel().ParseUpdate([]byte(`{"update_id": 100}`))
	assert.ErrorIs(t, err, ErrInvalidPayload)

	_, err = testChannel().ParseUpdate([]byte(`not json`))
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestParseUpdateRejectsEmptyText(t *testing.T) {
	payload := []byte(`{
		"update_id": 100,
		"message": {
			"message_id": 1,
			"from": {"id": 987654},
			"chat": {"id": 42},
			"text": ""
		}
	}`)
	_, err := testChannel().ParseUpdate(payload)
	assert.ErrorIs(t, err, ErrInvalidPayload)
}
