package chat_test

import (
	"testing"

	"github.com/mahaj/carmarket-chat/pkg/chat"
	"github.com/mahaj/carmarket-chat/pkg/chat/chattest"
	"github.com/mahaj/carmarket-chat/pkg/snowflake"
)

func TestMemoryStoreContract(t *testing.T) {
	t.Parallel()
	ids, err := snowflake.NewNode(2)
	if err != nil {
		t.Fatal(err)
	}
	chattest.RunStoreTests(t, chat.NewMemoryStore(ids))
}
