package cli

import (
	"testing"

	"github.com/m-mizutani/gt"
)

func TestIndexConfig(t *testing.T) {
	cfg := getIndexConfig()
	gt.Array(t, cfg.Collections).Length(2)

	streams := cfg.Collections[0]
	gt.Value(t, streams.Name).Equal("streams")
	gt.Array(t, streams.Indexes).Length(1)
	gt.Value(t, streams.Indexes[0].Fields[0].Path).Equal("status")
	gt.Value(t, streams.Indexes[0].Fields[1].Path).Equal("updated_at")

	messages := cfg.Collections[1]
	gt.Value(t, messages.Name).Equal("messages")
	gt.Array(t, messages.Indexes).Length(2)
}
