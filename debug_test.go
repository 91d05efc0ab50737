package veilcore

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-veilcore/pkg/types"
)

func TestDebug_Commands(t *testing.T) {
	ctx := context.Background()
	c := attachedCore(t, testHub(t), WithNetworkKeyPassword("secret-network"))

	rc := c.RoutingContext()
	desc, err := rc.CreateDHTRecord(ctx, types.NewDFLTSchema(2), types.CryptoKind{}, nil)
	require.NoError(t, err)
	_, err = rc.SetDHTValue(ctx, desc.Key, 0, []byte("v"), nil)
	require.NoError(t, err)
	_, err = rc.WatchDHTValues(ctx, desc.Key, types.ValueSubkeyRangeSet{}, time.Time{}, 3)
	require.NoError(t, err)

	tests := []struct {
		command string
		want    []string
		deny    []string
	}{
		{"help", []string{"txtrecord", "records", "metrics"}, nil},
		{"txtrecord", []string{c.NodeID().String(), "loopback:"}, nil},
		{"attachment", []string{"attached: true"}, nil},
		{"records", []string{desc.Key.String(), "writable", "open records: 1"}, nil},
		{"watches", []string{"watches: 1", desc.Key.String(), "count=3"}, nil},
		{"tables", []string{"tables:"}, nil},
		{"config", []string{"program_name", "********"}, []string{"secret-network"}},
		{"metrics", []string{"veilcore_dht_operations_total", "veilcore_dht_open_records"}, nil},
		{"crypto", []string{"VLD0", "best: VLD0"}, nil},
		{"  RECORDS  ", []string{"open records: 1"}, nil},
	}

	for _, tt := range tests {
		t.Run(strings.TrimSpace(tt.command), func(t *testing.T) {
			out, err := c.Debug(ctx, tt.command)
			require.NoError(t, err)
			assert.NotEmpty(t, out)
			for _, w := range tt.want {
				assert.Contains(t, out, w)
			}
			for _, d := range tt.deny {
				assert.NotContains(t, out, d)
			}
		})
	}
}

func TestDebug_UnknownCommand(t *testing.T) {
	c := startedCore(t, testHub(t))

	out, err := c.Debug(context.Background(), "bogus")
	assert.ErrorIs(t, err, ErrUnknownCommand)
	assert.Contains(t, out, "commands:")

	out, err = c.Debug(context.Background(), "")
	require.NoError(t, err)
	assert.Contains(t, out, "commands:")
}

func TestDebug_RequiresStart(t *testing.T) {
	c := newCore(t, testHub(t))
	_, err := c.Debug(context.Background(), "help")
	assert.ErrorIs(t, err, ErrNotStarted)
}
