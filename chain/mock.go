package chain

import (
	"context"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/ok300/lwk/descriptor"
	"github.com/ok300/lwk/ewire"
	"github.com/ok300/lwk/wtxmgr"
	"github.com/stretchr/testify/mock"
)

// MockBackend is a testify mock of Backend.
type MockBackend struct {
	mock.Mock
}

// A compile-time assertion to ensure MockBackend implements Backend.
var _ Backend = (*MockBackend)(nil)

// Scan implements Backend.
func (m *MockBackend) Scan(ctx context.Context, desc *descriptor.Descriptor,
	state *wtxmgr.ScanState) (*wtxmgr.Update, error) {

	args := m.Called(ctx, desc, state)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*wtxmgr.Update), args.Error(1)
}

// Broadcast implements Backend.
func (m *MockBackend) Broadcast(ctx context.Context,
	tx *ewire.MsgTx) (chainhash.Hash, error) {

	args := m.Called(ctx, tx)

	return args.Get(0).(chainhash.Hash), args.Error(1)
}

// Tip implements Backend.
func (m *MockBackend) Tip(ctx context.Context) (wtxmgr.BlockStamp, error) {
	args := m.Called(ctx)

	return args.Get(0).(wtxmgr.BlockStamp), args.Error(1)
}
