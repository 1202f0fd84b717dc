package transport

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/posfleet/printpool/internal/printer"
)

func TestUSBOpenHonorsContext(t *testing.T) {
	a := newUSBAdapter(&printer.USBParams{VendorID: 0x04b8, ProductID: 0x0202}, Timeouts{}.withDefaults())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := a.Open(ctx)
	assert.ErrorIs(t, err, ErrConnectionFailed)
	assert.ErrorContains(t, err, "context canceled")
}
