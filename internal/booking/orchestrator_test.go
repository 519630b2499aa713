package booking

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/swellwatch/internal/provider"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubBooker struct {
	mu    sync.Mutex
	calls []string
	// fail maps member id to the error returned for that member.
	fail map[string]error
	// panicOn triggers a panic for that member id.
	panicOn string
}

func (b *stubBooker) CreateBooking(ctx context.Context, memberID string, slot provider.SlotDescriptor) (provider.Confirmation, error) {
	b.mu.Lock()
	b.calls = append(b.calls, memberID)
	b.mu.Unlock()
	if memberID == b.panicOn {
		panic(fmt.Sprintf("nil session for %s", memberID))
	}
	if err := b.fail[memberID]; err != nil {
		return provider.Confirmation{}, err
	}
	return provider.Confirmation{VoucherCode: "V-" + memberID, AccessCode: "0000"}, nil
}

func validSlot() provider.SlotDescriptor {
	return provider.SlotDescriptor{
		Date:      "2026-09-05",
		Start:     "10:00",
		End:       "11:00",
		Level:     "advanced",
		Side:      "left",
		PackageID: "pkg-3",
		ProductID: "prod-7",
		Available: 4,
	}
}

func TestBookOneResultPerRecipientInOrder(t *testing.T) {
	b := &stubBooker{}
	o := NewOrchestrator(b, 0, nil, testLogger())

	results := o.Book(context.Background(), validSlot(), []string{"a", "b", "c"})
	require.Len(t, results, 3)
	for i, id := range []string{"a", "b", "c"} {
		assert.Equal(t, id, results[i].RecipientID)
		assert.True(t, results[i].Success)
	}
	assert.Equal(t, []string{"a", "b", "c"}, b.calls, "attempts run strictly in input order")
}

func TestBookIsolatesPerRecipientFailure(t *testing.T) {
	b := &stubBooker{fail: map[string]error{"b": errors.New("slot exhausted")}}
	o := NewOrchestrator(b, 0, nil, testLogger())

	results := o.Book(context.Background(), validSlot(), []string{"a", "b", "c"})
	require.Len(t, results, 3)
	assert.True(t, results[0].Success)
	assert.False(t, results[1].Success)
	assert.Equal(t, "slot exhausted", results[1].Error)
	assert.True(t, results[2].Success, "failure of one recipient never aborts the rest")
}

func TestBookInvalidateFiresOncePerBatch(t *testing.T) {
	b := &stubBooker{fail: map[string]error{"b": errors.New("slot exhausted")}}
	fired := 0
	o := NewOrchestrator(b, 0, func() { fired++ }, testLogger())

	o.Book(context.Background(), validSlot(), []string{"a", "b", "c"})
	assert.Equal(t, 1, fired)
}

func TestBookNoInvalidateWithoutSuccess(t *testing.T) {
	b := &stubBooker{fail: map[string]error{
		"a": errors.New("nope"),
		"b": errors.New("nope"),
	}}
	fired := 0
	o := NewOrchestrator(b, 0, func() { fired++ }, testLogger())

	o.Book(context.Background(), validSlot(), []string{"a", "b"})
	assert.Equal(t, 0, fired)
}

func TestBookPanicIsolatedToOneRecipient(t *testing.T) {
	b := &stubBooker{panicOn: "b"}
	o := NewOrchestrator(b, 0, nil, testLogger())

	results := o.Book(context.Background(), validSlot(), []string{"a", "b", "c"})
	require.Len(t, results, 3)
	assert.True(t, results[0].Success)
	assert.False(t, results[1].Success)
	assert.Contains(t, results[1].Error, "booking aborted")
	assert.True(t, results[2].Success)
}

func TestBookInvalidSlotFailsAllWithoutProviderCalls(t *testing.T) {
	b := &stubBooker{}
	slot := validSlot()
	slot.ProductID = ""
	o := NewOrchestrator(b, 0, nil, testLogger())

	results := o.Book(context.Background(), slot, []string{"a", "b"})
	require.Len(t, results, 2)
	for _, res := range results {
		assert.False(t, res.Success)
		assert.Contains(t, res.Error, "invalid slot")
	}
	assert.Empty(t, b.calls)
}

func TestBookOverCapacityIsAdvisoryOnly(t *testing.T) {
	b := &stubBooker{}
	slot := validSlot()
	slot.Available = 1
	o := NewOrchestrator(b, 0, nil, testLogger())

	results := o.Book(context.Background(), slot, []string{"a", "b", "c"})
	require.Len(t, results, 3, "exceeding the advertised vacancies never truncates the batch")
	assert.Equal(t, []string{"a", "b", "c"}, b.calls)
}

func TestBookCancelledContextStillYieldsAllResults(t *testing.T) {
	b := &stubBooker{}
	o := NewOrchestrator(b, 10, nil, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results := o.Book(ctx, validSlot(), []string{"a", "b", "c"})
	require.Len(t, results, 3, "a cancelled context never truncates the result list")
	failed := 0
	for _, res := range results {
		if !res.Success {
			failed++
			assert.NotEmpty(t, res.Error)
		}
	}
	assert.GreaterOrEqual(t, failed, 2, "paced attempts after cancellation fail")
}
