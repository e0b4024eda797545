package notifier

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/telebot.v4"

	"skuwatch/internal/models"
)

// fakeSender scripts a sequence of Send outcomes and records delivered texts.
type fakeSender struct {
	errs  []error // consumed one per call; nil entry means success
	texts []string
	calls int
}

func (f *fakeSender) Send(_ telebot.Recipient, what interface{}, _ ...interface{}) (*telebot.Message, error) {
	f.calls++
	var err error
	if len(f.errs) > 0 {
		err = f.errs[0]
		f.errs = f.errs[1:]
	}
	if err != nil {
		return nil, err
	}
	f.texts = append(f.texts, what.(string))
	return &telebot.Message{}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestNotifier(sender *fakeSender, retryCount int) *Notifier {
	n := NewWithSender(testLogger(), sender, telebot.ChatID(42), retryCount, time.Millisecond)
	n.now = func() time.Time {
		return time.Date(2025, 6, 1, 8, 30, 15, 0, time.UTC)
	}
	return n
}

func sampleSnapshot() models.Snapshot {
	return models.Snapshot{
		SKU:       "100012043978",
		Name:      "Switch OLED",
		Price:     1899,
		InStock:   false,
		StockText: models.StockOutOfStock,
		Listed:    true,
		URL:       models.ProductURL("100012043978"),
	}
}

func TestDeliver_Retry(t *testing.T) {
	t.Parallel()

	t.Run("first attempt succeeds", func(t *testing.T) {
		t.Parallel()

		sender := &fakeSender{}
		n := newTestNotifier(sender, 3)

		ok := n.SessionExpiredAlert(testContext(t))

		assert.True(t, ok)
		assert.Equal(t, 1, sender.calls)
	})

	t.Run("recovers after transient failure", func(t *testing.T) {
		t.Parallel()

		sender := &fakeSender{errs: []error{errors.New("telegram: 502"), nil}}
		n := newTestNotifier(sender, 3)

		ok := n.CycleErrorAlert(testContext(t), "boom")

		assert.True(t, ok)
		assert.Equal(t, 2, sender.calls)
	})

	t.Run("exhausted attempts report failure", func(t *testing.T) {
		t.Parallel()

		sendErr := errors.New("telegram: 502")
		sender := &fakeSender{errs: []error{sendErr, sendErr, sendErr}}
		n := newTestNotifier(sender, 3)

		ok := n.SessionExpiredAlert(testContext(t))

		assert.False(t, ok)
		assert.Equal(t, 3, sender.calls)
	})
}

func TestProductAlert_Rendering(t *testing.T) {
	t.Parallel()

	t.Run("only changed sections appear, in fixed order", func(t *testing.T) {
		t.Parallel()

		sender := &fakeSender{}
		n := newTestNotifier(sender, 1)

		changes := models.ChangeSet{
			Price: &models.PriceChange{Old: 2099, New: 1899, Direction: models.PriceDown},
			Stock: &models.StockChange{
				Old: true, New: false,
				OldText: models.StockInStock, NewText: models.StockOutOfStock,
			},
		}

		require.True(t, n.ProductAlert(testContext(t), sampleSnapshot(), changes))
		require.Len(t, sender.texts, 1)
		text := sender.texts[0]

		assert.Contains(t, text, "📦 *Product update*")
		assert.Contains(t, text, "Switch OLED")
		assert.Contains(t, text, "💰 Price: ¥2099.00 → ¥1899.00 ⬇️")
		assert.Contains(t, text, "📦 Stock: in-stock → out-of-stock ❌")
		assert.NotContains(t, text, "Listing:")
		assert.NotContains(t, text, "Presale:")
		assert.Contains(t, text, "⏰ 2025-06-01 08:30:15")

		// Price is rendered before stock regardless of change-set construction order.
		assert.Less(t, strings.Index(text, "Price:"), strings.Index(text, "Stock:"))
	})

	t.Run("price increase uses the up arrow", func(t *testing.T) {
		t.Parallel()

		sender := &fakeSender{}
		n := newTestNotifier(sender, 1)

		changes := models.ChangeSet{
			Price: &models.PriceChange{Old: 1899, New: 2099, Direction: models.PriceUp},
		}

		require.True(t, n.ProductAlert(testContext(t), sampleSnapshot(), changes))
		assert.Contains(t, sender.texts[0], "¥1899.00 → ¥2099.00 ⬆️")
	})

	t.Run("listing and presale sections", func(t *testing.T) {
		t.Parallel()

		sender := &fakeSender{}
		n := newTestNotifier(sender, 1)

		changes := models.ChangeSet{
			Listing: &models.ListingChange{Old: true, New: false},
			Presale: &models.FieldChange{Old: "", New: "preorder open"},
		}

		require.True(t, n.ProductAlert(testContext(t), sampleSnapshot(), changes))
		text := sender.texts[0]

		assert.Contains(t, text, "🏪 Listing: listed → delisted 🔴")
		assert.Contains(t, text, "🎫 Presale: none → preorder open")
	})

	t.Run("markdown markers in scraped text are escaped", func(t *testing.T) {
		t.Parallel()

		sender := &fakeSender{}
		n := newTestNotifier(sender, 1)

		snap := sampleSnapshot()
		snap.Name = "Switch*OLED_64GB [import]"

		changes := models.ChangeSet{
			StockText: &models.FieldChange{Old: models.StockInStock, New: "*限购*"},
		}

		require.True(t, n.ProductAlert(testContext(t), snap, changes))
		text := sender.texts[0]

		assert.Contains(t, text, `🏷️ Switch\*OLED\_64GB \[import]`)
		assert.Contains(t, text, `in-stock → \*限购\*`)
	})

	t.Run("first sighting summarizes the snapshot", func(t *testing.T) {
		t.Parallel()

		sender := &fakeSender{}
		n := newTestNotifier(sender, 1)

		require.True(t, n.ProductAlert(testContext(t), sampleSnapshot(), models.ChangeSet{FirstSighting: true}))
		text := sender.texts[0]

		assert.Contains(t, text, "🆕 *Now monitoring*")
		assert.Contains(t, text, "💰 Current price: ¥1899.00")
		assert.Contains(t, text, "📦 Stock status: out-of-stock")
		assert.Contains(t, text, "🏪 Listing: listed")
		assert.NotContains(t, text, "Presale:", "empty presale note is skipped")
	})
}

func TestStartup_ListsProducts(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{}
	n := newTestNotifier(sender, 1)

	require.True(t, n.Startup(testContext(t), []string{"Switch OLED", "Mechanical Keyboard"}))
	text := sender.texts[0]

	assert.Contains(t, text, "🚀 *Product monitor started*")
	assert.Contains(t, text, "• Switch OLED")
	assert.Contains(t, text, "• Mechanical Keyboard")
}
