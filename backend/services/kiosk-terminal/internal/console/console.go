package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"kioskpos/backend/services/kiosk-terminal/internal/checkout"
	"kioskpos/backend/services/kiosk-terminal/internal/expiry"
	"kioskpos/backend/services/kiosk-terminal/internal/models"
	"kioskpos/backend/services/kiosk-terminal/internal/payment"
	"kioskpos/backend/services/kiosk-terminal/internal/session"
)

// Controller is the checkout surface the console drives.
type Controller interface {
	View() checkout.View
	Resume(ctx context.Context) error
	Start(ctx context.Context) error
	Menu(ctx context.Context) ([]models.CatalogItem, error)
	AddItem(ctx context.Context, itemID int64, amount int) error
	SetItem(ctx context.Context, itemID int64, amount int) error
	Checkout(ctx context.Context) error
	StillHere(ctx context.Context) error
	Back(ctx context.Context) error
	Cancel(ctx context.Context) error
}

const help = `commands:
  start             open a new order
  menu              list items
  add <id> [n]      add n (default 1) of item id
  set <id> <n>      set amount of item id, 0 removes it
  cart              show the order
  checkout          pay for the order
  still-here        keep the session open
  back              return from payment to the order
  cancel            drop the order
  quit              leave`

// Console is a line-oriented kiosk screen.
type Console struct {
	logger *zap.Logger

	mu   sync.Mutex
	out  io.Writer
	last checkout.View
}

// New builds console writing to out.
func New(out io.Writer, logger *zap.Logger) *Console {
	return &Console{out: out, logger: logger.Named("console")}
}

// Run reads commands from in until quit, end of input or ctx is done.
func (c *Console) Run(ctx context.Context, ctrl Controller, in io.Reader) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	c.printf("Welcome! Type 'start' to order, 'help' for commands.\n")
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			if c.Execute(ctx, ctrl, line) {
				return nil
			}
		}
	}
}

// Execute runs one command line and reports whether the console should quit.
func (c *Console) Execute(ctx context.Context, ctrl Controller, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	var err error
	switch cmd, args := strings.ToLower(fields[0]), fields[1:]; cmd {
	case "start":
		err = ctrl.Start(ctx)
		if errors.Is(err, session.ErrConflict) {
			c.printf("An order is already open, picking it up.\n")
			err = ctrl.Resume(ctx)
		}
	case "menu":
		err = c.menu(ctx, ctrl)
	case "add":
		var id int64
		amount := 1
		if id, err = parseID(args); err == nil && len(args) > 1 {
			amount, err = strconv.Atoi(args[1])
		}
		if err == nil {
			err = ctrl.AddItem(ctx, id, amount)
		}
	case "set":
		var id int64
		var amount int
		if len(args) != 2 {
			err = errors.New("usage: set <id> <n>")
		} else if id, err = parseID(args); err == nil {
			if amount, err = strconv.Atoi(args[1]); err == nil {
				err = ctrl.SetItem(ctx, id, amount)
			}
		}
	case "cart":
		c.cart(ctrl.View().Session)
	case "checkout":
		err = ctrl.Checkout(ctx)
	case "still-here":
		err = ctrl.StillHere(ctx)
	case "back":
		err = ctrl.Back(ctx)
	case "cancel":
		err = ctrl.Cancel(ctx)
	case "quit", "exit", "q":
		c.printf("Goodbye!\n")
		return true
	case "help":
		c.printf("%s\n", help)
	default:
		c.printf("Unknown command %q, type 'help'.\n", cmd)
	}

	if err != nil {
		c.logger.Debug("command failed", zap.String("line", line), zap.Error(err))
		c.printf("Sorry, that did not work: %v\n", err)
	}
	return false
}

// Render prints what changed between the previous view and v.
func (c *Console) Render(v checkout.View) {
	c.mu.Lock()
	defer c.mu.Unlock()
	last := c.last
	c.last = v

	if v.Prompt != last.Prompt || (v.Prompt == expiry.PromptStillThere && v.Countdown != last.Countdown) {
		switch v.Prompt {
		case expiry.PromptStartOrdering:
			c.printfLocked("Type 'start' to begin your order.\n")
		case expiry.PromptStillThere:
			c.printfLocked("Are you still there? Closing in %ds, type 'still-here'.\n", v.Countdown)
		}
	}

	if v.Phase != last.Phase {
		switch v.Phase {
		case payment.PhasePending:
			c.printfLocked("Scan the code to pay.\n")
		case payment.PhaseWaiting:
			c.printfLocked("Approve the payment in your app...\n")
		case payment.PhaseSuccess:
			c.printfLocked("Payment received, thank you! Your order number is %d.\n", orderID(v.Session))
		case payment.PhaseFailed:
			c.printfLocked("Payment failed. Type 'back' to try again.\n")
		}
	}

	if v.QR != nil && (last.QR == nil || v.QR.Reference != last.QR.Reference) {
		c.qrLocked(v.QR)
	}
	if v.QRError != "" && v.QRError != last.QRError {
		c.printfLocked("%s\n", v.QRError)
	}
	if v.SyncError != "" && v.SyncError != last.SyncError {
		c.printfLocked("%s\n", v.SyncError)
	}
}

// Navigated prints a route change.
func (c *Console) Navigated(from, to string) {
	c.printf("[%s -> %s]\n", from, to)
}

func (c *Console) menu(ctx context.Context, ctrl Controller) error {
	items, err := ctrl.Menu(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, item := range items {
		c.printfLocked("%4d  %-24s %8s  %s\n", item.ID, item.Name, item.Price.StringFixed(2), item.Category)
	}
	return nil
}

func (c *Console) cart(s *models.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s == nil {
		c.printfLocked("No open order.\n")
		return
	}
	if s.Order == nil || len(s.Order.Items) == 0 {
		c.printfLocked("Your order is empty.\n")
		return
	}
	for _, item := range s.Order.Items {
		c.printfLocked("%3d x %-24s %8s\n", item.Amount, item.Name, item.Price.StringFixed(2))
	}
	c.printfLocked("Total: %s\n", total(s.Order).StringFixed(2))
}

func (c *Console) qrLocked(qr *models.PaymentQR) {
	c.printfLocked("Pay %s with %s, reference %s\n", qr.Amount, qr.Provider, qr.Reference)
	code, err := qrcode.New(qr.Payload, qrcode.Medium)
	if err != nil {
		c.logger.Warn("qr render failed", zap.Error(err))
		c.printfLocked("%s\n", qr.Payload)
		return
	}
	c.printfLocked("%s", code.ToSmallString(false))
}

func (c *Console) printf(format string, args ...interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.printfLocked(format, args...)
}

func (c *Console) printfLocked(format string, args ...interface{}) {
	fmt.Fprintf(c.out, format, args...)
}

func parseID(args []string) (int64, error) {
	if len(args) == 0 {
		return 0, errors.New("item id required")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid item id %q", args[0])
	}
	return id, nil
}

func total(o *models.Order) decimal.Decimal {
	if !o.TotalPrice.IsZero() {
		return o.TotalPrice
	}
	sum := decimal.Zero
	for _, item := range o.Items {
		sum = sum.Add(item.Price)
	}
	return sum
}

func orderID(s *models.Session) int64 {
	if s == nil || s.Order == nil {
		return 0
	}
	return s.Order.ID
}
