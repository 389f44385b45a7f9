// Package terminal is the operator-facing command shell of a POS session.
package terminal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"go.uber.org/zap"

	"stroymarket/pos/internal/cart"
	"stroymarket/pos/internal/catalog"
	"stroymarket/pos/internal/checkout"
	"stroymarket/pos/internal/debt"
	"stroymarket/pos/internal/domain"
	"stroymarket/pos/internal/pricing"
	"stroymarket/pos/internal/receipt"
	"stroymarket/pos/internal/wire"
)

type Backend interface {
	catalog.ProductSource
	checkout.SaleSubmitter
	debt.Source
	Login(ctx context.Context, pin string) (domain.LoginResponse, error)
	ListBranches(ctx context.Context) ([]domain.Branch, error)
	GetCustomer(ctx context.Context, id string) (domain.Customer, error)
}

type Options struct {
	StoreName string
	BranchID  string
}

type Shell struct {
	backend  Backend
	out      io.Writer
	logger   *zap.Logger
	opts     Options
	catalog  *catalog.Cache
	cart     *cart.Cart
	checkout *checkout.Protocol
	debts    *debt.Builder
	printer  receipt.Printer

	employee domain.LoginResponse
	branches []domain.Branch
}

func New(backend Backend, out io.Writer, logger *zap.Logger, opts Options) *Shell {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.StoreName == "" {
		opts.StoreName = "Stroymarket"
	}
	cat := catalog.New(backend, logger)
	c := cart.New()
	return &Shell{
		backend:  backend,
		out:      out,
		logger:   logger.Named("terminal"),
		opts:     opts,
		catalog:  cat,
		cart:     c,
		checkout: checkout.New(c, cat, backend, logger),
		debts:    debt.New(backend, logger),
		printer:  receipt.Printer{StoreName: opts.StoreName},
	}
}

// Start logs in, loads the catalog and picks the branch. Only a failed login
// is fatal; the catalog and branches can be reloaded later.
func (s *Shell) Start(ctx context.Context, pin string) error {
	if pin != "" {
		resp, err := s.backend.Login(ctx, pin)
		if err != nil {
			return fmt.Errorf("login: %w", err)
		}
		s.employee = resp
		s.printf("Xush kelibsiz, %s (%s)\n", resp.Name, resp.Role)
	}

	if err := s.catalog.Refresh(ctx); err != nil {
		s.notify(err)
	}
	if err := s.loadBranches(ctx); err != nil {
		s.notify(err)
	}

	branch := s.opts.BranchID
	if branch == "" {
		branch = s.employee.BranchID
	}
	if branch == "" && len(s.branches) > 0 {
		branch = s.branches[0].ID
	}
	s.cart.SetBranch(branch)
	return nil
}

func (s *Shell) Run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	s.printf("> ")
	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if quit := s.Exec(ctx, scanner.Text()); quit {
			return nil
		}
		s.printf("> ")
	}
	return scanner.Err()
}

// Exec runs one command line and reports whether the session should end.
func (s *Shell) Exec(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	var err error
	switch cmd {
	case "quit", "exit":
		return true
	case "help":
		s.help()
	case "products", "ls":
		s.products(args)
	case "add":
		err = s.add(args)
	case "dec":
		err = s.dec(args)
	case "rm":
		err = s.remove(args)
	case "clear":
		s.cart.Clear()
		s.printf("Savat tozalandi\n")
	case "discount":
		err = s.discount(args)
	case "pay":
		err = s.pay(args)
	case "customer":
		err = s.customer(ctx, args)
	case "branch":
		err = s.branch(args)
	case "total":
		s.total()
	case "checkout":
		err = s.doCheckout(ctx)
	case "receipt":
		err = s.lastReceipt()
	case "refresh":
		if err = s.catalog.Refresh(ctx); err == nil {
			s.printf("Katalog yangilandi: %d mahsulot\n", len(s.catalog.Products()))
		}
	case "debts":
		err = s.listDebts(ctx)
	case "paydebt":
		err = s.payDebt(ctx, args)
	case "history":
		err = s.history(ctx, args)
	case "branches":
		err = s.listBranches(ctx)
	case "stats":
		err = s.stats(ctx)
	default:
		err = fmt.Errorf("unknown command %q, try help", cmd)
	}
	if err != nil {
		s.notify(err)
	}
	return false
}

func (s *Shell) help() {
	s.printf(`products [category|all] [query]   list catalog
add <id|barcode> [qty]             add to cart
dec <id> [qty]                     decrease quantity
rm <id>                            remove line
clear                              empty cart
discount pct|amt <value>           set discount
pay cash|card|transfer|debt        payment method
customer <id|->                    select customer
branch <id|->                      select branch
total                              show cart totals
checkout                           record the sale
receipt                            reprint last receipt
refresh                            reload catalog
debts                              customers with debt
paydebt <debt_c_ID> <amount>       record a debt payment
history <customerID>               debt ledger of a customer
branches | stats | quit
`)
}

func (s *Shell) products(args []string) {
	category, query := "", ""
	if len(args) > 0 {
		if strings.EqualFold(args[0], catalog.AllCategories) || s.isCategory(args[0]) {
			category = args[0]
			args = args[1:]
		}
		query = strings.Join(args, " ")
	}

	tw := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNOMI\tKATEGORIYA\tNARX\tMAVJUD\t")
	for _, p := range s.catalog.Filter(category, query) {
		avail := strconv.Itoa(s.cart.Available(p)) + " " + p.Unit
		if !s.cart.Selectable(p) {
			avail = "tugagan"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t\n", p.ID, p.Name, p.Category, receipt.FormatMoney(p.SellPriceCents), avail)
	}
	_ = tw.Flush()
	if s.catalog.Stale() {
		s.printf("(katalog eskirgan bo'lishi mumkin, refresh buyrug'ini bering)\n")
	}
}

func (s *Shell) isCategory(name string) bool {
	for _, c := range s.catalog.Categories() {
		if strings.EqualFold(c, name) {
			return true
		}
	}
	return false
}

func (s *Shell) resolveProduct(ref string) (domain.Product, error) {
	if p, ok := s.catalog.Product(ref); ok {
		return p, nil
	}
	if p, ok := s.catalog.LookupBarcode(ref); ok {
		return p, nil
	}
	return domain.Product{}, fmt.Errorf("product %q: %w", ref, domain.ErrNotFound)
}

func parseQty(args []string, at int) (int, error) {
	if len(args) <= at {
		return 1, nil
	}
	qty, err := strconv.Atoi(args[at])
	if err != nil || qty <= 0 {
		return 0, fmt.Errorf("quantity must be a positive whole number, got %q", args[at])
	}
	return qty, nil
}

func (s *Shell) add(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: add <id|barcode> [qty]")
	}
	p, err := s.resolveProduct(args[0])
	if err != nil {
		return err
	}
	qty, err := parseQty(args, 1)
	if err != nil {
		return err
	}

	before := s.cart.Quantity(p.ID)
	after := s.cart.Add(p, qty)
	if after-before < qty {
		s.printf("%s: faqat %d %s mavjud\n", p.Name, p.CurrentStock, p.Unit)
	}
	s.printf("%s x %d\n", p.Name, after)
	return nil
}

func (s *Shell) dec(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: dec <id> [qty]")
	}
	qty, err := parseQty(args, 1)
	if err != nil {
		return err
	}
	p, err := s.resolveProduct(args[0])
	if err != nil {
		s.cart.Remove(args[0])
		return nil
	}
	s.printf("%s x %d\n", p.Name, s.cart.Add(p, -qty))
	return nil
}

func (s *Shell) remove(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: rm <id>")
	}
	id := args[0]
	if p, err := s.resolveProduct(id); err == nil {
		id = p.ID
	}
	s.cart.Remove(id)
	return nil
}

func (s *Shell) discount(args []string) error {
	if len(args) != 2 {
		return errors.New("usage: discount pct|amt <value>")
	}
	switch strings.ToLower(args[0]) {
	case "pct", "%":
		pct, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("%w: %q", domain.ErrInvalidDiscount, args[1])
		}
		return s.cart.SetDiscountPercent(pct)
	case "amt":
		m, err := wire.ParseMoney(args[1])
		if err != nil {
			return fmt.Errorf("%w: %q", domain.ErrInvalidDiscount, args[1])
		}
		return s.cart.SetDiscountAmount(m.Cents())
	default:
		return errors.New("usage: discount pct|amt <value>")
	}
}

func (s *Shell) pay(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: pay cash|card|transfer|debt")
	}
	return s.cart.SetPaymentMethod(domain.PaymentMethod(strings.ToLower(args[0])))
}

func (s *Shell) customer(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: customer <id|->")
	}
	if args[0] == "-" {
		s.cart.SetCustomer("")
		return nil
	}
	c, err := s.backend.GetCustomer(ctx, args[0])
	if err != nil {
		return err
	}
	s.cart.SetCustomer(c.ID)
	s.printf("Mijoz: %s (qarz %s)\n", c.Name, receipt.FormatMoney(c.DebtCents))
	return nil
}

func (s *Shell) branch(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: branch <id|->")
	}
	if args[0] == "-" {
		s.cart.SetBranch("")
		return nil
	}
	for _, b := range s.branches {
		if b.ID == args[0] {
			s.cart.SetBranch(b.ID)
			s.printf("Filial: %s\n", b.Name)
			return nil
		}
	}
	return fmt.Errorf("branch %q: %w", args[0], domain.ErrNotFound)
}

func (s *Shell) total() {
	snap := s.cart.Snapshot()
	for _, line := range snap.Lines {
		price, _ := s.catalog.Price(line.ProductID)
		name := line.ProductID
		if p, ok := s.catalog.Product(line.ProductID); ok {
			name = p.Name
		}
		s.printf("  %-24s %4d x %12s = %14s\n", name, line.Quantity,
			receipt.FormatMoney(price), receipt.FormatMoney(pricing.LineTotal(price, line.Quantity)))
	}
	t := pricing.Calculate(snap.Lines, s.catalog, snap.Discount)
	s.printf("Oraliq: %s  Chegirma: %s  JAMI: %s  [%s]\n",
		receipt.FormatMoney(t.SubtotalCents), receipt.FormatMoney(t.DiscountCents),
		receipt.FormatMoney(t.TotalCents), snap.PaymentMethod)
}

func (s *Shell) doCheckout(ctx context.Context) error {
	r, err := s.checkout.Checkout(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrStockConflict) {
			return fmt.Errorf("%w; katalog yangilandi, savatni tekshiring", err)
		}
		return err
	}
	return s.printer.Render(s.out, r)
}

func (s *Shell) lastReceipt() error {
	r, ok := s.checkout.LastReceipt()
	if !ok {
		return errors.New("no receipt yet")
	}
	return s.printer.Render(s.out, r)
}

func (s *Shell) listDebts(ctx context.Context) error {
	records, err := s.debts.Fetch(ctx)
	if err != nil {
		return err
	}
	s.printDebts(records)
	return nil
}

func (s *Shell) printDebts(records []domain.DebtRecord) {
	for _, r := range records {
		s.printf("  %-14s %-24s %-16s %14s\n", r.ID, r.CustomerName, r.Phone, receipt.FormatMoney(r.AmountCents))
	}
	sum := debt.Summarize(records)
	s.printf("Jami qarz: %s (%d mijoz)\n", receipt.FormatMoney(sum.TotalDebtCents), sum.Count)
}

func (s *Shell) payDebt(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: paydebt <debt_c_ID> <amount>")
	}
	m, err := wire.ParseMoney(args[1])
	if err != nil {
		return fmt.Errorf("%w: %q", domain.ErrInvalidAmount, args[1])
	}
	records, err := s.debts.PayDebt(ctx, args[0], m.Cents())
	var stale *debt.RefreshError
	if errors.As(err, &stale) {
		s.logger.Warn("debt list refresh after payment failed", zap.Error(stale.Err))
		s.printf("To'lov qabul qilindi (%s); ro'yxat eskirgan bo'lishi mumkin, debts buyrug'ini qayta bering\n", stale.Transaction.ID)
		return nil
	}
	if err != nil {
		return err
	}
	s.printf("To'lov qabul qilindi\n")
	s.printDebts(records)
	return nil
}

func (s *Shell) history(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: history <customerID>")
	}
	txs, err := s.debts.History(ctx, args[0])
	if err != nil {
		return err
	}
	for _, tx := range txs {
		s.printf("  %s  %-10s %14s  %s\n", tx.CreatedAt.Format("2006-01-02 15:04"), tx.Type,
			receipt.FormatMoney(tx.AmountCents), tx.Note)
	}
	return nil
}

func (s *Shell) loadBranches(ctx context.Context) error {
	branches, err := s.backend.ListBranches(ctx)
	if err != nil {
		return err
	}
	s.branches = branches
	return nil
}

func (s *Shell) listBranches(ctx context.Context) error {
	if err := s.loadBranches(ctx); err != nil {
		return err
	}
	current := s.cart.Snapshot().BranchID
	for _, b := range s.branches {
		mark := " "
		if b.ID == current {
			mark = "*"
		}
		s.printf("%s %s  %s\n", mark, b.ID, b.Name)
	}
	return nil
}

func (s *Shell) stats(ctx context.Context) error {
	st, err := s.catalog.Stats(ctx)
	if err != nil {
		return err
	}
	s.printf("Mahsulotlar: %d  Qiymati: %s  Kam qolgan: %d  O'rtacha marja: %.1f%%\n",
		st.TotalProducts, receipt.FormatMoney(st.TotalValueCents), st.LowStockCount, st.AvgMargin)
	return nil
}

func (s *Shell) notify(err error) {
	s.logger.Debug("command failed", zap.Error(err))
	s.printf("! %s\n", describe(err))
}

func describe(err error) string {
	switch {
	case errors.Is(err, domain.ErrEmptyCart):
		return "Savat bo'sh"
	case errors.Is(err, domain.ErrCheckoutInProgress):
		return "Sotuv allaqachon yuborilmoqda"
	case errors.Is(err, domain.ErrCustomerRequired):
		return "Qarzga sotish uchun mijozni tanlang"
	case errors.Is(err, domain.ErrUnknownProduct):
		return "Mahsulot katalogda yo'q, refresh qiling va savatni tekshiring: " + err.Error()
	case errors.Is(err, domain.ErrStockConflict):
		return "Omborda yetarli mahsulot yo'q: " + err.Error()
	case errors.Is(err, domain.ErrUnauthorized):
		return "Ruxsat yo'q yoki sessiya tugagan: " + err.Error()
	case errors.Is(err, domain.ErrBackendUnavailable):
		return "Server bilan aloqa yo'q: " + err.Error()
	default:
		return err.Error()
	}
}

func (s *Shell) printf(format string, args ...any) {
	fmt.Fprintf(s.out, format, args...)
}
