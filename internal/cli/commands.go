package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/billbook/internal/calculator"
	"github.com/mmynk/billbook/internal/datastore"
	"github.com/mmynk/billbook/internal/models"
	"github.com/mmynk/billbook/internal/service"
)

const dateLayout = "2006-01-02"

const usage = `usage: billbook <command> [arguments]

commands:
  customer  add|list|rename|delete
  item      add|list|rate|delete
  bill      add|list|delete
  payment   add|list|delete
  balances  -customer ID
  analytics
  recycle   list|restore|purge|clear
  backup    create|list|restore
`

// ErrUsage is returned for unknown commands and missing arguments.
var ErrUsage = errors.New("invalid usage")

// App executes subcommands against a Service.
type App struct {
	Service  *service.Service
	Out      io.Writer
	Location *time.Location

	// Passphrase encrypts new backups and decrypts restored ones unless a
	// command overrides it with -passphrase.
	Passphrase string
}

type handler func(ctx context.Context, args []string) error

// Execute runs the subcommand named by args[0].
func (a *App) Execute(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(a.Out, usage)
		return ErrUsage
	}
	groups := map[string]map[string]handler{
		"customer": {
			"add":    a.customerAdd,
			"list":   a.customerList,
			"rename": a.customerRename,
			"delete": a.customerDelete,
		},
		"item": {
			"add":    a.itemAdd,
			"list":   a.itemList,
			"rate":   a.itemRate,
			"delete": a.itemDelete,
		},
		"bill": {
			"add":    a.billAdd,
			"list":   a.billList,
			"delete": a.billDelete,
		},
		"payment": {
			"add":    a.paymentAdd,
			"list":   a.paymentList,
			"delete": a.paymentDelete,
		},
		"recycle": {
			"list":    a.recycleList,
			"restore": a.recycleRestore,
			"purge":   a.recyclePurge,
			"clear":   a.recycleClear,
		},
		"backup": {
			"create":  a.backupCreate,
			"list":    a.backupList,
			"restore": a.backupRestore,
		},
	}

	switch args[0] {
	case "help", "-h", "-help", "--help":
		fmt.Fprint(a.Out, usage)
		return nil
	case "balances":
		return a.run(ctx, a.balances, args[1:])
	case "analytics":
		return a.run(ctx, a.analytics, args[1:])
	}

	group, ok := groups[args[0]]
	if !ok {
		fmt.Fprint(a.Out, usage)
		return fmt.Errorf("%w: unknown command %q", ErrUsage, args[0])
	}
	if len(args) < 2 {
		return fmt.Errorf("%w: %s needs a subcommand", ErrUsage, args[0])
	}
	h, ok := group[args[1]]
	if !ok {
		return fmt.Errorf("%w: unknown command %q %q", ErrUsage, args[0], args[1])
	}
	return a.run(ctx, h, args[2:])
}

func (a *App) run(ctx context.Context, h handler, args []string) error {
	err := h(ctx, args)
	if errors.Is(err, flag.ErrHelp) {
		return nil
	}
	return err
}

func (a *App) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.Out)
	return fs
}

func (a *App) table() *tabwriter.Writer {
	return tabwriter.NewWriter(a.Out, 0, 0, 2, ' ', 0)
}

func (a *App) date(t time.Time) string {
	return t.In(a.Location).Format(dateLayout)
}

// parseDate reads a calendar day in the app location. Blank means today.
func (a *App) parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation(dateLayout, s, a.Location)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q: want YYYY-MM-DD", ErrUsage, s)
	}
	return t, nil
}

func required(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: -%s is required", ErrUsage, name)
	}
	return nil
}

// decimalFlag parses an optional decimal flag value.
func decimalFlag(name, value string) (decimal.Decimal, error) {
	if value == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: -%s %q is not a number", ErrUsage, name, value)
	}
	return d, nil
}

// lineList collects repeated -line flags. A line is either
// "name:qty:rate" or "@itemID:qty[:rate]".
type lineList []calculator.Line

func (l *lineList) String() string {
	return fmt.Sprintf("%d lines", len(*l))
}

func (l *lineList) Set(value string) error {
	line, err := parseLine(value)
	if err != nil {
		return err
	}
	*l = append(*l, line)
	return nil
}

func parseLine(value string) (calculator.Line, error) {
	bad := fmt.Errorf("line %q: want name:qty:rate or @item:qty[:rate]", value)

	if ref, ok := strings.CutPrefix(value, "@"); ok {
		parts := strings.Split(ref, ":")
		if len(parts) < 2 || len(parts) > 3 || parts[0] == "" {
			return calculator.Line{}, bad
		}
		qty, err := decimal.NewFromString(parts[1])
		if err != nil {
			return calculator.Line{}, bad
		}
		line := calculator.Line{ItemID: parts[0], Quantity: qty}
		if len(parts) == 3 {
			if line.Rate, err = decimal.NewFromString(parts[2]); err != nil {
				return calculator.Line{}, bad
			}
		}
		return line, nil
	}

	// the name may itself contain colons
	i := strings.LastIndex(value, ":")
	if i < 0 {
		return calculator.Line{}, bad
	}
	j := strings.LastIndex(value[:i], ":")
	if j <= 0 {
		return calculator.Line{}, bad
	}
	qty, err := decimal.NewFromString(value[j+1 : i])
	if err != nil {
		return calculator.Line{}, bad
	}
	rate, err := decimal.NewFromString(value[i+1:])
	if err != nil {
		return calculator.Line{}, bad
	}
	return calculator.Line{ItemName: value[:j], Quantity: qty, Rate: rate}, nil
}

func (a *App) customerAdd(ctx context.Context, args []string) error {
	fs := a.flags("customer add")
	name := fs.String("name", "", "customer name")
	phone := fs.String("phone", "", "contact number")
	address := fs.String("address", "", "postal address")
	if err := fs.Parse(args); err != nil {
		return err
	}
	c, err := a.Service.CreateCustomer(ctx, datastore.CustomerInput{Name: *name, Phone: *phone, Address: *address})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "created customer %s (%s)\n", c.Name, c.ID)
	return nil
}

func (a *App) customerList(_ context.Context, args []string) error {
	if err := a.flags("customer list").Parse(args); err != nil {
		return err
	}
	w := a.table()
	fmt.Fprintln(w, "ID\tNAME\tPHONE\tADDRESS")
	for _, c := range a.Service.Customers() {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.ID, c.Name, c.Phone, c.Address)
	}
	return w.Flush()
}

func (a *App) customerRename(ctx context.Context, args []string) error {
	fs := a.flags("customer rename")
	id := fs.String("id", "", "customer id")
	name := fs.String("name", "", "new name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required("id", *id); err != nil {
		return err
	}
	current, err := a.Service.Customer(*id)
	if err != nil {
		return err
	}
	c, err := a.Service.UpdateCustomer(ctx, *id, datastore.CustomerInput{
		Name:    *name,
		Phone:   current.Phone,
		Address: current.Address,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "renamed customer %s to %s\n", c.ID, c.Name)
	return nil
}

func (a *App) customerDelete(ctx context.Context, args []string) error {
	fs := a.flags("customer delete")
	id := fs.String("id", "", "customer id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required("id", *id); err != nil {
		return err
	}
	if err := a.Service.DeleteCustomer(ctx, *id); err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "moved customer %s to the recycle bin\n", *id)
	return nil
}

func (a *App) itemAdd(ctx context.Context, args []string) error {
	fs := a.flags("item add")
	name := fs.String("name", "", "item name")
	rate := fs.String("rate", "", "fixed rate; omit for a variable item")
	if err := fs.Parse(args); err != nil {
		return err
	}
	in := datastore.ItemInput{Name: *name, Type: models.ItemVariable}
	if *rate != "" {
		r, err := decimalFlag("rate", *rate)
		if err != nil {
			return err
		}
		in.Type = models.ItemFixed
		in.Rate = &r
	}
	item, err := a.Service.CreateItem(ctx, in)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "created %s item %s (%s)\n", item.Type, item.Name, item.ID)
	return nil
}

func (a *App) itemList(_ context.Context, args []string) error {
	if err := a.flags("item list").Parse(args); err != nil {
		return err
	}
	w := a.table()
	fmt.Fprintln(w, "ID\tNAME\tTYPE\tRATE")
	for _, item := range a.Service.Items() {
		rate := "-"
		if item.Rate != nil {
			rate = item.Rate.StringFixed(2)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", item.ID, item.Name, item.Type, rate)
	}
	return w.Flush()
}

// itemRate changes the rate of a fixed item and prints its rate history.
func (a *App) itemRate(ctx context.Context, args []string) error {
	fs := a.flags("item rate")
	id := fs.String("id", "", "item id")
	rate := fs.String("rate", "", "new rate; omit to only show history")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required("id", *id); err != nil {
		return err
	}
	if *rate != "" {
		current, err := a.Service.Item(*id)
		if err != nil {
			return err
		}
		r, err := decimalFlag("rate", *rate)
		if err != nil {
			return err
		}
		if _, err := a.Service.UpdateItem(ctx, *id, datastore.ItemInput{
			Name: current.Name,
			Type: current.Type,
			Rate: &r,
		}); err != nil {
			return err
		}
	}
	w := a.table()
	fmt.Fprintln(w, "CHANGED\tOLD\tNEW")
	for _, h := range a.Service.ItemRateHistory(*id) {
		old := "-"
		if h.OldRate != nil {
			old = h.OldRate.StringFixed(2)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", a.date(h.ChangedAt), old, h.NewRate.StringFixed(2))
	}
	return w.Flush()
}

func (a *App) itemDelete(ctx context.Context, args []string) error {
	fs := a.flags("item delete")
	id := fs.String("id", "", "item id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required("id", *id); err != nil {
		return err
	}
	if err := a.Service.DeleteItem(ctx, *id); err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "moved item %s to the recycle bin\n", *id)
	return nil
}

func (a *App) billAdd(ctx context.Context, args []string) error {
	fs := a.flags("bill add")
	customer := fs.String("customer", "", "customer id")
	date := fs.String("date", "", "bill date (YYYY-MM-DD), default today")
	discount := fs.String("discount", "", "discount amount")
	var lines lineList
	fs.Var(&lines, "line", "line item name:qty:rate or @item:qty[:rate] (repeatable)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required("customer", *customer); err != nil {
		return err
	}
	day, err := a.parseDate(*date)
	if err != nil {
		return err
	}
	disc, err := decimalFlag("discount", *discount)
	if err != nil {
		return err
	}
	b, err := a.Service.CreateBill(ctx, datastore.BillInput{
		CustomerID: *customer,
		Date:       day,
		Items:      lines,
		Discount:   disc,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "created bill %s for %s: %s\n", b.ID, b.CustomerName, b.GrandTotal.StringFixed(2))
	return nil
}

func (a *App) billList(_ context.Context, args []string) error {
	fs := a.flags("bill list")
	customer := fs.String("customer", "", "only bills of this customer")
	if err := fs.Parse(args); err != nil {
		return err
	}
	bills := a.Service.Bills()
	if *customer != "" {
		bills = a.Service.BillsByCustomer(*customer)
	}
	w := a.table()
	fmt.Fprintln(w, "ID\tDATE\tCUSTOMER\tLINES\tDISCOUNT\tTOTAL")
	for _, b := range bills {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			b.ID, a.date(b.Date), b.CustomerName, len(b.Items),
			b.Discount.StringFixed(2), b.GrandTotal.StringFixed(2))
	}
	return w.Flush()
}

func (a *App) billDelete(ctx context.Context, args []string) error {
	fs := a.flags("bill delete")
	id := fs.String("id", "", "bill id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required("id", *id); err != nil {
		return err
	}
	if err := a.Service.DeleteBill(ctx, *id); err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "moved bill %s to the recycle bin\n", *id)
	return nil
}

func (a *App) paymentAdd(ctx context.Context, args []string) error {
	fs := a.flags("payment add")
	customer := fs.String("customer", "", "customer id")
	amount := fs.String("amount", "", "amount received")
	date := fs.String("date", "", "payment date (YYYY-MM-DD), default today")
	method := fs.String("method", "", "payment method, default cash")
	note := fs.String("note", "", "free-text remark")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required("customer", *customer); err != nil {
		return err
	}
	if err := required("amount", *amount); err != nil {
		return err
	}
	amt, err := decimalFlag("amount", *amount)
	if err != nil {
		return err
	}
	day, err := a.parseDate(*date)
	if err != nil {
		return err
	}
	p, err := a.Service.CreatePayment(ctx, datastore.PaymentInput{
		CustomerID: *customer,
		Amount:     amt,
		Date:       day,
		Method:     *method,
		Note:       *note,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "recorded payment %s from %s: %s\n", p.ID, p.CustomerName, p.Amount.StringFixed(2))
	return nil
}

func (a *App) paymentList(_ context.Context, args []string) error {
	fs := a.flags("payment list")
	customer := fs.String("customer", "", "only payments of this customer")
	if err := fs.Parse(args); err != nil {
		return err
	}
	payments := a.Service.Payments()
	if *customer != "" {
		payments = a.Service.PaymentsByCustomer(*customer)
	}
	w := a.table()
	fmt.Fprintln(w, "ID\tDATE\tCUSTOMER\tMETHOD\tAMOUNT")
	for _, p := range payments {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", p.ID, a.date(p.Date), p.CustomerName, p.Method, p.Amount.StringFixed(2))
	}
	return w.Flush()
}

func (a *App) paymentDelete(ctx context.Context, args []string) error {
	fs := a.flags("payment delete")
	id := fs.String("id", "", "payment id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required("id", *id); err != nil {
		return err
	}
	if err := a.Service.DeletePayment(ctx, *id); err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "moved payment %s to the recycle bin\n", *id)
	return nil
}

func (a *App) balances(_ context.Context, args []string) error {
	fs := a.flags("balances")
	customer := fs.String("customer", "", "customer id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required("customer", *customer); err != nil {
		return err
	}
	months, err := a.Service.MonthlyBalances(*customer)
	if err != nil {
		return err
	}
	w := a.table()
	fmt.Fprintln(w, "MONTH\tOPENING\tBILLS\tPAYMENTS\tCLOSING")
	for _, m := range months {
		fmt.Fprintf(w, "%04d-%02d\t%s\t%s\t%s\t%s\n", m.Year, m.Month,
			m.OpeningBalance.StringFixed(2), m.Bills.StringFixed(2),
			m.Payments.StringFixed(2), m.ClosingBalance.StringFixed(2))
	}
	return w.Flush()
}

func (a *App) analytics(_ context.Context, args []string) error {
	if err := a.flags("analytics").Parse(args); err != nil {
		return err
	}
	an := a.Service.Analytics()
	fmt.Fprintf(a.Out, "customers %d, bills %d, payments %d, items %d\n", an.Customers, an.Bills, an.Payments, an.Items)
	fmt.Fprintf(a.Out, "billed %s, received %s, outstanding %s\n",
		an.TotalBilled.StringFixed(2), an.TotalReceived.StringFixed(2), an.Outstanding.StringFixed(2))

	w := a.table()
	fmt.Fprintln(w, "CUSTOMER\tBILLED\tPAID\tOUTSTANDING")
	for _, c := range an.ByCustomer {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.CustomerName,
			c.Billed.StringFixed(2), c.Paid.StringFixed(2), c.Outstanding.StringFixed(2))
	}
	return w.Flush()
}

func (a *App) recycleList(ctx context.Context, args []string) error {
	if err := a.flags("recycle list").Parse(args); err != nil {
		return err
	}
	w := a.table()
	fmt.Fprintln(w, "ID\tTYPE\tNAME\tDELETED\tDAYS LEFT")
	for _, e := range a.Service.RecycleBin(ctx) {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n", e.ID, e.Type, e.DisplayName, a.date(e.DeletedAt), a.Service.DaysRemaining(e.DeletedAt))
	}
	return w.Flush()
}

func (a *App) recycleRestore(ctx context.Context, args []string) error {
	fs := a.flags("recycle restore")
	id := fs.String("id", "", "recycle bin entry id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required("id", *id); err != nil {
		return err
	}
	restored, err := a.Service.RestoreFromBin(ctx, *id)
	if err != nil {
		return err
	}
	if !restored {
		fmt.Fprintf(a.Out, "entry %s was already restored\n", *id)
		return nil
	}
	fmt.Fprintf(a.Out, "restored entry %s\n", *id)
	return nil
}

func (a *App) recyclePurge(ctx context.Context, args []string) error {
	fs := a.flags("recycle purge")
	id := fs.String("id", "", "recycle bin entry id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required("id", *id); err != nil {
		return err
	}
	purged, err := a.Service.PurgeFromBin(ctx, *id)
	if err != nil {
		return err
	}
	if !purged {
		fmt.Fprintf(a.Out, "no recycle bin entry %s\n", *id)
		return nil
	}
	fmt.Fprintf(a.Out, "permanently deleted entry %s\n", *id)
	return nil
}

func (a *App) recycleClear(ctx context.Context, args []string) error {
	if err := a.flags("recycle clear").Parse(args); err != nil {
		return err
	}
	n, err := a.Service.ClearBin(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "permanently deleted %d entries\n", n)
	return nil
}

func (a *App) backupCreate(ctx context.Context, args []string) error {
	fs := a.flags("backup create")
	passphrase := fs.String("passphrase", a.Passphrase, "encrypt the backup with this passphrase")
	if err := fs.Parse(args); err != nil {
		return err
	}
	res, err := a.Service.CreateBackup(ctx, *passphrase)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "wrote %s (%d bytes)\n", res.Info.Name, res.Info.Size)
	c := res.Metadata.Counts
	fmt.Fprintf(a.Out, "customers %d, bills %d, payments %d, items %d, rate changes %d\n",
		c.Customers, c.Bills, c.Payments, c.Items, c.ItemRateHistory)
	for _, d := range res.Dropped {
		fmt.Fprintf(a.Out, "skipped %s %s of missing customer %s\n", d.Kind, d.ID, d.CustomerID)
	}
	return nil
}

func (a *App) backupList(_ context.Context, args []string) error {
	if err := a.flags("backup list").Parse(args); err != nil {
		return err
	}
	backups, err := a.Service.ListBackups()
	if err != nil {
		return err
	}
	w := a.table()
	fmt.Fprintln(w, "NAME\tCREATED\tSIZE")
	for _, b := range backups {
		fmt.Fprintf(w, "%s\t%s\t%d\n", b.Name, b.CreatedAt.In(a.Location).Format(time.DateTime), b.Size)
	}
	return w.Flush()
}

func (a *App) backupRestore(ctx context.Context, args []string) error {
	fs := a.flags("backup restore")
	name := fs.String("name", "", "backup file name")
	passphrase := fs.String("passphrase", a.Passphrase, "passphrase the backup was encrypted with")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required("name", *name); err != nil {
		return err
	}
	if err := a.Service.RestoreBackup(ctx, *name, *passphrase); err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "restored %s\n", *name)
	return nil
}
