// Package mongo provides a MongoDB-backed store. Atomic uses multi-document
// transactions, so the server must run as a replica set.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/tradefin"
	"github.com/xraph/tradefin/id"
	"github.com/xraph/tradefin/invoice"
	"github.com/xraph/tradefin/journal"
	"github.com/xraph/tradefin/loan"
	"github.com/xraph/tradefin/order"
	tfstore "github.com/xraph/tradefin/store"
	"github.com/xraph/tradefin/types"
)

// Collection name constants.
const (
	colOrders       = "tradefin_orders"
	colInvoices     = "tradefin_invoices"
	colApplications = "tradefin_loan_applications"
	colLoans        = "tradefin_loans"
	colEntries      = "tradefin_ledger_entries"
	colCounters     = "tradefin_counters"
)

// compile-time interface check
var _ tfstore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove.
type Store struct {
	gdb    *grove.DB
	mdb    *mongodriver.MongoDB
	client *mongo.Client
	db     *mongo.Database
}

// New creates a store on a grove database opened with the mongo driver.
func New(db *grove.DB) *Store {
	mdb := mongodriver.Unwrap(db)
	return &Store{
		gdb:    db,
		mdb:    mdb,
		client: mdb.Client(),
		db:     mdb.Database(),
	}
}

// Open connects to uri and selects database. The driver pings with retries
// before returning.
func Open(ctx context.Context, uri, database string) (*Store, error) {
	mdb := mongodriver.New()
	if err := mdb.Open(ctx, uri, mongodriver.WithDatabase(database)); err != nil {
		return nil, fmt.Errorf("tradefin/mongo: open: %w", err)
	}
	db, err := grove.Open(mdb)
	if err != nil {
		_ = mdb.Close()
		return nil, fmt.Errorf("tradefin/mongo: open: %w", err)
	}
	return New(db), nil
}

// DB returns the underlying grove database.
func (s *Store) DB() *grove.DB { return s.gdb }

// Database returns the underlying database for direct access.
func (s *Store) Database() *mongo.Database { return s.db }

// Atomic runs fn inside a multi-document transaction. The driver may retry
// fn on transient transaction errors, write conflicts included.
func (s *Store) Atomic(ctx context.Context, fn tfstore.TxFunc) error {
	sess, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("%w: start session: %w", tradefin.ErrTransactionFailed, err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		return nil, fn(ctx, s)
	})
	return err
}

// Migrate creates indexes for all tradefin collections using the grove
// orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.mdb)
	if err != nil {
		return fmt.Errorf("%w: mongo: create migration executor: %w", tradefin.ErrMigrationFailed, err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("%w: mongo: %w", tradefin.ErrMigrationFailed, err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.gdb.Ping(ctx)
}

// Close disconnects the client.
func (s *Store) Close() error {
	return s.gdb.Close()
}

// ==================== Order Store ====================

func (s *Store) CreateOrder(ctx context.Context, o *order.Order) error {
	_, err := s.db.Collection(colOrders).InsertOne(ctx, toOrderModel(o))
	if mongo.IsDuplicateKeyError(err) {
		return tradefin.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("tradefin/mongo: create order: %w", err)
	}
	return nil
}

func (s *Store) GetOrder(ctx context.Context, orderID id.OrderID) (*order.Order, error) {
	var m orderModel
	err := s.db.Collection(colOrders).FindOne(ctx, bson.M{"_id": orderID.String()}).Decode(&m)
	if isNoDocuments(err) {
		return nil, tradefin.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("tradefin/mongo: get order: %w", err)
	}
	return fromOrderModel(&m)
}

func (s *Store) ListOrders(ctx context.Context, opts order.ListOpts) ([]*order.Order, error) {
	filter := bson.M{}
	setID(filter, "supplier_id", opts.SupplierID)
	setID(filter, "buyer_id", opts.BuyerID)
	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}

	var models []orderModel
	if err := s.find(ctx, colOrders, filter, opts.Limit, opts.Offset, &models); err != nil {
		return nil, fmt.Errorf("tradefin/mongo: list orders: %w", err)
	}

	result := make([]*order.Order, 0, len(models))
	for i := range models {
		o, err := fromOrderModel(&models[i])
		if err != nil {
			return nil, err
		}
		result = append(result, o)
	}
	return result, nil
}

func (s *Store) TransitionOrder(ctx context.Context, orderID id.OrderID, from, to order.Status, at time.Time) error {
	at = at.UTC()
	set := bson.M{"status": string(to), "updated_at": at}
	switch to {
	case order.StatusConfirmed:
		set["confirmed_at"] = at
	case order.StatusPaid:
		set["paid_at"] = at
	}
	return s.updateFrom(ctx, colOrders, orderID.String(), bson.M{"status": string(from)}, set, tradefin.ErrOrderNotFound)
}

func (s *Store) DeleteOrder(ctx context.Context, orderID id.OrderID, status order.Status) error {
	res, err := s.db.Collection(colOrders).DeleteOne(ctx, bson.M{"_id": orderID.String(), "status": string(status)})
	if err != nil {
		return fmt.Errorf("tradefin/mongo: delete order: %w", err)
	}
	if res.DeletedCount == 1 {
		return nil
	}
	return s.missingOrConflict(ctx, colOrders, orderID.String(), tradefin.ErrOrderNotFound)
}

func (s *Store) CountOrders(ctx context.Context) (map[order.Status]int, error) {
	counts := make(map[order.Status]int)
	err := s.countByStatus(ctx, colOrders, func(status string, n int) { counts[order.Status(status)] = n })
	return counts, err
}

// ==================== Invoice Store ====================

func (s *Store) CreateInvoice(ctx context.Context, inv *invoice.Invoice) error {
	_, err := s.db.Collection(colInvoices).InsertOne(ctx, toInvoiceModel(inv))
	if mongo.IsDuplicateKeyError(err) {
		return tradefin.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("tradefin/mongo: create invoice: %w", err)
	}
	return nil
}

func (s *Store) GetInvoice(ctx context.Context, invID id.InvoiceID) (*invoice.Invoice, error) {
	return s.getInvoice(ctx, bson.M{"_id": invID.String()})
}

// GetInvoiceForUpdate bumps the invoice version as it reads. Two
// transactions that both lock the invoice then conflict, and the loser is
// retried by WithTransaction.
func (s *Store) GetInvoiceForUpdate(ctx context.Context, invID id.InvoiceID) (*invoice.Invoice, error) {
	var m invoiceModel
	err := s.db.Collection(colInvoices).FindOneAndUpdate(ctx,
		bson.M{"_id": invID.String()},
		bson.M{"$inc": bson.M{"version": int64(1)}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&m)
	if isNoDocuments(err) {
		return nil, tradefin.ErrInvoiceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("tradefin/mongo: get invoice for update: %w", err)
	}
	return fromInvoiceModel(&m)
}

func (s *Store) GetInvoiceByOrder(ctx context.Context, orderID id.OrderID) (*invoice.Invoice, error) {
	return s.getInvoice(ctx, bson.M{"order_id": orderID.String()})
}

func (s *Store) getInvoice(ctx context.Context, filter bson.M) (*invoice.Invoice, error) {
	var m invoiceModel
	err := s.db.Collection(colInvoices).FindOne(ctx, filter).Decode(&m)
	if isNoDocuments(err) {
		return nil, tradefin.ErrInvoiceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("tradefin/mongo: get invoice: %w", err)
	}
	return fromInvoiceModel(&m)
}

func (s *Store) ListInvoices(ctx context.Context, opts invoice.ListOpts) ([]*invoice.Invoice, error) {
	filter := bson.M{}
	setID(filter, "supplier_id", opts.SupplierID)
	setID(filter, "buyer_id", opts.BuyerID)
	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}

	var models []invoiceModel
	if err := s.find(ctx, colInvoices, filter, opts.Limit, opts.Offset, &models); err != nil {
		return nil, fmt.Errorf("tradefin/mongo: list invoices: %w", err)
	}

	result := make([]*invoice.Invoice, 0, len(models))
	for i := range models {
		inv, err := fromInvoiceModel(&models[i])
		if err != nil {
			return nil, err
		}
		result = append(result, inv)
	}
	return result, nil
}

func (s *Store) MarkInvoicePaid(ctx context.Context, invID id.InvoiceID, from invoice.Status, paidAt time.Time) error {
	paidAt = paidAt.UTC()
	set := bson.M{
		"status":          string(invoice.StatusPaid),
		"remaining_cents": int64(0),
		"paid_at":         paidAt,
		"updated_at":      paidAt,
	}
	return s.updateFrom(ctx, colInvoices, invID.String(), bson.M{"status": string(from)}, set, tradefin.ErrInvoiceNotFound)
}

func (s *Store) CountInvoices(ctx context.Context) (map[invoice.Status]int, error) {
	counts := make(map[invoice.Status]int)
	err := s.countByStatus(ctx, colInvoices, func(status string, n int) { counts[invoice.Status(status)] = n })
	return counts, err
}

// ==================== Application Store ====================

func (s *Store) CreateApplication(ctx context.Context, app *loan.Application) error {
	_, err := s.db.Collection(colApplications).InsertOne(ctx, toApplicationModel(app))
	if mongo.IsDuplicateKeyError(err) {
		return tradefin.ErrDuplicatePendingApplication
	}
	if err != nil {
		return fmt.Errorf("tradefin/mongo: create application: %w", err)
	}
	return nil
}

func (s *Store) GetApplication(ctx context.Context, appID id.ApplicationID) (*loan.Application, error) {
	var m applicationModel
	err := s.db.Collection(colApplications).FindOne(ctx, bson.M{"_id": appID.String()}).Decode(&m)
	if isNoDocuments(err) {
		return nil, tradefin.ErrApplicationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("tradefin/mongo: get application: %w", err)
	}
	return fromApplicationModel(&m)
}

func (s *Store) ListApplications(ctx context.Context, opts loan.ApplicationListOpts) ([]*loan.Application, error) {
	filter := bson.M{}
	setID(filter, "invoice_id", opts.InvoiceID)
	setID(filter, "applicant_id", opts.ApplicantID)
	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}
	if c := opts.Before; c != nil {
		filter["$or"] = bson.A{
			bson.M{"created_at": bson.M{"$lt": c.CreatedAt}},
			bson.M{"created_at": c.CreatedAt, "_id": bson.M{"$lt": c.ID.String()}},
		}
	}

	var models []applicationModel
	if err := s.find(ctx, colApplications, filter, opts.Limit, opts.Offset, &models); err != nil {
		return nil, fmt.Errorf("tradefin/mongo: list applications: %w", err)
	}

	result := make([]*loan.Application, 0, len(models))
	for i := range models {
		app, err := fromApplicationModel(&models[i])
		if err != nil {
			return nil, err
		}
		result = append(result, app)
	}
	return result, nil
}

func (s *Store) HasPendingApplication(ctx context.Context, invID id.InvoiceID) (bool, error) {
	n, err := s.db.Collection(colApplications).CountDocuments(ctx, bson.M{
		"invoice_id": invID.String(),
		"status":     string(loan.ApplicationPending),
	})
	if err != nil {
		return false, fmt.Errorf("tradefin/mongo: check pending application: %w", err)
	}
	return n > 0, nil
}

func (s *Store) DecideApplication(ctx context.Context, appID id.ApplicationID, to loan.ApplicationStatus, lenderID id.EntityID, riskScore *int, at time.Time) error {
	at = at.UTC()
	set := bson.M{
		"status":     string(to),
		"decided_by": lenderID.String(),
		"decided_at": at,
		"updated_at": at,
	}
	if riskScore != nil {
		set["risk_score"] = *riskScore
	}
	cond := bson.M{"status": string(loan.ApplicationPending)}
	return s.updateFrom(ctx, colApplications, appID.String(), cond, set, tradefin.ErrApplicationNotFound)
}

func (s *Store) CountApplications(ctx context.Context) (map[loan.ApplicationStatus]int, error) {
	counts := make(map[loan.ApplicationStatus]int)
	err := s.countByStatus(ctx, colApplications, func(status string, n int) {
		counts[loan.ApplicationStatus(status)] = n
	})
	return counts, err
}

// ==================== Loan Store ====================

func (s *Store) CreateLoan(ctx context.Context, l *loan.Loan) error {
	_, err := s.db.Collection(colLoans).InsertOne(ctx, toLoanModel(l))
	if mongo.IsDuplicateKeyError(err) {
		return tradefin.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("tradefin/mongo: create loan: %w", err)
	}
	return nil
}

func (s *Store) GetLoan(ctx context.Context, loanID id.LoanID) (*loan.Loan, error) {
	return s.getLoan(ctx, bson.M{"_id": loanID.String()})
}

func (s *Store) GetLoanByApplication(ctx context.Context, appID id.ApplicationID) (*loan.Loan, error) {
	return s.getLoan(ctx, bson.M{"application_id": appID.String()})
}

func (s *Store) getLoan(ctx context.Context, filter bson.M) (*loan.Loan, error) {
	var m loanModel
	err := s.db.Collection(colLoans).FindOne(ctx, filter).Decode(&m)
	if isNoDocuments(err) {
		return nil, tradefin.ErrLoanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("tradefin/mongo: get loan: %w", err)
	}
	return fromLoanModel(&m)
}

func (s *Store) ListLoans(ctx context.Context, opts loan.ListOpts) ([]*loan.Loan, error) {
	filter := bson.M{}
	setID(filter, "lender_id", opts.LenderID)
	setID(filter, "borrower_id", opts.BorrowerID)
	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}

	var models []loanModel
	if err := s.find(ctx, colLoans, filter, opts.Limit, opts.Offset, &models); err != nil {
		return nil, fmt.Errorf("tradefin/mongo: list loans: %w", err)
	}

	result := make([]*loan.Loan, 0, len(models))
	for i := range models {
		l, err := fromLoanModel(&models[i])
		if err != nil {
			return nil, err
		}
		result = append(result, l)
	}
	return result, nil
}

func (s *Store) CloseLoan(ctx context.Context, loanID id.LoanID, to loan.Status, amountRepaid types.Money, at time.Time) error {
	at = at.UTC()
	set := bson.M{
		"status":       string(to),
		"repaid_cents": amountRepaid.Cents,
		"closed_at":    at,
		"updated_at":   at,
	}
	cond := bson.M{"status": string(loan.StatusActive)}
	return s.updateFrom(ctx, colLoans, loanID.String(), cond, set, tradefin.ErrLoanNotFound)
}

func (s *Store) CountLoans(ctx context.Context) (map[loan.Status]int, error) {
	counts := make(map[loan.Status]int)
	err := s.countByStatus(ctx, colLoans, func(status string, n int) { counts[loan.Status(status)] = n })
	return counts, err
}

// ==================== Journal Store ====================

// AppendEntries stamps each entry with a sequence number drawn from a
// counter document so listing order follows append order.
func (s *Store) AppendEntries(ctx context.Context, entries ...*journal.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	last, err := s.reserveSeq(ctx, colEntries, int64(len(entries)))
	if err != nil {
		return fmt.Errorf("tradefin/mongo: reserve entry seq: %w", err)
	}

	first := last - int64(len(entries)) + 1
	docs := make([]any, len(entries))
	for i, e := range entries {
		docs[i] = toEntryModel(e, first+int64(i))
	}
	_, err = s.db.Collection(colEntries).InsertMany(ctx, docs)
	if mongo.IsDuplicateKeyError(err) {
		return tradefin.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("tradefin/mongo: append entries: %w", err)
	}
	return nil
}

func (s *Store) reserveSeq(ctx context.Context, name string, n int64) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := s.db.Collection(colCounters).FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"seq": n}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	return counter.Seq, err
}

func (s *Store) ListEntries(ctx context.Context, entityID id.EntityID, opts journal.ListOpts) ([]*journal.Entry, error) {
	return s.listEntries(ctx, bson.M{"entity_id": entityID.String()}, opts)
}

func (s *Store) ListEntriesByReference(ctx context.Context, ref journal.Reference, opts journal.ListOpts) ([]*journal.Entry, error) {
	return s.listEntries(ctx, bson.M{"ref.id": ref.ID, "ref.type": string(ref.Type)}, opts)
}

func (s *Store) listEntries(ctx context.Context, filter bson.M, opts journal.ListOpts) ([]*journal.Entry, error) {
	opts = opts.Normalize()
	findOpts := options.Find().
		SetSort(bson.D{{Key: "seq", Value: -1}}).
		SetLimit(int64(opts.Limit)).
		SetSkip(int64(opts.Offset))

	cursor, err := s.db.Collection(colEntries).Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("tradefin/mongo: list entries: %w", err)
	}
	var models []entryModel
	if err := cursor.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("tradefin/mongo: list entries: %w", err)
	}

	result := make([]*journal.Entry, 0, len(models))
	for i := range models {
		e, err := fromEntryModel(&models[i])
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, nil
}

func (s *Store) EntityTotals(ctx context.Context, entityID id.EntityID) (journal.Totals, error) {
	sumIf := func(direction journal.Direction) bson.M {
		return bson.M{"$sum": bson.M{"$cond": bson.A{
			bson.M{"$eq": bson.A{"$direction", string(direction)}}, "$amount_cents", 0,
		}}}
	}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"entity_id": entityID.String()}}},
		{{Key: "$group", Value: bson.M{
			"_id":     nil,
			"debits":  sumIf(journal.Debit),
			"credits": sumIf(journal.Credit),
			"count":   bson.M{"$sum": 1},
		}}},
	}

	cursor, err := s.db.Collection(colEntries).Aggregate(ctx, pipeline)
	if err != nil {
		return journal.Totals{}, fmt.Errorf("tradefin/mongo: entity totals: %w", err)
	}
	var rows []struct {
		Debits  bson.RawValue `bson:"debits"`
		Credits bson.RawValue `bson:"credits"`
		Count   int           `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return journal.Totals{}, fmt.Errorf("tradefin/mongo: entity totals: %w", err)
	}
	if len(rows) == 0 {
		return journal.Totals{}, nil
	}
	debits, err := sumCents(rows[0].Debits)
	if err != nil {
		return journal.Totals{}, err
	}
	credits, err := sumCents(rows[0].Credits)
	if err != nil {
		return journal.Totals{}, err
	}
	return journal.Totals{Debits: debits, Credits: credits, Count: rows[0].Count}, nil
}

// sumCents reads a $sum result. The server widens an overflowing long sum
// to a double, which is reported instead of truncated.
func sumCents(v bson.RawValue) (types.Money, error) {
	if n, ok := v.Int64OK(); ok {
		return types.Cents(n), nil
	}
	if n, ok := v.Int32OK(); ok {
		return types.Cents(int64(n)), nil
	}
	return types.Money{}, fmt.Errorf("%w: entity totals: %w", tradefin.ErrInvalidAmount, types.ErrOverflow)
}

// ==================== helpers ====================

func (s *Store) find(ctx context.Context, col string, filter bson.M, limit, offset int, out any) error {
	findOpts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	if limit > 0 {
		findOpts.SetLimit(int64(limit))
	}
	if offset > 0 {
		findOpts.SetSkip(int64(offset))
	}
	cursor, err := s.db.Collection(col).Find(ctx, filter, findOpts)
	if err != nil {
		return err
	}
	return cursor.All(ctx, out)
}

// updateFrom applies set to the document only while it still matches cond.
func (s *Store) updateFrom(ctx context.Context, col, key string, cond, set bson.M, notFound error) error {
	filter := bson.M{"_id": key}
	for k, v := range cond {
		filter[k] = v
	}
	res, err := s.db.Collection(col).UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("tradefin/mongo: update %s: %w", col, err)
	}
	if res.MatchedCount == 1 {
		return nil
	}
	return s.missingOrConflict(ctx, col, key, notFound)
}

func (s *Store) missingOrConflict(ctx context.Context, col, key string, notFound error) error {
	n, err := s.db.Collection(col).CountDocuments(ctx, bson.M{"_id": key})
	if err != nil {
		return fmt.Errorf("tradefin/mongo: lookup %s: %w", col, err)
	}
	if n == 0 {
		return notFound
	}
	return tradefin.ErrConcurrentUpdate
}

func (s *Store) countByStatus(ctx context.Context, col string, add func(status string, n int)) error {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{"_id": "$status", "n": bson.M{"$sum": 1}}}},
	}
	cursor, err := s.db.Collection(col).Aggregate(ctx, pipeline)
	if err != nil {
		return fmt.Errorf("tradefin/mongo: count %s: %w", col, err)
	}
	var rows []struct {
		Status string `bson:"_id"`
		N      int    `bson:"n"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return fmt.Errorf("tradefin/mongo: count %s: %w", col, err)
	}
	for _, r := range rows {
		add(r.Status, r.N)
	}
	return nil
}

func setID(filter bson.M, field string, v id.ID) {
	if !v.IsNil() {
		filter[field] = v.String()
	}
}

// isNoDocuments checks for the driver's no-documents sentinel.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all tradefin collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colOrders: {
			{Keys: bson.D{{Key: "supplier_id", Value: 1}, {Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "buyer_id", Value: 1}, {Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "created_at", Value: -1}}},
		},
		colInvoices: {
			{Keys: bson.D{{Key: "order_id", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "invoice_number", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "status", Value: 1}}},
		},
		colApplications: {
			{Keys: bson.D{{Key: "invoice_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{
				Keys: bson.D{{Key: "invoice_id", Value: 1}},
				Options: options.Index().
					SetName("uniq_pending_per_invoice").
					SetUnique(true).
					SetPartialFilterExpression(bson.M{"status": string(loan.ApplicationPending)}),
			},
		},
		colLoans: {
			{Keys: bson.D{{Key: "application_id", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "lender_id", Value: 1}, {Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "borrower_id", Value: 1}, {Key: "status", Value: 1}}},
		},
		colEntries: {
			{Keys: bson.D{{Key: "entity_id", Value: 1}, {Key: "seq", Value: -1}}},
			{Keys: bson.D{{Key: "ref.id", Value: 1}, {Key: "ref.type", Value: 1}, {Key: "seq", Value: -1}}},
			{Keys: bson.D{{Key: "seq", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
	}
}
