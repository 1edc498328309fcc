// Package tradefin provides a supply-chain-finance engine for Go applications:
// the order → invoice → payment and application → loan → repayment state
// machines, and the per-entity journal that records every money movement.
//
// Tradefin is a library, not a service. HTTP routing, authentication and
// rendering belong to the caller; the engine receives already-authorized
// actor IDs and returns typed results or sentinel errors.
//
// # Quick Start
//
//	import (
//	    "github.com/xraph/tradefin"
//	    "github.com/xraph/tradefin/store/sqlite"
//	)
//
//	s, err := sqlite.Open(ctx, "file:tradefin.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	eng := tradefin.New(s)
//	if err := eng.Start(ctx); err != nil { // runs migrations
//	    log.Fatal(err)
//	}
//	defer eng.Stop()
//
// # Orders and invoices
//
// A supplier raises an order against a buyer. Confirming it issues exactly
// one invoice, due after the configured term (30 days by default). Paying
// the invoice settles invoice and order together and posts a matched pair:
// the buyer is debited and the supplier credited for the invoice amount.
//
//	o := &order.Order{SupplierID: supplier, BuyerID: buyer, Amount: types.MustParse("10000")}
//	_ = eng.CreateOrder(ctx, o)
//	inv, _ := eng.ConfirmOrder(ctx, o.ID, buyer)
//	inv, _ = eng.PayInvoice(ctx, inv.ID, buyer)
//
// # Financing
//
// Any Unpaid invoice may be financed up to 1.2× its amount. ApplyForLoan runs
// the eligibility gate, admits at most one Pending application per invoice
// and attaches an advisory risk score. A lender's approval disburses the
// loan (debit lender, credit applicant); repayment realizes interest in one
// step (debit borrower, credit lender for principal × (1 + rate/100)).
//
//	app, err := eng.ApplyForLoan(ctx, inv.ID, supplier, types.MustParse("8000"), "working capital")
//	l, err := eng.ApproveApplication(ctx, app.ID, lender, nil, nil) // engine defaults
//	receipt, err := eng.RepayLoan(ctx, l.ID, supplier)
//
// # Journal
//
// The journal is append-only. An entity's balance is Σ debits − Σ credits,
// recomputed from its entries on every read and never cached.
//
//	bal, err := eng.GetBalance(ctx, supplier)
//
// # Money
//
// Amounts are integer cents. Decimal inputs with more than two fractional
// digits are rejected; computed interest rounds half-to-even to the cent.
//
// # Stores
//
// Every transition runs inside store.Store.Atomic. Backends: store/memory,
// store/sqlite, store/postgres and store/mongo (replica set required).
//
// # TypeID
//
// Records use TypeID identifiers:
//
//	ord_01h2xcejqtf2nbrexx3vqjhp41   // Order
//	inv_01h455vb4pex5vsknk084sn02q   // Invoice
//	lapp_01h455vb4pex5vsknk084sn02q  // Loan application
//	loan_01h455vb4pex5vsknk084sn02q  // Loan
//	je_01h455vb4pex5vsknk084sn02q    // Journal entry
//	ent_01h455vb4pex5vsknk084sn02q   // Participant
package tradefin
