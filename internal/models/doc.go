// Package models defines the core domain models for billbook.
//
// # Stored Models
//
// The entity store owns four active collections plus one append-only log:
//   - Customer: someone the business bills
//   - Bill: an invoice with ordered line items
//   - Payment: money received from a customer
//   - Item: a catalog entry (fixed or variable rate)
//   - ItemRateHistory: every rate a fixed catalog item has had
//
// Deleted entities are copied into a RecycledItem and kept in quarantine
// until they are restored or purged.
//
// # Derived Models
//
// MonthlyBalance is never stored. It is computed on demand from bills and
// payments by the calculator package.
//
// # Conventions
//
//  1. Relationships use ID strings, never pointers.
//  2. Amounts, rates and quantities are decimal.Decimal, never float64.
//  3. Timestamps are time.Time; dates are interpreted in the store's
//     reference time zone when bucketed by month.
//  4. Bill.CustomerName and Payment.CustomerName are denormalized copies of
//     Customer.Name, kept in sync by the datastore on every rename.
package models
