package service

import (
	"fmt"

	"github.com/mmynk/billbook/internal/calculator"
	"github.com/mmynk/billbook/internal/models"
)

// MonthlyBalances returns the running ledger of an active customer, one
// bucket per calendar month from the first transaction on, gaps included.
func (s *Service) MonthlyBalances(customerID string) ([]models.MonthlyBalance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.store.HasCustomer(customerID) {
		return nil, fmt.Errorf("%w: %s", models.ErrUnknownCustomer, customerID)
	}
	bills, payments := s.ledgerInputs(s.store.BillsByCustomer(customerID), s.store.PaymentsByCustomer(customerID))
	balances := calculator.CalculateMonthlyBalances(customerID, bills, payments, s.loc, s.now())
	s.logger.Debug("Computed monthly balances", "customer_id", customerID, "months", len(balances))
	return balances, nil
}

// Analytics summarizes the whole book.
func (s *Service) Analytics() models.BusinessAnalytics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.analytics()
}

func (s *Service) analytics() models.BusinessAnalytics {
	customers := s.store.Customers()
	refs := make([]calculator.CustomerForBalance, len(customers))
	for i, c := range customers {
		refs[i] = calculator.CustomerForBalance{ID: c.ID, Name: c.Name}
	}
	bills, payments := s.ledgerInputs(s.store.Bills(), s.store.Payments())
	return calculator.CalculateAnalytics(refs, bills, payments, len(s.store.Items()))
}

func (s *Service) ledgerInputs(bills []*models.Bill, payments []*models.Payment) ([]calculator.BillForBalance, []calculator.PaymentForBalance) {
	outBills := make([]calculator.BillForBalance, len(bills))
	for i, b := range bills {
		outBills[i] = calculator.BillForBalance{
			CustomerID: b.CustomerID,
			Date:       b.Date,
			GrandTotal: b.GrandTotal,
		}
	}
	outPayments := make([]calculator.PaymentForBalance, len(payments))
	for i, p := range payments {
		outPayments[i] = calculator.PaymentForBalance{
			CustomerID: p.CustomerID,
			Date:       p.Date,
			Amount:     p.Amount,
		}
	}
	return outBills, outPayments
}
