package payment_entities

import (
	"testing"

	"github.com/google/uuid"
	payment_vo "github.com/wopay/engine/pkg/domain/payment/value-objects"
)

func TestPaymentStatus_IsTerminal(t *testing.T) {
	terminal := []PaymentStatus{PaymentStatusCompleted, PaymentStatusExpired, PaymentStatusFailed}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}

	open := []PaymentStatus{PaymentStatusPending, PaymentStatusConfirmed}
	for _, s := range open {
		if s.IsTerminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func newTestPayment(t *testing.T) Payment {
	t.Helper()
	addr, err := payment_vo.NewEVMAddress("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")
	if err != nil {
		t.Fatal(err)
	}
	return Payment{
		ID:               uuid.New(),
		MerchantID:       uuid.New(),
		OrderID:          "order-1",
		ExpectedAmount:   payment_vo.MustAmount("10"),
		Currency:         payment_vo.CurrencyUSDT,
		ReceivingAddress: addr,
		Status:           PaymentStatusPending,
	}
}

func TestPayment_IsOpen(t *testing.T) {
	p := newTestPayment(t)
	if !p.IsOpen() {
		t.Fatal("pending payment should be open")
	}

	p.Status = PaymentStatusCompleted
	if p.IsOpen() {
		t.Fatal("completed payment should not be open")
	}
}

func TestPayment_ApplyTransition_Confirmed(t *testing.T) {
	p := newTestPayment(t)
	hash := "0xabc"

	p.ApplyTransition(PaymentStatusConfirmed, &hash, 3)

	if p.Status != PaymentStatusConfirmed {
		t.Fatalf("got status %s", p.Status)
	}
	if p.TransactionHash == nil || *p.TransactionHash != hash {
		t.Fatalf("transaction hash not applied: %+v", p.TransactionHash)
	}
	if p.Confirmations != 3 {
		t.Fatalf("got confirmations %d", p.Confirmations)
	}
}

func TestPayment_ApplyTransition_FailedClearsTransactionHash(t *testing.T) {
	p := newTestPayment(t)
	hash := "0xabc"
	p.ApplyTransition(PaymentStatusConfirmed, &hash, 3)

	p.ApplyTransition(PaymentStatusFailed, nil, 0)

	if p.Status != PaymentStatusFailed {
		t.Fatalf("got status %s", p.Status)
	}
	if p.TransactionHash != nil {
		t.Fatal("expected transaction hash cleared on failure")
	}
}

func TestPayment_ApplyTransition_Expired(t *testing.T) {
	p := newTestPayment(t)
	p.ApplyTransition(PaymentStatusExpired, nil, 0)
	if p.Status != PaymentStatusExpired {
		t.Fatalf("got status %s", p.Status)
	}
}

func TestPayment_ApplyTransition_Completed(t *testing.T) {
	p := newTestPayment(t)
	hash := "0xabc"
	p.ApplyTransition(PaymentStatusConfirmed, &hash, 12)
	p.ApplyTransition(PaymentStatusCompleted, nil, 0)
	if p.Status != PaymentStatusCompleted {
		t.Fatalf("got status %s", p.Status)
	}
	// Completed does not itself clear the transaction hash.
	if p.TransactionHash == nil || *p.TransactionHash != hash {
		t.Fatal("expected transaction hash to survive completion")
	}
}
